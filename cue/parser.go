// Copyright (C) 2026 The go-mirage authors
// SPDX-License-Identifier: GPL-2.0-or-later
//
// This file is part of go-mirage.
//
// go-mirage is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 2 of the License, or
// (at your option) any later version.
//
// go-mirage is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-mirage.  If not, see <https://www.gnu.org/licenses/>.

// Package cue parses plain CUE sheets: a text file of FILE/TRACK/INDEX
// directives (plus CATALOG/ISRC/PREGAP/POSTGAP/REM SESSION) describing how
// one or more flat data files slice up into a disc's tracks.
package cue

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cdemu/go-mirage"
)

func init() {
	mirage.RegisterParser(".cue", Open)
}

var (
	reBlank   = regexp.MustCompile(`^\s*$`)
	reSession = regexp.MustCompile(`(?i)^REM\s+SESSION\s+(\d+)\s*$`)
	reComment = regexp.MustCompile(`(?i)^REM\s+.*$`)
	reCatalog = regexp.MustCompile(`(?i)^CATALOG\s+(\d{13})\s*$`)
	reFile    = regexp.MustCompile(`(?i)^FILE\s+(.+?)\s+(\S+)\s*$`)
	reTrack   = regexp.MustCompile(`(?i)^TRACK\s+(\d+)\s+(\S+)\s*$`)
	reISRC    = regexp.MustCompile(`(?i)^ISRC\s+(\w{12})\s*$`)
	reIndex   = regexp.MustCompile(`(?i)^INDEX\s+(\d+)\s+(\d+:\d+:\d+)\s*$`)
	rePregap  = regexp.MustCompile(`(?i)^PREGAP\s+(\d+:\d+:\d+)\s*$`)
	rePostgap = regexp.MustCompile(`(?i)^POSTGAP\s+(\d+:\d+:\d+)\s*$`)
)

// trackMode is one row of the TRACK-type-string lookup table.
type trackMode struct {
	format   mirage.Format
	sectSize int
}

// trackModes mirrors the mode table every CUE parser uses: the handful of
// track-type strings a CUE sheet is allowed to name, and the main-channel
// sector size each implies. Subtleties between MODE1/MODE2/CDI are not
// distinguished any further than data-vs-audio; the fragment's actual
// sector layout is whatever size this table says it is.
var trackModes = map[string]trackMode{
	"AUDIO":      {mirage.FormatAudio, 2352},
	"CDG":        {mirage.FormatAudio, 2448},
	"MODE1/2048": {mirage.FormatData, 2048},
	"MODE1/2352": {mirage.FormatData, 2352},
	"MODE2/2336": {mirage.FormatData, 2336},
	"MODE2/2352": {mirage.FormatData, 2352},
	"CDI/2336":   {mirage.FormatData, 2336},
	"CDI/2352":   {mirage.FormatData, 2352},
}

// fragBuilder is a not-yet-finalized fragment: its length is unknown until
// the next INDEX/FILE/end-of-sheet tells us where it ends.
type fragBuilder struct {
	path      string
	mainSize  int
	subSize   int
	offset    int64
	startAddr int // frame address (within the file's own timeline) this fragment starts at
	length    int // -1 until resolved
	null      bool
	nullLen   int
}

type trackBuilder struct {
	number    int
	mode      mirage.Format
	isrc      string
	fragments []*fragBuilder
	indices   []mirage.Index
}

type sessionBuilder struct {
	number     int
	leadoutLen int
	tracks     []*trackBuilder
}

// state is the mutable parse context, one per Open call.
type state struct {
	cueDir string
	log    mirage.Logger

	sessions   []*sessionBuilder
	curSession *sessionBuilder
	curTrack   *trackBuilder
	prevTrack  *trackBuilder
	mcn        string

	dataFile  string
	mainSize  int
	subSize   int
	trackStart int // cur_track_start: frame address the current track's data began at
	binaryOffset int64
	pregapSet bool
	leadoutCorrection int
}

// Open parses the CUE sheet at path into a mirage.Disc.
func Open(path string, opts mirage.Options) (*mirage.Disc, error) {
	log := opts.ResolvedLogger()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cue: %w: %v", mirage.ErrIO, err)
	}
	defer f.Close()

	s := &state{
		cueDir:     filepath.Dir(path),
		log:        log,
		sessions:   []*sessionBuilder{{number: 1}},
		leadoutCorrection: 0,
	}
	s.curSession = s.sessions[0]

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || reBlank.MatchString(line) {
			continue
		}
		if err := s.parseLine(line); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cue: %w: %v", mirage.ErrIO, err)
	}

	if err := s.finishCurrentTrack(); err != nil {
		return nil, err
	}

	return s.build()
}

func (s *state) parseLine(line string) error {
	switch {
	case reSession.MatchString(line):
		m := reSession.FindStringSubmatch(line)
		n, _ := strconv.Atoi(m[1])
		s.addSession(n)

	case reComment.MatchString(line):
		// Freeform comment; nothing to do.

	case reCatalog.MatchString(line):
		m := reCatalog.FindStringSubmatch(line)
		s.catalog(m[1])

	case reFile.MatchString(line):
		m := reFile.FindStringSubmatch(line)
		return s.setNewFile(stripQuotes(m[1]), strings.ToUpper(m[2]))

	case reTrack.MatchString(line):
		m := reTrack.FindStringSubmatch(line)
		n, _ := strconv.Atoi(m[1])
		return s.addTrack(n, strings.ToUpper(m[2]))

	case reISRC.MatchString(line):
		m := reISRC.FindStringSubmatch(line)
		return s.setISRC(m[1])

	case reIndex.MatchString(line):
		m := reIndex.FindStringSubmatch(line)
		n, _ := strconv.Atoi(m[1])
		addr := msfToFrames(m[2])
		return s.addIndex(n, addr)

	case rePregap.MatchString(line):
		m := rePregap.FindStringSubmatch(line)
		return s.addPregap(msfToFrames(m[1]))

	case rePostgap.MatchString(line):
		m := rePostgap.FindStringSubmatch(line)
		return s.addPostgap(msfToFrames(m[1]))
	}
	return nil
}

func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// msfToFrames converts a CUE "mm:ss:ff" address to a plain frame count.
// Unlike mirage.MSF.ToLBA, this does not subtract the 150-sector lead-in
// offset: CUE addresses are byte/sector offsets within a data file, not
// absolute disc LBAs.
func msfToFrames(s string) int {
	parts := strings.Split(s, ":")
	min, _ := strconv.Atoi(parts[0])
	sec, _ := strconv.Atoi(parts[1])
	frm, _ := strconv.Atoi(parts[2])
	return (min*60+sec)*mirage.FramesPerSecond + frm
}

func (s *state) addSession(number int) {
	if number == 1 {
		return
	}
	leadout := 6750
	if number == 2 {
		leadout = 11250
	}
	s.curSession.leadoutLen = leadout
	s.leadoutCorrection = leadout + mirage.LBAOffset

	ns := &sessionBuilder{number: number}
	s.sessions = append(s.sessions, ns)
	s.curSession = ns
	s.log.Debugf("cue: session %d starts, lead-out %d sectors", number, leadout)
}

func (s *state) catalog(mcn string) {
	s.mcn = mcn
}

// setNewFile handles a FILE directive: it closes out the previous file's
// pending fragment against that file's actual size (mirroring
// mirage_parser_cue_finish_last_track) and resets the per-file offset
// bookkeeping.
func (s *state) setNewFile(filename, fileType string) error {
	if s.curTrack != nil {
		if err := s.closeLastFragmentByFileSize(s.curTrack); err != nil {
			return err
		}
	}
	s.dataFile = resolveDataFile(s.cueDir, filename)
	_ = fileType // BINARY vs WAVE/other only matters for sector size, already fixed by TRACK's mode table
	s.trackStart = 0
	s.binaryOffset = 0
	return nil
}

// resolveDataFile resolves a CUE FILE name against the sheet's directory;
// CUE sheets routinely reference a data file by the path it had at burn
// time, so only the base name is trusted.
func resolveDataFile(dir, filename string) string {
	return filepath.Join(dir, filepath.Base(filename))
}

func (s *state) addTrack(number int, modeString string) error {
	s.prevTrack = s.curTrack

	mode, ok := trackModes[modeString]
	if !ok {
		return fmt.Errorf("cue: %w: invalid track mode %q", mirage.ErrFormat, modeString)
	}

	tb := &trackBuilder{number: number, mode: mode.format}
	s.curSession.tracks = append(s.curSession.tracks, tb)
	s.curTrack = tb
	s.log.Debugf("cue: track %d, mode %s", number, modeString)

	if mode.sectSize == 2448 {
		s.mainSize, s.subSize = 2352, 96
	} else {
		s.mainSize, s.subSize = mode.sectSize, 0
	}
	s.pregapSet = false
	return nil
}

func (s *state) setISRC(isrc string) error {
	if s.curTrack == nil {
		return fmt.Errorf("cue: %w: ISRC with no current track", mirage.ErrFormat)
	}
	if mirage.ValidateISRC(isrc) {
		s.curTrack.isrc = isrc
	}
	return nil
}

func (s *state) addIndex(number, addr int) error {
	if s.curTrack == nil {
		return fmt.Errorf("cue: %w: INDEX with no current track", mirage.ErrFormat)
	}

	if number == 0 || number == 1 {
		if number == 0 {
			s.pregapSet = true
		}

		if number == 1 && s.pregapSet {
			// Pregap already has a fragment (from index 0); just record
			// where the "real" track data begins within it.
			startFrame := 0
			if len(s.curTrack.fragments) > 0 {
				startFrame = s.curTrack.fragments[len(s.curTrack.fragments)-1].startAddr
			}
			s.curTrack.indices = append(s.curTrack.indices, mirage.Index{Number: 1, Start: addr - startFrame})
			return nil
		}

		if s.prevTrack == nil {
			// First track on the disc: index 1 with a nonzero address
			// means it has an implicit pregap folded into the same file.
			if number == 1 && addr != 0 {
				s.curTrack.indices = append(s.curTrack.indices, mirage.Index{Number: 0, Start: 0})
				s.curTrack.indices = append(s.curTrack.indices, mirage.Index{Number: 1, Start: addr})
				addr = 0
			}
		} else if err := s.closeLastFragmentByAddr(s.prevTrack, addr); err != nil {
			return err
		}

		fb := &fragBuilder{
			path:      s.dataFile,
			mainSize:  s.mainSize,
			subSize:   s.subSize,
			offset:    s.binaryOffset,
			startAddr: addr,
			length:    -1,
		}
		s.curTrack.fragments = append(s.curTrack.fragments, fb)
		s.trackStart = addr
		return nil
	}

	// Index >= 2: position marker within the current fragment.
	base := s.trackStart
	s.curTrack.indices = append(s.curTrack.indices, mirage.Index{Number: number, Start: addr - base})
	return nil
}

func (s *state) addPregap(length int) error {
	if s.curTrack == nil {
		return fmt.Errorf("cue: %w: PREGAP with no current track", mirage.ErrFormat)
	}
	s.curTrack.fragments = append(s.curTrack.fragments, &fragBuilder{null: true, nullLen: length})
	s.curTrack.indices = append(s.curTrack.indices, mirage.Index{Number: 0, Start: 0})
	s.curTrack.indices = append(s.curTrack.indices, mirage.Index{Number: 1, Start: length})
	return nil
}

func (s *state) addPostgap(length int) error {
	if s.curTrack == nil {
		return fmt.Errorf("cue: %w: POSTGAP with no current track", mirage.ErrFormat)
	}
	s.curTrack.fragments = append(s.curTrack.fragments, &fragBuilder{null: true, nullLen: length})
	return nil
}

// lastUnresolvedFragment returns t's most recently added real (non-null)
// fragment, skipping any trailing null (POSTGAP) fragments, if it is still
// waiting for its length.
func lastUnresolvedFragment(t *trackBuilder) *fragBuilder {
	if t == nil {
		return nil
	}
	for i := len(t.fragments) - 1; i >= 0; i-- {
		fb := t.fragments[i]
		if fb.null {
			continue
		}
		if fb.length >= 0 {
			return nil
		}
		return fb
	}
	return nil
}

// closeLastFragmentByAddr resolves t's pending fragment now that closeAddr
// (the address of the INDEX that follows it) is known, folding in the
// multisession lead-out correction and advancing the running binary offset
// within the data file.
func (s *state) closeLastFragmentByAddr(t *trackBuilder, closeAddr int) error {
	fb := lastUnresolvedFragment(t)
	if fb == nil {
		return nil
	}
	length := closeAddr - fb.startAddr
	if s.leadoutCorrection != 0 {
		length -= s.leadoutCorrection
		s.leadoutCorrection = 0
	}
	if length < 0 {
		return fmt.Errorf("cue: %w: fragment resolved to negative length", mirage.ErrFormat)
	}
	fb.length = length
	s.binaryOffset += int64(length) * int64(fb.mainSize+fb.subSize)
	return nil
}

// closeLastFragmentByFileSize resolves t's pending fragment against the
// actual size of the data file it reads from: used when a FILE directive
// switches data files, and at end of sheet, mirroring
// mirage_parser_cue_finish_last_track's "use the rest of file" fallback.
func (s *state) closeLastFragmentByFileSize(t *trackBuilder) error {
	fb := lastUnresolvedFragment(t)
	if fb == nil {
		return nil
	}
	info, err := os.Stat(fb.path)
	if err != nil {
		return fmt.Errorf("cue: %w: stat %s: %v", mirage.ErrIO, fb.path, err)
	}
	stride := int64(fb.mainSize + fb.subSize)
	remaining := info.Size() - fb.offset
	if remaining < 0 || stride == 0 {
		return fmt.Errorf("cue: %w: no data left in %s", mirage.ErrFormat, fb.path)
	}
	length := int(remaining / stride)
	if length <= 0 {
		return fmt.Errorf("cue: %w: fragment resolved to zero length", mirage.ErrFormat)
	}
	fb.length = length
	return nil
}

// finishCurrentTrack resolves the very last fragment of the sheet against
// its data file's actual size, the way
// mirage_parser_cue_finish_last_track does at end of input.
func (s *state) finishCurrentTrack() error {
	return s.closeLastFragmentByFileSize(s.curTrack)
}

// build converts the accumulated session/track/fragment builders into a
// mirage.Disc, opening each referenced data file exactly once.
func (s *state) build() (*mirage.Disc, error) {
	streams := make(map[string]mirage.Stream)
	openStream := func(path string) (mirage.Stream, error) {
		if st, ok := streams[path]; ok {
			return st, nil
		}
		st, err := mirage.OpenFileStream(path)
		if err != nil {
			return nil, fmt.Errorf("cue: opening data file %q: %w", path, err)
		}
		streams[path] = st
		return st, nil
	}

	d := &mirage.Disc{}
	if mirage.ValidateMCN(s.mcn) {
		d.MCN = s.mcn
	}

	for _, sb := range s.sessions {
		sess := mirage.Session{Number: sb.number, LeadoutLen: sb.leadoutLen}
		for _, tb := range sb.tracks {
			track := mirage.Track{Number: tb.number, Mode: tb.mode, ISRC: tb.isrc, Indices: tb.indices}
			for _, fb := range tb.fragments {
				if fb.null {
					track.Fragments = append(track.Fragments, mirage.NewNullFragment(fb.nullLen, fb.mainSize, fb.subSize))
					continue
				}
				if fb.length <= 0 {
					return nil, fmt.Errorf("cue: %w: track %d has an unresolved fragment", mirage.ErrFormat, tb.number)
				}
				stream, err := openStream(fb.path)
				if err != nil {
					return nil, err
				}
				stride := int64(fb.mainSize + fb.subSize)
				frag := mirage.NewRawFragment(fb.length, stream, fb.offset, stride, fb.mainSize, nil, 0, 0, 0)
				track.Fragments = append(track.Fragments, frag)
			}
			sess.Tracks = append(sess.Tracks, track)
		}
		d.Sessions = append(d.Sessions, sess)
	}
	return d, nil
}
