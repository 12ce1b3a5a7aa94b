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

// Package ccd parses CloneCD sheets: a CloneCD image is a CCD text file
// (an INI-style TOC dump) plus a flat .img data file and an optional .sub
// subchannel file.
package ccd

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Point values with a reserved meaning in an [Entry N] block, mirroring
// the TOC points a real drive returns for READ TOC/PMA/ATIP format 2.
const (
	pointSessionStart = 0xA0 // first entry of every session
	pointSessionEnd   = 0xA2 // last entry of every session (points at lead-out)
)

// disc holds the [Disc] section.
type disc struct {
	TocEntries          int
	Sessions            int
	DataTracksScrambled int
	CDTextLength        int
	Catalog             string
}

// session holds one [Session N] section.
type session struct {
	Number      int
	PreGapMode  int
	PreGapSubC  int
}

// entry holds one [Entry N] section, augmented in place by the matching
// [TRACK N] section's Mode/Index0/Index1/ISRC fields (CCD stores a track's
// pregap-relative bookkeeping as a separate section keyed by the same
// Point number as its TOC entry).
type entry struct {
	Session int
	Point   int
	ADR     int
	Control int
	TrackNo int
	AMin, ASec, AFrame, ALBA int
	Zero                     int
	PMin, PSec, PFrame, PLBA int

	Mode   int
	Index0 int
	Index1 int
	ISRC   string
}

var (
	sectionRe  = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)
	keyValueRe = regexp.MustCompile(`^\s*([A-Za-z0-9_]+)\s*=\s*(.*?)\s*$`)
	sessionHdr = regexp.MustCompile(`(?i)^Session\s*(\d+)$`)
	entryHdr   = regexp.MustCompile(`(?i)^Entry\s*(\d+)$`)
	trackHdr   = regexp.MustCompile(`(?i)^TRACK\s*(\d+)$`)
)

// sheet is the fully parsed CCD file.
type sheet struct {
	disc     disc
	sessions map[int]*session
	entries  []*entry // sorted by session, then point (0xA0 first, 0xA2 last); keyed by Point via byPoint
	byPoint  map[int]*entry
}

// parseSheet reads a .ccd file's INI-style sections into a sheet.
func parseSheet(path string) (*sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ccd: opening %s: %w", path, err)
	}
	defer f.Close()

	sh := &sheet{sessions: map[int]*session{}, byPoint: map[int]*entry{}}

	const (
		sectionNone = iota
		sectionDisc
		sectionSession
		sectionEntry
		sectionTrack
	)
	cur := sectionNone
	var curSession *session
	var curEntry *entry

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), ";") {
			continue
		}
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			switch {
			case strings.EqualFold(name, "CloneCD"):
				cur = sectionNone
			case strings.EqualFold(name, "Disc"):
				cur = sectionDisc
			case sessionHdr.MatchString(name):
				num, _ := strconv.Atoi(sessionHdr.FindStringSubmatch(name)[1])
				curSession = &session{Number: num}
				sh.sessions[num] = curSession
				cur = sectionSession
			case entryHdr.MatchString(name):
				curEntry = &entry{}
				sh.entries = append(sh.entries, curEntry)
				cur = sectionEntry
			case trackHdr.MatchString(name):
				num, _ := strconv.Atoi(trackHdr.FindStringSubmatch(name)[1])
				curEntry = sh.byPoint[num]
				cur = sectionTrack
			default:
				cur = sectionNone
			}
			continue
		}

		kv := keyValueRe.FindStringSubmatch(line)
		if kv == nil {
			continue
		}
		key, val := kv[1], kv[2]

		switch cur {
		case sectionDisc:
			switch strings.ToLower(key) {
			case "tocentries":
				sh.disc.TocEntries, _ = strconv.Atoi(val)
			case "sessions":
				sh.disc.Sessions, _ = strconv.Atoi(val)
			case "datatracksscrambled":
				sh.disc.DataTracksScrambled, _ = strconv.Atoi(val)
			case "cdtextlength":
				sh.disc.CDTextLength, _ = strconv.Atoi(val)
			case "catalog":
				sh.disc.Catalog = val
			}
		case sectionSession:
			switch strings.ToLower(key) {
			case "pregapmode":
				curSession.PreGapMode, _ = strconv.Atoi(val)
			case "pregapsubc":
				curSession.PreGapSubC, _ = strconv.Atoi(val)
			}
		case sectionEntry:
			setEntryField(curEntry, key, val)
			if strings.EqualFold(key, "point") {
				// [Entry N]'s N is an on-disk sequence number, not the
				// TOC point; re-key byPoint now that Point is known so
				// the later [TRACK point] section finds this entry.
				if p, err := strconv.ParseInt(val, 0, 32); err == nil {
					sh.byPoint[int(p)] = curEntry
				}
			}
		case sectionTrack:
			switch strings.ToLower(key) {
			case "mode":
				curEntry.Mode, _ = strconv.Atoi(val)
			case "index0":
				curEntry.Index0, _ = strconv.Atoi(val)
			case "index1":
				curEntry.Index1, _ = strconv.Atoi(val)
			case "isrc":
				curEntry.ISRC = val
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ccd: reading %s: %w", path, err)
	}

	sort.SliceStable(sh.entries, func(i, j int) bool {
		a, b := sh.entries[i], sh.entries[j]
		if a.Session != b.Session {
			return a.Session < b.Session
		}
		rank := func(e *entry) int {
			switch e.Point {
			case pointSessionStart:
				return -1
			case pointSessionEnd:
				return 1 << 30
			default:
				return e.Point
			}
		}
		return rank(a) < rank(b)
	})

	return sh, nil
}

// setEntryField assigns one [Entry N] key. Values are parsed with base
// prefix detection, so a point like 0xA0 may be written as "0xa0" or as
// "160"; a bare "a0" does not parse and the key is ignored.
func setEntryField(e *entry, key, val string) {
	n, err := strconv.ParseInt(strings.TrimSpace(val), 0, 32)
	if err != nil {
		return
	}
	v := int(n)
	switch strings.ToLower(key) {
	case "session":
		e.Session = v
	case "point":
		e.Point = v
	case "adr":
		e.ADR = v
	case "control":
		e.Control = v
	case "trackno":
		e.TrackNo = v
	case "amin":
		e.AMin = v
	case "asec":
		e.ASec = v
	case "aframe":
		e.AFrame = v
	case "alba":
		e.ALBA = v
	case "zero":
		e.Zero = v
	case "pmin":
		e.PMin = v
	case "psec":
		e.PSec = v
	case "pframe":
		e.PFrame = v
	case "plba":
		e.PLBA = v
	}
}
