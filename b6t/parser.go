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

// Package b6t parses BlindWrite 5/6 ".b6t" sheets: a single binary file
// describing the disc layout (data block table, session/track tables) plus
// a sibling ".bwa"/".b5t"-adjacent flat image file the data blocks index
// into. Unlike CCD's text sheet, everything here is packed C structs, so
// the parser reads the whole sheet into memory and walks it region by
// region the way the original scanner does.
package b6t

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	mbinary "github.com/cdemu/go-mirage/internal/binary"

	"github.com/cdemu/go-mirage"
)

func init() {
	mirage.RegisterParser(".b6t", Open)
}

var signature = []byte("BWT5 STREAM SIGN")

const (
	mainSectorSize = 2352
	subSectorSize  = 96
)

// Track type byte values from the per-session track table.
const (
	trackTypeNone    = 0
	trackTypeAudio   = 1
	trackTypeMode1   = 2
	trackTypeMode2   = 3
	trackTypeMode2F1 = 4
	trackTypeMode2F2 = 5
	trackTypeDVD     = 6
)

// discBlock1 is the first 112-byte fixed block following the signature.
type discBlock1 struct {
	Dummy1          [8]uint32
	DiscType        uint16
	NumSessions     uint16
	Dummy2          [3]uint32
	MCNValid        uint8
	MCN             [13]byte
	Dummy3          [2]uint8
	Dummy4          [4]uint32
	PMALength       uint16
	ATIPLength      uint16
	CDTextLength    uint16
	CDROMInfoLength uint16
	BCALength       uint32
	Dummy5          uint32
	Dummy6          [2]uint32
	StructuresLen   uint32
	DVDInfoLength   uint32
}

// discBlock2 follows the drive identifiers and volume ID, and gives the
// byte lengths of the variable-size regions that follow it.
type discBlock2 struct {
	ModePage2ALength uint32
	Unknown1Length   uint32
	DataBlocksLength uint32
	SessionsLength   uint32
	DPMDataLength    uint32
}

// sessionHeader precedes a session's track table.
type sessionHeader struct {
	Number     uint16
	NumEntries uint8
	Dummy1     uint8
	Start      int32
	End        int32
	FirstTrack uint16
	LastTrack  uint16
}

// trackEntry is the fixed 64-byte track descriptor. Entries whose Type is
// neither trackTypeNone nor trackTypeDVD carry 8 further bytes the parser
// discards.
type trackEntry struct {
	Type         uint8
	Dummy1       [3]uint8
	Dummy2       uint32
	Subchannel   uint8
	Dummy3       uint8
	CTL          uint8
	ADR          uint8
	Point        uint8
	Dummy4       uint8
	Min          uint8
	Sec          uint8
	Frame        uint8
	Zero         uint8
	PMin         uint8
	PSec         uint8
	PFrame       uint8
	Dummy5       uint8
	Pregap       uint32
	Dummy6       [4]uint32
	StartSector  int32
	Length       int32
	Dummy7       [2]uint32
	SessionNum   uint32
	Dummy8       uint16
}

// dataBlock describes one entry of the data block table: a run of sectors
// backed by a byte range of a named data file.
type dataBlock struct {
	Type         uint32
	LengthBytes  uint32
	Dummy1       [4]uint32
	Offset       uint32
	Dummy2       [3]uint32
	StartSector  int32
	LengthSector int32
	FilenameLen  uint32
	Filename     string
}

const (
	driveIdentifiersSize = 48
	volumeIDSize         = 32
)

// Open parses the B6T sheet at path, resolving its data block table against
// sibling data files in the same directory, into a mirage.Disc.
func Open(path string, opts mirage.Options) (*mirage.Disc, error) {
	log := opts.ResolvedLogger()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("b6t: %w: %v", mirage.ErrIO, err)
	}
	r := bytes.NewReader(raw)

	if len(raw) < len(signature) || !mbinary.BytesEqual(raw[:len(signature)], signature) {
		return nil, fmt.Errorf("b6t: %w: bad signature", mirage.ErrFormat)
	}
	if _, err := r.Seek(int64(len(signature)), io.SeekStart); err != nil {
		return nil, fmt.Errorf("b6t: %w: %v", mirage.ErrIO, err)
	}

	var db1 discBlock1
	if err := binary.Read(r, binary.LittleEndian, &db1); err != nil {
		return nil, fmt.Errorf("b6t: %w: disc block 1: %v", mirage.ErrFormat, err)
	}
	// 32 bytes of unidentified filler separate disc block 1 from the
	// drive identifiers.
	if _, err := r.Seek(32, io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("b6t: %w: %v", mirage.ErrIO, err)
	}
	if _, err := r.Seek(driveIdentifiersSize+volumeIDSize, io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("b6t: %w: %v", mirage.ErrIO, err)
	}

	var db2 discBlock2
	if err := binary.Read(r, binary.LittleEndian, &db2); err != nil {
		return nil, fmt.Errorf("b6t: %w: disc block 2: %v", mirage.ErrFormat, err)
	}
	if _, err := r.Seek(int64(db2.ModePage2ALength)+int64(db2.Unknown1Length), io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("b6t: %w: %v", mirage.ErrIO, err)
	}

	blocks, err := readDataBlocks(r)
	if err != nil {
		return nil, err
	}
	log.Debugf("b6t: %d data blocks", len(blocks))

	streams, err := openDataFiles(filepath.Dir(path), blocks)
	if err != nil {
		return nil, err
	}

	sessionsEnd, err := sessionsEndOffset(r, db2.SessionsLength)
	if err != nil {
		return nil, err
	}

	d := &mirage.Disc{}
	if db1.MCNValid != 0 {
		mcn := mbinary.CleanString(db1.MCN[:])
		if mirage.ValidateMCN(mcn) {
			d.MCN = mcn
		}
	}

	for r.Len() > 0 && int64(len(raw))-int64(r.Len()) < sessionsEnd {
		var sh sessionHeader
		if err := binary.Read(r, binary.LittleEndian, &sh); err != nil {
			return nil, fmt.Errorf("b6t: %w: session header: %v", mirage.ErrFormat, err)
		}
		sess := mirage.Session{Number: int(sh.Number)}
		log.Debugf("b6t: session %d, %d entries", sh.Number, sh.NumEntries)

		for i := 0; i < int(sh.NumEntries); i++ {
			var te trackEntry
			if err := binary.Read(r, binary.LittleEndian, &te); err != nil {
				return nil, fmt.Errorf("b6t: %w: track entry: %v", mirage.ErrFormat, err)
			}
			if te.Type != trackTypeNone && te.Type != trackTypeDVD {
				if _, err := r.Seek(8, io.SeekCurrent); err != nil {
					return nil, fmt.Errorf("b6t: %w: %v", mirage.ErrIO, err)
				}
			}
			if te.Type == trackTypeNone {
				continue
			}

			track, err := buildTrack(te, blocks, streams)
			if err != nil {
				return nil, err
			}
			sess.Tracks = append(sess.Tracks, track)
		}

		d.Sessions = append(d.Sessions, sess)
	}

	return d, nil
}

// sessionsEndOffset returns the absolute byte offset at which the
// sessions/tracks region (of the given length) ends, relative to r's
// current position.
func sessionsEndOffset(r *bytes.Reader, length uint32) (int64, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("b6t: %w: %v", mirage.ErrIO, err)
	}
	return pos + int64(length), nil
}

// readDataBlocks reads the data block table: a uint32 count, a uint32
// drive-path length (and that many bytes to skip), then that many
// dataBlock records, each followed by a UTF-16LE filename and a trailing
// 4-byte field the format leaves unused.
func readDataBlocks(r *bytes.Reader) ([]dataBlock, error) {
	var count, drivePathLen uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("b6t: %w: data block count: %v", mirage.ErrFormat, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &drivePathLen); err != nil {
		return nil, fmt.Errorf("b6t: %w: drive path length: %v", mirage.ErrFormat, err)
	}
	if _, err := r.Seek(int64(drivePathLen), io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("b6t: %w: %v", mirage.ErrIO, err)
	}

	blocks := make([]dataBlock, 0, count)
	for i := uint32(0); i < count; i++ {
		var b dataBlock
		var fixed struct {
			Type         uint32
			LengthBytes  uint32
			Dummy1       [4]uint32
			Offset       uint32
			Dummy2       [3]uint32
			StartSector  int32
			LengthSector int32
			FilenameLen  uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
			return nil, fmt.Errorf("b6t: %w: data block %d: %v", mirage.ErrFormat, i, err)
		}
		b.Type = fixed.Type
		b.LengthBytes = fixed.LengthBytes
		b.Offset = fixed.Offset
		b.StartSector = fixed.StartSector
		b.LengthSector = fixed.LengthSector
		b.FilenameLen = fixed.FilenameLen

		name, err := readUTF16Filename(r, int(b.FilenameLen))
		if err != nil {
			return nil, err
		}
		b.Filename = name

		if _, err := r.Seek(4, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("b6t: %w: %v", mirage.ErrIO, err)
		}

		blocks = append(blocks, b)
	}
	return blocks, nil
}

// readUTF16Filename reads n bytes of UTF-16LE text and decodes it.
func readUTF16Filename(r *bytes.Reader, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("b6t: %w: filename: %v", mirage.ErrFormat, err)
	}
	units := make([]uint16, len(buf)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}
	return strings.TrimRight(string(utf16.Decode(units)), "\x00"), nil
}

// openDataFiles opens, once each, every distinct filename referenced by
// blocks, resolved relative to dir (B6T stores the filename as the drive
// saw it at burn time, typically just a base name next to the sheet).
func openDataFiles(dir string, blocks []dataBlock) (map[string]mirage.Stream, error) {
	streams := make(map[string]mirage.Stream)
	for _, b := range blocks {
		if b.Filename == "" || streams[b.Filename] != nil {
			continue
		}
		s, err := mirage.OpenFileStream(filepath.Join(dir, filepath.Base(b.Filename)))
		if err != nil {
			return nil, fmt.Errorf("b6t: opening data file %q: %w", b.Filename, err)
		}
		streams[b.Filename] = s
	}
	return streams, nil
}

// buildTrack constructs a mirage.Track for one track entry, locating the
// data block whose sector range contains its start sector and slicing a
// RawFragment out of the corresponding stream.
func buildTrack(te trackEntry, blocks []dataBlock, streams map[string]mirage.Stream) (mirage.Track, error) {
	mode := trackMode(te.Type)
	track := mirage.Track{Number: int(te.Point), Mode: mode}

	block, err := findDataBlock(blocks, te.StartSector)
	if err != nil {
		return track, err
	}
	stream := streams[block.Filename]
	if stream == nil {
		return track, fmt.Errorf("b6t: track %d: no stream for data block %q", te.Point, block.Filename)
	}

	stride := int64(block.LengthBytes) / int64(block.LengthSector)
	startOffset := int64(block.Offset) + int64(te.StartSector-block.StartSector)*stride

	length := int(te.Length)
	if remaining := block.LengthSector - (int32(te.StartSector) - block.StartSector); int32(length) > remaining {
		length = int(remaining)
	}
	if length <= 0 {
		return track, fmt.Errorf("b6t: track %d: non-positive length %d", te.Point, length)
	}

	mainSize, subSize, subStride := sectorSizes(stride)
	fragment := mirage.NewRawFragment(length, stream, startOffset, stride, mainSize, nil, 0, subStride, subSize)
	track.Fragments = []mirage.Fragment{fragment}

	if te.Pregap > 0 {
		track.Indices = append(track.Indices, mirage.Index{Number: 0, Start: 0})
		track.Indices = append(track.Indices, mirage.Index{Number: 1, Start: int(te.Pregap)})
	} else {
		track.Indices = append(track.Indices, mirage.Index{Number: 1, Start: 0})
	}
	return track, nil
}

// sectorSizes derives the main-channel payload size (and any subchannel
// size folded into the same stride) from a data block's per-sector byte
// stride. B6T interleaves subchannel data into the main stream rather than
// keeping a sibling file, so a stride larger than the plain sector sizes
// implies trailing subchannel bytes.
func sectorSizes(stride int64) (mainSize, subSize int, subStride int64) {
	switch stride {
	case mainSectorSize + subSectorSize:
		return mainSectorSize, subSectorSize, stride
	case mainSectorSize:
		return mainSectorSize, 0, 0
	case 2048:
		return 2048, 0, 0
	case 2336:
		return 2336, 0, 0
	default:
		return int(stride), 0, 0
	}
}

// findDataBlock returns the block whose sector range contains sector.
func findDataBlock(blocks []dataBlock, sector int32) (dataBlock, error) {
	for _, b := range blocks {
		if sector >= b.StartSector && sector < b.StartSector+b.LengthSector {
			return b, nil
		}
	}
	return dataBlock{}, fmt.Errorf("b6t: %w: no data block covers sector %d", mirage.ErrFormat, sector)
}

// trackMode maps a B6T track type byte to the two-value Format the object
// model exposes; DVD track descriptors are treated as plain Mode 1 data.
func trackMode(t uint8) mirage.Format {
	if t == trackTypeAudio {
		return mirage.FormatAudio
	}
	return mirage.FormatData
}
