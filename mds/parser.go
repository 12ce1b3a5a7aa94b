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

// Package mds dispatches DAEMON Tools ".mds" sheets by format version: the
// legacy version 1 sheet (a flat table pointing into a sibling ".mdf"
// image with no encryption or per-track compression) is parsed directly
// here; version 2 (the MDS/MDX descriptor format, optionally encrypted
// and compressed) is handed off to the mdx package, which already
// implements it.
package mds

import (
	"fmt"
	"strings"

	"github.com/cdemu/go-mirage"
	mbinary "github.com/cdemu/go-mirage/internal/binary"
	"github.com/cdemu/go-mirage/mdx"
)

func init() {
	mirage.RegisterParser(".mds", Open)
}

const magic = "MEDIA DESCRIPTOR"

// header is the fixed-size table at the start of a version 1 sheet. It
// carries only enough to locate the session directory; unlike the
// version 2 descriptor header (mdx.descriptorHeader) it has no
// encryption or CD-TEXT offsets, since version 1 predates both.
type header struct {
	versionMajor         uint8
	versionMinor         uint8
	mediumType           uint16
	numSessions          uint16
	sessionsBlocksOffset uint32
}

const headerLen = 52

func readHeader(r mirage.Stream) (*header, error) {
	buf, err := mbinary.ReadBytesAt(r, 0, headerLen)
	if err != nil {
		return nil, fmt.Errorf("mds: reading header: %w", err)
	}
	if !mbinary.BytesEqual([]byte(mbinary.CleanString(buf[0:16])), []byte(magic)) {
		return nil, fmt.Errorf("mds: %w: bad media descriptor magic", mirage.ErrFormat)
	}
	h := &header{
		versionMajor:         buf[16],
		versionMinor:         buf[17],
		mediumType:           le16(buf[18:20]),
		numSessions:          le16(buf[20:22]),
		sessionsBlocksOffset: le32(buf[48:52]),
	}
	return h, nil
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// sessionBlock mirrors the layout mdx.sessionBlock uses for version 2:
// the two generations of the format share a session directory shape,
// only the per-track entries and payload framing differ.
type sessionBlock struct {
	numAllBlocks       uint8
	firstTrack         uint16
	lastTrack          uint16
	tracksBlocksOffset uint32
}

const sessionBlockLen = 32

func readSessionBlock(r mirage.Stream, off int64) (*sessionBlock, error) {
	buf, err := mbinary.ReadBytesAt(r, off, sessionBlockLen)
	if err != nil {
		return nil, fmt.Errorf("mds: reading session block: %w", err)
	}
	return &sessionBlock{
		numAllBlocks:       buf[10],
		firstTrack:         le16(buf[12:14]),
		lastTrack:          le16(buf[14:16]),
		tracksBlocksOffset: le32(buf[20:24]),
	}, nil
}

// trackBlock is a version 1 track directory entry: a point number and a
// plain sector range within the sibling .mdf file. There is no footer
// table, compression group size, or filename offset - version 1 images
// are always a single uncompressed data file.
type trackBlock struct {
	point       uint8
	startSector uint32
	startOffset uint64
}

const trackBlockLen = 80

func readTrackBlock(r mirage.Stream, off int64) (*trackBlock, error) {
	buf, err := mbinary.ReadBytesAt(r, off, trackBlockLen)
	if err != nil {
		return nil, fmt.Errorf("mds: reading track block: %w", err)
	}
	return &trackBlock{
		point:       buf[4],
		startSector: le32(buf[36:40]),
		startOffset: le64(buf[40:48]),
	}, nil
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Open parses the .mds sheet at path. Version 1 sheets are parsed
// directly against a sibling .mdf file; version 2 sheets are delegated
// to mdx.Open, which understands the shared descriptor format.
func Open(path string, opts mirage.Options) (*mirage.Disc, error) {
	log := opts.ResolvedLogger()

	stream, err := mirage.OpenFileStream(path)
	if err != nil {
		return nil, fmt.Errorf("mds: %w", err)
	}

	h, err := readHeader(stream)
	if err != nil {
		return nil, err
	}

	if h.versionMajor >= 2 {
		log.Debugf("mds: %s is version %d.%d, delegating to mdx", path, h.versionMajor, h.versionMinor)
		return mdx.Open(path, opts)
	}
	log.Debugf("mds: %s is version %d.%d, parsing as legacy MDF/MDS", path, h.versionMajor, h.versionMinor)

	mdfPath := siblingPath(path, ".mdf")
	mdf, err := mirage.OpenFileStream(mdfPath)
	if err != nil {
		return nil, fmt.Errorf("mds: opening data file %q: %w", mdfPath, err)
	}

	d := &mirage.Disc{}
	for i := 0; i < int(h.numSessions); i++ {
		sbOff := int64(h.sessionsBlocksOffset) + int64(i)*sessionBlockLen
		sb, err := readSessionBlock(stream, sbOff)
		if err != nil {
			return nil, err
		}

		session := mirage.Session{Number: i + 1}
		for j := 0; j < int(sb.numAllBlocks); j++ {
			tbOff := int64(sb.tracksBlocksOffset) + int64(j)*trackBlockLen
			tb, err := readTrackBlock(stream, tbOff)
			if err != nil {
				return nil, err
			}
			if tb.point < 1 || tb.point > 99 {
				continue
			}

			track, err := buildTrack(tb, mdf, log)
			if err != nil {
				return nil, fmt.Errorf("mds: track %d: %w", tb.point, err)
			}
			session.Tracks = append(session.Tracks, track)
		}
		d.Sessions = append(d.Sessions, session)
	}

	return d, nil
}

// buildTrack probes the track's first sector to learn its real layout:
// a version 1 sheet records only a start offset, not a mode byte, so the
// sector data is the only reliable source (mirrors the ccd back-end's
// own "trust the data" rule).
func buildTrack(tb *trackBlock, mdf mirage.Stream, log mirage.Logger) (mirage.Track, error) {
	buf := make([]byte, 2352)
	if _, err := mdf.ReadAt(buf, int64(tb.startOffset)); err != nil {
		return mirage.Track{}, fmt.Errorf("reading first sector: %w", err)
	}
	mode, userSize := mirage.DetectSectorLayout(buf)

	remaining := mdf.Size() - int64(tb.startOffset)
	length := int(remaining / 2352)
	if length <= 0 {
		return mirage.Track{}, fmt.Errorf("track has no data")
	}

	frag := mirage.NewRawFragment(length, mdf, int64(tb.startOffset), 2352, userSize, nil, 0, 0, 0)
	log.Debugf("mds: track %d, mode %v, %d sectors at offset %d", tb.point, mode, length, tb.startOffset)

	return mirage.Track{
		Number:    int(tb.point),
		Mode:      mode,
		Fragments: []mirage.Fragment{frag},
		Indices:   []mirage.Index{{Number: 1, Start: 0}},
	}, nil
}

func siblingPath(sheetPath, ext string) string {
	if i := strings.LastIndexByte(sheetPath, '.'); i >= 0 {
		return sheetPath[:i] + ext
	}
	return sheetPath + ext
}
