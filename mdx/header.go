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

package mdx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cdemu/go-mirage"
)

const mediaDescriptorMagic = "MEDIA DESCRIPTOR"

// noEncryptionHeaderOffset marks an MDSv2 file header with no encrypted
// descriptor (plain .mds rather than .mdx).
const noEncryptionHeaderOffset = 0xFFFFFFFF

// fileHeader is the 48-byte structure at the very start of an .mdx or
// MDSv2 .mds file.
type fileHeader struct {
	MediaDescriptor        [16]byte
	VersionMajor           uint8
	VersionMinor           uint8
	Copyright              [26]byte
	EncryptionHeaderOffset uint32
}

func readFileHeader(r io.Reader) (*fileHeader, error) {
	var h fileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("mdx: reading file header: %w", mirage.ErrIO)
	}
	if !bytes.Equal(bytes.TrimRight(h.MediaDescriptor[:], "\x00"), []byte(mediaDescriptorMagic)) {
		return nil, fmt.Errorf("mdx: bad media descriptor magic in file header: %w", mirage.ErrFormat)
	}
	if h.VersionMajor != 2 {
		return nil, fmt.Errorf("mdx: unsupported format major version %d: %w", h.VersionMajor, mirage.ErrFormat)
	}
	return &h, nil
}

// mediumType mirrors the 16-bit medium_type field of the descriptor
// header; only the values this back-end knows how to map onto a Disc
// medium guess are named.
type mediumType uint16

const (
	mediumCDROM mediumType = 0
	mediumDVDROM mediumType = 3
)

// descriptorHeader is the 96-byte structure at the start of the
// decrypted/decompressed MDS descriptor.
type descriptorHeader struct {
	MediaDescriptor        [16]byte
	VersionMajor           uint8
	VersionMinor           uint8
	MediumType             uint16
	NumSessions            uint16
	Unknown1               [8]byte
	CDTextSize             uint16
	Unknown2               [8]byte
	CDTextOffset           uint32
	Unknown3               [36]byte
	SessionsBlocksOffset   uint32
	DPMBlocksOffset        uint32
	EncryptionHeaderOffset uint32
	Unknown4               uint32
}

func readDescriptorHeader(r io.Reader) (*descriptorHeader, error) {
	var h descriptorHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("mdx: reading descriptor header: %w", mirage.ErrIO)
	}
	if !bytes.Equal(bytes.TrimRight(h.MediaDescriptor[:], "\x00"), []byte(mediaDescriptorMagic)) {
		return nil, fmt.Errorf("mdx: bad media descriptor magic in descriptor header: %w", mirage.ErrFormat)
	}
	return &h, nil
}

// sessionBlock is the 32-byte per-session directory entry.
type sessionBlock struct {
	SessionStart        uint64
	SessionNumber        uint16
	NumAllBlocks         uint8
	NumNontrackBlocks    uint8
	FirstTrack           uint16
	LastTrack            uint16
	Unknown1             uint32
	TracksBlocksOffset   uint32
	SessionEnd           uint64
}

func readSessionBlock(r io.Reader) (*sessionBlock, error) {
	var b sessionBlock
	if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
		return nil, fmt.Errorf("mdx: reading session block: %w", mirage.ErrIO)
	}
	return &b, nil
}

// trackModeByte decodes the packed sector-mode/extra-data-flags byte that
// is the first byte of every track block.
type trackModeByte struct {
	SectorMode    uint8 // low 3 bits: MMC "expected sector type" encoding
	HasEDCECC     bool
	HasUnknown    bool
	HasHeader     bool
	HasSubheader  bool
	HasSyncPattern bool
}

func decodeTrackModeByte(b byte) trackModeByte {
	return trackModeByte{
		SectorMode:     b & 0x07,
		HasEDCECC:      b&0x08 != 0,
		HasUnknown:     b&0x10 != 0,
		HasHeader:      b&0x20 != 0,
		HasSubheader:   b&0x40 != 0,
		HasSyncPattern: b&0x80 != 0,
	}
}

// Sector mode values, shared with the 3-bit "Expected Sector Type" field
// of the MMC READ CD command.
const (
	sectorAudio        = 1
	sectorMode1        = 2
	sectorMode2        = 3
	sectorMode2Form1   = 4
	sectorMode2Form2   = 5
)

// Subchannel selection values, shared with the MMC READ CD command's
// Sub-Channel Data Selection Bits.
const (
	subchannelNone = 0
	subchannelPW   = 1
	subchannelQ    = 2
	subchannelRW   = 4
)

// trackBlock is the 80-byte per-track directory entry.
type trackBlock struct {
	ModeByte      byte
	SubchannelByte byte
	AdrCtl        uint8
	Tno           uint8
	Point         uint8
	Min           uint8
	Sec           uint8
	Frame         uint8
	Zero          uint8
	PMin          uint8
	PSec          uint8
	PFrame        uint8

	ExtraOffset uint32
	SectorSize  uint16

	Unknown3 [18]byte

	StartSector   uint32
	StartOffset   uint64
	FooterCount   uint32
	FooterOffset  uint32

	StartSector64   uint64
	TrackLength64   uint64

	Unknown4 [8]byte
}

func readTrackBlock(r io.Reader) (*trackBlock, error) {
	var b trackBlock
	if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
		return nil, fmt.Errorf("mdx: reading track block: %w", mirage.ErrIO)
	}
	return &b, nil
}

func (b *trackBlock) mode() trackModeByte {
	return decodeTrackModeByte(b.ModeByte)
}

// subchannelSelection extracts the 3-bit subchannel selector, which in
// the on-disk byte is shifted three bits to the left of where the MMC
// command places it.
func (b *trackBlock) subchannelSelection() uint8 {
	return (b.SubchannelByte >> 3) & 0x07
}

// trackExtraBlock is the 8-byte pregap/length pair referenced by a
// track block's ExtraOffset.
type trackExtraBlock struct {
	Pregap uint32
	Length uint32
}

func readTrackExtraBlock(r io.Reader) (*trackExtraBlock, error) {
	var b trackExtraBlock
	if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
		return nil, fmt.Errorf("mdx: reading track extra block: %w", mirage.ErrIO)
	}
	return &b, nil
}

// footer is the 32-byte block describing a track's data file, its
// compression table, and its compression group size.
type footer struct {
	FilenameOffset             uint32
	Flags                      uint8
	Unknown1                   uint8
	Unknown2                   uint16
	Unknown3                   uint32
	BlocksInCompressionGroup   uint32
	TrackDataLength            uint64
	CompressionTableOffset     uint64
}

func readFooter(r io.Reader) (*footer, error) {
	var f footer
	if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
		return nil, fmt.Errorf("mdx: reading footer: %w", mirage.ErrIO)
	}
	return &f, nil
}

// compressed reports whether the footer's data file uses the
// per-sector-group compression table (flag bit 0).
func (f *footer) compressed() bool {
	return f.Flags&0x01 != 0
}
