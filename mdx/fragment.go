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
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"github.com/cdemu/go-mirage"
)

// compression types for a compression-table entry, ported from the
// MDX_COMPRESSION_* enum.
const (
	compressionNone = iota
	compressionRLE
	compressionZlib
)

type compressionEntry struct {
	kind       int
	rleValue   byte
	compSize   uint16
	dataOffset uint64
}

// Fragment is a payload fragment backed by an MDX/MDSv2 data file: it
// presents sector-group caching, optional per-group zlib/RLE
// decompression, and optional AES-256-LRW decryption, all behind the
// mirage.Fragment interface.
type Fragment struct {
	stream mirage.Stream
	offset int64

	mainSize       int
	subchannelSize int
	subchannelFmt  mirage.SubchannelFormat
	length         int

	sectorsInGroup int

	cipherBlock cipher.Block
	gfTable     *gf128MulTable

	compressionTable []compressionEntry

	cachedGroup int
	groupBuffer []byte
}

// NewFragment builds a Fragment reading from stream starting at offset,
// covering length sectors of mainSize+subchannelSize bytes each. If
// header is non-nil the payload is AES-256-LRW encrypted using its key
// data. If foot is non-nil and its compression flag is set, sector
// groups of foot.BlocksInCompressionGroup sectors are looked up in the
// per-group compression table located via foot.CompressionTableOffset.
func NewFragment(stream mirage.Stream, offset int64, mainSize int, subchannelSize int, subchannelFmt mirage.SubchannelFormat, length int, header *EncryptionHeader, foot *footer) (*Fragment, error) {
	f := &Fragment{
		stream:         stream,
		offset:         offset,
		mainSize:       mainSize,
		subchannelSize: subchannelSize,
		subchannelFmt:  subchannelFmt,
		length:         length,
		sectorsInGroup: 1,
		cachedGroup:    -1,
	}

	if header != nil {
		block, err := aes.NewCipher(header.KeyData[ivSize : ivSize+32])
		if err != nil {
			return nil, fmt.Errorf("mdx: fragment cipher init: %w", mirage.ErrDecrypt)
		}
		f.cipherBlock = block
		f.gfTable = newGF128MulTable(gf128FromBytes(header.KeyData[:16]))
	}

	if foot != nil && foot.compressed() {
		if foot.BlocksInCompressionGroup == 0 {
			return nil, fmt.Errorf("mdx: invalid blocks-in-compression-group (0): %w", mirage.ErrFormat)
		}
		if err := f.readCompressionTable(foot); err != nil {
			return nil, err
		}
		f.sectorsInGroup = int(foot.BlocksInCompressionGroup)
	}

	f.groupBuffer = make([]byte, f.sectorsInGroup*(mainSize+subchannelSize))
	return f, nil
}

// readCompressionTable locates, inflates and parses the fragment's
// per-sector-group compression table. The compressed size of the table
// itself is not recorded anywhere, so - matching the reference reader -
// more data than strictly necessary is read and zlib is left to stop
// early once it hits the end of the deflate stream.
func (f *Fragment) readCompressionTable(foot *footer) error {
	numEntries := (f.length + int(foot.BlocksInCompressionGroup) - 1) / int(foot.BlocksInCompressionGroup)

	toRead := (numEntries + 0x800) * 2
	tableOffset := f.offset + int64(foot.CompressionTableOffset)

	compressed := make([]byte, toRead)
	n, err := f.stream.ReadAt(compressed, tableOffset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("mdx: reading compression table: %w", mirage.ErrIO)
	}
	compressed = compressed[:n]

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("mdx: opening compression table zlib stream: %w", mirage.ErrFormat)
	}
	defer zr.Close()

	raw := make([]uint16, numEntries)
	if err := binary.Read(zr, binary.LittleEndian, raw); err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("mdx: inflating compression table: %w", mirage.ErrDecompress)
	}

	table := make([]compressionEntry, numEntries)
	var entryOffset uint64
	groupBytes := uint64(foot.BlocksInCompressionGroup) * uint64(f.mainSize+f.subchannelSize)

	for i, value := range raw {
		switch {
		case value == 0:
			table[i] = compressionEntry{kind: compressionNone, dataOffset: entryOffset}
			entryOffset += groupBytes
		case value&0x8000 != 0:
			table[i] = compressionEntry{kind: compressionRLE, rleValue: byte(value & 0xFF)}
		default:
			table[i] = compressionEntry{kind: compressionZlib, compSize: value, dataOffset: entryOffset}
			entryOffset += uint64(value)
		}
	}

	f.compressionTable = table
	return nil
}

// lrwTweakStart computes the tweak-counter start value for a sector
// group: 1 plus the group's starting sector, scaled by the 16-byte-
// aligned sector size and divided into block units - matching the
// reference implementation's handling of sector sizes that are not
// themselves a multiple of the AES block size.
func lrwTweakStart(startSectorAddress uint64, sectorSize int) uint64 {
	alignedSectorSize := sectorSize &^ 15
	return 1 + startSectorAddress*uint64(alignedSectorSize)/16
}

// ensureGroupLoaded populates groupBuffer with the sector group covering
// sector address (fragment-relative), decrypting and/or decompressing
// as needed. A no-op if the requested group is already cached.
func (f *Fragment) ensureGroupLoaded(address int) error {
	group := address / f.sectorsInGroup
	if group == f.cachedGroup {
		return nil
	}

	for i := range f.groupBuffer {
		f.groupBuffer[i] = 0
	}

	sectorSize := f.mainSize + f.subchannelSize
	numSectors := f.sectorsInGroup

	var entry *compressionEntry
	if f.compressionTable != nil {
		if group >= len(f.compressionTable) {
			return fmt.Errorf("mdx: sector group %d out of range (have %d): %w", group, len(f.compressionTable), mirage.ErrInvalidArgument)
		}
		entry = &f.compressionTable[group]

		if group+1 == len(f.compressionTable) {
			if remaining := f.length % f.sectorsInGroup; remaining != 0 {
				numSectors = remaining
			}
		}
	}

	switch {
	case entry == nil || entry.kind == compressionNone || entry.kind == compressionZlib:
		isZlib := entry != nil && entry.kind == compressionZlib

		var dataOffset int64
		var toRead int
		if entry != nil {
			dataOffset = f.offset + int64(entry.dataOffset)
			if isZlib {
				toRead = int(entry.compSize)
			} else {
				toRead = numSectors * sectorSize
			}
		} else {
			dataOffset = f.offset + int64(address)*int64(sectorSize)
			toRead = numSectors * sectorSize
		}

		readBuf := f.groupBuffer
		if isZlib {
			readBuf = make([]byte, toRead)
		}

		n, err := f.stream.ReadAt(readBuf[:toRead], dataOffset)
		if err != nil && err != io.EOF {
			return fmt.Errorf("mdx: reading sector group %d: %w", group, mirage.ErrIO)
		}
		readLen := n

		if f.cipherBlock != nil {
			alignedLen := readLen &^ 15
			startSectorAddress := uint64(group) * uint64(f.sectorsInGroup)
			tweakStart := lrwTweakStart(startSectorAddress, sectorSize)
			if err := decipherBufferLRW(f.cipherBlock, f.gfTable, readBuf[:alignedLen], tweakStart); err != nil {
				return fmt.Errorf("mdx: decrypting sector group %d: %w", group, mirage.ErrDecrypt)
			}
		}

		if isZlib {
			// Unlike the compression table and the descriptor (both
			// inflated with the usual zlib wrapper), sector-group payload
			// data is deflated raw (windowBits -15, no zlib header/
			// trailer) - see inflateReset2(zlib_stream, -15) in the
			// reference fragment reader.
			fr := flate.NewReader(bytes.NewReader(readBuf[:readLen]))
			_, err = io.ReadFull(fr, f.groupBuffer)
			fr.Close()
			if err != nil && err != io.ErrUnexpectedEOF {
				return fmt.Errorf("mdx: inflating sector group %d: %w", group, mirage.ErrDecompress)
			}
		}

	case entry.kind == compressionRLE:
		fill := entry.rleValue
		toFill := numSectors * sectorSize
		for i := 0; i < toFill && i < len(f.groupBuffer); i++ {
			f.groupBuffer[i] = fill
		}

	default:
		return fmt.Errorf("mdx: unsupported compression mode in group %d: %w", group, mirage.ErrFormat)
	}

	f.cachedGroup = group
	return nil
}

// Length implements mirage.Fragment.
func (f *Fragment) Length() int { return f.length }

// MainSize implements mirage.Fragment.
func (f *Fragment) MainSize() int { return f.mainSize }

// SubchannelSize implements mirage.Fragment.
func (f *Fragment) SubchannelSize() int {
	if f.subchannelSize == 0 {
		return 0
	}
	return 96
}

// ReadMainData implements mirage.Fragment.
func (f *Fragment) ReadMainData(address int) ([]byte, error) {
	if address < 0 || address >= f.length {
		return nil, mirage.ErrInvalidArgument
	}
	if err := f.ensureGroupLoaded(address); err != nil {
		return nil, err
	}
	offset := 0
	if f.sectorsInGroup > 1 {
		idx := address % f.sectorsInGroup
		offset = idx * (f.mainSize + f.subchannelSize)
	}
	out := make([]byte, f.mainSize)
	copy(out, f.groupBuffer[offset:offset+f.mainSize])
	return out, nil
}

// ReadSubchannelData implements mirage.Fragment. When the underlying
// format stores only the 16-byte Q-subchannel, it is interleaved into a
// full 96-byte PW block here; already-interleaved PW data is returned
// unchanged.
func (f *Fragment) ReadSubchannelData(address int) ([]byte, error) {
	if f.subchannelSize == 0 {
		return nil, nil
	}
	if address < 0 || address >= f.length {
		return nil, mirage.ErrInvalidArgument
	}
	if err := f.ensureGroupLoaded(address); err != nil {
		return nil, err
	}

	offset := 0
	if f.sectorsInGroup > 1 {
		idx := address % f.sectorsInGroup
		offset = idx * (f.mainSize + f.subchannelSize)
	}
	offset += f.mainSize

	raw := f.groupBuffer[offset : offset+f.subchannelSize]

	if f.subchannelFmt == mirage.SubchannelQ16 {
		return mirage.InterleaveQ16ToPW96(raw), nil
	}

	out := make([]byte, 96)
	copy(out, raw)
	return out, nil
}

var _ mirage.Fragment = (*Fragment)(nil)
