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

package daa

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/cdemu/go-mirage"
)

const (
	mainSignature = "DAA"
	partSignature = "DAA VOL"
)

// formatVersion mirrors DAA_FormatVersion: format 1 packs the chunk
// directory as fixed 3-byte fields and only ever uses zlib, format 2
// bit-packs the directory and adds LZMA (optionally with an x86 BCJ
// filter) on top of zlib.
type formatVersion uint32

const (
	formatVersion1 formatVersion = 0x100
	formatVersion2 formatVersion = 0x110
)

// format2Header is the 16-byte tail of the main/part header that, in
// format 0x110 images, replaces the opaque "hdata" blob of format 0x100
// with parameters for the bit-packed chunk directory and the LZMA
// decoder.
type format2Header struct {
	Profile               uint8
	ChunkTableCompressed  uint32
	ChunkTableBitSettings uint8
	LZMAFilter            uint8
	LZMAProps             [5]byte
	Reserved              [4]byte
}

// mainHeader is the 76-byte header at offset 0 of the first (or only)
// part of a DAA archive. The checksum covers every field up to but not
// including itself.
type mainHeader struct {
	Signature        [16]byte
	ChunkTableOffset uint32
	FormatVersion    formatVersion
	ChunkDataOffset  uint32
	Dummy1           uint32
	Dummy2           uint32
	ChunkSize        uint32
	ISOSize          uint64
	DAASize          uint64
	Format2          format2Header
	CRC              uint32
}

func readMainHeader(r io.Reader) (*mainHeader, error) {
	raw := make([]byte, 76)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("daa: reading main header: %w", mirage.ErrIO)
	}

	var h mainHeader
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("daa: parsing main header: %w", mirage.ErrFormat)
	}
	if !bytes.Equal(bytes.TrimRight(h.Signature[:], "\x00"), []byte(mainSignature)) {
		return nil, fmt.Errorf("daa: bad main file signature: %w", mirage.ErrFormat)
	}

	if crc := crc32.ChecksumIEEE(raw[:72]); crc != h.CRC {
		return nil, fmt.Errorf("daa: main header CRC32 mismatch (got %08x, want %08x): %w", crc, h.CRC, mirage.ErrFormat)
	}
	return &h, nil
}

// partHeader is the 40-byte header at offset 0 of every split-volume
// part file after the first.
type partHeader struct {
	Signature       [16]byte
	ChunkDataOffset uint32
	Format2         format2Header
	CRC             uint32
}

func readPartHeader(r io.Reader) (*partHeader, error) {
	raw := make([]byte, 40)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("daa: reading part header: %w", mirage.ErrIO)
	}

	var h partHeader
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("daa: parsing part header: %w", mirage.ErrFormat)
	}
	if !bytes.Equal(bytes.TrimRight(h.Signature[:], "\x00"), []byte(partSignature)) {
		return nil, fmt.Errorf("daa: bad part file signature: %w", mirage.ErrFormat)
	}

	if crc := crc32.ChecksumIEEE(raw[:36]); crc != h.CRC {
		return nil, fmt.Errorf("daa: part header CRC32 mismatch (got %08x, want %08x): %w", crc, h.CRC, mirage.ErrFormat)
	}
	return &h, nil
}

// Descriptor block tags, read between the main header and the chunk
// table. Values follow the daa2iso reverse-engineering of the format;
// DESCRIPTOR_COMMENT's contents are never interpreted by any known
// reader, including this one.
const (
	descriptorTagPart       = 0x01
	descriptorTagSplit      = 0x02
	descriptorTagComment    = 0x03
	descriptorTagEncryption = 0x04
)

// descriptorHeader is the 8-byte tag+length pair in front of every
// descriptor block; length includes these 8 bytes.
type descriptorHeader struct {
	Type   uint32
	Length uint32
}

func readDescriptorHeader(r io.Reader) (*descriptorHeader, error) {
	var h descriptorHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("daa: reading descriptor header: %w", mirage.ErrIO)
	}
	if h.Length < 8 {
		return nil, fmt.Errorf("daa: descriptor length %d smaller than header: %w", h.Length, mirage.ErrFormat)
	}
	h.Length -= 8
	return &h, nil
}

// descriptorSplit reports how many volume parts the archive is split
// into, plus a filler field always observed as 1.
type descriptorSplit struct {
	NumParts uint32
	Dummy    uint32
}

func readDescriptorSplit(r io.Reader) (*descriptorSplit, error) {
	var d descriptorSplit
	if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
		return nil, fmt.Errorf("daa: reading split descriptor: %w", mirage.ErrIO)
	}
	return &d, nil
}

// descriptorEncryption carries the password-derived key material (in
// encrypted form) and the checksum used to validate a candidate
// password before it's used to decrypt chunk data.
type descriptorEncryption struct {
	EncryptionType uint32
	DAAKey         [128]byte
	PasswordCRC    uint32
}

func readDescriptorEncryption(r io.Reader) (*descriptorEncryption, error) {
	var d descriptorEncryption
	if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
		return nil, fmt.Errorf("daa: reading encryption descriptor: %w", mirage.ErrIO)
	}
	return &d, nil
}

// readBits extracts a little-endian, LSB-first run of up to 32 bits
// starting at bit offset inBits within in. Ported from Luigi Auriemma's
// read_bits, used to pull fixed-width fields out of the bit-packed
// format-0x110 chunk directory, where entries aren't byte-aligned.
func readBits(bits int, in []byte, inBits int) uint32 {
	if bits > 32 {
		return 0
	}
	mask := uint32(0xFFFFFFFF)
	if bits < 32 {
		mask = (uint32(1) << uint(bits)) - 1
	}

	var ret uint32
	seek := 0
	for {
		seekBits := inBits & 7
		ret |= ((uint32(in[inBits>>3]) >> uint(seekBits)) & mask) << uint(seek)
		rem := 8 - seekBits
		if rem >= bits {
			break
		}
		bits -= rem
		inBits += rem
		seek += rem
		mask = (uint32(1) << uint(bits)) - 1
	}
	return ret
}
