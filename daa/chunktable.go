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

// chunk compression kinds, ported from the DAA_COMPRESSION_* enum.
const (
	compressionNone = iota
	compressionZlib
	compressionLZMA
)

// chunkEntry locates one chunk's compressed bytes within the logical,
// cross-part data stream (see parts.go) and records how to inflate it.
type chunkEntry struct {
	offset      uint64
	length      uint32
	compression int
}

// parseChunkTableV1 reads the fixed 3-byte-per-entry chunk directory
// used by format 0x100: each entry is a 24-bit chunk length, stored
// with the middle and low bytes swapped (high, low, middle), and every
// chunk is zlib-compressed.
func parseChunkTableV1(raw []byte) []chunkEntry {
	n := len(raw) / 3
	table := make([]chunkEntry, n)

	var offset uint64
	for i := 0; i < n; i++ {
		off := i * 3
		length := uint32(raw[off])<<16 | uint32(raw[off+2])<<8 | uint32(raw[off+1])
		table[i] = chunkEntry{offset: offset, length: length, compression: compressionZlib}
		offset += uint64(length)
	}
	return table
}

// parseChunkTableV2 reads the bit-packed chunk directory used by format
// 0x110: each entry is a (bitsizeLength)-bit chunk length followed by a
// (bitsizeType)-bit compression selector, packed back to back with no
// byte alignment between entries. A length that reaches the nominal
// chunk size marks an uncompressed chunk; otherwise 0 selects LZMA and
// 1 selects zlib.
func parseChunkTableV2(raw []byte, bitsizeLength, bitsizeType, chunkSize int) []chunkEntry {
	totalBits := len(raw) * 8
	n := totalBits / (bitsizeLength + bitsizeType)
	table := make([]chunkEntry, n)

	var offset uint64
	bitPos := 0
	for i := 0; i < n; i++ {
		length := readBits(bitsizeLength, raw, bitPos)
		bitPos += bitsizeLength
		length += 5 // LZMA properties size, folded into every entry's length

		typ := int(readBits(bitsizeType, raw, bitPos))
		bitPos += bitsizeType

		var compression int
		switch {
		case int(length) >= chunkSize:
			compression = compressionNone
		case typ == 0:
			compression = compressionLZMA
		case typ == 1:
			compression = compressionZlib
		default:
			compression = compressionNone
		}

		table[i] = chunkEntry{offset: offset, length: length, compression: compression}
		offset += uint64(length)
	}
	return table
}

// chunkTableBitsizes derives the bit widths of the length and
// compression-type fields of a format-0x110 chunk table from the main
// header's packed chunk_table_bit_settings byte, falling back to the
// smallest width that can hold chunkSize when the byte leaves the
// length width unspecified.
func chunkTableBitsizes(bitSettings uint8, chunkSize int) (bitsizeLength, bitsizeType int) {
	bitsizeType = int(bitSettings & 7)
	bitsizeLength = int(bitSettings >> 3)
	if bitsizeLength != 0 {
		bitsizeLength += 10
		return bitsizeLength, bitsizeType
	}
	for length := chunkSize; length > bitsizeType; length >>= 1 {
		bitsizeLength++
	}
	return bitsizeLength, bitsizeType
}
