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

// Package mdx implements the DaemonTools v2 (.mdx / .mds version 2)
// optical-disc image back-end: AES-256 encrypted headers and payload,
// zlib/RLE-compressed sector groups, and the descriptor block that
// carries the session/track layout.
package mdx

// gf128 is an element of GF(2^128) in BBE (big-big-endian) representation:
// hi holds the most significant 64 bits (bytes 0-7), lo the least
// significant 64 bits (bytes 8-15), each stored with its own bits in
// big-endian (most-significant-bit-first) order. This matches the
// guint128_bbe union used by the reference LRW tweak computation.
type gf128 struct {
	hi, lo uint64
}

// gf128FromBytes reads a 16-byte big-endian buffer into a gf128 element.
func gf128FromBytes(b []byte) gf128 {
	_ = b[15]
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(b[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(b[i])
	}
	return gf128{hi: hi, lo: lo}
}

func (g gf128) bytes() [16]byte {
	var out [16]byte
	for i := 0; i < 8; i++ {
		out[7-i] = byte(g.hi >> (8 * i))
	}
	for i := 0; i < 8; i++ {
		out[15-i] = byte(g.lo >> (8 * i))
	}
	return out
}

func (g gf128) xor(o gf128) gf128 {
	return gf128{hi: g.hi ^ o.hi, lo: g.lo ^ o.lo}
}

// gf128Reduce is the LRW/AES-XTS reduction polynomial x^128+x^7+x^2+x+1.
const gf128Reduce = 0x87

// shiftLeft shifts the 128-bit value one bit to the left, returning the
// bit shifted out of the top.
func (g gf128) shiftLeft() (gf128, bool) {
	carryOut := g.hi>>63 != 0
	newHi := g.hi<<1 | g.lo>>63
	newLo := g.lo << 1
	return gf128{hi: newHi, lo: newLo}, carryOut
}

// gfMul128 is the direct, bit-by-bit "Russian peasant" multiplication of
// a and b in GF(2^128), mirroring gf_mul_128 from the reference crypto
// library: for each bit of b (from the least to the most significant),
// XOR in a running copy of a if the bit is set, then double that running
// copy (shifting left and reducing modulo the field polynomial whenever
// the shift overflows).
func gfMul128(a, b gf128) gf128 {
	la := a
	bb := b.bytes()
	var p gf128
	for bit := 0; bit < 128; bit++ {
		// Same byte/bit indexing as is_bit_set_128: bit 0 is the LSB
		// of the last byte, bit 127 is the MSB of the first byte.
		byteIdx := (127 - bit) / 8
		shift := uint((127 - bit) % 8)
		if (bb[byteIdx]>>(7-shift))&1 != 0 {
			p = p.xor(la)
		}

		overflowed := la.hi&(1<<63) != 0
		la, _ = la.shiftLeft()
		if overflowed {
			la.lo ^= gf128Reduce
		}
	}
	return p
}

// gf128MulTable precomputes, for each of the 16 byte positions and each
// of the 256 possible byte values at that position, the product of the
// tweak key with a value that has only that byte set. Because GF(2^128)
// multiplication distributes over the byte decomposition of an operand,
// the product of the tweak key with an arbitrary 128-bit tweak index can
// then be computed as the XOR of 16 table lookups instead of 128 bit
// iterations - the "64K" (16*256*16 bytes = 64KiB) table variant the
// reference LRW implementation mentions as a faster alternative to
// gf_mul_128.
type gf128MulTable struct {
	table [16][256]gf128
}

// newGF128MulTable builds the lookup table for multiplication by key.
func newGF128MulTable(key gf128) *gf128MulTable {
	t := &gf128MulTable{}
	for pos := 0; pos < 16; pos++ {
		for v := 0; v < 256; v++ {
			var operand gf128
			b := operand.bytes()
			b[pos] = byte(v)
			operand = gf128FromBytes(b[:])
			t.table[pos][v] = gfMul128(key, operand)
		}
	}
	return t
}

// mul returns key*x, where key is the value the table was built from.
func (t *gf128MulTable) mul(x gf128) gf128 {
	b := x.bytes()
	var p gf128
	for pos := 0; pos < 16; pos++ {
		p = p.xor(t.table[pos][b[pos]])
	}
	return p
}
