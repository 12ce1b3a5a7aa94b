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
	"math/rand"
	"testing"
)

func randGF128(r *rand.Rand) gf128 {
	var b [16]byte
	r.Read(b[:])
	return gf128FromBytes(b[:])
}

func TestGF128Identity(t *testing.T) {
	var identityBytes [16]byte
	identityBytes[15] = 1
	identity := gf128FromBytes(identityBytes[:])

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 64; i++ {
		x := randGF128(r)
		got := gfMul128(x, identity)
		if got != x {
			t.Fatalf("gfMul128(x, identity) = %x, want %x", got.bytes(), x.bytes())
		}
	}
}

func TestGF128Commutative(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 64; i++ {
		a := randGF128(r)
		b := randGF128(r)
		if gfMul128(a, b) != gfMul128(b, a) {
			t.Fatalf("gfMul128 not commutative for a=%x b=%x", a.bytes(), b.bytes())
		}
	}
}

func TestGF128Associative(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 32; i++ {
		a := randGF128(r)
		b := randGF128(r)
		c := randGF128(r)
		left := gfMul128(gfMul128(a, b), c)
		right := gfMul128(a, gfMul128(b, c))
		if left != right {
			t.Fatalf("gfMul128 not associative for a=%x b=%x c=%x", a.bytes(), b.bytes(), c.bytes())
		}
	}
}

func TestGF128Distributive(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 32; i++ {
		a := randGF128(r)
		b := randGF128(r)
		c := randGF128(r)
		left := gfMul128(a, b.xor(c))
		right := gfMul128(a, b).xor(gfMul128(a, c))
		if left != right {
			t.Fatalf("gfMul128 not distributive for a=%x b=%x c=%x", a.bytes(), b.bytes(), c.bytes())
		}
	}
}

// TestGF128TableMatchesGeneral checks the 64 KiB table routine (the
// fast path LRW actually uses) against the general bit-by-bit routine
// for a spread of random right-hand operands, for a fixed key.
func TestGF128TableMatchesGeneral(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	key := randGF128(r)
	table := newGF128MulTable(key)

	for i := 0; i < 128; i++ {
		x := randGF128(r)
		want := gfMul128(key, x)
		got := table.mul(x)
		if got != want {
			t.Fatalf("table.mul(%x) = %x, want %x (key=%x)", x.bytes(), got.bytes(), want.bytes(), key.bytes())
		}
	}
}

func TestGF128BytesRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	var b [16]byte
	r.Read(b[:])
	g := gf128FromBytes(b[:])
	if got := g.bytes(); got != b {
		t.Fatalf("bytes round trip: got %x, want %x", got, b)
	}
}

// TestGF128KnownPowers checks the BBE convention laid out in spec section
// 3: the buffer 80 00 ... 00 represents X^127, and 00 ... 00 87 represents
// X^7+X^2+X+1 (the reduction polynomial's low terms).
func TestGF128KnownPowers(t *testing.T) {
	var x127 [16]byte
	x127[0] = 0x80
	g := gf128FromBytes(x127[:])
	if g.hi != 1<<63 || g.lo != 0 {
		t.Fatalf("X^127 decoded as hi=%x lo=%x", g.hi, g.lo)
	}

	var reducedLow [16]byte
	reducedLow[15] = 0x87
	g2 := gf128FromBytes(reducedLow[:])
	if g2.hi != 0 || g2.lo != 0x87 {
		t.Fatalf("X^7+X^2+X+1 decoded as hi=%x lo=%x", g2.hi, g2.lo)
	}
}

// TestGF128ShiftOverflowReduces exercises the reduction step: multiplying
// X^127 by X (a single shift-left) must fold back through the reduction
// polynomial X^128+X^7+X^2+X+1.
func TestGF128ShiftOverflowReduces(t *testing.T) {
	var x127b [16]byte
	x127b[0] = 0x80
	x127 := gf128FromBytes(x127b[:])

	var xb [16]byte
	xb[15] = 0x02
	x := gf128FromBytes(xb[:])

	got := gfMul128(x127, x)
	want := gf128{hi: 0, lo: gf128Reduce}
	if got != want {
		t.Fatalf("X^127 * X = %x, want reduction polynomial %x", got.bytes(), want.bytes())
	}
}
