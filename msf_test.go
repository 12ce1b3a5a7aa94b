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

package mirage

import "testing"

func TestMSFToLBAKnownValue(t *testing.T) {
	// 00:02:00 is the conventional LBA 0.
	if got := (MSF{Min: 0, Sec: 2, Frame: 0}).ToLBA(); got != 0 {
		t.Fatalf("MSF{0,2,0}.ToLBA() = %d, want 0", got)
	}
}

func TestLBAToMSFKnownValue(t *testing.T) {
	got := LBAToMSF(0)
	want := MSF{Min: 0, Sec: 2, Frame: 0}
	if got != want {
		t.Fatalf("LBAToMSF(0) = %+v, want %+v", got, want)
	}
}

func TestMSFLBARoundTrip(t *testing.T) {
	for lba := -150; lba < 10000; lba += 37 {
		msf := LBAToMSF(lba)
		if got := msf.ToLBA(); got != lba {
			t.Fatalf("round trip failed for lba=%d: got %d via %s", lba, got, msf)
		}
	}
}

func TestMSFString(t *testing.T) {
	m := MSF{Min: 1, Sec: 2, Frame: 3}
	if got := m.String(); got != "01:02:03" {
		t.Fatalf("String() = %q, want %q", got, "01:02:03")
	}
}

func TestSynthesizePregapDataTrack(t *testing.T) {
	sectors := SynthesizePregap(3, true, 0)
	if len(sectors) != 3 {
		t.Fatalf("got %d sectors, want 3", len(sectors))
	}
	for i, s := range sectors {
		if len(s) != 2352 {
			t.Fatalf("sector %d length = %d, want 2352", i, len(s))
		}
		if !bytesEqual(s[0:12], cdSyncPattern[:]) {
			t.Fatalf("sector %d missing sync pattern", i)
		}
		if s[15] != 1 {
			t.Fatalf("sector %d mode byte = %d, want 1", i, s[15])
		}
		msf := LBAToMSF(i)
		if s[12] != bcd(msf.Min) || s[13] != bcd(msf.Sec) || s[14] != bcd(msf.Frame) {
			t.Fatalf("sector %d MSF header mismatch", i)
		}
	}
}

func TestSynthesizePregapAudioTrack(t *testing.T) {
	sectors := SynthesizePregap(2, false, 0)
	for i, s := range sectors {
		if len(s) != 2352 {
			t.Fatalf("sector %d length = %d, want 2352", i, len(s))
		}
		for _, b := range s {
			if b != 0 {
				t.Fatalf("audio pregap sector %d not silent", i)
			}
		}
	}
}

func TestInterleaveQ16ToPW96Length(t *testing.T) {
	q16 := make([]byte, 12)
	out := InterleaveQ16ToPW96(q16)
	if len(out) != 96 {
		t.Fatalf("len = %d, want 96", len(out))
	}
}

func TestInterleaveQ16ToPW96SetsOnlyQBit(t *testing.T) {
	q16 := make([]byte, 12)
	q16[0] = 0xFF // every bit of the first Q byte set

	out := InterleaveQ16ToPW96(q16)
	for i := 0; i < 8; i++ {
		if out[i] != 0x40 {
			t.Fatalf("frame %d = 0x%02X, want 0x40 (Q bit only)", i, out[i])
		}
	}
	for i := 8; i < 96; i++ {
		if out[i] != 0 {
			t.Fatalf("frame %d = 0x%02X, want 0 (untouched)", i, out[i])
		}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
