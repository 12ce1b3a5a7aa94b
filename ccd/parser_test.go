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

package ccd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cdemu/go-mirage"
)

// buildSheet assembles a CCD sheet text covering two sessions: session 1
// has two tracks (the first with a 10-sector pregap), session 2 has one.
// The entry ordering matches what CloneCD itself writes: 0xA0, one entry
// (plus matching [TRACK]) per track, 0xA2, repeated per session.
func buildSheet() string {
	var b strings.Builder
	b.WriteString("[CloneCD]\r\nVersion=3\r\n\r\n")
	b.WriteString("[Disc]\r\nTocEntries=7\r\nSessions=2\r\nDataTracksScrambled=0\r\nCDTextLength=0\r\n\r\n")

	writeEntry := func(n int, session, point, trackNo, plba int) {
		b.WriteString("[Entry " + itoa(n) + "]\r\n")
		b.WriteString("Session=" + itoa(session) + "\r\n")
		b.WriteString("Point=0x" + hex2(point) + "\r\n")
		b.WriteString("ADR=1\r\n")
		b.WriteString("Control=4\r\n")
		b.WriteString("TrackNo=" + itoa(trackNo) + "\r\n")
		b.WriteString("AMin=0\r\nASec=0\r\nAFrame=0\r\nALBA=0\r\n")
		b.WriteString("Zero=0\r\n")
		b.WriteString("PMin=0\r\nPSec=0\r\nPFrame=0\r\n")
		b.WriteString("PLBA=" + itoa(plba) + "\r\n\r\n")
	}
	writeTrack := func(point, index0, index1 int) {
		b.WriteString("[TRACK " + itoa(point) + "]\r\n")
		b.WriteString("MODE=2\r\n")
		b.WriteString("INDEX0=" + itoa(index0) + "\r\n")
		b.WriteString("INDEX1=" + itoa(index1) + "\r\n\r\n")
	}

	// Session 1: track 1 starts 10 sectors into its own lead-in pregap,
	// runs 110 sectors total; track 2 has no pregap and runs 50 sectors;
	// lead-out (0xA2) follows at PLBA 160.
	b.WriteString("[Session 1]\r\nPreGapMode=0\r\nPreGapSubC=0\r\n\r\n")
	writeEntry(0, 1, 0xA0, 1, 0)
	writeEntry(1, 1, 1, 1, 10)
	writeTrack(1, 0, 10)
	writeEntry(2, 1, 2, 2, 110)
	writeTrack(2, 0, 0)
	writeEntry(3, 1, 0xA2, 0, 160)

	// Session 2: a single 30-sector data track, no pregap.
	b.WriteString("[Session 2]\r\nPreGapMode=0\r\nPreGapSubC=0\r\n\r\n")
	writeEntry(4, 2, 0xA0, 3, 0)
	writeEntry(5, 2, 3, 3, 0)
	writeTrack(3, 0, 0)
	writeEntry(6, 2, 0xA2, 0, 30)

	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func hex2(n int) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[(n>>4)&0xF], digits[n&0xF]})
}

// buildMode1Image builds an .img file of n sectors, each a syntactically
// valid Mode 1 sector: a 12-byte sync pattern (00 FF*10 00), a 4-byte
// header with mode byte 0x01, and arbitrary (but per-sector distinct)
// user data, so DetectSectorLayout reports FormatData for every track
// and per-sector reads can be told apart.
func buildMode1Image(n int) []byte {
	out := make([]byte, 0, n*mainSectorSize)
	for i := 0; i < n; i++ {
		sector := make([]byte, mainSectorSize)
		sector[0] = 0x00
		for j := 1; j <= 10; j++ {
			sector[j] = 0xFF
		}
		sector[11] = 0x00
		sector[12], sector[13], sector[14] = 0, 0, 0 // MSF, unused by DetectSectorLayout
		sector[15] = 0x01                            // mode byte: Mode 1
		for j := 16; j < mainSectorSize; j++ {
			sector[j] = byte(i)
		}
		out = append(out, sector...)
	}
	return out
}

func writeSheetAndImage(t *testing.T, sheetText string, imgSectors int) string {
	t.Helper()
	dir := t.TempDir()
	ccdPath := filepath.Join(dir, "image.ccd")
	if err := os.WriteFile(ccdPath, []byte(sheetText), 0o644); err != nil {
		t.Fatal(err)
	}
	imgPath := filepath.Join(dir, "image.img")
	if err := os.WriteFile(imgPath, buildMode1Image(imgSectors), 0o644); err != nil {
		t.Fatal(err)
	}
	return ccdPath
}

func TestOpenMultiSessionMultiTrackWithPregap(t *testing.T) {
	path := writeSheetAndImage(t, buildSheet(), 190)

	d, err := mirage.Open(path, mirage.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(d.Sessions) != 2 {
		t.Fatalf("len(Sessions) = %d, want 2", len(d.Sessions))
	}

	s1 := d.Session(1)
	if s1 == nil {
		t.Fatal("Session(1) = nil")
	}
	if s1.LeadoutLen != 6750 {
		t.Fatalf("session 1 LeadoutLen = %d, want 6750", s1.LeadoutLen)
	}
	if len(s1.Tracks) != 2 {
		t.Fatalf("session 1 has %d tracks, want 2", len(s1.Tracks))
	}

	t1 := s1.Track(1)
	if t1 == nil {
		t.Fatal("session 1 Track(1) = nil")
	}
	if t1.Length() != 110 {
		t.Fatalf("track 1 Length() = %d, want 110", t1.Length())
	}
	if !t1.IsDataTrack() {
		t.Fatal("track 1 is not a data track")
	}
	if len(t1.Indices) != 2 || t1.Indices[0].Number != 0 || t1.Indices[0].Start != 0 ||
		t1.Indices[1].Number != 1 || t1.Indices[1].Start != 10 {
		t.Fatalf("track 1 Indices = %+v, want [{0 0} {1 10}]", t1.Indices)
	}

	t2 := s1.Track(2)
	if t2 == nil {
		t.Fatal("session 1 Track(2) = nil")
	}
	if t2.Length() != 50 {
		t.Fatalf("track 2 Length() = %d, want 50", t2.Length())
	}
	if len(t2.Indices) != 1 || t2.Indices[0].Number != 1 || t2.Indices[0].Start != 0 {
		t.Fatalf("track 2 Indices = %+v, want [{1 0}]", t2.Indices)
	}

	s2 := d.Session(2)
	if s2 == nil {
		t.Fatal("Session(2) = nil")
	}
	if s2.LeadoutLen != 2250 {
		t.Fatalf("session 2 LeadoutLen = %d, want 2250", s2.LeadoutLen)
	}
	if len(s2.Tracks) != 1 {
		t.Fatalf("session 2 has %d tracks, want 1", len(s2.Tracks))
	}
	t3 := s2.Track(3)
	if t3 == nil {
		t.Fatal("session 2 Track(3) = nil")
	}
	if t3.Length() != 30 {
		t.Fatalf("track 3 Length() = %d, want 30", t3.Length())
	}

	// Track 1's fragment starts at disc-relative sector 0 regardless of its
	// 10-sector pregap (the pregap is index bookkeeping, not an offset into
	// the fragment); sector 0 is the first sector written to the .img file.
	frag, rel, err := t1.FragmentForSector(0)
	if err != nil {
		t.Fatalf("FragmentForSector(0): %v", err)
	}
	data, err := frag.ReadMainData(rel)
	if err != nil {
		t.Fatalf("ReadMainData: %v", err)
	}
	want := bytes.Repeat([]byte{0x00}, mainSectorSize-16)
	if !bytes.Equal(data[16:], want) {
		t.Fatalf("track 1 sector 0 user data = %v, want all zero", data[16:])
	}

	// Track 2's fragment begins where track 1's 110 sectors end, i.e. the
	// 110th sector written to the .img file.
	frag2, rel2, err := t2.FragmentForSector(0)
	if err != nil {
		t.Fatalf("FragmentForSector(0): %v", err)
	}
	data2, err := frag2.ReadMainData(rel2)
	if err != nil {
		t.Fatalf("ReadMainData: %v", err)
	}
	want2 := bytes.Repeat([]byte{110}, mainSectorSize-16)
	if !bytes.Equal(data2[16:], want2) {
		t.Fatalf("track 2 sector 0 user data = %v, want all 110", data2[16:])
	}
}

func TestOpenMissingImageFails(t *testing.T) {
	dir := t.TempDir()
	ccdPath := filepath.Join(dir, "image.ccd")
	if err := os.WriteFile(ccdPath, []byte(buildSheet()), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := mirage.Open(ccdPath, mirage.Options{}); err == nil {
		t.Fatal("Open with no sibling .img file succeeded, want error")
	}
}
