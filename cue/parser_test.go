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

package cue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cdemu/go-mirage"
)

func writeCue(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeData(t *testing.T, dir, name string, n int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, n), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenSingleFileSingleTrack(t *testing.T) {
	dir := t.TempDir()
	writeData(t, dir, "image.bin", 10*2352)
	sheet := `FILE "image.bin" BINARY
  TRACK 01 MODE1/2352
    INDEX 01 00:00:00
`
	path := writeCue(t, dir, "disc.cue", sheet)

	d, err := mirage.Open(path, mirage.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(d.Sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(d.Sessions))
	}
	sess := d.Session(1)
	if sess == nil || len(sess.Tracks) != 1 {
		t.Fatalf("unexpected session: %+v", sess)
	}
	track := sess.Track(1)
	if track == nil {
		t.Fatal("track 1 not found")
	}
	if track.Length() != 10 {
		t.Errorf("track length = %d, want 10", track.Length())
	}
	if !track.IsDataTrack() {
		t.Error("expected data track")
	}
}

func TestOpenMultiTrackSameFile(t *testing.T) {
	dir := t.TempDir()
	// Track 1: 10 sectors audio, track 2: 5 sectors audio, starting right after.
	writeData(t, dir, "image.bin", 15*2352)
	sheet := `FILE "image.bin" BINARY
  TRACK 01 AUDIO
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    INDEX 00 00:00:08
    INDEX 01 00:00:10
`
	path := writeCue(t, dir, "disc.cue", sheet)

	d, err := mirage.Open(path, mirage.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sess := d.Session(1)
	if sess == nil || len(sess.Tracks) != 2 {
		t.Fatalf("unexpected session: %+v", sess)
	}
	t1 := sess.Track(1)
	t2 := sess.Track(2)
	if t1 == nil || t2 == nil {
		t.Fatal("missing track")
	}
	// Track 1 runs from frame 0 to track 2's INDEX 00 at frame 8: length 8.
	if t1.Length() != 8 {
		t.Errorf("track 1 length = %d, want 8", t1.Length())
	}
	// Track 2 runs from frame 8 to end of file (15): length 7.
	if t2.Length() != 7 {
		t.Errorf("track 2 length = %d, want 7", t2.Length())
	}
}

func TestOpenPregapAndPostgap(t *testing.T) {
	dir := t.TempDir()
	writeData(t, dir, "image.bin", 10*2352)
	sheet := `FILE "image.bin" BINARY
  TRACK 01 AUDIO
    PREGAP 00:02:00
    INDEX 01 00:00:00
    POSTGAP 00:01:00
`
	path := writeCue(t, dir, "disc.cue", sheet)

	d, err := mirage.Open(path, mirage.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	track := d.Session(1).Track(1)
	if track == nil {
		t.Fatal("track 1 not found")
	}
	// pregap (null, 150 sectors) + main data (10 sectors) + postgap (null, 75 sectors).
	if track.Length() != 150+10+75 {
		t.Errorf("track length = %d, want %d", track.Length(), 150+10+75)
	}
	if len(track.Indices) < 2 {
		t.Fatalf("expected index 0 and 1 to be recorded, got %+v", track.Indices)
	}
}

func TestOpenCatalogAndISRC(t *testing.T) {
	dir := t.TempDir()
	writeData(t, dir, "image.bin", 5*2352)
	sheet := `CATALOG 1234567890123
FILE "image.bin" BINARY
  TRACK 01 AUDIO
    ISRC ABCDE1234567
    INDEX 01 00:00:00
`
	path := writeCue(t, dir, "disc.cue", sheet)

	d, err := mirage.Open(path, mirage.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.MCN != "1234567890123" {
		t.Errorf("MCN = %q, want 1234567890123", d.MCN)
	}
	track := d.Session(1).Track(1)
	if track == nil {
		t.Fatal("track 1 not found")
	}
	if track.ISRC != "ABCDE1234567" {
		t.Errorf("ISRC = %q, want ABCDE1234567", track.ISRC)
	}
}

func TestOpenMultiSession(t *testing.T) {
	dir := t.TempDir()
	writeData(t, dir, "s1.bin", 10*2352)
	writeData(t, dir, "s2.bin", 5*2352)
	sheet := `FILE "s1.bin" BINARY
  TRACK 01 MODE1/2352
    INDEX 01 00:00:00
REM SESSION 02
FILE "s2.bin" BINARY
  TRACK 02 MODE1/2352
    INDEX 01 00:00:00
`
	path := writeCue(t, dir, "disc.cue", sheet)

	d, err := mirage.Open(path, mirage.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(d.Sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(d.Sessions))
	}
	s1 := d.Session(1)
	s2 := d.Session(2)
	if s1 == nil || s2 == nil {
		t.Fatal("missing session")
	}
	if s1.LeadoutLen != 11250 {
		t.Errorf("session 1 leadout = %d, want 11250", s1.LeadoutLen)
	}
	if s1.Track(1) == nil || s1.Track(1).Length() != 10 {
		t.Errorf("unexpected session 1 track: %+v", s1.Track(1))
	}
	if s2.Track(2) == nil || s2.Track(2).Length() != 5 {
		t.Errorf("unexpected session 2 track: %+v", s2.Track(2))
	}
}

func TestOpenBadTrackMode(t *testing.T) {
	dir := t.TempDir()
	writeData(t, dir, "image.bin", 5*2352)
	sheet := `FILE "image.bin" BINARY
  TRACK 01 BOGUSMODE
    INDEX 01 00:00:00
`
	path := writeCue(t, dir, "disc.cue", sheet)

	if _, err := mirage.Open(path, mirage.Options{}); err == nil {
		t.Fatal("expected error for invalid track mode")
	}
}
