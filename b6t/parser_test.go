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

package b6t

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/cdemu/go-mirage"
)

// buildSheet assembles a minimal, well-formed B6T sheet byte-for-byte in
// the region order Open expects: signature, disc block 1, 32 bytes filler,
// drive identifiers, volume id, disc block 2, data block table, sessions.
func buildSheet(t *testing.T, imgSectors int32, filename string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(signature)

	db1 := discBlock1{NumSessions: 1, MCNValid: 1}
	copy(db1.MCN[:], "1234567890123")
	if err := binary.Write(&buf, binary.LittleEndian, db1); err != nil {
		t.Fatal(err)
	}
	buf.Write(make([]byte, 32)) // filler
	buf.Write(make([]byte, driveIdentifiersSize))
	buf.Write(make([]byte, volumeIDSize))

	nameUnits := utf16.Encode([]rune(filename))
	nameBytes := make([]byte, len(nameUnits)*2)
	for i, u := range nameUnits {
		binary.LittleEndian.PutUint16(nameBytes[i*2:], u)
	}

	var dataBlocks bytes.Buffer
	if err := binary.Write(&dataBlocks, binary.LittleEndian, uint32(1)); err != nil { // count
		t.Fatal(err)
	}
	if err := binary.Write(&dataBlocks, binary.LittleEndian, uint32(0)); err != nil { // drive path length
		t.Fatal(err)
	}
	fixed := struct {
		Type         uint32
		LengthBytes  uint32
		Dummy1       [4]uint32
		Offset       uint32
		Dummy2       [3]uint32
		StartSector  int32
		LengthSector int32
		FilenameLen  uint32
	}{
		LengthBytes:  uint32(imgSectors) * mainSectorSize,
		StartSector:  0,
		LengthSector: imgSectors,
		FilenameLen:  uint32(len(nameBytes)),
	}
	if err := binary.Write(&dataBlocks, binary.LittleEndian, fixed); err != nil {
		t.Fatal(err)
	}
	dataBlocks.Write(nameBytes)
	dataBlocks.Write(make([]byte, 4)) // trailing dummy

	var sessions bytes.Buffer
	sh := sessionHeader{Number: 1, NumEntries: 1, FirstTrack: 1, LastTrack: 1}
	if err := binary.Write(&sessions, binary.LittleEndian, sh); err != nil {
		t.Fatal(err)
	}
	te := trackEntry{Type: trackTypeMode1, Point: 1, StartSector: 0, Length: imgSectors, SessionNum: 1}
	if err := binary.Write(&sessions, binary.LittleEndian, te); err != nil {
		t.Fatal(err)
	}

	db2 := discBlock2{
		DataBlocksLength: uint32(dataBlocks.Len()),
		SessionsLength:   uint32(sessions.Len()),
	}
	if err := binary.Write(&buf, binary.LittleEndian, db2); err != nil {
		t.Fatal(err)
	}
	buf.Write(dataBlocks.Bytes())
	buf.Write(sessions.Bytes())

	return buf.Bytes()
}

func TestOpenSingleTrack(t *testing.T) {
	dir := t.TempDir()
	const sectors = 4

	sheet := buildSheet(t, sectors, "image.bwa")
	sheetPath := filepath.Join(dir, "disc.b6t")
	if err := os.WriteFile(sheetPath, sheet, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "image.bwa"), make([]byte, sectors*mainSectorSize), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := mirage.Open(sheetPath, mirage.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.MCN != "1234567890123" {
		t.Errorf("MCN = %q, want 1234567890123", d.MCN)
	}
	if len(d.Sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(d.Sessions))
	}
	sess := d.Session(1)
	if sess == nil || len(sess.Tracks) != 1 {
		t.Fatalf("session 1 missing or has wrong track count: %+v", sess)
	}
	track := sess.Track(1)
	if track == nil {
		t.Fatal("track 1 not found")
	}
	if track.Length() != sectors {
		t.Errorf("track length = %d, want %d", track.Length(), sectors)
	}
	if !track.IsDataTrack() {
		t.Error("expected data track")
	}

	frag, relAddr, err := track.FragmentForSector(0)
	if err != nil {
		t.Fatalf("FragmentForSector: %v", err)
	}
	data, err := frag.ReadMainData(relAddr)
	if err != nil {
		t.Fatalf("ReadMainData: %v", err)
	}
	if len(data) != mainSectorSize {
		t.Errorf("got %d bytes of main data, want %d", len(data), mainSectorSize)
	}
}

func TestOpenBadSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.b6t")
	if err := os.WriteFile(path, []byte("not a b6t file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := mirage.Open(path, mirage.Options{}); err == nil {
		t.Fatal("expected error for bad signature")
	}
}
