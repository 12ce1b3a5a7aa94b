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
	"compress/flate"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ulikunitz/xz/lzma"

	"github.com/cdemu/go-mirage"
)

// buildMainHeaderV1 assembles a 76-byte format-0x100 main header with a
// correct trailing CRC32, the way daa2iso and the reference reader both
// expect it.
func buildMainHeaderV1(t *testing.T, chunkTableOffset, chunkDataOffset, chunkSize uint32, isoSize uint64) []byte {
	t.Helper()

	var sig [16]byte
	copy(sig[:], mainSignature)

	var buf bytes.Buffer
	buf.Write(sig[:])
	binary.Write(&buf, binary.LittleEndian, chunkTableOffset)
	binary.Write(&buf, binary.LittleEndian, uint32(formatVersion1))
	binary.Write(&buf, binary.LittleEndian, chunkDataOffset)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // Dummy1
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // Dummy2
	binary.Write(&buf, binary.LittleEndian, chunkSize)
	binary.Write(&buf, binary.LittleEndian, isoSize)
	binary.Write(&buf, binary.LittleEndian, uint64(0)) // DAASize, unused by any reader
	buf.Write(make([]byte, 16))                         // format2Header, unused for format 0x100

	raw := buf.Bytes()
	if len(raw) != 72 {
		t.Fatalf("constructed header body is %d bytes, want 72", len(raw))
	}
	crc := crc32.ChecksumIEEE(raw)
	binary.Write(&buf, binary.LittleEndian, crc)

	out := buf.Bytes()
	if len(out) != 76 {
		t.Fatalf("constructed header is %d bytes, want 76", len(out))
	}
	return out
}

// encodeChunkTableV1Entry packs a chunk length into format 0x100's
// swapped 3-byte field order (high, low, middle).
func encodeChunkTableV1Entry(length uint32) [3]byte {
	return [3]byte{byte(length >> 16), byte(length), byte(length >> 8)}
}

func TestOpenFragmentSinglePartZlibUnencrypted(t *testing.T) {
	const sectorSize = 2048
	const chunkSize = 2 * sectorSize

	chunk0 := bytes.Repeat([]byte{0x11}, chunkSize)
	chunk1 := bytes.Repeat([]byte{0x22}, chunkSize)

	compressOne := func(plain []byte) []byte {
		var b bytes.Buffer
		fw, err := flate.NewWriter(&b, flate.DefaultCompression)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(plain); err != nil {
			t.Fatal(err)
		}
		if err := fw.Close(); err != nil {
			t.Fatal(err)
		}
		return b.Bytes()
	}

	comp0 := compressOne(chunk0)
	comp1 := compressOne(chunk1)

	const headerLen = 76
	const tableLen = 2 * 3
	chunkTableOffset := uint32(headerLen)
	chunkDataOffset := chunkTableOffset + tableLen
	isoSize := uint64(2 * chunkSize)

	header := buildMainHeaderV1(t, chunkTableOffset, chunkDataOffset, uint32(chunkSize), isoSize)

	e0 := encodeChunkTableV1Entry(uint32(len(comp0)))
	e1 := encodeChunkTableV1Entry(uint32(len(comp1)))
	table := append(append([]byte(nil), e0[:]...), e1[:]...)

	var file bytes.Buffer
	file.Write(header)
	file.Write(table)
	file.Write(comp0)
	file.Write(comp1)

	dir := t.TempDir()
	path := filepath.Join(dir, "image.daa")
	if err := os.WriteFile(path, file.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenFragment(path, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if f.Length() != 4 {
		t.Fatalf("Length() = %d, want 4", f.Length())
	}
	if f.MainSize() != sectorSize {
		t.Fatalf("MainSize() = %d, want %d", f.MainSize(), sectorSize)
	}
	if f.SubchannelSize() != 0 {
		t.Fatalf("SubchannelSize() = %d, want 0", f.SubchannelSize())
	}

	for addr := 0; addr < 4; addr++ {
		got, err := f.ReadMainData(addr)
		if err != nil {
			t.Fatalf("ReadMainData(%d): %v", addr, err)
		}
		var want byte
		if addr < 2 {
			want = 0x11
		} else {
			want = 0x22
		}
		if !bytes.Equal(got, bytes.Repeat([]byte{want}, sectorSize)) {
			t.Fatalf("sector %d: unexpected content", addr)
		}
	}

	if _, err := f.ReadMainData(-1); !errors.Is(err, mirage.ErrInvalidArgument) {
		t.Fatalf("ReadMainData(-1) = %v, want ErrInvalidArgument", err)
	}
	if _, err := f.ReadMainData(4); !errors.Is(err, mirage.ErrInvalidArgument) {
		t.Fatalf("ReadMainData(4) = %v, want ErrInvalidArgument", err)
	}

	if sub, err := f.ReadSubchannelData(0); err != nil || sub != nil {
		t.Fatalf("ReadSubchannelData(0) = (%v, %v), want (nil, nil)", sub, err)
	}
}

// buildLZMABody LZMA-compresses plain with the real encoder, then peels
// off its 13-byte legacy header: the first 5 bytes (properties byte plus
// little-endian dictionary size) are what an archive would carry in its
// own format2.lzma_props field, and the rest is what a chunk's raw bytes
// on disk look like - the encoder is never asked to write its own
// uncompressed-size field into that body, so props5 is the only piece of
// header data loadChunk is allowed to depend on.
func buildLZMABody(t *testing.T, plain []byte) (props5 [5]byte, body []byte) {
	t.Helper()

	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	raw := buf.Bytes()
	if len(raw) < 13 {
		t.Fatalf("encoded LZMA stream is only %d bytes, want at least 13", len(raw))
	}
	copy(props5[:], raw[:5])
	return props5, raw[13:]
}

// newSinglePartPool builds a partPool backed by a single temp file,
// bypassing buildPartPool's archive-header parsing so loadChunk can be
// exercised directly with synthetic chunk data.
func newSinglePartPool(t *testing.T, data []byte) *partPool {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "part0")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })

	handles, err := lru.NewWithEvict[int, *os.File](maxOpenParts, func(_ int, f *os.File) {
		f.Close()
	})
	if err != nil {
		t.Fatal(err)
	}
	handles.Add(0, f)

	return &partPool{
		parts:   []partMeta{{path: path, fileOffset: 0, start: 0, end: uint64(len(data))}},
		handles: handles,
	}
}

func TestLoadChunkLZMARoundTrip(t *testing.T) {
	plain := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	props5, body := buildLZMABody(t, plain)

	f := &Fragment{
		chunkSize:   len(plain),
		isoSize:     uint64(len(plain)),
		lzmaProps5:  props5,
		chunks:      []chunkEntry{{offset: 0, length: uint32(len(body)), compression: compressionLZMA}},
		cachedChunk: -1,
		chunkBuf:    make([]byte, len(plain)),
		parts:       newSinglePartPool(t, body),
	}

	if err := f.loadChunk(0); err != nil {
		t.Fatalf("loadChunk: %v", err)
	}
	if !bytes.Equal(f.chunkBuf, plain) {
		t.Fatal("LZMA-decoded chunk does not match original plaintext")
	}
}

func TestLoadChunkLZMAWithBCJFilterIsNoOpOnOpcodeFreeData(t *testing.T) {
	// No x86 call/jump opcodes in the plaintext, so the BCJ decode pass
	// (exercised separately in bcj_test.go) must leave it unchanged; this
	// only checks that loadChunk actually runs it when lzmaFilter is set.
	plain := bytes.Repeat([]byte{0x90}, 4096)
	props5, body := buildLZMABody(t, plain)

	f := &Fragment{
		chunkSize:   len(plain),
		isoSize:     uint64(len(plain)),
		lzmaFilter:  1,
		lzmaProps5:  props5,
		chunks:      []chunkEntry{{offset: 0, length: uint32(len(body)), compression: compressionLZMA}},
		cachedChunk: -1,
		chunkBuf:    make([]byte, len(plain)),
		parts:       newSinglePartPool(t, body),
	}

	if err := f.loadChunk(0); err != nil {
		t.Fatalf("loadChunk: %v", err)
	}
	if !bytes.Equal(f.chunkBuf, plain) {
		t.Fatal("LZMA+BCJ-decoded chunk does not match original plaintext")
	}
}
