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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cdemu/go-mirage"
)

// filenameScheme picks the naming convention used by a split archive's
// volume files, inferred from how many 5-byte filler fields sit between
// the split descriptor's part count and the chunk table.
type filenameScheme int

const (
	filenameSchemeNone filenameScheme = iota // single-part archive
	filenameScheme2Digit                     // volname.part01.daa, .part02.daa, ...
	filenameScheme3Digit                     // volname.part001.daa, .part002.daa, ...
	filenameSchemeLegacy                     // volname.daa, volname.d00, volname.d01, ...
)

var (
	part2DigitRe = regexp.MustCompile(`part01\.`)
	part3DigitRe = regexp.MustCompile(`part001\.`)
)

// detectFilenameScheme maps the split descriptor's filler-field count
// (descriptorSize/5, after the 8-byte NumParts+Dummy prefix) onto a
// naming scheme, the way mirage_fragment_daa_parse_descriptor_split
// infers it from table size alone.
func detectFilenameScheme(fillerCount int) (filenameScheme, error) {
	switch fillerCount {
	case 99:
		return filenameScheme2Digit, nil
	case 512:
		return filenameScheme3Digit, nil
	case 101:
		return filenameSchemeLegacy, nil
	default:
		return filenameSchemeNone, fmt.Errorf("daa: invalid filename scheme (filler field count %d): %w", fillerCount, mirage.ErrFormat)
	}
}

// partFilename computes the on-disk name of volume index (0-based, 0
// is always mainPath) under scheme.
func partFilename(scheme filenameScheme, mainPath string, index int) string {
	if index == 0 {
		return mainPath
	}
	switch scheme {
	case filenameScheme2Digit:
		return part2DigitRe.ReplaceAllString(mainPath, fmt.Sprintf("part%02d.", index+1))
	case filenameScheme3Digit:
		return part3DigitRe.ReplaceAllString(mainPath, fmt.Sprintf("part%03d.", index+1))
	case filenameSchemeLegacy:
		trimmed := strings.TrimSuffix(mainPath, filepath.Ext(mainPath))
		return fmt.Sprintf("%s.d%02d", trimmed, index-1)
	default:
		return mainPath
	}
}

// maxOpenParts caps the number of volume-file descriptors a partPool
// keeps open at once. The 3-digit filename scheme alone allows up to 512
// volumes; holding all of them open for the life of a Fragment would
// needlessly exhaust file descriptors on a reader that, at any moment,
// only ever touches the one or two parts a chunk straddles.
const maxOpenParts = 16

// partMeta locates one volume file's contribution to the archive's
// logical, concatenated chunk-data stream: bytes [start, end) of that
// stream map to file offsets starting at fileOffset within the file at
// path.
type partMeta struct {
	path       string
	fileOffset int64
	start, end uint64
}

// partPool stitches a split DAA archive's volume files into one logical
// byte stream, opening each file lazily on first access and evicting the
// least-recently-used handle once more than maxOpenParts are open.
type partPool struct {
	parts   []partMeta
	handles *lru.Cache[int, *os.File]
}

// buildPartPool opens every volume file of a (possibly single-part)
// archive just long enough to read its header, lays out their logical
// offsets, and returns a pool that reopens them on demand for chunk
// reads. mainStream's underlying file is reused as part 0's first handle
// instead of being reopened.
func buildPartPool(mainPath string, mainFile *os.File, chunkDataOffset int64, mainSize int64, scheme filenameScheme, numParts int) (*partPool, error) {
	metas := make([]partMeta, numParts)
	metas[0] = partMeta{path: mainPath, fileOffset: chunkDataOffset, start: 0, end: uint64(mainSize - chunkDataOffset)}

	offset := metas[0].end
	for i := 1; i < numParts; i++ {
		name := partFilename(scheme, mainPath, i)
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("daa: opening part %d (%s): %w", i, name, mirage.ErrIO)
		}

		sigBuf := make([]byte, 16)
		if _, err := f.ReadAt(sigBuf, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("daa: reading part %d signature: %w", i, mirage.ErrIO)
		}
		if string(trimZero(sigBuf)) != partSignature {
			f.Close()
			return nil, fmt.Errorf("daa: part %d has invalid signature: %w", i, mirage.ErrFormat)
		}

		ph, err := readPartHeader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("daa: part %d: %w", i, err)
		}

		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("daa: stat part %d: %w", i, mirage.ErrIO)
		}

		partDataOffset := int64(ph.ChunkDataOffset & 0x00FFFFFF)
		partLen := info.Size() - partDataOffset

		metas[i] = partMeta{path: name, fileOffset: partDataOffset, start: offset, end: offset + uint64(partLen)}
		offset += uint64(partLen)
		f.Close()
	}

	pool := &partPool{parts: metas}
	handles, err := lru.NewWithEvict[int, *os.File](maxOpenParts, func(_ int, f *os.File) {
		f.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("daa: building part handle cache: %w", mirage.ErrIO)
	}
	pool.handles = handles
	pool.handles.Add(0, mainFile)
	return pool, nil
}

// handle returns an open *os.File for part index, opening it (and
// evicting the least-recently-used handle, if the pool is at capacity)
// if it isn't already cached.
func (p *partPool) handle(index int) (*os.File, error) {
	if f, ok := p.handles.Get(index); ok {
		return f, nil
	}
	f, err := os.Open(p.parts[index].path)
	if err != nil {
		return nil, fmt.Errorf("daa: reopening part %d (%s): %w", index, p.parts[index].path, mirage.ErrIO)
	}
	p.handles.Add(index, f)
	return f, nil
}

// readAt reads length bytes starting at the logical chunk-data offset
// offset, transparently crossing part-file boundaries.
func (p *partPool) readAt(offset uint64, length uint32, buf []byte) error {
	for length > 0 {
		idx := -1
		for i := range p.parts {
			if offset >= p.parts[i].start && offset < p.parts[i].end {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("daa: no part covers logical offset 0x%x: %w", offset, mirage.ErrFormat)
		}
		pm := p.parts[idx]

		readLen := length
		if offset+uint64(length) > pm.end {
			readLen = uint32(pm.end - offset)
		}

		f, err := p.handle(idx)
		if err != nil {
			return err
		}

		localOffset := offset - pm.start
		fileOffset := pm.fileOffset + int64(localOffset)
		if _, err := f.ReadAt(buf[:readLen], fileOffset); err != nil {
			return fmt.Errorf("daa: reading 0x%x bytes at part offset 0x%x: %w", readLen, fileOffset, mirage.ErrIO)
		}

		length -= readLen
		offset += uint64(readLen)
		buf = buf[readLen:]
	}
	return nil
}

func trimZero(b []byte) []byte {
	if i := indexZero(b); i >= 0 {
		return b[:i]
	}
	return b
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// fileStream is a thin os.File-backed mirage.Stream, used while reading
// the main file's own header, descriptors and chunk table (all of which
// predate - and so can't yet go through - the partPool built from them).
type fileStream struct {
	f    *os.File
	size int64
}

func openFileStream(path string) (*fileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileStream{f: f, size: info.Size()}, nil
}

func (s *fileStream) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileStream) Size() int64                             { return s.size }

// streamReader adapts a fileStream (read via ReadAt) into a sequential
// io.Reader positioned at its current offset, for passing to the
// binary.Read-based header parsers.
type streamReader struct {
	s   *fileStream
	pos int64
}

func (r *streamReader) Read(p []byte) (int, error) {
	n, err := r.s.ReadAt(p, r.pos)
	r.pos += int64(n)
	return n, err
}
