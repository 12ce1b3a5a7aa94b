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

import (
	"fmt"
	"os"
)

// fileStream is the one Stream implementation every back-end needs: a
// plain file opened once and read at arbitrary offsets. mdx keeps its own
// private copy of this shape, and daa layers part-file stitching on top of
// its own; the thin parsers (ccd, b6t, cue, mds) use this one
// directly since they never span more than one data file per fragment.
type fileStream struct {
	f    *os.File
	size int64
}

// OpenFileStream opens path for reading and wraps it as a Stream.
func OpenFileStream(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return &fileStream{f: f, size: info.Size()}, nil
}

func (s *fileStream) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *fileStream) Size() int64 {
	return s.size
}
