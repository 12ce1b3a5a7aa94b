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

import "io"

// Format identifies the on-disk layout of a track's main-channel data.
type Format int

// Main-channel data formats.
const (
	FormatAudio Format = iota
	FormatData
)

// SubchannelFormat identifies the layout of a track's subchannel data.
type SubchannelFormat int

// Subchannel layouts.
const (
	SubchannelNone SubchannelFormat = iota
	SubchannelQ16         // compact 16-byte Q-only encoding
	SubchannelPW96        // interleaved P..W, 96 bytes
)

// Stream is a random-access byte source backing a Fragment: a file handle,
// one of several part files stitched together, or an in-memory cursor.
type Stream interface {
	io.ReaderAt
	// Size returns the total number of bytes available from the stream.
	Size() int64
}

// Fragment is a contiguous run of sectors backed by one logical byte
// stream. Container back-ends (mdx.Fragment, daa.Fragment) and the thin
// parsers (ccd, b6t, cue, mds) that merely slice a flat file all implement
// it; consumers of a Fragment never need to know which.
//
// A Fragment is not safe for concurrent use: it owns a one-slot decoded
// group cache and, for MDX, mutable cipher/inflate state. Callers either
// serialize access or use one Fragment per reader.
type Fragment interface {
	// Length returns the number of sectors in the fragment.
	Length() int

	// MainSize returns the size, in bytes, of a sector's main-channel
	// payload.
	MainSize() int

	// SubchannelSize returns the size, in bytes, of a sector's
	// subchannel payload (0 if the fragment carries none).
	SubchannelSize() int

	// ReadMainData returns the main-channel payload for sector addr.
	// addr must satisfy 0 <= addr < Length(), otherwise
	// ErrInvalidArgument is returned.
	ReadMainData(addr int) ([]byte, error)

	// ReadSubchannelData returns the subchannel payload for sector addr,
	// or nil if the fragment carries no subchannel.
	ReadSubchannelData(addr int) ([]byte, error)
}
