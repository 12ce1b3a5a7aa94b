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

import "fmt"

// RawFragment is a Fragment over fixed-stride records in one or two
// already-decoded Streams: no compression, no encryption, the shape every
// one of CCD/B6T/CUE/MDS's flat data files has. Main-channel and
// subchannel data may live in the same stream (B6T's interleaved data
// blocks) or separate ones (CCD's .img/.sub pair); a nil subStream means
// the fragment carries no subchannel at all.
type RawFragment struct {
	length int

	mainStream Stream
	mainOffset int64
	mainStride int64
	mainSize   int

	subStream Stream
	subOffset int64
	subStride int64
	subSize   int
}

// NewRawFragment builds a RawFragment of length sectors. mainStride is the
// byte distance between consecutive main-channel records in mainStream
// (normally equal to mainSize, but may be larger if subchannel data is
// interleaved into the same stream at a non-zero byte offset within the
// stride). subStream may be nil.
func NewRawFragment(length int, mainStream Stream, mainOffset int64, mainStride int64, mainSize int,
	subStream Stream, subOffset int64, subStride int64, subSize int) *RawFragment {
	return &RawFragment{
		length:     length,
		mainStream: mainStream,
		mainOffset: mainOffset,
		mainStride: mainStride,
		mainSize:   mainSize,
		subStream:  subStream,
		subOffset:  subOffset,
		subStride:  subStride,
		subSize:    subSize,
	}
}

// Length implements Fragment.
func (f *RawFragment) Length() int { return f.length }

// MainSize implements Fragment.
func (f *RawFragment) MainSize() int { return f.mainSize }

// SubchannelSize implements Fragment.
func (f *RawFragment) SubchannelSize() int { return f.subSize }

// ReadMainData implements Fragment.
func (f *RawFragment) ReadMainData(addr int) ([]byte, error) {
	if addr < 0 || addr >= f.length {
		return nil, ErrInvalidArgument
	}
	buf := make([]byte, f.mainSize)
	off := f.mainOffset + int64(addr)*f.mainStride
	if _, err := f.mainStream.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("%w: reading sector %d: %v", ErrIO, addr, err)
	}
	return buf, nil
}

// ReadSubchannelData implements Fragment.
func (f *RawFragment) ReadSubchannelData(addr int) ([]byte, error) {
	if f.subStream == nil {
		return nil, nil
	}
	if addr < 0 || addr >= f.length {
		return nil, ErrInvalidArgument
	}
	buf := make([]byte, f.subSize)
	off := f.subOffset + int64(addr)*f.subStride
	if _, err := f.subStream.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("%w: reading subchannel %d: %v", ErrIO, addr, err)
	}
	return buf, nil
}

var _ Fragment = (*RawFragment)(nil)
