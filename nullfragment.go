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

// NullFragment is a Fragment backed by no stream at all: every sector
// reads back as zeroed main-channel data and (if configured) silent/
// zeroed subchannel data. Back-ends use it for synthesized pregaps -
// such as the 150-sector Red Book lead-in every bare ISO/DAA image
// implicitly needs but never stores - where there's nothing on disk to
// read.
type NullFragment struct {
	length         int
	mainSize       int
	subchannelSize int
}

// NewNullFragment returns a NullFragment of length sectors, each with
// mainSize bytes of main-channel data and subchannelSize bytes of
// subchannel data (0 for none), all reading back as zero.
func NewNullFragment(length, mainSize, subchannelSize int) *NullFragment {
	return &NullFragment{length: length, mainSize: mainSize, subchannelSize: subchannelSize}
}

// Length implements Fragment.
func (f *NullFragment) Length() int { return f.length }

// MainSize implements Fragment.
func (f *NullFragment) MainSize() int { return f.mainSize }

// SubchannelSize implements Fragment.
func (f *NullFragment) SubchannelSize() int { return f.subchannelSize }

// ReadMainData implements Fragment.
func (f *NullFragment) ReadMainData(addr int) ([]byte, error) {
	if addr < 0 || addr >= f.length {
		return nil, ErrInvalidArgument
	}
	return make([]byte, f.mainSize), nil
}

// ReadSubchannelData implements Fragment.
func (f *NullFragment) ReadSubchannelData(addr int) ([]byte, error) {
	if addr < 0 || addr >= f.length {
		return nil, ErrInvalidArgument
	}
	if f.subchannelSize == 0 {
		return nil, nil
	}
	return make([]byte, f.subchannelSize), nil
}

var _ Fragment = (*NullFragment)(nil)
