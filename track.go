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

import "strings"

// Index marks a sub-range of a Track (e.g. INDEX 00 pregap, INDEX 01 start)
// in CUE-sheet terms.
type Index struct {
	Number int
	Start  int // sector address relative to the track's first fragment
}

// Track is one track of a Session: an ordered list of Fragments plus the
// bookkeeping (MCN/ISRC, indices, mode) that the CCD/B6T/CUE/MDS parsers
// fill in from their respective on-disk layouts.
type Track struct {
	Number     int
	Mode       Format
	ISRC       string
	Indices    []Index
	Fragments  []Fragment
	startFrame int // sector the track begins at, including pregap, counted from its session's first track
}

// StartSector returns the sector at which this track begins, counted from
// 0 at the first track of its session; earlier sessions are not counted.
func (t *Track) StartSector() int {
	return t.startFrame
}

// Length returns the total number of sectors across the track's fragments.
func (t *Track) Length() int {
	total := 0
	for _, f := range t.Fragments {
		total += f.Length()
	}
	return total
}

// IsDataTrack reports whether the track carries data rather than audio.
func (t *Track) IsDataTrack() bool {
	return t.Mode == FormatData
}

// FragmentForSector returns the fragment containing the track-relative
// sector addr and the sector address relative to that fragment's start.
func (t *Track) FragmentForSector(addr int) (Fragment, int, error) {
	for _, f := range t.Fragments {
		if addr < f.Length() {
			return f, addr, nil
		}
		addr -= f.Length()
	}
	return nil, 0, ErrInvalidArgument
}

// ValidateISRC reports whether s is a syntactically valid ISRC
// (5 alphanumerics + 7 digits, per IFPI RP-03).
func ValidateISRC(s string) bool {
	if len(s) != 12 {
		return false
	}
	for i, c := range s {
		switch {
		case i < 5:
			if !isAlnumUpper(byte(c)) {
				return false
			}
		default:
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

func isAlnumUpper(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// ValidateMCN reports whether s is a syntactically valid Media Catalog
// Number (13 decimal digits, per EAN-13).
func ValidateMCN(s string) bool {
	if len(s) != 13 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// normalizeMode maps the many mode spellings used across CCD/CUE/MDS into
// the two-value Format the object model exposes.
func normalizeMode(mode string) Format {
	if strings.Contains(strings.ToUpper(mode), "AUDIO") {
		return FormatAudio
	}
	return FormatData
}
