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

// MediumType is a guess at the physical medium a Disc was imaged from,
// derived from its track layout (not stored in any of the image formats).
type MediumType int

// Medium type guesses.
const (
	MediumUnknown MediumType = iota
	MediumCD
	MediumCDROMXA
	MediumCDI
	MediumDVD
)

// Disc is the root of the object model produced by every parser: an
// ordered list of Sessions, plus the catalog number and medium guess.
type Disc struct {
	MCN      string
	Sessions []Session
	Medium   MediumType
	filename string
}

// Filename returns the path the Disc was opened from.
func (d *Disc) Filename() string {
	return d.filename
}

// Session returns the session with the given 1-based number, or nil.
func (d *Disc) Session(number int) *Session {
	for i := range d.Sessions {
		if d.Sessions[i].Number == number {
			return &d.Sessions[i]
		}
	}
	return nil
}

// TrackCount returns the total number of tracks across all sessions.
func (d *Disc) TrackCount() int {
	n := 0
	for _, s := range d.Sessions {
		n += len(s.Tracks)
	}
	return n
}

// GuessMedium sets Medium from the number of sessions alone: none gives
// MediumUnknown, more than one gives MediumCDROMXA, and exactly one gives
// MediumCD. Track modes are not inspected, so MediumCDI and MediumDVD are
// never chosen here.
func (d *Disc) GuessMedium() {
	if len(d.Sessions) == 0 {
		d.Medium = MediumUnknown
		return
	}
	if len(d.Sessions) > 1 {
		d.Medium = MediumCDROMXA
		return
	}
	d.Medium = MediumCD
}

// finalize runs the bookkeeping every parser needs after populating
// Sessions: per-session start-frame assignment and the medium guess.
func (d *Disc) finalize() {
	for i := range d.Sessions {
		d.Sessions[i].assignStartFrames()
	}
	d.GuessMedium()
}
