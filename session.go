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

// SessionType is a session's format: CD-ROM, CD-i or CD-ROM XA. Whether a
// session is the first one is given by its number, not its type (see
// LeadoutLength).
type SessionType int

// Session types.
const (
	SessionTypeCDROM SessionType = iota
	SessionTypeCDI
	SessionTypeCDROMXA
)

// Session groups the Tracks recorded in one write pass of a multisession
// disc. Most images have exactly one.
type Session struct {
	Number     int
	Type       SessionType
	Tracks     []Track
	LeadoutLen int // lead-out length in sectors, see LeadoutLength
}

// Track returns the track with the given 1-based number, or nil.
func (s *Session) Track(number int) *Track {
	for i := range s.Tracks {
		if s.Tracks[i].Number == number {
			return &s.Tracks[i]
		}
	}
	return nil
}

// FirstDataTrack returns the first data track in the session, or nil if the
// session has none (e.g. a pure audio CD).
func (s *Session) FirstDataTrack() *Track {
	for i := range s.Tracks {
		if s.Tracks[i].IsDataTrack() {
			return &s.Tracks[i]
		}
	}
	return nil
}

// assignStartFrames recomputes each track's starting sector from track
// lengths, counting from 0 at the session's first track; earlier sessions
// and lead-out areas are not counted. Disc.finalize calls this once per
// session after a parser has populated Tracks.
func (s *Session) assignStartFrames() {
	frame := 0
	for i := range s.Tracks {
		s.Tracks[i].startFrame = frame
		frame += s.Tracks[i].Length()
	}
}

// LeadoutLength returns the heuristic lead-out length, in sectors, for a
// session of this type. CD-ROM sessions use the Red Book minimum of 6750
// sectors (1:30.00); CD-i and later-session lead-outs on CD-ROM XA discs
// are conventionally shorter (2250 sectors, 0:30.00).
func LeadoutLength(t SessionType, sessionNumber int) int {
	if t == SessionTypeCDI || sessionNumber > 1 {
		return 2250
	}
	return 6750
}
