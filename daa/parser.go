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

// Package daa parses PowerISO's DAA ("direct access archive") format:
// a single Mode-1 data track, optionally split across numbered volume
// files, optionally password-encrypted, and divided into zlib- or
// LZMA-compressed chunks indexed by a directory that itself comes in
// two on-disk shapes (format 0x100 and 0x110).
package daa

import (
	"fmt"

	"github.com/cdemu/go-mirage"
)

// redbookPregapLength is the Red Book lead-in reserved before LBA 0,
// synthesized for every DAA image the way mirage_parser_add_redbook_pregap
// does for any parser whose disc turns out to be a CD-ROM.
const redbookPregapLength = mirage.LBAOffset

func init() {
	mirage.RegisterParser(".daa", Open)
}

// Open parses the DAA archive (or its first volume) at path into a
// mirage.Disc with a single session and a single Mode-1 track.
func Open(path string, opts mirage.Options) (*mirage.Disc, error) {
	log := opts.ResolvedLogger()

	password := opts.Password
	fragment, err := OpenFragment(path, password, opts.PasswordPrompt)
	if err != nil {
		return nil, fmt.Errorf("daa: %w", err)
	}
	log.Debugf("daa: opened %s, %d sectors", path, fragment.Length())

	pregap := mirage.NewNullFragment(redbookPregapLength, fragment.MainSize(), 0)

	track := mirage.Track{
		Number:    1,
		Mode:      mirage.FormatData,
		Fragments: []mirage.Fragment{pregap, fragment},
		Indices: []mirage.Index{
			{Number: 0, Start: 0},
			{Number: 1, Start: redbookPregapLength},
		},
	}

	disc := &mirage.Disc{
		Medium: mirage.MediumCD,
		Sessions: []mirage.Session{
			{
				Number: 1,
				Tracks: []mirage.Track{track},
			},
		},
	}

	return disc, nil
}
