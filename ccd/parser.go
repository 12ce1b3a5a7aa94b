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

package ccd

import (
	"fmt"
	"strings"

	"github.com/cdemu/go-mirage"
)

func init() {
	mirage.RegisterParser(".ccd", Open)
}

const (
	mainSectorSize = 2352
	subSectorSize  = 96
)

// Open parses the CCD sheet at path and its sibling .img/.sub data files
// into a mirage.Disc.
func Open(path string, opts mirage.Options) (*mirage.Disc, error) {
	log := opts.ResolvedLogger()

	sh, err := parseSheet(path)
	if err != nil {
		return nil, err
	}

	imgStream, err := mirage.OpenFileStream(siblingPath(path, ".img"))
	if err != nil {
		return nil, fmt.Errorf("ccd: %w", err)
	}
	var subStream mirage.Stream
	if s, err := mirage.OpenFileStream(siblingPath(path, ".sub")); err == nil {
		subStream = s
	}

	d := &mirage.Disc{}
	if mirage.ValidateMCN(sh.disc.Catalog) {
		d.MCN = sh.disc.Catalog
	}

	var offsetSectors int64 // running offset into img/sub streams, in sectors
	var cur *mirage.Session

	for i, e := range sh.entries {
		switch e.Point {
		case pointSessionStart:
			log.Debugf("ccd: session %d starts", e.Session)
			d.Sessions = append(d.Sessions, mirage.Session{Number: e.Session})
			cur = &d.Sessions[len(d.Sessions)-1]

		case pointSessionEnd:
			if cur == nil {
				return nil, fmt.Errorf("ccd: 0xA2 entry with no open session")
			}
			leadout := 6750
			if e.Session != 1 {
				leadout = 2250
			}
			cur.LeadoutLen = leadout
			log.Debugf("ccd: session %d ends, lead-out %d sectors", e.Session, leadout)

		default:
			if e.Point < 1 || e.Point > 99 {
				continue // 0xA1 ("last track number") carries no track data
			}
			if cur == nil {
				return nil, fmt.Errorf("ccd: track entry outside any session")
			}
			if i+1 >= len(sh.entries) {
				return nil, fmt.Errorf("ccd: track %d has no following entry to bound its length", e.Point)
			}
			next := sh.entries[i+1]

			curPregap := 0
			if (len(cur.Tracks) == 0 && e.Index1 != 0) || (e.Index0 != 0 && e.Index1 != 0) {
				curPregap = e.Index1 - e.Index0
			}
			nextPregap := 0
			if next.Index0 != 0 && next.Index1 != 0 {
				nextPregap = next.Index1 - next.Index0
			}

			trackStart := e.PLBA - curPregap
			trackEnd := next.PLBA - nextPregap
			length := trackEnd - trackStart
			if length <= 0 {
				return nil, fmt.Errorf("ccd: track %d has non-positive length %d", e.Point, length)
			}

			fragment := mirage.NewRawFragment(length,
				imgStream, offsetSectors*mainSectorSize, mainSectorSize, mainSectorSize,
				subStream, offsetSectors*subSectorSize, subSectorSize, subSectorSize)
			offsetSectors += int64(length)

			track := mirage.Track{Number: e.Point, Mode: mirage.FormatData, Fragments: []mirage.Fragment{fragment}}
			if curPregap > 0 {
				track.Indices = append(track.Indices, mirage.Index{Number: 0, Start: 0})
				track.Indices = append(track.Indices, mirage.Index{Number: 1, Start: curPregap})
			} else {
				track.Indices = append(track.Indices, mirage.Index{Number: 1, Start: 0})
			}

			// The sheet's Mode field is frequently wrong; trust the data.
			if sector, err := fragment.ReadMainData(0); err == nil {
				mode, _ := mirage.DetectSectorLayout(sector)
				track.Mode = mode
			}

			if mirage.ValidateISRC(e.ISRC) {
				track.ISRC = e.ISRC
			}

			cur.Tracks = append(cur.Tracks, track)
		}
	}

	return d, nil
}

// siblingPath swaps sheetPath's extension for ext.
func siblingPath(sheetPath, ext string) string {
	if i := strings.LastIndexByte(sheetPath, '.'); i >= 0 {
		return sheetPath[:i] + ext
	}
	return sheetPath + ext
}
