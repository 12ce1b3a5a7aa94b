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

// Package mirage implements a uniform reader for optical-disc container
// image formats: CloneCD (.ccd), BlindWrite (.b6t), plain CUE sheets
// (.cue), DaemonTools v1/v2 (.mds/.mdx), and PowerISO (.daa). Every
// supported format parses down to the same Disc/Session/Track/Fragment
// object model defined in this package; format-specific code lives in the
// mdx, daa, ccd, b6t, cue and mds subpackages and registers itself with
// RegisterParser from an init function.
package mirage

import (
	"fmt"
	"path/filepath"
)

// Open identifies path's format by extension, dispatches to the
// registered parser, and returns the resulting Disc. Callers that need a
// specific parser (bypassing extension sniffing) can call the
// corresponding subpackage directly instead.
func Open(path string, opts Options) (*Disc, error) {
	ext := filepath.Ext(path)
	parser := lookupParser(ext)
	if parser == nil {
		return nil, ErrUnsupportedFormat{Extension: ext}
	}
	disc, err := parser(path, opts)
	if err != nil {
		return nil, fmt.Errorf("mirage: open %s: %w", path, err)
	}
	disc.filename = path
	disc.finalize()
	return disc, nil
}
