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
	"strings"
	"sync"
)

// ParserFunc opens path (with the supplied Options) and returns a fully
// populated Disc. Each back-end package (ccd, b6t, cue, mds, mdx, daa) registers one
// of these for every extension it claims, via RegisterParser.
type ParserFunc func(path string, opts Options) (*Disc, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ParserFunc)
)

// RegisterParser registers fn as the parser for files with the given
// extension (including the leading dot, e.g. ".ccd"; matched
// case-insensitively). Intended to be called from an init() function in a
// back-end package, mirroring chd.RegisterCodec's plugin-registration
// shape.
func RegisterParser(ext string, fn ParserFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(ext)] = fn
}

// lookupParser returns the registered parser for ext, or nil.
func lookupParser(ext string) ParserFunc {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[strings.ToLower(ext)]
}

// SupportedExtensions returns the file extensions with a registered parser.
func SupportedExtensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	return exts
}

// ErrUnsupportedFormat is returned by Open when no parser is registered for
// a file's extension.
type ErrUnsupportedFormat struct {
	Extension string
}

func (e ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("mirage: no parser registered for extension %q", e.Extension)
}
