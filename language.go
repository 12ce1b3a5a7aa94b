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

// Language is a CD-TEXT language code, per IEC 60908 Annex L.
type Language int

// A handful of CD-TEXT language codes used by CCD/B6T CD-TEXT blocks.
const (
	LanguageUnspecified Language = 0x00
	LanguageEnglish     Language = 0x09
	LanguageFrench      Language = 0x0F
	LanguageGerman      Language = 0x08
	LanguageJapanese    Language = 0x11
)

// CDText holds the subset of CD-TEXT fields the thin parsers recover from
// a CD-TEXT pack (title/performer), keyed by Language.
type CDText struct {
	Language Language
	Title    string
	Performer string
}
