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

// DetectSectorLayout inspects the first bytes of a raw 2352-byte sector
// and reports whether it is a data or audio sector, and the size of its
// user-data payload. The thin parsers (ccd, mds v1) need this because
// their sheet formats routinely lie about a track's mode; the image data
// itself is the only reliable source.
//
// The check mirrors extractSectorData's CD sync-header probe: a Mode 1/2
// sector starts with the fixed 00 FF×10 00 sync pattern followed by a
// 3-byte MSF and a mode byte at offset 15 (1 = Mode 1, 2 = Mode 2); no
// sync header at all means the sector is raw audio.
func DetectSectorLayout(sector []byte) (mode Format, userDataSize int) {
	if len(sector) < 16 || sector[0] != 0x00 || sector[1] != 0xFF || sector[11] != 0x00 {
		return FormatAudio, 2352
	}
	if sector[15] == 2 {
		return FormatData, 2336
	}
	return FormatData, 2048
}
