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

package daa

// x86BCJDecode reverses the x86 "branch-call-jump" filter that some
// format-0x110 LZMA chunks apply before compression: call/jump targets
// (E8/E9 opcodes) are rewritten from relative to absolute addresses
// ahead of time because absolute addresses compress better across
// similar functions. Decoding converts them back to relative, in
// place. Ported from the reference Bra86 algorithm shipped with the
// LZMA SDK (public domain); no maintained Go package exposes it as a
// standalone filter outside the xz container format.
func x86BCJDecode(data []byte, startPos uint32) {
	if len(data) < 5 {
		return
	}

	prevMask := uint32(0)
	prevPos := -1
	ip := startPos + 5

	i := 0
	for i <= len(data)-5 {
		if data[i]&0xFE != 0xE8 {
			i++
			continue
		}

		d := i - prevPos
		prevPos = i
		if d > 3 {
			prevMask = 0
		} else {
			prevMask = (prevMask << uint(d-1)) & 7
			if prevMask != 0 {
				b := data[i+4-maskToBitNumber[prevMask]]
				if maskToAllowedStatus[prevMask] == 0 || testByteMatches(b) {
					prevPos = i
					prevMask = ((prevMask << 1) & 7) | 1
					i++
					continue
				}
			}
		}

		if testByteMatches(data[i+4]) {
			src := uint32(data[i+1]) | uint32(data[i+2])<<8 | uint32(data[i+3])<<16 | uint32(data[i+4])<<24
			var dest uint32
			for {
				dest = src - (ip + uint32(i))
				if prevMask == 0 {
					break
				}
				idx := maskToBitNumber[prevMask] * 8
				b := byte(dest >> (24 - idx))
				if !testByteMatches(b) {
					break
				}
				src = dest ^ ((1 << (32 - idx)) - 1)
			}

			data[i+4] = byte(^(((dest >> 24) & 1) - 1))
			data[i+3] = byte(dest >> 16)
			data[i+2] = byte(dest >> 8)
			data[i+1] = byte(dest)
			i += 5
		} else {
			prevMask = ((prevMask << 1) & 7) | 1
			i++
		}
	}
}

func testByteMatches(b byte) bool { return b == 0x00 || b == 0xFF }

var maskToAllowedStatus = [8]byte{1, 1, 1, 0, 1, 0, 0, 0}
var maskToBitNumber = [8]int{0, 1, 2, 2, 3, 3, 3, 3}
