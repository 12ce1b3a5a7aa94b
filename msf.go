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

import "fmt"

// FramesPerSecond is the number of CD sectors ("frames") per second of
// playback time, fixed by the Red Book.
const FramesPerSecond = 75

// LBAOffset is the conventional offset between LBA 0 and MSF 00:02:00,
// reserving the first two seconds for the lead-in area.
const LBAOffset = 150

// MSF is a minutes/seconds/frames CD address.
type MSF struct {
	Min, Sec, Frame int
}

// ToLBA converts an MSF address to a logical block address.
func (m MSF) ToLBA() int {
	return (m.Min*60+m.Sec)*FramesPerSecond + m.Frame - LBAOffset
}

// String renders the address as "MM:SS:FF".
func (m MSF) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", m.Min, m.Sec, m.Frame)
}

// LBAToMSF converts a logical block address to an MSF address.
func LBAToMSF(lba int) MSF {
	lba += LBAOffset
	return MSF{
		Min:   lba / (60 * FramesPerSecond),
		Sec:   (lba / FramesPerSecond) % 60,
		Frame: lba % FramesPerSecond,
	}
}

// SynthesizePregap builds numSectors worth of Red-Book pregap: for a data
// track, sync + Mode 1 header with incrementing MSF and zeroed user data;
// for an audio track, silence. startLBA is the pregap's own first LBA
// (typically the track's start minus 150).
func SynthesizePregap(numSectors int, dataTrack bool, startLBA int) [][]byte {
	sectors := make([][]byte, numSectors)
	for i := 0; i < numSectors; i++ {
		if !dataTrack {
			sectors[i] = make([]byte, 2352)
			continue
		}
		sector := make([]byte, 2352)
		copy(sector[0:12], cdSyncPattern[:])
		msf := LBAToMSF(startLBA + i)
		sector[12] = bcd(msf.Min)
		sector[13] = bcd(msf.Sec)
		sector[14] = bcd(msf.Frame)
		sector[15] = 1 // Mode 1
		sectors[i] = sector
	}
	return sectors
}

// cdSyncPattern is the 12-byte CD-ROM sector sync pattern that precedes
// every Mode 1/Mode 2 sector header.
var cdSyncPattern = [12]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

func bcd(v int) byte {
	return byte((v/10)<<4 | (v % 10))
}

// InterleaveQ16ToPW96 expands a compact 16-byte Q-only subchannel encoding
// into a 96-byte interleaved P..W block, zeroing every channel but Q. This
// is the MDX fragment's subchannel post-processing step (spec section 4.5):
// 12 bytes of Q data (already byte-deinterleaved) are spread one bit per
// output byte across the Q channel's bit position.
func InterleaveQ16ToPW96(q16 []byte) []byte {
	out := make([]byte, 96)
	for byteIdx := 0; byteIdx < 12 && byteIdx < len(q16); byteIdx++ {
		b := q16[byteIdx]
		for bit := 0; bit < 8; bit++ {
			frameIdx := byteIdx*8 + bit
			if (b>>(7-bit))&1 != 0 {
				out[frameIdx] |= 0x40 // Q is the second-most-significant bit (P=0x80, Q=0x40)
			}
		}
	}
	return out
}
