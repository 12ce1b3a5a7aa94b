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

// Package mirage provides a uniform object model (Disc, Session, Track,
// Fragment) over optical-disc image files produced by CloneCD, BlindWrite,
// CUE-sheet, DaemonTools and PowerISO tools.
package mirage

import "errors"

// Error kinds shared by every back-end. Parsers and fragments wrap one of
// these with fmt.Errorf("%w: ...", Kind) so callers can classify failures
// with errors.Is without depending on a specific back-end's error types.
var (
	// ErrIO indicates a backing file open/seek/read failed.
	ErrIO = errors.New("mirage: i/o error")

	// ErrFormat indicates a signature, magic, size, CRC, or structural
	// field mismatch, including a non-terminal zlib/LZMA return status.
	ErrFormat = errors.New("mirage: format error")

	// ErrEncryptedNoPassword indicates the image is encrypted and neither
	// a salt-derived nor a user-supplied password succeeded.
	ErrEncryptedNoPassword = errors.New("mirage: encrypted image, no usable password")

	// ErrDecrypt indicates a cipher primitive failed, or a post-decrypt
	// structural check (magic, CRC) failed.
	ErrDecrypt = errors.New("mirage: decryption failed")

	// ErrDecompress indicates an input/output size mismatch or a
	// non-terminal inflate/LZMA status.
	ErrDecompress = errors.New("mirage: decompression failed")

	// ErrInvalidArgument indicates a caller-supplied value is out of
	// range or otherwise invalid (sector address, buffer length, ...).
	ErrInvalidArgument = errors.New("mirage: invalid argument")
)
