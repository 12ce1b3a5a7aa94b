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

package mdx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cdemu/go-mirage"
)

func init() {
	mirage.RegisterParser(".mdx", Open)
}

// fileStream adapts an *os.File to mirage.Stream.
type fileStream struct {
	f    *os.File
	size int64
}

func openFileStream(path string) (*fileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileStream{f: f, size: info.Size()}, nil
}

func (s *fileStream) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileStream) Size() int64                             { return s.size }

// Open parses the .mdx or MDSv2 .mds file at path into a mirage.Disc. It
// is registered with mirage.RegisterParser for the .mdx extension and
// normally reached via mirage.Open; the mds package also calls it
// directly once it has identified a .mds file as version 2.
func Open(path string, opts mirage.Options) (*mirage.Disc, error) {
	log := opts.ResolvedLogger()

	stream, err := openFileStream(path)
	if err != nil {
		return nil, fmt.Errorf("mdx: opening %s: %w", path, mirage.ErrIO)
	}

	hdr := make([]byte, 48)
	if _, err := stream.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("mdx: reading file header: %w", mirage.ErrIO)
	}
	fh, err := readFileHeader(bytes.NewReader(hdr))
	if err != nil {
		return nil, err
	}

	isMDX := fh.EncryptionHeaderOffset == noEncryptionHeaderOffset
	log.Debugf("mdx: opened %s, version %d.%d, mdx=%v", path, fh.VersionMajor, fh.VersionMinor, isMDX)

	descriptorData, err := loadDescriptor(stream, fh, opts)
	if err != nil {
		return nil, err
	}

	disc, err := parseDescriptor(descriptorData, stream, path, isMDX, opts)
	if err != nil {
		return nil, err
	}

	return disc, nil
}

// loadDescriptor returns the decrypted, decompressed MDS descriptor bytes
// (18-byte signature prefix followed by the descriptor header and all the
// blocks it references). Both MDX and MDSv2 files carry their descriptor
// encrypted and zlib-compressed behind a 512-byte encryption header; they
// differ only in how that header is located. In an MDX file, the 48-byte
// file header is followed by an 8-byte footer offset and an 8-byte footer
// length, and the encryption header sits at
// footer_offset+footer_length-64. In an MDSv2 file, the file header's own
// EncryptionHeaderOffset field points at it directly, and the descriptor
// itself sits right after the 48-byte file header.
func loadDescriptor(stream *fileStream, fh *fileHeader, opts mirage.Options) ([]byte, error) {
	isMDX := fh.EncryptionHeaderOffset == noEncryptionHeaderOffset

	var mdxFooterOffset, mdxFooterLength uint64
	var encHeaderOffset int64

	if isMDX {
		trailer := make([]byte, 16)
		if _, err := stream.ReadAt(trailer, 48); err != nil {
			return nil, fmt.Errorf("mdx: reading MDX footer offset/length: %w", mirage.ErrIO)
		}
		mdxFooterOffset = binary.LittleEndian.Uint64(trailer[0:8])
		mdxFooterLength = binary.LittleEndian.Uint64(trailer[8:16])
		encHeaderOffset = int64(mdxFooterOffset+mdxFooterLength) - pkcs5SaltSize
	} else {
		encHeaderOffset = int64(fh.EncryptionHeaderOffset)
	}

	raw := make([]byte, headerTotalLen)
	if _, err := stream.ReadAt(raw, encHeaderOffset); err != nil {
		return nil, fmt.Errorf("mdx: reading descriptor encryption header: %w", mirage.ErrIO)
	}

	var salt [pkcs5SaltSize]byte
	copy(salt[:], raw[:pkcs5SaltSize])
	password := derivePasswordlessKey(salt)

	header, err := decipherEncryptionHeader(raw, password, true)
	if err != nil {
		return nil, fmt.Errorf("mdx: deciphering descriptor header: %w", err)
	}

	var descriptorOffset int64
	var descriptorSize uint64
	if isMDX {
		// In MDX, descriptor data is located at the start of the footer.
		descriptorOffset = int64(mdxFooterOffset)
		descriptorSize = mdxFooterLength - pkcs5SaltSize
	} else {
		// In MDSv2, descriptor data follows the 48-byte file header.
		descriptorOffset = 48
		descriptorSize = uint64(fh.EncryptionHeaderOffset) - 48
	}

	// The descriptor is encrypted with AES-256, so it is padded to a
	// multiple of the 16-byte block size; header.CompressedSize records
	// its original, unpadded size.
	expectedSize := ((uint64(header.CompressedSize) + 15) / 16) * 16
	if descriptorSize != expectedSize {
		return nil, fmt.Errorf("mdx: descriptor size sanity check failed: expected %d, found %d: %w", expectedSize, descriptorSize, mirage.ErrFormat)
	}

	compressed := make([]byte, descriptorSize)
	if _, err := stream.ReadAt(compressed, descriptorOffset); err != nil {
		return nil, fmt.Errorf("mdx: reading descriptor data: %w", mirage.ErrIO)
	}

	descriptor, err := decipherAndDecompressDescriptor(compressed, header)
	if err != nil {
		return nil, err
	}

	// The first 18 bytes of the returned descriptor are left zeroed by
	// decipherAndDecompressDescriptor; fill them in with the file
	// header's own signature and version fields, since offsets recorded
	// inside the descriptor are relative to this 18-byte prefix.
	copy(descriptor[:16], fh.MediaDescriptor[:])
	descriptor[16] = fh.VersionMajor
	descriptor[17] = fh.VersionMinor

	_ = opts
	return descriptor, nil
}

// parseDescriptor walks the decrypted descriptor buffer and builds the
// Disc. descriptorData[0:18] is the caller-supplied signature prefix
// (unused for parsing; offsets inside the descriptor are relative to it).
func parseDescriptor(descriptorData []byte, stream *fileStream, path string, isMDX bool, opts mirage.Options) (*mirage.Disc, error) {
	if len(descriptorData) < 18+96 {
		return nil, fmt.Errorf("mdx: descriptor too short: %w", mirage.ErrFormat)
	}

	dh, err := readDescriptorHeader(bytes.NewReader(descriptorData[18:]))
	if err != nil {
		return nil, err
	}

	disc := &mirage.Disc{}
	switch mediumType(dh.MediumType) {
	case mediumDVDROM:
		disc.Medium = mirage.MediumDVD
	default:
		disc.Medium = mirage.MediumCD
	}

	dataHeader, err := resolveDataEncryptionHeader(descriptorData, dh, opts)
	if err != nil {
		return nil, err
	}

	sessionsOffset := dh.SessionsBlocksOffset
	for i := 0; i < int(dh.NumSessions); i++ {
		off := int(sessionsOffset) + i*32
		if off+32 > len(descriptorData) {
			return nil, fmt.Errorf("mdx: session block %d out of range: %w", i, mirage.ErrFormat)
		}
		sb, err := readSessionBlock(bytes.NewReader(descriptorData[off : off+32]))
		if err != nil {
			return nil, err
		}

		session := mirage.Session{Number: int(sb.SessionNumber) + 1}
		tracks, err := parseTrackEntries(descriptorData, sb, stream, path, isMDX, disc.Medium, dataHeader)
		if err != nil {
			return nil, fmt.Errorf("mdx: session %d: %w", session.Number, err)
		}
		session.Tracks = tracks
		disc.Sessions = append(disc.Sessions, session)
	}

	return disc, nil
}

// resolveDataEncryptionHeader locates and deciphers the single encryption
// header guarding every encrypted track's payload in this image (its
// offset, relative to the descriptor, is recorded once in the descriptor
// header - unlike the per-image MDS descriptor header, there is no
// per-track encryption header). A nil, nil return means the image carries
// no encrypted track data.
func resolveDataEncryptionHeader(descriptorData []byte, dh *descriptorHeader, opts mirage.Options) (*EncryptionHeader, error) {
	if dh.EncryptionHeaderOffset == 0 {
		return nil, nil
	}

	off := int(dh.EncryptionHeaderOffset)
	if off+headerTotalLen > len(descriptorData) {
		return nil, fmt.Errorf("mdx: data encryption header out of range: %w", mirage.ErrFormat)
	}
	raw := descriptorData[off : off+headerTotalLen]

	var salt [pkcs5SaltSize]byte
	copy(salt[:], raw[:pkcs5SaltSize])

	// Some profiles (e.g. TAGES) protect track data without a user
	// password, using the same salt-derived key as the descriptor's own
	// header.
	if h, err := decipherEncryptionHeader(append([]byte(nil), raw...), derivePasswordlessKey(salt), false); err == nil {
		return h, nil
	}

	password, ok := resolvePassword(opts)
	if !ok {
		return nil, mirage.ErrEncryptedNoPassword
	}

	h, err := decipherEncryptionHeader(append([]byte(nil), raw...), []byte(password), false)
	if err != nil {
		return nil, fmt.Errorf("mdx: deciphering data encryption header (incorrect password?): %w", mirage.ErrDecrypt)
	}
	return h, nil
}

// sectorModeInfo pairs a converted track Format with the raw-sector size
// the reference parser validates each track block's declared sector
// size against.
func sectorModeInfo(tb *trackBlock) (mirage.Format, int, error) {
	mode := tb.mode()
	size := 0
	var format mirage.Format

	switch mode.SectorMode {
	case sectorAudio:
		format, size = mirage.FormatAudio, 2352
	case sectorMode1:
		format, size = mirage.FormatData, 2048
		if mode.HasSyncPattern {
			size += 12
		}
		if mode.HasHeader {
			size += 4
		}
		if mode.HasEDCECC {
			size += 288
		}
	case sectorMode2:
		format, size = mirage.FormatData, 2336
		if mode.HasSyncPattern {
			size += 12
		}
		if mode.HasHeader {
			size += 4
		}
	case sectorMode2Form1:
		format, size = mirage.FormatData, 2048
		if mode.HasSyncPattern {
			size += 12
		}
		if mode.HasHeader {
			size += 4
		}
		if mode.HasSubheader {
			size += 8
		}
		if mode.HasEDCECC {
			size += 280
		}
	case sectorMode2Form2:
		format, size = mirage.FormatData, 2324
		if mode.HasSyncPattern {
			size += 12
		}
		if mode.HasHeader {
			size += 4
		}
		if mode.HasSubheader {
			size += 8
		}
		if mode.HasEDCECC {
			size += 4
		}
	default:
		return 0, 0, fmt.Errorf("unsupported track mode 0x%X: %w", mode.SectorMode, mirage.ErrFormat)
	}
	return format, size, nil
}

func subchannelInfo(tb *trackBlock) (int, mirage.SubchannelFormat) {
	switch tb.subchannelSelection() {
	case subchannelQ:
		return 16, mirage.SubchannelQ16
	case subchannelPW, subchannelRW:
		return 96, mirage.SubchannelPW96
	default:
		return 0, mirage.SubchannelNone
	}
}

func parseTrackEntries(descriptorData []byte, sb *sessionBlock, stream *fileStream, path string, isMDX bool, medium mirage.MediumType, dataHeader *EncryptionHeader) ([]mirage.Track, error) {
	var tracks []mirage.Track
	base := int(sb.TracksBlocksOffset)

	for i := 0; i < int(sb.NumAllBlocks); i++ {
		off := base + i*80
		if off+80 > len(descriptorData) {
			return nil, fmt.Errorf("track block %d out of range: %w", i, mirage.ErrFormat)
		}
		tb, err := readTrackBlock(bytes.NewReader(descriptorData[off : off+80]))
		if err != nil {
			return nil, err
		}

		if tb.Point >= 99 {
			continue
		}

		format, expectedSize, err := sectorModeInfo(tb)
		if err != nil {
			return nil, err
		}
		subSize, subFmt := subchannelInfo(tb)
		if int(tb.SectorSize) != expectedSize {
			return nil, fmt.Errorf("track %d: sector size mismatch: expected %d, found %d: %w", tb.Point, expectedSize, tb.SectorSize, mirage.ErrFormat)
		}

		track := mirage.Track{Number: int(tb.Point), Mode: format}

		var pregapLen int
		if medium == mirage.MediumCD && tb.ExtraOffset != 0 {
			eoff := int(tb.ExtraOffset)
			if eoff+8 > len(descriptorData) {
				return nil, fmt.Errorf("track %d: extra block out of range: %w", tb.Point, mirage.ErrFormat)
			}
			eb, err := readTrackExtraBlock(bytes.NewReader(descriptorData[eoff : eoff+8]))
			if err != nil {
				return nil, err
			}
			pregapLen = int(eb.Pregap)
		}

		if tb.FooterOffset == 0 {
			return nil, fmt.Errorf("track %d: has no footer blocks: %w", tb.Point, mirage.ErrFormat)
		}

		fragments, length, err := buildFragments(descriptorData, tb, stream, path, isMDX, expectedSize, subSize, subFmt, dataHeader)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", tb.Point, err)
		}
		track.Fragments = fragments

		if pregapLen > 0 {
			track.Indices = append(track.Indices, mirage.Index{Number: 0, Start: 0})
			track.Indices = append(track.Indices, mirage.Index{Number: 1, Start: pregapLen})
		}

		_ = length
		tracks = append(tracks, track)
	}

	return tracks, nil
}

func buildFragments(descriptorData []byte, tb *trackBlock, stream *fileStream, path string, isMDX bool, mainSize, subSize int, subFmt mirage.SubchannelFormat, dataHeader *EncryptionHeader) ([]mirage.Fragment, int, error) {
	foff := int(tb.FooterOffset)
	var fragments []mirage.Fragment
	totalLength := 0

	for j := 0; j < int(tb.FooterCount); j++ {
		off := foff + j*32
		if off+32 > len(descriptorData) {
			return nil, 0, fmt.Errorf("footer block %d out of range: %w", j, mirage.ErrFormat)
		}
		foot, err := readFooter(bytes.NewReader(descriptorData[off : off+32]))
		if err != nil {
			return nil, 0, err
		}

		var dataStream mirage.Stream
		var dataOffset int64

		if isMDX {
			if foot.FilenameOffset != 0 {
				return nil, 0, fmt.Errorf("footer %d: unexpected filename offset in MDX image: %w", j, mirage.ErrFormat)
			}
			dataStream = stream
			dataOffset = int64(tb.StartOffset)
		} else {
			name := readCString(descriptorData, int(foot.FilenameOffset))
			dataPath := resolveSiblingPath(path, name)
			fs, err := openFileStream(dataPath)
			if err != nil {
				return nil, 0, fmt.Errorf("footer %d: opening data file %q: %w", j, dataPath, mirage.ErrIO)
			}
			dataStream = fs
			dataOffset = int64(tb.StartOffset)
		}

		length := int(foot.TrackDataLength)

		frag, err := NewFragment(dataStream, dataOffset, mainSize, subSize, subFmt, length, dataHeader, foot)
		if err != nil {
			return nil, 0, err
		}
		fragments = append(fragments, frag)
		totalLength += length
	}

	return fragments, totalLength, nil
}

// resolvePassword tries an explicitly supplied password, then the
// prompt callback. The salt-derived passwordless fallback is tried by
// the caller first (it needs no resolution here since it doesn't come
// from Options).
func resolvePassword(opts mirage.Options) (string, bool) {
	if opts.Password != "" {
		return opts.Password, true
	}
	if opts.PasswordPrompt != nil {
		return opts.PasswordPrompt()
	}
	return "", false
}

func readCString(data []byte, offset int) string {
	if offset <= 0 || offset >= len(data) {
		return ""
	}
	end := bytes.IndexByte(data[offset:], 0)
	if end < 0 {
		end = len(data) - offset
	}
	return string(data[offset : offset+end])
}

func resolveSiblingPath(descriptorPath, filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	return filepath.Join(filepath.Dir(descriptorPath), filepath.Base(filename))
}
