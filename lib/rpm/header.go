// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package rpm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformed wraps all structural parse failures: bad magic,
// truncated sections, index entries pointing outside the data region.
// I/O failures are returned unwrapped so callers can distinguish the
// two with errors.Is.
var ErrMalformed = errors.New("rpm: malformed package")

// Section layout constants.
const (
	leadSize = 96

	// sectionPreambleSize covers the header magic (3 bytes), version
	// (1 byte), 4 reserved bytes, the entry count and the data-region
	// size (4 bytes each, big-endian).
	sectionPreambleSize = 16

	indexEntrySize = 16

	// maxSectionSize bounds a single header section. Real packages
	// stay well under this; a declared size beyond it means a corrupt
	// or hostile file.
	maxSectionSize = 256 << 20
)

var (
	leadMagic    = []byte{0xed, 0xab, 0xee, 0xdb}
	sectionMagic = []byte{0x8e, 0xad, 0xe8, 0x01}
)

// Index entry data types.
const (
	typeNull        = 0
	typeChar        = 1
	typeInt8        = 2
	typeInt16       = 3
	typeInt32       = 4
	typeInt64       = 5
	typeString      = 6
	typeBin         = 7
	typeStringArray = 8
	typeI18NString  = 9
)

// indexEntry locates one tag's values inside a section's data region.
type indexEntry struct {
	dataType uint32
	offset   uint32
	count    uint32
}

// section is a decoded header section: the tag index plus the raw
// data region the index points into.
type section struct {
	entries map[int]indexEntry
	data    []byte
}

// readSectionPreamble reads and validates the 16-byte preamble,
// returning the entry count and data-region size.
func readSectionPreamble(r io.Reader) (entryCount, dataSize uint32, err error) {
	var preamble [sectionPreambleSize]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return 0, 0, fmt.Errorf("reading header preamble: %w", err)
	}
	if !bytes.Equal(preamble[0:4], sectionMagic) {
		return 0, 0, fmt.Errorf("%w: bad header magic % x", ErrMalformed, preamble[0:4])
	}

	entryCount = binary.BigEndian.Uint32(preamble[8:12])
	dataSize = binary.BigEndian.Uint32(preamble[12:16])

	total := uint64(entryCount)*indexEntrySize + uint64(dataSize)
	if total > maxSectionSize {
		return 0, 0, fmt.Errorf("%w: header section of %d bytes exceeds limit", ErrMalformed, total)
	}
	return entryCount, dataSize, nil
}

// sectionSize returns the total byte size of a section with the given
// entry count and data size, excluding the preamble.
func sectionSize(entryCount, dataSize uint32) int64 {
	return int64(entryCount)*indexEntrySize + int64(dataSize)
}

// signaturePadding returns the number of alignment bytes following a
// signature section. The signature header is padded so the main
// header starts on an 8-byte boundary; the main header itself is not
// padded.
func signaturePadding(size int64) int64 {
	return (8 - (size % 8)) % 8
}

// readSection decodes a full header section from r. The returned
// size is the total bytes consumed, preamble included.
func readSection(r io.Reader) (*section, int64, error) {
	entryCount, dataSize, err := readSectionPreamble(r)
	if err != nil {
		return nil, 0, err
	}

	indexBytes := make([]byte, int(entryCount)*indexEntrySize)
	if _, err := io.ReadFull(r, indexBytes); err != nil {
		return nil, 0, fmt.Errorf("reading header index: %w", err)
	}
	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, 0, fmt.Errorf("reading header data: %w", err)
	}

	entries := make(map[int]indexEntry, entryCount)
	for i := 0; i < int(entryCount); i++ {
		raw := indexBytes[i*indexEntrySize : (i+1)*indexEntrySize]
		tag := int(int32(binary.BigEndian.Uint32(raw[0:4])))
		entry := indexEntry{
			dataType: binary.BigEndian.Uint32(raw[4:8]),
			offset:   binary.BigEndian.Uint32(raw[8:12]),
			count:    binary.BigEndian.Uint32(raw[12:16]),
		}
		if entry.offset > dataSize {
			return nil, 0, fmt.Errorf("%w: tag %d data offset %d beyond region of %d bytes",
				ErrMalformed, tag, entry.offset, dataSize)
		}
		entries[tag] = entry
	}

	size := sectionPreambleSize + sectionSize(entryCount, dataSize)
	return &section{entries: entries, data: data}, size, nil
}

// skipSection consumes a section without decoding it, returning the
// number of bytes consumed including the preamble.
func skipSection(r io.ReadSeeker) (int64, error) {
	entryCount, dataSize, err := readSectionPreamble(r)
	if err != nil {
		return 0, err
	}
	body := sectionSize(entryCount, dataSize)
	if _, err := r.Seek(body, io.SeekCurrent); err != nil {
		return 0, fmt.Errorf("skipping header section: %w", err)
	}
	return sectionPreambleSize + body, nil
}

// cstring extracts a NUL-terminated string starting at offset.
func (s *section) cstring(offset uint32) (string, error) {
	if int(offset) >= len(s.data) {
		return "", fmt.Errorf("%w: string offset %d beyond data region", ErrMalformed, offset)
	}
	end := bytes.IndexByte(s.data[offset:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string at offset %d", ErrMalformed, offset)
	}
	return string(s.data[offset : int(offset)+end]), nil
}

// String returns the value of a STRING or I18NSTRING tag. For
// I18NSTRING the first (C locale) variant is returned. Missing tags
// yield the empty string — most descriptive tags are optional.
func (s *section) String(tag int) string {
	entry, ok := s.entries[tag]
	if !ok {
		return ""
	}
	switch entry.dataType {
	case typeString, typeI18NString:
		value, err := s.cstring(entry.offset)
		if err != nil {
			return ""
		}
		return value
	default:
		return ""
	}
}

// StringArray returns all values of a STRING_ARRAY tag, or nil if the
// tag is absent or malformed.
func (s *section) StringArray(tag int) []string {
	entry, ok := s.entries[tag]
	if !ok || entry.dataType != typeStringArray {
		return nil
	}
	values := make([]string, 0, entry.count)
	offset := entry.offset
	for i := uint32(0); i < entry.count; i++ {
		value, err := s.cstring(offset)
		if err != nil {
			return nil
		}
		values = append(values, value)
		offset += uint32(len(value)) + 1
	}
	return values
}

// Uint64 returns the first value of a numeric tag, or 0 if absent.
func (s *section) Uint64(tag int) uint64 {
	values := s.Uint64Array(tag)
	if len(values) == 0 {
		return 0
	}
	return values[0]
}

// Uint64Array returns all values of a numeric tag (INT8 through
// INT64), or nil if the tag is absent or not numeric.
func (s *section) Uint64Array(tag int) []uint64 {
	entry, ok := s.entries[tag]
	if !ok {
		return nil
	}

	var width uint32
	switch entry.dataType {
	case typeChar, typeInt8:
		width = 1
	case typeInt16:
		width = 2
	case typeInt32:
		width = 4
	case typeInt64:
		width = 8
	default:
		return nil
	}

	end := uint64(entry.offset) + uint64(entry.count)*uint64(width)
	if end > uint64(len(s.data)) {
		return nil
	}

	values := make([]uint64, entry.count)
	for i := uint32(0); i < entry.count; i++ {
		raw := s.data[entry.offset+i*width:]
		switch width {
		case 1:
			values[i] = uint64(raw[0])
		case 2:
			values[i] = uint64(binary.BigEndian.Uint16(raw))
		case 4:
			values[i] = uint64(binary.BigEndian.Uint32(raw))
		case 8:
			values[i] = binary.BigEndian.Uint64(raw)
		}
	}
	return values
}

// readLead validates the 96-byte lead at the start of the file.
func readLead(r io.Reader) error {
	var lead [leadSize]byte
	if _, err := io.ReadFull(r, lead[:]); err != nil {
		return fmt.Errorf("reading lead: %w", err)
	}
	if !bytes.Equal(lead[0:4], leadMagic) {
		return fmt.Errorf("%w: bad lead magic % x", ErrMalformed, lead[0:4])
	}
	return nil
}

// HeaderRange returns the byte range [start, end) that the main
// header occupies within the file at path: it begins after the lead,
// the signature header, and the signature's alignment padding, and
// ends where the payload begins.
func HeaderRange(path string) (start, end int64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("rpm: opening %s: %w", path, err)
	}
	defer file.Close()

	if err := readLead(file); err != nil {
		return 0, 0, fmt.Errorf("rpm: %s: %w", path, err)
	}

	signatureSize, err := skipSection(file)
	if err != nil {
		return 0, 0, fmt.Errorf("rpm: %s: signature header: %w", path, err)
	}
	padding := signaturePadding(signatureSize)
	if _, err := file.Seek(padding, io.SeekCurrent); err != nil {
		return 0, 0, fmt.Errorf("rpm: %s: seeking past signature padding: %w", path, err)
	}

	start = leadSize + signatureSize + padding

	entryCount, dataSize, err := readSectionPreamble(file)
	if err != nil {
		return 0, 0, fmt.Errorf("rpm: %s: main header: %w", path, err)
	}
	end = start + sectionPreambleSize + sectionSize(entryCount, dataSize)
	return start, end, nil
}
