// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package repomd writes the repomd.xml index that describes the
// generated metadata files: for each one, its location, digest,
// uncompressed digest, sizes, and timestamp. Consumers read this
// index first and fetch only the projections they need.
package repomd

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/repoforge/repoforge/lib/checksum"
	"github.com/repoforge/repoforge/lib/xmlfile"
)

// databaseVersion is the schema generation advertised for SQLite
// mirror records. Matches lib/sqlitedb's schema version.
const databaseVersion = 10

// Record describes one generated metadata file.
type Record struct {
	// Type is the record identity ("primary", "filelists_db", ...).
	Type string

	// Href is the file location relative to the repository root.
	Href string

	// Checksum is the digest of the file as stored; OpenChecksum the
	// digest of its uncompressed content (equal for uncompressed
	// files).
	Checksum     string
	OpenChecksum string

	// Size and OpenSize follow the same stored/uncompressed split.
	Size     int64
	OpenSize int64

	// Timestamp is the file's mtime.
	Timestamp int64

	// DatabaseVersion is non-zero only for database mirror records.
	DatabaseVersion int
}

// Repomd accumulates records and renders the index document.
type Repomd struct {
	kind     checksum.Kind
	revision int64
	records  []Record
}

// New returns an empty index using the given digest kind for all
// record checksums. The revision defaults to the current time.
func New(kind checksum.Kind) *Repomd {
	return &Repomd{kind: kind, revision: time.Now().Unix()}
}

// SetRevision overrides the revision stamp (useful for reproducible
// output).
func (r *Repomd) SetRevision(revision int64) {
	r.revision = revision
}

// AddFile records a metadata file. The href is the path relative to
// the repository root; path locates the file on disk. The open
// checksum and size are computed by decompressing according to the
// file extension.
func (r *Repomd) AddFile(recordType, href, path string) error {
	record, err := r.describe(recordType, href, path)
	if err != nil {
		return err
	}
	r.records = append(r.records, record)
	return nil
}

// AddDatabase records a SQLite mirror file, which additionally
// advertises the database schema generation.
func (r *Repomd) AddDatabase(recordType, href, path string) error {
	record, err := r.describe(recordType, href, path)
	if err != nil {
		return err
	}
	record.DatabaseVersion = databaseVersion
	r.records = append(r.records, record)
	return nil
}

// describe stats and digests one file.
func (r *Repomd) describe(recordType, href, path string) (Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Record{}, fmt.Errorf("repomd: stat %s: %w", path, err)
	}

	digest, err := checksum.Sum(path, r.kind)
	if err != nil {
		return Record{}, fmt.Errorf("repomd: %w", err)
	}

	record := Record{
		Type:      recordType,
		Href:      href,
		Checksum:  digest,
		Size:      info.Size(),
		Timestamp: info.ModTime().Unix(),
	}

	if isCompressed(path) {
		openDigest, openSize, err := r.openDigest(path)
		if err != nil {
			return Record{}, err
		}
		record.OpenChecksum = openDigest
		record.OpenSize = openSize
	} else {
		record.OpenChecksum = digest
		record.OpenSize = info.Size()
	}
	return record, nil
}

// isCompressed reports whether the file carries a compression
// extension the stream writers produce.
func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".gz") ||
		strings.HasSuffix(path, ".zst") ||
		strings.HasSuffix(path, ".lz4")
}

// openDigest computes the digest and size of a file's uncompressed
// content.
func (r *Repomd) openDigest(path string) (string, int64, error) {
	reader, closeReader, err := xmlfile.OpenReader(path)
	if err != nil {
		return "", 0, fmt.Errorf("repomd: %w", err)
	}
	defer closeReader()

	hasher, err := r.kind.New()
	if err != nil {
		return "", 0, fmt.Errorf("repomd: %w", err)
	}
	size, err := io.Copy(hasher, reader)
	if err != nil {
		return "", 0, fmt.Errorf("repomd: reading %s: %w", path, err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), size, nil
}

// Render returns the index document.
func (r *Repomd) Render() string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString(`<repomd xmlns="http://linux.duke.edu/metadata/repo" xmlns:rpm="http://linux.duke.edu/metadata/rpm">` + "\n")
	b.WriteString("  <revision>" + strconv.FormatInt(r.revision, 10) + "</revision>\n")

	kindName := r.kind.String()
	for _, record := range r.records {
		b.WriteString(`  <data type="`)
		xml.EscapeText(&b, []byte(record.Type))
		b.WriteString("\">\n")

		b.WriteString(`    <checksum type="` + kindName + `">` + record.Checksum + "</checksum>\n")
		b.WriteString(`    <open-checksum type="` + kindName + `">` + record.OpenChecksum + "</open-checksum>\n")

		b.WriteString(`    <location href="`)
		xml.EscapeText(&b, []byte(record.Href))
		b.WriteString("\"/>\n")

		b.WriteString("    <timestamp>" + strconv.FormatInt(record.Timestamp, 10) + "</timestamp>\n")
		b.WriteString("    <size>" + strconv.FormatInt(record.Size, 10) + "</size>\n")
		b.WriteString("    <open-size>" + strconv.FormatInt(record.OpenSize, 10) + "</open-size>\n")
		if record.DatabaseVersion != 0 {
			b.WriteString("    <database_version>" + strconv.Itoa(record.DatabaseVersion) + "</database_version>\n")
		}
		b.WriteString("  </data>\n")
	}
	b.WriteString("</repomd>\n")
	return b.String()
}

// WriteFile renders the index to path.
func (r *Repomd) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(r.Render()), 0o644); err != nil {
		return fmt.Errorf("repomd: writing %s: %w", path, err)
	}
	return nil
}
