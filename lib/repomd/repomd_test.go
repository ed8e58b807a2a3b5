// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package repomd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/repoforge/repoforge/lib/checksum"
	"github.com/repoforge/repoforge/lib/xmlfile"
)

// writeStream produces a small compressed stream file to describe.
func writeStream(t *testing.T, dir string, compression xmlfile.Compression) string {
	t.Helper()
	path := filepath.Join(dir, xmlfile.FileName(xmlfile.StreamPrimary, compression))
	writer, err := xmlfile.NewWriter(path, xmlfile.StreamPrimary, compression, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.AddChunk("<package>content</package>\n"); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestAddFileCompressed(t *testing.T) {
	dir := t.TempDir()
	path := writeStream(t, dir, xmlfile.CompressionGzip)

	index := New(checksum.KindSHA256)
	index.SetRevision(1700000000)
	if err := index.AddFile("primary", "repodata/primary.xml.gz", path); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	record := index.records[0]
	if record.Checksum == record.OpenChecksum {
		t.Error("compressed file has identical stored and open checksums")
	}
	if record.OpenSize <= 0 {
		t.Errorf("open size = %d", record.OpenSize)
	}
	if record.Size <= 0 {
		t.Errorf("size = %d", record.Size)
	}

	// The stored checksum equals the digest of the file as written.
	stored, err := checksum.Sum(path, checksum.KindSHA256)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if record.Checksum != stored {
		t.Errorf("stored checksum = %s, want %s", record.Checksum, stored)
	}
}

func TestAddFileUncompressed(t *testing.T) {
	dir := t.TempDir()
	path := writeStream(t, dir, xmlfile.CompressionNone)

	index := New(checksum.KindSHA256)
	if err := index.AddFile("primary", "repodata/primary.xml", path); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	record := index.records[0]
	if record.Checksum != record.OpenChecksum {
		t.Error("uncompressed file: stored and open checksums differ")
	}
	if record.Size != record.OpenSize {
		t.Errorf("sizes differ: %d vs %d", record.Size, record.OpenSize)
	}
}

func TestRenderDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeStream(t, dir, xmlfile.CompressionGzip)

	index := New(checksum.KindSHA256)
	index.SetRevision(1700000000)
	if err := index.AddFile("primary", "repodata/primary.xml.gz", path); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := index.AddDatabase("primary_db", "repodata/primary.sqlite", path); err != nil {
		t.Fatalf("AddDatabase: %v", err)
	}

	doc := index.Render()
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<repomd xmlns="http://linux.duke.edu/metadata/repo"`,
		"<revision>1700000000</revision>",
		`<data type="primary">`,
		`<data type="primary_db">`,
		`<location href="repodata/primary.xml.gz"/>`,
		"<database_version>10</database_version>",
		`<checksum type="sha256">`,
		`<open-checksum type="sha256">`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	// Only the database record advertises a schema generation.
	if strings.Count(doc, "<database_version>") != 1 {
		t.Error("database_version present on non-database records")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	stream := writeStream(t, dir, xmlfile.CompressionNone)

	index := New(checksum.KindSHA256)
	if err := index.AddFile("primary", "repodata/primary.xml", stream); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	out := filepath.Join(dir, "repomd.xml")
	if err := index.WriteFile(out); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	reader, closeReader, err := xmlfile.OpenReader(out)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer closeReader()
	_ = reader
}

func TestAddFileMissing(t *testing.T) {
	index := New(checksum.KindSHA256)
	if err := index.AddFile("primary", "x", filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("AddFile of missing file did not fail")
	}
}
