// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package xmlfile

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
)

// roundTrip writes two chunks through a Writer and reads the file
// back through OpenReader.
func roundTrip(t *testing.T, stream StreamType, compression Compression) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), FileName(stream, compression))
	writer, err := NewWriter(path, stream, compression, 2)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.AddChunk("<package>first</package>\n"); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if err := writer.AddChunk("<package>second</package>\n"); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, closeReader, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer closeReader()

	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	return string(content)
}

func TestRoundTripAllCompressionModes(t *testing.T) {
	for _, compression := range []Compression{
		CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4,
	} {
		t.Run(compression.String(), func(t *testing.T) {
			content := roundTrip(t, StreamPrimary, compression)

			if !strings.HasPrefix(content, `<?xml version="1.0" encoding="UTF-8"?>`) {
				t.Error("missing XML declaration")
			}
			if !strings.Contains(content, `packages="2"`) {
				t.Error("missing package count")
			}
			if !strings.Contains(content, "<package>first</package>") ||
				!strings.Contains(content, "<package>second</package>") {
				t.Error("missing chunks")
			}
			if !strings.HasSuffix(content, "</metadata>\n") {
				t.Errorf("missing document close, got tail %q", content[max(0, len(content)-40):])
			}
		})
	}
}

func TestStreamDocumentElements(t *testing.T) {
	tests := []struct {
		stream    StreamType
		element   string
		namespace string
	}{
		{StreamPrimary, "metadata", "metadata/common"},
		{StreamFilelists, "filelists", "metadata/filelists"},
		{StreamOther, "otherdata", "metadata/other"},
	}
	for _, tt := range tests {
		content := roundTrip(t, tt.stream, CompressionNone)
		if !strings.Contains(content, "<"+tt.element+" xmlns=") {
			t.Errorf("%s: missing document element %q", tt.stream, tt.element)
		}
		if !strings.Contains(content, tt.namespace) {
			t.Errorf("%s: missing namespace %q", tt.stream, tt.namespace)
		}
	}

	// Only primary declares the rpm namespace.
	primary := roundTrip(t, StreamPrimary, CompressionNone)
	if !strings.Contains(primary, "xmlns:rpm=") {
		t.Error("primary stream missing rpm namespace")
	}
	other := roundTrip(t, StreamOther, CompressionNone)
	if strings.Contains(other, "xmlns:rpm=") {
		t.Error("other stream declares rpm namespace")
	}
}

func TestAddChunkAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "primary.xml")
	writer, err := NewWriter(path, StreamPrimary, CompressionNone, 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := writer.AddChunk("<package/>\n"); err == nil {
		t.Error("AddChunk after Close did not fail")
	}
	// Double close is a no-op.
	if err := writer.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestParseCompressionRoundTrip(t *testing.T) {
	for _, compression := range []Compression{
		CompressionGzip, CompressionZstd, CompressionLZ4, CompressionNone,
	} {
		parsed, err := ParseCompression(compression.String())
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", compression.String(), err)
		}
		if parsed != compression {
			t.Errorf("ParseCompression(%q) = %v", compression.String(), parsed)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression(brotli) did not fail")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(StreamPrimary, CompressionGzip); got != "primary.xml.gz" {
		t.Errorf("FileName = %q", got)
	}
	if got := FileName(StreamOther, CompressionNone); got != "other.xml" {
		t.Errorf("FileName = %q", got)
	}
	if got := FileName(StreamFilelists, CompressionZstd); got != "filelists.xml.zst" {
		t.Errorf("FileName = %q", got)
	}
}
