// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package xmlfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// StreamType identifies which projection a writer emits.
type StreamType int

const (
	StreamPrimary StreamType = iota
	StreamFilelists
	StreamOther
)

// String returns the stream's conventional name, which is also the
// base of its file name.
func (s StreamType) String() string {
	switch s {
	case StreamPrimary:
		return "primary"
	case StreamFilelists:
		return "filelists"
	case StreamOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// namespace returns the document element's XML namespace.
func (s StreamType) namespace() string {
	switch s {
	case StreamPrimary:
		return "http://linux.duke.edu/metadata/common"
	case StreamFilelists:
		return "http://linux.duke.edu/metadata/filelists"
	default:
		return "http://linux.duke.edu/metadata/other"
	}
}

// documentElement returns the stream's document element name.
func (s StreamType) documentElement() string {
	switch s {
	case StreamPrimary:
		return "metadata"
	case StreamFilelists:
		return "filelists"
	default:
		return "otherdata"
	}
}

// Compression selects the stream file encoding.
type Compression int

const (
	// CompressionGzip is the default — every consumer understands it.
	CompressionGzip Compression = iota

	// CompressionZstd for modern consumers; better ratio and much
	// faster decompression than gzip.
	CompressionZstd

	// CompressionLZ4 trades ratio for the fastest decompression.
	CompressionLZ4

	// CompressionNone writes plain XML.
	CompressionNone
)

// String returns the canonical compression name used in
// configuration files and flags.
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// ParseCompression parses a compression mode name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none", "plain":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression mode: %q", name)
	}
}

// Extension returns the file-name suffix the mode appends to ".xml".
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// Writer emits one XML stream file. Not safe for concurrent use; the
// dumper serializes access per stream.
type Writer struct {
	stream StreamType
	path   string

	file    *os.File
	encoder io.Writer
	// closers are run in order on Close, innermost first.
	closers []func() error

	closed bool
}

// NewWriter creates the stream file at path, sets up the compression
// chain, and writes the XML declaration and document element carrying
// packageCount.
func NewWriter(path string, stream StreamType, compression Compression, packageCount int) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("xmlfile: creating %s: %w", path, err)
	}

	w := &Writer{stream: stream, path: path, file: file}

	switch compression {
	case CompressionGzip:
		gz := gzip.NewWriter(file)
		w.encoder = gz
		w.closers = append(w.closers, gz.Close)
	case CompressionZstd:
		zw, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("xmlfile: zstd encoder: %w", err)
		}
		w.encoder = zw
		w.closers = append(w.closers, zw.Close)
	case CompressionLZ4:
		lw := lz4.NewWriter(file)
		w.encoder = lw
		w.closers = append(w.closers, lw.Close)
	case CompressionNone:
		buffered := bufio.NewWriter(file)
		w.encoder = buffered
		w.closers = append(w.closers, buffered.Flush)
	default:
		file.Close()
		return nil, fmt.Errorf("xmlfile: unsupported compression: %d", int(compression))
	}

	header := fmt.Sprintf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"+
		"<%s xmlns=\"%s\"%s packages=\"%d\">\n",
		stream.documentElement(), stream.namespace(),
		primaryRPMNamespace(stream), packageCount)
	if _, err := io.WriteString(w.encoder, header); err != nil {
		w.abort()
		return nil, fmt.Errorf("xmlfile: writing %s header: %w", stream, err)
	}

	return w, nil
}

// primaryRPMNamespace returns the extra rpm namespace declaration the
// primary stream carries.
func primaryRPMNamespace(stream StreamType) string {
	if stream == StreamPrimary {
		return ` xmlns:rpm="http://linux.duke.edu/metadata/rpm"`
	}
	return ""
}

// AddChunk appends one pre-rendered package chunk to the stream.
func (w *Writer) AddChunk(chunk string) error {
	if w.closed {
		return fmt.Errorf("xmlfile: %s stream already closed", w.stream)
	}
	if _, err := io.WriteString(w.encoder, chunk); err != nil {
		return fmt.Errorf("xmlfile: appending to %s stream: %w", w.stream, err)
	}
	return nil
}

// Close writes the closing document element, flushes the compression
// chain, and closes the file. Calling it again is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := io.WriteString(w.encoder, "</"+w.stream.documentElement()+">\n"); err != nil {
		w.abort()
		return fmt.Errorf("xmlfile: writing %s footer: %w", w.stream, err)
	}
	for _, close := range w.closers {
		if err := close(); err != nil {
			w.file.Close()
			return fmt.Errorf("xmlfile: finalizing %s stream: %w", w.stream, err)
		}
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("xmlfile: closing %s: %w", w.path, err)
	}
	return nil
}

// abort tears the writer down after an unrecoverable error.
func (w *Writer) abort() {
	w.closed = true
	w.file.Close()
}

// Path returns the file the writer emits.
func (w *Writer) Path() string {
	return w.path
}

// FileName returns the conventional file name for a stream with the
// given compression, e.g. "primary.xml.gz".
func FileName(stream StreamType, compression Compression) string {
	return stream.String() + ".xml" + compression.Extension()
}

// OpenReader opens a stream file for reading, reversing the
// compression by file extension. The returned closer releases both
// the decompressor and the underlying file.
func OpenReader(path string) (io.Reader, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("xmlfile: opening %s: %w", path, err)
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("xmlfile: gzip reader for %s: %w", path, err)
		}
		return gz, func() error {
			gz.Close()
			return file.Close()
		}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("xmlfile: zstd reader for %s: %w", path, err)
		}
		return zr.IOReadCloser(), func() error {
			zr.Close()
			return file.Close()
		}, nil
	case strings.HasSuffix(path, ".lz4"):
		return lz4.NewReader(file), file.Close, nil
	default:
		return file, file.Close, nil
	}
}
