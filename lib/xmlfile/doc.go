// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package xmlfile writes the repository's XML stream files.
//
// A [Writer] owns one output stream (primary, filelists, or other):
// it emits the XML declaration and document element with the total
// package count, accepts pre-rendered per-package chunks in order via
// AddChunk, and closes the document element on Close. Chunk ordering
// is the caller's responsibility — the parallel dumper's ordered sink
// guarantees it.
//
// Streams are optionally compressed. Gzip is the compatible default;
// zstd and lz4 are offered for consumers that understand them, and
// "none" writes plain XML. [OpenReader] reverses the choice by file
// extension when a previous run's metadata is read back.
package xmlfile
