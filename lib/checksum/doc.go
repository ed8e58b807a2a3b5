// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package checksum computes content digests of artifact files.
//
// Five digest kinds are supported: MD5 and SHA-1 for compatibility
// with ancient repositories, SHA-256 (the default), SHA-512, and
// BLAKE3 for repositories whose consumers understand it. Digests are
// always rendered as lowercase hex strings — that is the canonical
// form stored in metadata and compared during cache-freshness checks.
//
// The optional [Cache] memoizes digests on disk keyed by the file's
// identity (absolute path, mtime, size), so a repository rebuild does
// not rehash artifacts that have not changed since the previous run.
// Cache entries are small CBOR records; a corrupt or stale entry is
// ignored and recomputed, never trusted.
package checksum
