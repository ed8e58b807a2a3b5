// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitedb mirrors the XML streams into SQLite databases.
//
// Each stream gets its own database file (primary.sqlite,
// filelists.sqlite, other.sqlite) holding the same projection as the
// corresponding XML stream, for consumers that prefer queries over
// parsing. Inserts arrive pre-serialized in global package order —
// the dumper's ordered sink calls AddPackage under the same per-
// stream mutex that orders the XML appends — so a [DB] needs no
// internal ordering of its own.
//
// Connections come from a small pool wrapping zombiezen.com/go/sqlite
// with WAL journaling and relaxed synchronous mode: the databases are
// build artifacts, regenerated on the next run if a machine crash
// corrupts them.
package sqlitedb
