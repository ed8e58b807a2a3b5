// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package oldmeta loads a previous run's metadata so unchanged
// artifacts can skip parsing and rehashing entirely.
//
// The three XML projections are read back (primary is required,
// filelists and other enrich it) and merged by package digest into
// full [rpm.Package] values, keyed by artifact file name. During a
// run the map is structurally frozen: workers only read it, and the
// single sanctioned mutation — [RebindLocation] on a reused entry —
// is race-free because the task list never contains the same file
// name twice.
//
// Freshness is a three-way comparison against the current file:
// mtime, size, and the digest kind the new run wants. A cache entry
// digested with a different algorithm is useless even if the file is
// untouched, since the digest would have to be recomputed anyway.
package oldmeta
