// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package dumper

import (
	"io/fs"

	"github.com/repoforge/repoforge/lib/rpm"
	"github.com/repoforge/repoforge/lib/xmldump"
)

// Task is one unit of work: a single artifact and its position in
// the global output order. Tasks are immutable after creation and
// exclusive to the worker that pulls them.
type Task struct {
	// ID is the task's position in the output order. Ids are dense:
	// a run over N artifacts uses exactly 0 through N-1.
	ID int

	// FullPath is the absolute path of the artifact file.
	FullPath string

	// Filename is the base name, the key into the previous run's
	// metadata.
	Filename string

	// Path is the directory part of FullPath.
	Path string
}

// StreamSink receives one stream's XML chunks in strict id order.
// Append errors are logged by the dumper and do not abort the run.
type StreamSink interface {
	AddChunk(chunk string) error
}

// PackageDB mirrors one stream into a database, receiving packages
// in the same order as the stream's chunks. Insert errors follow the
// same log-and-continue policy as appends.
type PackageDB interface {
	AddPackage(pkg *rpm.Package) error
}

// Cache is the previous run's metadata, consulted by artifact file
// name. Implementations are read-shared across workers; the returned
// package may be rebound and reused, see the package comment.
type Cache interface {
	ByFilename(name string) *rpm.Package
}

// ExtractFunc parses an artifact from disk into a package. The stat
// parameter carries the file info the worker already obtained for the
// cache-freshness check, or nil when stat was skipped — the extractor
// stats the file itself in that case.
type ExtractFunc func(fullPath, locationHref string, stat fs.FileInfo) (*rpm.Package, error)

// FormatFunc renders a package into the three stream chunks. It must
// be pure: the run's output order guarantee is only as good as the
// formatter's determinism.
type FormatFunc func(pkg *rpm.Package) (xmldump.Triple, error)
