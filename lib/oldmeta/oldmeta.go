// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package oldmeta

import (
	"io/fs"
	"log/slog"
	"path"

	"github.com/repoforge/repoforge/lib/rpm"
)

// Metadata is the previous run's package set, keyed by artifact file
// name. Read-shared across workers; see the package comment for the
// mutation discipline.
type Metadata struct {
	byFilename map[string]*rpm.Package
	logger     *slog.Logger
}

// New returns an empty metadata set. A nil logger discards messages.
func New(logger *slog.Logger) *Metadata {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Metadata{
		byFilename: make(map[string]*rpm.Package),
		logger:     logger,
	}
}

// ByFilename returns the cached package for an artifact file name,
// or nil when the previous run did not know it.
func (m *Metadata) ByFilename(name string) *rpm.Package {
	return m.byFilename[name]
}

// Len returns the number of cached packages.
func (m *Metadata) Len() int {
	return len(m.byFilename)
}

// add registers a package under the base name of its location. Later
// duplicates win — a repository should not contain two artifacts with
// the same file name, and if it somehow does, the later projection is
// the one the previous run emitted last.
func (m *Metadata) add(pkg *rpm.Package) {
	name := path.Base(pkg.LocationHref)
	if name == "" || name == "." || name == "/" {
		m.logger.Warn("cached package has no usable location", "package", pkg.Name)
		return
	}
	m.byFilename[name] = pkg
}

// Fresh reports whether a cache entry still describes the file: same
// mtime, same size, and digested with the kind the current run uses.
func Fresh(entry *rpm.Package, stat fs.FileInfo, checksumKind string) bool {
	return entry.TimeFile == stat.ModTime().Unix() &&
		entry.SizePackage == stat.Size() &&
		entry.ChecksumKind == checksumKind
}

// RebindLocation points a reused cache entry at its location in the
// new run's layout. This mutates the shared entry in place; the
// caller must be the only worker touching this file name (the task
// producer guarantees it).
func RebindLocation(entry *rpm.Package, href, base string) {
	entry.LocationHref = href
	entry.LocationBase = base
}
