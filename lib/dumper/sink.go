// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package dumper

import (
	"log/slog"
	"sync"

	"github.com/repoforge/repoforge/lib/rpm"
	"github.com/repoforge/repoforge/lib/xmldump"
)

// stream is one output stream's ordering state: the next id due, the
// condition workers wait on, and the sinks that consume the records.
type stream struct {
	name string
	sink StreamSink
	db   PackageDB // nil when no database mirror is configured

	mu   sync.Mutex
	cond *sync.Cond
	next int
}

func newStream(name string, sink StreamSink, db PackageDB) *stream {
	s := &stream{name: name, sink: sink, db: db}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// write blocks until id is due on this stream, appends the chunk and
// the database row, advances the counter, and wakes all waiters.
// Sink errors are logged, never propagated: the counter advance must
// happen even when the record is lost.
func (s *stream) write(id int, chunk string, pkg *rpm.Package, logger *slog.Logger) {
	s.mu.Lock()
	for s.next != id {
		s.cond.Wait()
	}
	s.next++

	if err := s.sink.AddChunk(chunk); err != nil {
		logger.Error("cannot append chunk",
			"stream", s.name,
			"id", id,
			"package", pkg.Name,
			"error", err,
		)
	}
	if s.db != nil {
		if err := s.db.AddPackage(pkg); err != nil {
			logger.Error("cannot insert package record",
				"stream", s.name,
				"id", id,
				"package", pkg.Name,
				"pkgid", pkg.PkgID,
				"error", err,
			)
		}
	}

	s.cond.Broadcast()
	s.mu.Unlock()
}

// skip advances the counter past id without emitting anything.
// Idempotent per id: if the counter has already passed id, skip is a
// no-op; otherwise it waits for id's turn like a write would.
func (s *stream) skip(id int) {
	s.mu.Lock()
	if s.next > id {
		s.mu.Unlock()
		return
	}
	for s.next != id {
		s.cond.Wait()
	}
	s.next++
	s.cond.Broadcast()
	s.mu.Unlock()
}

// position returns the stream's next due id.
func (s *stream) position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// orderedSink serializes the three streams. Each record passes
// through the streams in the fixed order primary, filelists, other;
// the counters are independent so the streams pipeline freely.
type orderedSink struct {
	primary   *stream
	filelists *stream
	other     *stream
	logger    *slog.Logger
}

func newOrderedSink(cfg *Config, logger *slog.Logger) *orderedSink {
	return &orderedSink{
		primary:   newStream("primary", cfg.Primary, cfg.PrimaryDB),
		filelists: newStream("filelists", cfg.Filelists, cfg.FilelistsDB),
		other:     newStream("other", cfg.Other, cfg.OtherDB),
		logger:    logger,
	}
}

// write emits one package on all three streams.
func (s *orderedSink) write(id int, triple xmldump.Triple, pkg *rpm.Package) {
	s.primary.write(id, triple.Primary, pkg, s.logger)
	s.filelists.write(id, triple.Filelists, pkg, s.logger)
	s.other.write(id, triple.Other, pkg, s.logger)
}

// skip advances all three counters past a failed task's id.
func (s *orderedSink) skip(id int) {
	s.primary.skip(id)
	s.filelists.skip(id)
	s.other.skip(id)
}

// nextPrimary returns the primary stream's next due id — the value
// the reorder buffer's admission and drain decisions key on.
func (s *orderedSink) nextPrimary() int {
	return s.primary.position()
}
