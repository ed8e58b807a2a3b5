// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package dumper

import (
	"io/fs"
	"log/slog"
	"os"

	"github.com/repoforge/repoforge/lib/oldmeta"
)

// worker processes tasks against the shared ordering state. One
// worker value is shared by all pool goroutines — it holds no
// per-task state of its own.
type worker struct {
	cfg    *Config
	sink   *orderedSink
	buffer *reorderBuffer
	logger *slog.Logger
}

// process runs the full per-task sequence: produce the result,
// deliver or defer it, and drain whatever the buffer has ready.
func (w *worker) process(task Task) {
	result, ok := w.produce(task)
	if !ok {
		// The task failed before reaching the sink. Advance all three
		// counters past its id so the failure cannot wedge the tasks
		// behind it.
		w.sink.skip(task.ID)
		w.drain()
		return
	}

	if w.buffer.tryDefer(result, w.sink) {
		// Parked. Whichever worker advances the primary counter to
		// this id will write it; this worker is free for its next
		// task.
		return
	}

	w.writeResult(result)
	w.drain()
}

// produce extracts (or reuses) the package and formats its chunks.
// Returns ok=false when the task failed; every failure path has
// already been logged.
func (w *worker) produce(task Task) (*bufferedResult, bool) {
	cfg := w.cfg

	// The artifact path relative to the repository root. Shared
	// configuration tells us how long the root prefix is, trailing
	// separator included.
	var locationHref string
	if len(task.FullPath) > cfg.RepoPrefixLen {
		locationHref = task.FullPath[cfg.RepoPrefixLen:]
	}

	// Stat up front only when the freshness check will need it.
	var stat fs.FileInfo
	if cfg.OldMetadata != nil && !cfg.SkipStat {
		var err error
		stat, err = os.Stat(task.FullPath)
		if err != nil {
			w.logger.Error("stat failed", "artifact", task.FullPath, "error", err)
			return nil, false
		}
	}

	result := &bufferedResult{id: task.ID}

	// Cache consultation: reuse the previous run's package when the
	// file has not changed under it.
	if cfg.OldMetadata != nil {
		if cached := cfg.OldMetadata.ByFilename(task.Filename); cached != nil {
			w.logger.Debug("cache hit", "artifact", task.Filename)
			if cfg.SkipStat || oldmeta.Fresh(cached, stat, cfg.ChecksumKind.String()) {
				oldmeta.RebindLocation(cached, locationHref, cfg.LocationBase)
				result.pkg = cached
				result.fromCache = true
				result.locationHref = locationHref
			} else {
				w.logger.Debug("cached metadata obsolete, regenerating",
					"artifact", task.Filename)
			}
		}
	}

	if !result.fromCache {
		pkg, err := cfg.Extract(task.FullPath, locationHref, stat)
		if err != nil {
			w.logger.Warn("cannot read package",
				"artifact", task.FullPath,
				"error", err,
			)
			return nil, false
		}
		result.pkg = pkg
	}

	triple, err := cfg.Format(result.pkg)
	if err != nil {
		w.logger.Error("cannot format package",
			"package", result.pkg.Name,
			"pkgid", result.pkg.PkgID,
			"error", err,
		)
		return nil, false
	}
	result.triple = triple

	return result, true
}

// writeResult pushes one result through the ordered sink. For reused
// cache entries the recorded location is restored first — the shared
// entry must leave the sink describing this run's layout even if it
// sat in the buffer while other tasks completed.
func (w *worker) writeResult(result *bufferedResult) {
	if result.fromCache {
		oldmeta.RebindLocation(result.pkg, result.locationHref, w.cfg.LocationBase)
	}
	w.sink.write(result.id, result.triple, result.pkg)
}

// drain writes buffered results for as long as the buffer head is
// the next id due on the primary stream. Whoever advances the
// counter is responsible for the results that were waiting on it.
func (w *worker) drain() {
	for {
		result := w.buffer.popIfReady(w.sink)
		if result == nil {
			return
		}
		w.writeResult(result)
	}
}
