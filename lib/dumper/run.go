// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package dumper

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/repoforge/repoforge/lib/checksum"
)

// Config carries the shared state of one dump run. All workers read
// it; nothing in it is mutated after Run starts.
type Config struct {
	// Workers is the pool size. Zero or negative means NumCPU.
	Workers int

	// RepoPrefixLen is the byte length of the repository root prefix
	// (trailing separator included) stripped from an artifact's full
	// path to form its location href.
	RepoPrefixLen int

	// LocationBase is the optional absolute URL prefix recorded on
	// every package location.
	LocationBase string

	// ChecksumKind is the digest algorithm of this run, compared
	// against cache entries during the freshness check.
	ChecksumKind checksum.Kind

	// SkipStat trusts cache entries without consulting the
	// filesystem. Only meaningful with OldMetadata set.
	SkipStat bool

	// OldMetadata is the previous run's package set, or nil to parse
	// everything fresh.
	OldMetadata Cache

	// The three stream sinks. Required.
	Primary   StreamSink
	Filelists StreamSink
	Other     StreamSink

	// Optional database mirrors, one per stream.
	PrimaryDB   PackageDB
	FilelistsDB PackageDB
	OtherDB     PackageDB

	// Extract parses an artifact; Format renders it. Required.
	Extract ExtractFunc
	Format  FormatFunc

	// Logger receives per-task warnings and sink errors. Nil
	// discards.
	Logger *slog.Logger
}

// validate checks the collaborators a run cannot start without.
func (cfg *Config) validate() error {
	switch {
	case cfg.Primary == nil || cfg.Filelists == nil || cfg.Other == nil:
		return fmt.Errorf("dumper: all three stream sinks are required")
	case cfg.Extract == nil:
		return fmt.Errorf("dumper: an extract function is required")
	case cfg.Format == nil:
		return fmt.Errorf("dumper: a format function is required")
	}
	return nil
}

// Run processes every task and returns once all three streams have
// emitted (or skipped) every id. Task ids must be exactly 0..N-1 for
// N tasks; order within the slice does not matter.
//
// Cancelling ctx stops dispatching new tasks; ids not yet started
// are pushed through the skip path so in-flight writes can still
// reach their turn, and Run returns the context error after the pool
// settles.
func Run(ctx context.Context, cfg Config, tasks []Task) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := checkDenseIDs(tasks); err != nil {
		return err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	sink := newOrderedSink(&cfg, logger)
	w := &worker{
		cfg:    &cfg,
		sink:   sink,
		buffer: newReorderBuffer(len(tasks)),
		logger: logger,
	}

	logger.Info("dump started",
		"tasks", len(tasks),
		"workers", workers,
		"cache", cfg.OldMetadata != nil,
	)

	taskQueue := make(chan Task)
	group := new(errgroup.Group)
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			for task := range taskQueue {
				w.process(task)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer close(taskQueue)
		for i, task := range tasks {
			select {
			case taskQueue <- task:
			case <-ctx.Done():
				// Flush the undispatched tail through the failure
				// path in ascending id order, draining the buffer
				// after each advance, so every counter converges and
				// no parked result is orphaned.
				remaining := make([]int, 0, len(tasks)-i)
				for _, undispatched := range tasks[i:] {
					remaining = append(remaining, undispatched.ID)
				}
				sort.Ints(remaining)
				for _, id := range remaining {
					sink.skip(id)
					w.drain()
				}
				return ctx.Err()
			}
		}
		return nil
	})

	err := group.Wait()

	// The pool has drained; every counter must have reached N.
	total := len(tasks)
	if pri, fil, oth := sink.primary.position(), sink.filelists.position(), sink.other.position(); pri != total || fil != total || oth != total {
		return fmt.Errorf("dumper: counters stopped at %d/%d/%d of %d", pri, fil, oth, total)
	}
	if err != nil {
		return err
	}

	logger.Info("dump finished", "tasks", total)
	return nil
}

// checkDenseIDs verifies the task ids are a permutation of 0..N-1.
// The ordering protocol depends on it: a missing id would block its
// successor forever, a duplicate would double-advance a counter.
func checkDenseIDs(tasks []Task) error {
	seen := make([]bool, len(tasks))
	for _, task := range tasks {
		if task.ID < 0 || task.ID >= len(tasks) {
			return fmt.Errorf("dumper: task id %d outside [0, %d)", task.ID, len(tasks))
		}
		if seen[task.ID] {
			return fmt.Errorf("dumper: duplicate task id %d", task.ID)
		}
		seen[task.ID] = true
	}
	return nil
}
