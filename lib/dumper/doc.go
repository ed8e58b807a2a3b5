// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package dumper distributes per-artifact metadata extraction across
// a fixed pool of workers while keeping the three output streams in
// one canonical order.
//
// Every task carries a dense id assigned at enqueue time; the ids
// define the global output order for all three streams. Each stream
// has its own (mutex, condition, counter) triple: a worker appends to
// a stream only when that stream's counter equals its task id, then
// advances the counter and broadcasts. The counters are independent,
// so a fast stream runs ahead of a slow one — a worker can release
// the primary stream to its successor while still writing filelists.
//
// A worker whose result arrives early does not have to sit on a
// condition variable: it may deposit the result in a bounded reorder
// buffer (a min-heap by id, capacity 20) and move on to its next
// task. Whoever advances the primary counter drains the buffer head
// for as long as it is the next id due. The last task is never
// buffered, which guarantees the tail of the id space always has a
// live worker pushing it through.
//
// Failures never stall the order: a task that cannot be extracted or
// formatted advances all three counters through the skip path without
// emitting anything, and append or database errors are logged and
// the counter advanced regardless. Losing one record is recoverable;
// wedging every subsequent record is not.
//
// When a previous run's metadata is supplied, a worker first checks
// it by artifact file name and reuses the cached package when the
// file's mtime, size, and digest kind still match, rebinding the
// entry's location to the new layout. Each file name appears in at
// most one task, which is what makes the in-place rebind race-free.
package dumper
