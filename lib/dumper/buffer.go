// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package dumper

import (
	"container/heap"
	"sync"

	"github.com/repoforge/repoforge/lib/rpm"
	"github.com/repoforge/repoforge/lib/xmldump"
)

// maxBufferedResults bounds the reorder buffer. Small enough to cap
// memory when the sinks are slow, large enough to absorb the skew
// between fast and slow artifacts.
const maxBufferedResults = 20

// bufferedResult is a completed task parked in the reorder buffer
// until its id comes due on the primary stream.
type bufferedResult struct {
	id     int
	triple xmldump.Triple
	pkg    *rpm.Package

	// fromCache marks a reused cache entry. The entry is shared with
	// the previous-run metadata and must not be treated as this
	// result's own.
	fromCache bool

	// locationHref preserves the rebound location of a reused entry
	// across the gap between deposit and drain. The drain writer
	// restores it immediately before formatting output is appended.
	locationHref string
}

// resultHeap is a min-heap of buffered results by id.
type resultHeap []*bufferedResult

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].id < h[j].id }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(*bufferedResult)) }
func (h *resultHeap) Pop() any {
	old := *h
	last := len(old) - 1
	result := old[last]
	old[last] = nil
	*h = old[:last]
	return result
}

// reorderBuffer holds completed-but-not-yet-writable results so an
// early worker can move on instead of blocking on the condition
// variable.
type reorderBuffer struct {
	mu    sync.Mutex
	heap  resultHeap
	total int // task count N; the last id is never admitted
}

func newReorderBuffer(total int) *reorderBuffer {
	return &reorderBuffer{total: total}
}

// tryDefer admits the result unless the buffer is full, the result
// is writable right now (its id is next due on the primary stream),
// or it is the last task. The writability check happens under the
// buffer mutex: every counter advance is followed by a drain that
// also takes this mutex, so a result admitted here with a later id
// always has a subsequent drain that will observe it. Excluding the
// last task keeps the tail live — its worker must carry it into the
// sink itself.
func (b *reorderBuffer) tryDefer(result *bufferedResult, sink *orderedSink) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.heap) >= maxBufferedResults {
		return false
	}
	if result.id == sink.nextPrimary() {
		return false
	}
	if result.id+1 >= b.total {
		return false
	}
	heap.Push(&b.heap, result)
	return true
}

// popIfReady removes and returns the minimum-id result iff it is the
// next id due on the primary stream, else nil.
func (b *reorderBuffer) popIfReady(sink *orderedSink) *bufferedResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.heap) == 0 || b.heap[0].id != sink.nextPrimary() {
		return nil
	}
	return heap.Pop(&b.heap).(*bufferedResult)
}

// len returns the current buffer occupancy.
func (b *reorderBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.heap)
}
