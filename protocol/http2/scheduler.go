// Copyright 2025 The corehttpd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http2

import "container/heap"

// schedEntry is one ready-to-send stream in the scheduler's heap.
// seq is the monotonically increasing insertion order, used as the
// tie-break for equal weight so streams of the same priority are
// served round-robin rather than by id order (which would starve
// higher-numbered streams under sustained load).
type schedEntry struct {
	streamID uint32
	weight   uint8
	seq      uint64
	index    int
}

type schedHeap []*schedEntry

func (h schedHeap) Len() int { return len(h) }

func (h schedHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight > h[j].weight // higher weight served first
	}
	return h[i].seq < h[j].seq // earlier insertion served first
}

func (h schedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *schedHeap) Push(x any) {
	e := x.(*schedEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *schedHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler picks the next stream to serve among those with pending
// output, weighted by PriorityTree weight with stable tie-break by
// arrival order. It is a max-heap rather than the round-robin queue
// used for a flat worker pool because HTTP/2 streams are explicitly
// weighted by the client and a flat queue cannot express that.
type Scheduler struct {
	tree    *PriorityTree
	heap    schedHeap
	entries map[uint32]*schedEntry
	seq     uint64
}

// NewScheduler returns a scheduler whose weights are read from tree.
func NewScheduler(tree *PriorityTree) *Scheduler {
	return &Scheduler{tree: tree, entries: make(map[uint32]*schedEntry)}
}

// Ready marks streamID as having pending output. A stream already
// marked ready is left alone rather than re-queued, so repeated writes
// from the same stream don't let it cut ahead of others at the same
// weight.
func (s *Scheduler) Ready(streamID uint32) {
	if _, ok := s.entries[streamID]; ok {
		return
	}
	e := &schedEntry{streamID: streamID, weight: s.tree.Weight(streamID), seq: s.seq}
	s.seq++
	s.entries[streamID] = e
	heap.Push(&s.heap, e)
}

// Next pops the highest-priority ready stream, or ok=false if none is
// pending. The caller re-marks the stream Ready after it writes more
// data if it still has output queued; Next does not re-insert.
func (s *Scheduler) Next() (streamID uint32, ok bool) {
	if s.heap.Len() == 0 {
		return 0, false
	}
	e := heap.Pop(&s.heap).(*schedEntry)
	delete(s.entries, e.streamID)
	return e.streamID, true
}

// Discard removes streamID from the ready set without serving it, used
// when a stream is reset or closed while still queued.
func (s *Scheduler) Discard(streamID uint32) {
	e, ok := s.entries[streamID]
	if !ok {
		return
	}
	heap.Remove(&s.heap, e.index)
	delete(s.entries, streamID)
}

// Len reports how many streams currently have pending output.
func (s *Scheduler) Len() int { return s.heap.Len() }
