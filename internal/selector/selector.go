package selector

import (
	"container/heap"
	"sort"
	"strings"

	"github.com/atikulmunna/loupe/internal/model"
)

// DefaultCap is the number of slow requests retained per run.
const DefaultCap = 1000

type entry struct {
	req model.SlowRequest
	seq uint64 // discovery order
}

// minHeap keeps the weakest survivor at the root: the smallest response time,
// and among equal response times the most recently discovered.
type minHeap []entry

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].req.ResponseTime != h[j].req.ResponseTime {
		return h[i].req.ResponseTime < h[j].req.ResponseTime
	}
	return h[i].seq > h[j].seq
}
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Selector retains the K records with the largest response time seen so far.
// A later record with a response time equal to the current minimum does not
// displace an earlier one. It is not safe for concurrent use.
type Selector struct {
	k    int
	seq  uint64
	heap minHeap
}

// New creates a Selector with capacity k. Values below 1 use DefaultCap.
func New(k int) *Selector {
	if k < 1 {
		k = DefaultCap
	}
	return &Selector{k: k, heap: make(minHeap, 0, k)}
}

// Cap returns the selector's capacity.
func (s *Selector) Cap() int { return s.k }

// Len returns the number of records currently retained.
func (s *Selector) Len() int { return len(s.heap) }

// Consider offers a record. Records without a response time are ignored.
func (s *Selector) Consider(rec model.Record) {
	rt, ok := rec.Timed()
	if !ok {
		return
	}
	s.seq++

	if len(s.heap) < s.k {
		heap.Push(&s.heap, entry{req: slowRequest(rec, rt), seq: s.seq})
		return
	}
	if rt <= s.heap[0].req.ResponseTime {
		return
	}
	s.heap[0] = entry{req: slowRequest(rec, rt), seq: s.seq}
	heap.Fix(&s.heap, 0)
}

// Sorted returns the retained records by response time, slowest first;
// equal response times keep discovery order.
func (s *Selector) Sorted() []model.SlowRequest {
	entries := make([]entry, len(s.heap))
	copy(entries, s.heap)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].req.ResponseTime != entries[j].req.ResponseTime {
			return entries[i].req.ResponseTime > entries[j].req.ResponseTime
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]model.SlowRequest, len(entries))
	for i, e := range entries {
		out[i] = e.req
	}
	return out
}

// slowRequest copies the record's strings so the retained row does not pin
// the chunk buffer the line was read from.
func slowRequest(rec model.Record, rt float64) model.SlowRequest {
	return model.SlowRequest{
		Timestamp:    strings.Clone(rec.RawTimestamp),
		Source:       strings.Clone(rec.Source),
		Method:       strings.Clone(rec.Method),
		Target:       strings.Clone(rec.Target),
		StatusCode:   rec.StatusCode,
		ResponseTime: rt,
	}
}
