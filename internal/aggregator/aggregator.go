package aggregator

import (
	"strings"

	"github.com/influxdata/tdigest"

	"github.com/atikulmunna/loupe/internal/model"
)

// latencyBounds are the exclusive upper bounds, in seconds, of the first six
// latency buckets. The seventh bucket is unbounded.
var latencyBounds = [6]float64{0.010, 0.100, 0.500, 1, 5, 10}

// digestCompression bounds the percentile sketch at roughly 100 centroids.
const digestCompression = 100

// Timing is a running total of response times.
type Timing struct {
	Total float64
	Count int64
}

// Mean returns Total/Count, or false when nothing was timed.
func (t Timing) Mean() (float64, bool) {
	if t.Count == 0 {
		return 0, false
	}
	return t.Total / float64(t.Count), true
}

// State is the mutable aggregation state of one analysis run. It is owned by
// a single goroutine and is not safe for concurrent use.
type State struct {
	Format model.LogFormat

	TotalRecords int64
	ErrorCount   int64

	SourceCounts map[string]int64
	TargetCounts map[string]int64
	RateCounts   map[string]int64
	MethodCounts map[string]int64
	StatusCounts map[string]int64

	TargetTiming map[string]*Timing
	Timing       Timing
	Histogram    map[string]*[7]int64

	Digest *tdigest.TDigest
}

// New creates an empty State for one run over the given format.
func New(format model.LogFormat) *State {
	return &State{
		Format:       format,
		SourceCounts: make(map[string]int64),
		TargetCounts: make(map[string]int64),
		RateCounts:   make(map[string]int64),
		MethodCounts: make(map[string]int64),
		StatusCounts: make(map[string]int64),
		TargetTiming: make(map[string]*Timing),
		Histogram:    make(map[string]*[7]int64),
		Digest:       tdigest.NewWithCompression(digestCompression),
	}
}

// Update folds one parsed record into the running statistics.
func (s *State) Update(rec model.Record) {
	s.TotalRecords++

	if rec.Source != model.SQLSource {
		inc(s.SourceCounts, rec.Source)
	}
	inc(s.TargetCounts, rec.Target)
	inc(s.RateCounts, RateKey(s.Format, rec.RawTimestamp))
	inc(s.MethodCounts, rec.Method)
	inc(s.StatusCounts, StatusClass(rec.StatusCode))

	if rec.StatusCode >= 400 {
		s.ErrorCount++
	}

	rt, ok := rec.Timed()
	if !ok {
		return
	}

	key := BucketKey(rec.RawTimestamp)
	row, ok := s.Histogram[key]
	if !ok {
		row = new([7]int64)
		s.Histogram[strings.Clone(key)] = row
	}
	row[Classify(rt)]++

	tt, ok := s.TargetTiming[rec.Target]
	if !ok {
		tt = &Timing{}
		s.TargetTiming[strings.Clone(rec.Target)] = tt
	}
	tt.Total += rt
	tt.Count++

	s.Timing.Total += rt
	s.Timing.Count++
	s.Digest.Add(rt, 1)
}

// Classify returns the latency bucket index for a response time in seconds.
// Buckets are half-open: [previous bound, bound).
func Classify(seconds float64) int {
	for i, bound := range latencyBounds {
		if seconds < bound {
			return i
		}
	}
	return len(latencyBounds)
}

// StatusClass groups an HTTP status code as "2xx", "4xx", etc.
func StatusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}

// inc increments m[key]. Keys are cloned on first insert so map entries do not
// pin the chunk buffer the line was sliced from.
func inc(m map[string]int64, key string) {
	if _, ok := m[key]; ok {
		m[key]++
		return
	}
	m[strings.Clone(key)] = 1
}
