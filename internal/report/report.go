package report

import (
	"sort"

	"github.com/atikulmunna/loupe/internal/aggregator"
	"github.com/atikulmunna/loupe/internal/model"
	"github.com/atikulmunna/loupe/internal/selector"
)

// Default table sizes.
const (
	DefaultTopN        = 10
	DefaultTopLatencyN = 20
)

// Options controls table sizes of the finalized report.
type Options struct {
	TopN        int
	TopLatencyN int
}

func (o Options) withDefaults() Options {
	if o.TopN < 1 {
		o.TopN = DefaultTopN
	}
	if o.TopLatencyN < 1 {
		o.TopLatencyN = DefaultTopLatencyN
	}
	return o
}

// Counters carries run accounting gathered outside the aggregator.
type Counters struct {
	LinesRead    int64
	DroppedLines int64
	BytesRead    int64
}

// Build converts accumulated run state into an immutable Summary.
// It reads but never mutates state and sel.
func Build(state *aggregator.State, sel *selector.Selector, counters Counters, opts Options) model.Summary {
	opts = opts.withDefaults()

	sum := model.Summary{
		Format:         state.Format,
		KPIs:           kpis(state, counters),
		TopSources:     topSources(state, opts.TopN),
		TopTargets:     topTargets(state, opts.TopN),
		SlowestTargets: slowestTargets(state, opts.TopLatencyN),
		RateSeries:     rateSeries(state),
		Histogram:      histogram(state),
		StatusClasses:  copyCounts(state.StatusCounts),
		Methods:        copyCounts(state.MethodCounts),
		SlowRequests:   sel.Sorted(),
	}
	sum.KPIs.PeakRate, sum.KPIs.PeakRateKey = peak(sum.RateSeries)
	return sum
}

func kpis(state *aggregator.State, c Counters) model.KPIs {
	k := model.KPIs{
		TotalRecords:  state.TotalRecords,
		UniqueSources: len(state.SourceCounts),
		UniqueTargets: len(state.TargetCounts),
		ErrorCount:    state.ErrorCount,
		TimedRecords:  state.Timing.Count,
		LinesRead:     c.LinesRead,
		DroppedLines:  c.DroppedLines,
		BytesRead:     c.BytesRead,
	}
	if state.TotalRecords > 0 {
		k.ErrorRate = float64(state.ErrorCount) / float64(state.TotalRecords)
	}
	if mean, ok := state.Timing.Mean(); ok {
		k.MeanResponseTime = model.Seconds(mean)
		k.P50ResponseTime = model.Seconds(state.Digest.Quantile(0.50))
		k.P90ResponseTime = model.Seconds(state.Digest.Quantile(0.90))
		k.P99ResponseTime = model.Seconds(state.Digest.Quantile(0.99))
	}
	return k
}

type kv struct {
	key   string
	count int64
}

// ranked sorts counts descending, breaking ties by key, and keeps the first n.
func ranked(m map[string]int64, n int) []kv {
	out := make([]kv, 0, len(m))
	for k, v := range m {
		out = append(out, kv{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topSources(state *aggregator.State, n int) []model.SourceRow {
	top := ranked(state.SourceCounts, n)
	rows := make([]model.SourceRow, len(top))
	for i, e := range top {
		rows[i] = model.SourceRow{Source: e.key, Count: e.count}
	}
	return rows
}

func topTargets(state *aggregator.State, n int) []model.TargetRow {
	top := ranked(state.TargetCounts, n)
	rows := make([]model.TargetRow, len(top))
	for i, e := range top {
		rows[i] = targetRow(state, e.key)
	}
	return rows
}

// slowestTargets ranks timed targets by mean latency, independent of frequency.
func slowestTargets(state *aggregator.State, n int) []model.TargetRow {
	type mean struct {
		target string
		value  float64
	}
	means := make([]mean, 0, len(state.TargetTiming))
	for target, tt := range state.TargetTiming {
		if v, ok := tt.Mean(); ok {
			means = append(means, mean{target, v})
		}
	}
	sort.Slice(means, func(i, j int) bool {
		if means[i].value != means[j].value {
			return means[i].value > means[j].value
		}
		return means[i].target < means[j].target
	})
	if len(means) > n {
		means = means[:n]
	}

	rows := make([]model.TargetRow, len(means))
	for i, m := range means {
		rows[i] = targetRow(state, m.target)
	}
	return rows
}

func targetRow(state *aggregator.State, target string) model.TargetRow {
	row := model.TargetRow{Target: target, Count: state.TargetCounts[target]}
	if tt, ok := state.TargetTiming[target]; ok {
		row.TimedCount = tt.Count
		row.TotalTime = tt.Total
		if v, ok := tt.Mean(); ok {
			row.MeanTime = model.Seconds(v)
		}
	}
	return row
}

// rateSeries is sorted by key; keys are year-first so this is chronological.
func rateSeries(state *aggregator.State) []model.RatePoint {
	points := make([]model.RatePoint, 0, len(state.RateCounts))
	for k, v := range state.RateCounts {
		points = append(points, model.RatePoint{Key: k, Count: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Key < points[j].Key })
	return points
}

func histogram(state *aggregator.State) []model.HistogramRow {
	rows := make([]model.HistogramRow, 0, len(state.Histogram))
	for k, counts := range state.Histogram {
		row := model.HistogramRow{Bucket: k, Counts: *counts}
		for _, c := range counts {
			row.Total += c
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Bucket < rows[j].Bucket })
	return rows
}

// peak returns the highest count in the series and the first key reaching it.
func peak(series []model.RatePoint) (int64, string) {
	var best int64
	var key string
	for _, p := range series {
		if p.Count > best {
			best, key = p.Count, p.Key
		}
	}
	return best, key
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
