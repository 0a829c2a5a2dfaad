package aggregator

import (
	"math"
	"testing"

	"github.com/atikulmunna/loupe/internal/model"
)

func access(src, ts, target string, status int, rt *float64) model.Record {
	return model.Record{Source: src, RawTimestamp: ts, Method: "GET", Target: target, StatusCode: status, ResponseTime: rt}
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{0, "<10ms"},
		{9.999, "<10ms"},
		{10, "10-100ms"},
		{99.9, "10-100ms"},
		{100, "100-500ms"},
		{250, "100-500ms"},
		{500, "500ms-1s"},
		{1000, "1-5s"},
		{4999, "1-5s"},
		{5000, "5-10s"},
		{10000, ">10s"},
		{123456, ">10s"},
	}

	for _, tt := range tests {
		got := model.LatencyBuckets[Classify(tt.ms/1000)]
		if got != tt.want {
			t.Errorf("%vms: expected %s, got %s", tt.ms, tt.want, got)
		}
	}
}

func TestBucketKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"17/Feb/2026:12:07:45 +0000", "2026-02-17 12:05"},
		{"17/Feb/2026:12:04:59 +0000", "2026-02-17 12:00"},
		{"7/Dec/2025:23:59:00 +0100", "2025-12-07 23:55"},
		{"2026-02-17 09:10:00", "2026-02-17 09:10"},
		{"2026-02-17T09:14:59", "2026-02-17 09:10"},
		{model.UnknownKey, model.UnknownKey},
		{"17/Foo/2026:12:07:45 +0000", model.UnknownKey},
	}

	for _, tt := range tests {
		if got := BucketKey(tt.raw); got != tt.want {
			t.Errorf("BucketKey(%q): expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}

func TestRateKey(t *testing.T) {
	if got := RateKey(model.FormatNginx, "17/Feb/2026:12:07:45 +0000"); got != "2026-02-17 12:07:45" {
		t.Errorf("access rate key: got %q", got)
	}
	if got := RateKey(model.FormatMyBatisSQL, "2026-02-17 12:07:45"); got != "2026-02-17 12:07:45" {
		t.Errorf("sql rate key: got %q", got)
	}
	if got := RateKey(model.FormatTomcat, "weird stamp"); got != "weird" {
		t.Errorf("unrecognized access stamp should keep its first token, got %q", got)
	}
}

func TestUpdateCounts(t *testing.T) {
	s := New(model.FormatNginx)
	ts := "17/Feb/2026:12:00:00 +0000"

	s.Update(access("10.0.0.1", ts, "/a", 200, model.Seconds(0.05)))
	s.Update(access("10.0.0.1", ts, "/a", 500, model.Seconds(1.5)))
	s.Update(access("10.0.0.2", "17/Feb/2026:12:00:01 +0000", "/b", 404, nil))

	if s.TotalRecords != 3 {
		t.Errorf("expected 3 records, got %d", s.TotalRecords)
	}
	if s.ErrorCount != 2 {
		t.Errorf("expected 2 errors, got %d", s.ErrorCount)
	}
	if s.SourceCounts["10.0.0.1"] != 2 || s.SourceCounts["10.0.0.2"] != 1 {
		t.Errorf("unexpected source counts %v", s.SourceCounts)
	}
	if s.TargetCounts["/a"] != 2 || s.TargetCounts["/b"] != 1 {
		t.Errorf("unexpected target counts %v", s.TargetCounts)
	}
	if s.RateCounts["2026-02-17 12:00:00"] != 2 || s.RateCounts["2026-02-17 12:00:01"] != 1 {
		t.Errorf("unexpected rate counts %v", s.RateCounts)
	}
	if s.StatusCounts["2xx"] != 1 || s.StatusCounts["4xx"] != 1 || s.StatusCounts["5xx"] != 1 {
		t.Errorf("unexpected status classes %v", s.StatusCounts)
	}

	// The untimed record contributes nothing to latency statistics.
	if s.Timing.Count != 2 {
		t.Errorf("expected 2 timed records, got %d", s.Timing.Count)
	}
	if _, ok := s.TargetTiming["/b"]; ok {
		t.Error("untimed target should have no timing entry")
	}
	mean, ok := s.TargetTiming["/a"].Mean()
	if !ok || math.Abs(mean-0.775) > 1e-9 {
		t.Errorf("expected /a mean 0.775, got %v", mean)
	}

	row := s.Histogram["2026-02-17 12:00"]
	if row == nil || row[1] != 1 || row[4] != 1 {
		t.Errorf("unexpected histogram row %v", row)
	}
}

func TestSQLSourceNotCounted(t *testing.T) {
	s := New(model.FormatMyBatisSQL)
	s.Update(model.Record{
		Source:       model.SQLSource,
		RawTimestamp: "2026-02-17 12:00:00",
		Method:       model.SQLMethod,
		Target:       "selectById",
		StatusCode:   model.SQLStatus,
		ResponseTime: model.Seconds(0.25),
	})

	if len(s.SourceCounts) != 0 {
		t.Errorf("expected no sources for SQL traces, got %v", s.SourceCounts)
	}
	if s.Histogram["2026-02-17 12:00"][2] != 1 {
		t.Errorf("expected one 100-500ms hit, got %v", s.Histogram)
	}
}

func TestHistogramTotalsMatchTimedRecords(t *testing.T) {
	s := New(model.FormatTomcat)
	stamps := []string{"17/Feb/2026:12:00:00 +0000", "17/Feb/2026:12:06:00 +0000", "garbage", model.UnknownKey}

	var timed int64
	for i := 0; i < 200; i++ {
		var rt *float64
		if i%3 != 0 {
			rt = model.Seconds(float64(i) / 17)
			timed++
		}
		s.Update(access("h", stamps[i%len(stamps)], "/x", 200, rt))
	}

	var sum int64
	for _, row := range s.Histogram {
		for _, c := range row {
			sum += c
		}
	}
	if sum != timed {
		t.Errorf("expected histogram total %d, got %d", timed, sum)
	}
}

func TestTimingMeanEmpty(t *testing.T) {
	var tm Timing
	if _, ok := tm.Mean(); ok {
		t.Error("expected no mean for an empty timing")
	}
}
