package model

// LatencyBuckets are the histogram column labels, fastest first.
var LatencyBuckets = [7]string{"<10ms", "10-100ms", "100-500ms", "500ms-1s", "1-5s", "5-10s", ">10s"}

// Summary is the finalized result of one analysis run.
// It holds plain data only and is never mutated after the report is built.
type Summary struct {
	Format         LogFormat        `json:"format"`
	KPIs           KPIs             `json:"kpis"`
	TopSources     []SourceRow      `json:"top_sources"`
	TopTargets     []TargetRow      `json:"top_targets"`
	SlowestTargets []TargetRow      `json:"slowest_targets"`
	RateSeries     []RatePoint      `json:"rate_series"`
	Histogram      []HistogramRow   `json:"histogram"`
	StatusClasses  map[string]int64 `json:"status_classes"`
	Methods        map[string]int64 `json:"methods"`
	SlowRequests   []SlowRequest    `json:"slow_requests"`
}

// KPIs are the scalar headline numbers. Nil pointers mean "not applicable".
type KPIs struct {
	TotalRecords     int64    `json:"total_records"`
	UniqueSources    int      `json:"unique_sources"`
	UniqueTargets    int      `json:"unique_targets"`
	ErrorCount       int64    `json:"error_count"`
	ErrorRate        float64  `json:"error_rate"`
	TimedRecords     int64    `json:"timed_records"`
	MeanResponseTime *float64 `json:"mean_response_time_seconds"`
	P50ResponseTime  *float64 `json:"p50_response_time_seconds"`
	P90ResponseTime  *float64 `json:"p90_response_time_seconds"`
	P99ResponseTime  *float64 `json:"p99_response_time_seconds"`
	PeakRate         int64    `json:"peak_rate"`
	PeakRateKey      string   `json:"peak_rate_key"`
	LinesRead        int64    `json:"lines_read"`
	DroppedLines     int64    `json:"dropped_lines"`
	BytesRead        int64    `json:"bytes_read"`
}

type SourceRow struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// TargetRow is a target annotated with its aggregate timing.
type TargetRow struct {
	Target     string   `json:"target"`
	Count      int64    `json:"count"`
	TimedCount int64    `json:"timed_count"`
	TotalTime  float64  `json:"total_time_seconds"`
	MeanTime   *float64 `json:"mean_time_seconds"`
}

type RatePoint struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// HistogramRow holds latency bucket counts for one 5-minute BucketKey.
type HistogramRow struct {
	Bucket string   `json:"bucket"`
	Counts [7]int64 `json:"counts"`
	Total  int64    `json:"total"`
}

// SlowRequest is one row of the slow-request detail table.
type SlowRequest struct {
	Timestamp    string  `json:"timestamp"`
	Source       string  `json:"source"`
	Method       string  `json:"method"`
	Target       string  `json:"target"`
	StatusCode   int     `json:"status_code"`
	ResponseTime float64 `json:"response_time_seconds"`
}
