package report

import "github.com/atikulmunna/loupe/internal/model"

// FilterSlow returns the detail rows whose response time is at least
// thresholdMs milliseconds, preserving order. A threshold <= 0 keeps all rows.
func FilterSlow(rows []model.SlowRequest, thresholdMs float64) []model.SlowRequest {
	if thresholdMs <= 0 {
		return rows
	}
	limit := thresholdMs / 1000
	out := make([]model.SlowRequest, 0, len(rows))
	for _, r := range rows {
		if r.ResponseTime >= limit {
			out = append(out, r)
		}
	}
	return out
}

// WithThreshold returns a copy of sum whose detail table is filtered by
// FilterSlow. The input summary is left untouched.
func WithThreshold(sum model.Summary, thresholdMs float64) model.Summary {
	sum.SlowRequests = FilterSlow(sum.SlowRequests, thresholdMs)
	return sum
}
