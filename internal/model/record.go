package model

import (
	"errors"
	"fmt"
	"strings"
)

// LogFormat selects the line grammar for one analysis run.
type LogFormat string

const (
	FormatMyBatisSQL LogFormat = "mybatis_sql"
	FormatNginx      LogFormat = "nginx"
	FormatTomcat     LogFormat = "tomcat"
	FormatLogback    LogFormat = "logback"
)

// Fixed field values for records produced from SQL trace lines.
const (
	SQLSource  = "-"
	SQLMethod  = "SQL"
	SQLStatus  = 200
	UnknownKey = "unknown"
)

// ErrUnknownFormat is returned by ParseFormat for names outside the closed set.
var ErrUnknownFormat = errors.New("unknown log format")

// Formats lists every supported format in display order.
func Formats() []LogFormat {
	return []LogFormat{FormatMyBatisSQL, FormatNginx, FormatTomcat, FormatLogback}
}

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (LogFormat, error) {
	f := LogFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// IsAccessLog reports whether the format uses the access-log grammar.
func (f LogFormat) IsAccessLog() bool {
	return f == FormatNginx || f == FormatTomcat || f == FormatLogback
}

func (f LogFormat) String() string { return string(f) }

// Record is one parsed log entry.
type Record struct {
	Source       string   `json:"source"`
	RawTimestamp string   `json:"raw_timestamp"`
	Method       string   `json:"method"`
	Target       string   `json:"target"`
	StatusCode   int      `json:"status_code"`
	ResponseTime *float64 `json:"response_time_seconds"` // nil when the line has no timing field
}

// Timed returns the response time in seconds and whether the record has one.
func (r Record) Timed() (float64, bool) {
	if r.ResponseTime == nil {
		return 0, false
	}
	return *r.ResponseTime, true
}

// Seconds is a helper for building records with a response time.
func Seconds(v float64) *float64 {
	return &v
}
