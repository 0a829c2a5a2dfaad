package aggregator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/atikulmunna/loupe/internal/model"
)

var (
	// 17/Feb/2026:12:07:45 +0000
	clfTimeRe = regexp.MustCompile(`^(\d{1,2})/([A-Za-z]{3})/(\d{4}):(\d{2}):(\d{2})(?::(\d{2}))?`)
	// 2026-02-17 12:07:45 or 2026-02-17T12:07:45
	isoTimeRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[ T](\d{2}):(\d{2})(?::(\d{2}))?`)
)

var months = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04", "may": "05", "jun": "06",
	"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

// RateKey derives the rate-series key for a raw timestamp.
// SQL traces use the full timestamp; access formats use its first
// whitespace-delimited token. Recognized dates are rendered year-first so that
// keys sort chronologically.
func RateKey(format model.LogFormat, raw string) string {
	token := raw
	if format.IsAccessLog() {
		token, _, _ = strings.Cut(raw, " ")
	}
	if date, hh, mm, ss, ok := splitTime(token); ok && ss != "" {
		return fmt.Sprintf("%s %s:%s:%s", date, hh, mm, ss)
	}
	return token
}

// BucketKey derives the 5-minute histogram key for a raw timestamp: the
// minute is floored to a multiple of five, date and hour are kept.
// Timestamps without a recognizable minute map to model.UnknownKey.
func BucketKey(raw string) string {
	date, hh, mm, _, ok := splitTime(raw)
	if !ok {
		return model.UnknownKey
	}
	minute := int(mm[0]-'0')*10 + int(mm[1]-'0')
	return fmt.Sprintf("%s %s:%02d", date, hh, minute-minute%5)
}

// splitTime extracts a year-first date, hour, minute and optional second.
func splitTime(raw string) (date, hh, mm, ss string, ok bool) {
	if m := isoTimeRe.FindStringSubmatch(raw); m != nil {
		return m[1], m[2], m[3], m[4], true
	}
	if m := clfTimeRe.FindStringSubmatch(raw); m != nil {
		month, known := months[strings.ToLower(m[2])]
		if !known {
			return "", "", "", "", false
		}
		day := m[1]
		if len(day) == 1 {
			day = "0" + day
		}
		return fmt.Sprintf("%s-%s-%s", m[3], month, day), m[4], m[5], m[6], true
	}
	return "", "", "", "", false
}
