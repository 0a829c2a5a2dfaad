package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/atikulmunna/loupe/internal/model"
)

// Parser converts a raw log line into a Record.
// Lines that do not match the grammar yield ok == false and are dropped by the caller.
type Parser interface {
	Parse(raw string) (rec model.Record, ok bool)
}

// ForFormat returns the parser for a log format.
func ForFormat(f model.LogFormat) (Parser, error) {
	switch f {
	case model.FormatMyBatisSQL:
		return NewSQLParser(), nil
	case model.FormatNginx:
		return NewAccessParser(false), nil
	case model.FormatTomcat, model.FormatLogback:
		return NewAccessParser(true), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownFormat, string(f))
	}
}

// Parse parses one line with the grammar of the given format.
func Parse(raw string, f model.LogFormat) (model.Record, bool) {
	p, err := ForFormat(f)
	if err != nil {
		return model.Record{}, false
	}
	return p.Parse(raw)
}

// ---------------------------------------------------------------------------
// SQL trace parser (MyBatis-style interceptor output)
// ---------------------------------------------------------------------------

var (
	sqlCompletionRe = regexp.MustCompile(`(?i)\b(?:completed|executed)\b\W*\[([\w.$]+)\]\s*\[(\d+(?:\.\d+)?)\s*ms\]`)
	sqlTimestampRe  = regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2})(?:[.,]\d{1,9})?\]`)
)

// SQLParser handles SQL statement timing lines, e.g.
//
//	[2026-02-17 12:00:03.114] [http-nio-8080-exec-1] INFO SqlTimer - completed [com.acme.mapper.UserMapper.selectById] [250ms]
type SQLParser struct {
	completion *regexp.Regexp
	timestamp  *regexp.Regexp
}

func NewSQLParser() *SQLParser {
	return &SQLParser{completion: sqlCompletionRe, timestamp: sqlTimestampRe}
}

func (p *SQLParser) Parse(raw string) (model.Record, bool) {
	m := p.completion.FindStringSubmatch(raw)
	if m == nil {
		return model.Record{}, false
	}
	ms, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return model.Record{}, false
	}

	// The timestamp is located independently of the completion marker.
	ts := model.UnknownKey
	if t := p.timestamp.FindStringSubmatch(raw); t != nil {
		ts = t[1]
	}

	return model.Record{
		Source:       model.SQLSource,
		RawTimestamp: ts,
		Method:       model.SQLMethod,
		Target:       lastSegment(m[1]),
		StatusCode:   model.SQLStatus,
		ResponseTime: model.Seconds(ms / 1000),
	}, true
}

// ---------------------------------------------------------------------------
// Access log parser (nginx, tomcat, logback-access)
// ---------------------------------------------------------------------------

// accessLineRe: host [ident user] [date] "METHOD PATH ..." status size ["..."]* [time]
var accessLineRe = regexp.MustCompile(
	`^(\S+)(?:\s+\S+\s+\S+)?\s+\[([^\]]+)\]\s+"(\S+)\s+(\S+)[^"]*"\s+(\d{3})\s+(\d+|-)(?:\s+"[^"]*")*(?:\s+(\d+(?:\.\d+)?))?(?:\s|$)`,
)

// millisCutoff is the value above which tomcat/logback timings are read as milliseconds.
const millisCutoff = 100

// AccessParser handles Common/Combined Log Format lines with an optional
// trailing response time.
type AccessParser struct {
	re *regexp.Regexp
	// millisHeuristic enables the tomcat/logback rule: values > 100 are milliseconds.
	millisHeuristic bool
}

func NewAccessParser(millisHeuristic bool) *AccessParser {
	return &AccessParser{re: accessLineRe, millisHeuristic: millisHeuristic}
}

func (p *AccessParser) Parse(raw string) (model.Record, bool) {
	m := p.re.FindStringSubmatch(raw)
	if m == nil {
		return model.Record{}, false
	}
	status, err := strconv.Atoi(m[5])
	if err != nil {
		return model.Record{}, false
	}

	target, _, _ := strings.Cut(m[4], "?")
	rec := model.Record{
		Source:       m[1],
		RawTimestamp: m[2],
		Method:       m[3],
		Target:       target,
		StatusCode:   status,
	}

	if m[7] != "" {
		v, err := strconv.ParseFloat(m[7], 64)
		if err != nil {
			return model.Record{}, false
		}
		if p.millisHeuristic && v > millisCutoff {
			v /= 1000
		}
		rec.ResponseTime = model.Seconds(v)
	}
	return rec, true
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// lastSegment reduces a package-qualified name to its final dot-separated part.
func lastSegment(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}
