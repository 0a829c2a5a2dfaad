package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/atikulmunna/loupe/internal/model"
)

// Header is the column row of an exported detail table.
var Header = []string{"No", "Timestamp", "Method", "Target", "ResponseTime(ms)"}

var bom = []byte{0xEF, 0xBB, 0xBF}

// ErrBadHeader is returned by Read when the first row is not Header.
var ErrBadHeader = errors.New("export: unexpected header row")

// Filename returns the download name for a format's detail table on a given day.
func Filename(format model.LogFormat, day time.Time) string {
	return fmt.Sprintf("slow_requests_%s_%s.csv", format, day.Format("2006-01-02"))
}

// Write renders rows as a UTF-8 CSV document with a leading byte-order mark.
// Rows are numbered from 1 in the order given.
func Write(w io.Writer, rows []model.SlowRequest) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i, r := range rows {
		rec := []string{
			strconv.Itoa(i + 1),
			r.Timestamp,
			r.Method,
			r.Target,
			strconv.FormatFloat(r.ResponseTime*1000, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses a document produced by Write back into detail rows. Only the
// exported columns survive the round trip; response times carry the
// two-decimal millisecond precision of the export.
func Read(r io.Reader) ([]model.SlowRequest, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, bom) {
		_, _ = br.Discard(len(bom))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = len(Header)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range Header {
		if header[i] != h {
			return nil, fmt.Errorf("%w: column %d is %q", ErrBadHeader, i+1, header[i])
		}
	}

	var rows []model.SlowRequest
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		ms, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("row %s: bad response time %q: %w", rec[0], rec[4], err)
		}
		rows = append(rows, model.SlowRequest{
			Timestamp:    rec[1],
			Method:       rec[2],
			Target:       rec[3],
			ResponseTime: ms / 1000,
		})
	}
}
