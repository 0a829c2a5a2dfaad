package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/atikulmunna/loupe/internal/aggregator"
	"github.com/atikulmunna/loupe/internal/metrics"
	"github.com/atikulmunna/loupe/internal/model"
	"github.com/atikulmunna/loupe/internal/parser"
	"github.com/atikulmunna/loupe/internal/reader"
	"github.com/atikulmunna/loupe/internal/report"
	"github.com/atikulmunna/loupe/internal/selector"
)

// Options configures one analysis run.
type Options struct {
	Format    model.LogFormat
	ChunkSize int
	SlowCap   int
	Report    report.Options
	// Progress, when set, receives the fraction of input consumed after each chunk.
	// It runs on the analysis goroutine and must not block.
	Progress reader.ProgressFunc
}

// Engine runs analyses. It holds no per-run state and may be shared by
// concurrent callers; every run owns its own aggregation state.
type Engine struct {
	log     zerolog.Logger
	metrics *metrics.Handler
}

// New creates an Engine. m may be nil.
func New(log zerolog.Logger, m *metrics.Handler) *Engine {
	return &Engine{log: log, metrics: m}
}

// run is the mutable state of a single analysis.
type run struct {
	parser   parser.Parser
	state    *aggregator.State
	selector *selector.Selector
	parsed   int64
	dropped  int64
}

func (r *run) consume(line string) {
	rec, ok := r.parser.Parse(line)
	if !ok {
		r.dropped++
		return
	}
	r.parsed++
	r.state.Update(rec)
	r.selector.Consider(rec)
}

// Analyze reads size bytes from src and returns the finalized summary.
// If ctx is cancelled the partial state is discarded and ctx.Err() returned.
func (e *Engine) Analyze(ctx context.Context, src io.Reader, size int64, opts Options) (model.Summary, error) {
	p, err := parser.ForFormat(opts.Format)
	if err != nil {
		return model.Summary{}, err
	}

	start := time.Now()
	log := e.log.With().Str("format", opts.Format.String()).Int64("size", size).Logger()
	log.Info().Msg("analysis started")

	r := &run{
		parser:   p,
		state:    aggregator.New(opts.Format),
		selector: selector.New(opts.SlowCap),
	}
	cr := reader.New(src, size,
		reader.WithChunkSize(opts.ChunkSize),
		reader.WithProgress(func(f float64) {
			log.Debug().Float64("progress", f).Msg("chunk done")
			if opts.Progress != nil {
				opts.Progress(f)
			}
		}),
	)

	err = cr.Each(ctx, r.consume)
	elapsed := time.Since(start)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "canceled"
		}
		e.metrics.ObserveRun(opts.Format.String(), outcome, elapsed, r.parsed, r.dropped, cr.BytesRead())
		log.Warn().Err(err).Str("outcome", outcome).Msg("analysis aborted")
		return model.Summary{}, err
	}

	sum := report.Build(r.state, r.selector, report.Counters{
		LinesRead:    cr.LinesRead(),
		DroppedLines: r.dropped,
		BytesRead:    cr.BytesRead(),
	}, opts.Report)

	e.metrics.ObserveRun(opts.Format.String(), "ok", elapsed, r.parsed, r.dropped, cr.BytesRead())
	log.Info().
		Int64("records", sum.KPIs.TotalRecords).
		Int64("dropped_lines", r.dropped).
		Dur("elapsed", elapsed).
		Msg("analysis finished")
	return sum, nil
}

// AnalyzeFile opens path and analyzes it. Failing to open or stat the file is
// returned as an error; everything past that follows Analyze.
func (e *Engine) AnalyzeFile(ctx context.Context, path string, opts Options) (model.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Summary{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return model.Summary{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return model.Summary{}, fmt.Errorf("%s is a directory", path)
	}
	return e.Analyze(ctx, f, info.Size(), opts)
}
