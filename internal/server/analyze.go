package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atikulmunna/loupe/internal/engine"
	"github.com/atikulmunna/loupe/internal/export"
	"github.com/atikulmunna/loupe/internal/model"
	"github.com/atikulmunna/loupe/internal/report"
	"github.com/atikulmunna/loupe/internal/runs"
)

// statusClientClosedRequest is reported when the client goes away mid-run.
const statusClientClosedRequest = 499

// runView is the JSON shape of a stored run in API responses.
type runView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Format      model.LogFormat `json:"format"`
	Finished    time.Time       `json:"finished"`
	ThresholdMs float64         `json:"threshold_ms"`
	Summary     model.Summary   `json:"summary"`
}

// Analyze runs one analysis, announcing progress on the hub and storing the
// result for later lookup. It is shared by uploads and the spool directory.
func (s *Server) Analyze(ctx context.Context, name string, src io.Reader, size int64, format model.LogFormat) (runs.Run, error) {
	id := runs.NewID()
	publish := func(typ model.EventType, progress float64, err error) {
		ev := model.Event{Type: typ, RunID: id, Name: name, Progress: progress, Time: time.Now()}
		if err != nil {
			ev.Error = err.Error()
		}
		s.hub.Publish(ev)
	}

	publish(model.EventProgress, 0, nil)
	sum, err := s.analyzer.Analyze(ctx, src, size, engine.Options{
		Format:    format,
		ChunkSize: s.cfg.ChunkSize,
		SlowCap:   s.cfg.SlowCap,
		Report:    report.Options{TopN: s.cfg.TopN, TopLatencyN: s.cfg.TopLatencyN},
		Progress:  func(f float64) { publish(model.EventProgress, f*100, nil) },
	})
	if err != nil {
		publish(model.EventFailed, 0, err)
		return runs.Run{}, err
	}

	run := runs.Run{ID: id, Name: name, Format: format, Finished: time.Now(), Summary: sum}
	s.runs.Put(run)
	publish(model.EventCompleted, 100, nil)
	return run, nil
}

// AnalyzeFile analyzes a file on disk with the configured format.
func (s *Server) AnalyzeFile(ctx context.Context, path string) (runs.Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return runs.Run{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return runs.Run{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return s.Analyze(ctx, filepath.Base(path), f, info.Size(), s.cfg.LogFormat())
}

func (s *Server) handleFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"formats": model.Formats(), "default": s.cfg.LogFormat()})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Server.MaxUploadBytes)

	format := s.cfg.LogFormat()
	if name := c.PostForm("format"); name != "" {
		f, err := model.ParseFormat(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		format = f
	}
	threshold, err := s.threshold(c.PostForm("threshold_ms"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field \"file\": " + err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	run, err := s.Analyze(c.Request.Context(), fh.Filename, f, fh.Size, format)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.log.Info().Str("file", fh.Filename).Msg("upload analysis cancelled by client")
		c.AbortWithStatus(statusClientClosedRequest)
		return
	case err != nil:
		s.log.Error().Err(err).Str("file", fh.Filename).Msg("upload analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, view(run, threshold))
}

func (s *Server) handleListRuns(c *gin.Context) {
	type item struct {
		ID           string          `json:"id"`
		Name         string          `json:"name"`
		Format       model.LogFormat `json:"format"`
		Finished     time.Time       `json:"finished"`
		TotalRecords int64           `json:"total_records"`
	}
	list := s.runs.List()
	out := make([]item, len(list))
	for i, r := range list {
		out[i] = item{r.ID, r.Name, r.Format, r.Finished, r.Summary.KPIs.TotalRecords}
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, threshold, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view(run, threshold))
}

func (s *Server) handleExport(c *gin.Context) {
	run, threshold, ok := s.lookup(c)
	if !ok {
		return
	}

	filename := export.Filename(run.Format, time.Now())
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, report.FilterSlow(run.Summary.SlowRequests, threshold)); err != nil {
		s.log.Error().Err(err).Str("run", run.ID).Msg("export failed")
	}
}

// lookup resolves the :id parameter and the threshold_ms query, writing an
// error response when either is invalid.
func (s *Server) lookup(c *gin.Context) (runs.Run, float64, bool) {
	threshold, err := s.threshold(c.Query("threshold_ms"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return runs.Run{}, 0, false
	}
	run, ok := s.runs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found or expired"})
		return runs.Run{}, 0, false
	}
	return run, threshold, true
}

// threshold parses an optional millisecond threshold, defaulting to config.
func (s *Server) threshold(raw string) (float64, error) {
	if raw == "" {
		return s.cfg.ThresholdMs, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("threshold_ms must be a non-negative number, got %q", raw)
	}
	return v, nil
}

func view(run runs.Run, thresholdMs float64) runView {
	return runView{
		ID:          run.ID,
		Name:        run.Name,
		Format:      run.Format,
		Finished:    run.Finished,
		ThresholdMs: thresholdMs,
		Summary:     report.WithThreshold(run.Summary, thresholdMs),
	}
}
