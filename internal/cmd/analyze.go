package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/loupe/internal/engine"
	"github.com/atikulmunna/loupe/internal/export"
	"github.com/atikulmunna/loupe/internal/model"
	"github.com/atikulmunna/loupe/internal/output"
	"github.com/atikulmunna/loupe/internal/reader"
	"github.com/atikulmunna/loupe/internal/report"
	"github.com/atikulmunna/loupe/internal/watcher"
)

var quiet bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Analyze one or more log files",
	Long: `Analyze log files (or glob patterns) and print a performance report per file.
Slow requests can be narrowed with --threshold-ms and exported as CSV.

Examples:
  loupe analyze access.log --format nginx
  loupe analyze "/var/log/tomcat/**/*.log" -f tomcat --threshold-ms 500
  loupe analyze sql.log -f mybatis_sql --export ./reports -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("export", "", "directory to write slow-request CSV files into")
	analyzeCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress indicator")
	cobra.CheckErr(viper.BindPFlag("export-dir", analyzeCmd.Flags().Lookup("export")))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := watcher.Expand(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files matched the given patterns: %v", args)
	}

	an := engine.New(log, nil)
	renderer := output.New(cfg.Output)
	stderr := cmd.ErrOrStderr()

	var failed int
	for _, path := range paths {
		var progress reader.ProgressFunc
		if !quiet {
			progress = progressPrinter(stderr, filepath.Base(path))
		}

		sum, err := an.AnalyzeFile(ctx, path, engineOptions(cfg, progress))
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(stderr, "\nanalysis cancelled")
				return ctx.Err()
			}
			log.Error().Err(err).Str("file", path).Msg("analysis failed")
			failed++
			continue
		}

		sum = report.WithThreshold(sum, cfg.ThresholdMs)
		if err := renderer.Render(path, sum); err != nil {
			return fmt.Errorf("render %s: %w", path, err)
		}

		if cfg.ExportDir != "" {
			prefix := ""
			if len(paths) > 1 {
				prefix = filepath.Base(path) + "_"
			}
			out, err := writeExport(cfg.ExportDir, prefix, cfg.LogFormat(), sum.SlowRequests)
			if err != nil {
				return err
			}
			log.Info().Str("file", out).Int("rows", len(sum.SlowRequests)).Msg("slow requests exported")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) could not be analyzed", failed, len(paths))
	}
	return nil
}

// progressPrinter returns a ProgressFunc that redraws a single status line,
// writing only when the whole percentage changes.
func progressPrinter(w io.Writer, name string) reader.ProgressFunc {
	last := -1
	return func(f float64) {
		pct := int(f * 100)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r%s %3d%%", name, pct)
		if pct >= 100 {
			fmt.Fprintln(w)
		}
	}
}

func writeExport(dir, prefix string, format model.LogFormat, rows []model.SlowRequest) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, prefix+export.Filename(format, time.Now()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := export.Write(f, rows); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}
