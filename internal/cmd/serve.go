package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/atikulmunna/loupe/internal/engine"
	"github.com/atikulmunna/loupe/internal/hub"
	"github.com/atikulmunna/loupe/internal/metrics"
	"github.com/atikulmunna/loupe/internal/runs"
	"github.com/atikulmunna/loupe/internal/server"
	"github.com/atikulmunna/loupe/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP API",
	Long: `Serve accepts log uploads over HTTP, streams progress over WebSocket and keeps
finished runs in memory for lookup and CSV export. With --spool, files dropped
into the directory are analyzed automatically.

Examples:
  loupe serve --addr :8080
  loupe serve -f tomcat --spool /var/spool/loupe`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.String("spool", "", "directory whose new files are analyzed automatically")
	f.Duration("run-ttl", 0, "how long finished runs are kept (default 30m)")
	f.Int64("max-upload", 0, "maximum upload size in bytes (default 1GiB)")

	for key, flag := range map[string]string{
		"server.addr":             "addr",
		"server.spool-dir":        "spool",
		"server.run-ttl":          "run-ttl",
		"server.max-upload-bytes": "max-upload",
	} {
		cobra.CheckErr(viper.BindPFlag(key, f.Lookup(flag)))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	h := hub.New(log)
	store := runs.New(cfg.Server.RunTTL)
	srv := server.New(engine.New(log, m), h, store, m, cfg, log)

	var spool *watcher.Watcher
	if cfg.Server.SpoolDir != "" {
		spool, err = watcher.New(cfg.Server.SpoolDir, cfg.Server.Settle, log)
		if err != nil {
			return fmt.Errorf("spool: %w", err)
		}
		log.Info().Str("dir", spool.Dir()).Msg("watching spool directory")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Start(ctx)
		return nil
	})
	g.Go(func() error { return srv.Start(ctx) })

	if spool != nil {
		g.Go(func() error {
			spool.Start(ctx)
			return nil
		})
		g.Go(func() error {
			for path := range spool.Ready {
				run, err := srv.AnalyzeFile(ctx, path)
				if err != nil {
					log.Error().Err(err).Str("file", path).Msg("spool analysis failed")
					continue
				}
				log.Info().Str("run", run.ID).Str("file", path).Msg("spool file analyzed")
			}
			return nil
		})
	}

	return g.Wait()
}
