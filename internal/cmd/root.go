package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/loupe/internal/config"
	"github.com/atikulmunna/loupe/internal/engine"
	"github.com/atikulmunna/loupe/internal/logging"
	"github.com/atikulmunna/loupe/internal/model"
	"github.com/atikulmunna/loupe/internal/reader"
	"github.com/atikulmunna/loupe/internal/report"
	"github.com/atikulmunna/loupe/internal/selector"
)

var (
	cfgFile string
	logJSON bool
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "loupe",
	Short: "Loupe, a log performance analyzer",
	Long: `Loupe reads large SQL-timing and HTTP access logs in fixed-size chunks and
reports request counts, latency distribution, error rates, request rate over
time and the slowest individual requests.

Supported formats: mybatis_sql, nginx, tomcat, logback.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.loupe.yaml)")
	pf.BoolVar(&logJSON, "log-json", false, "emit logs as JSON (implied by --output json)")
	pf.StringP("format", "f", string(model.FormatNginx), "log format: "+formatList())
	pf.StringP("output", "o", "text", "report format: text, json")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Int("chunk-size", reader.DefaultChunkSize, "bytes read per chunk")
	pf.Int("slow-cap", selector.DefaultCap, "number of slowest requests retained")
	pf.Float64("threshold-ms", 0, "only list slow requests at or above this many milliseconds")
	pf.Int("top-n", report.DefaultTopN, "rows in the top sources/targets tables")
	pf.Int("top-latency-n", report.DefaultTopLatencyN, "rows in the slowest targets table")

	for _, name := range []string{"format", "output", "log-level", "chunk-size", "slow-cap", "threshold-ms", "top-n", "top-latency-n"} {
		cobra.CheckErr(viper.BindPFlag(name, pf.Lookup(name)))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".loupe")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			cobra.CheckErr(fmt.Errorf("read config: %w", err))
		}
	}
}

// setup loads the validated configuration and installs the logger.
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	log := logging.Init(logJSON || cfg.Output == "json", logging.ParseLevel(cfg.LogLevel))
	if f := viper.ConfigFileUsed(); f != "" {
		log.Debug().Str("file", f).Msg("config loaded")
	}
	return cfg, log, nil
}

// engineOptions maps configuration onto per-run engine options.
func engineOptions(cfg config.Config, progress reader.ProgressFunc) engine.Options {
	return engine.Options{
		Format:    cfg.LogFormat(),
		ChunkSize: cfg.ChunkSize,
		SlowCap:   cfg.SlowCap,
		Report:    report.Options{TopN: cfg.TopN, TopLatencyN: cfg.TopLatencyN},
		Progress:  progress,
	}
}

func formatList() string {
	names := make([]string, 0, len(model.Formats()))
	for _, f := range model.Formats() {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}
