package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/atikulmunna/loupe/internal/model"
	"github.com/atikulmunna/loupe/internal/reader"
	"github.com/atikulmunna/loupe/internal/report"
	"github.com/atikulmunna/loupe/internal/selector"
)

// EnvPrefix namespaces environment overrides, e.g. LOUPE_FORMAT.
const EnvPrefix = "LOUPE"

const (
	defaultOutput         = "text"
	defaultLogLevel       = "info"
	defaultServerAddr     = ":8080"
	defaultRunTTL         = 30 * time.Minute
	defaultMaxUploadBytes = 1 << 30
	defaultSettle         = 500 * time.Millisecond
)

// Config is the runtime configuration shared by all commands.
type Config struct {
	Format      string  `mapstructure:"format"`
	ChunkSize   int     `mapstructure:"chunk-size"`
	SlowCap     int     `mapstructure:"slow-cap"`
	ThresholdMs float64 `mapstructure:"threshold-ms"`
	TopN        int     `mapstructure:"top-n"`
	TopLatencyN int     `mapstructure:"top-latency-n"`
	Output      string  `mapstructure:"output"`
	LogLevel    string  `mapstructure:"log-level"`
	ExportDir   string  `mapstructure:"export-dir"`
	Server      Server  `mapstructure:"server"`
}

// Server holds settings for the serve command.
type Server struct {
	Addr           string        `mapstructure:"addr"`
	SpoolDir       string        `mapstructure:"spool-dir"`
	RunTTL         time.Duration `mapstructure:"run-ttl"`
	MaxUploadBytes int64         `mapstructure:"max-upload-bytes"`
	Settle         time.Duration `mapstructure:"settle"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("format", string(model.FormatNginx))
	v.SetDefault("chunk-size", reader.DefaultChunkSize)
	v.SetDefault("slow-cap", selector.DefaultCap)
	v.SetDefault("threshold-ms", 0)
	v.SetDefault("top-n", report.DefaultTopN)
	v.SetDefault("top-latency-n", report.DefaultTopLatencyN)
	v.SetDefault("output", defaultOutput)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("server.addr", defaultServerAddr)
	v.SetDefault("server.run-ttl", defaultRunTTL)
	v.SetDefault("server.max-upload-bytes", defaultMaxUploadBytes)
	v.SetDefault("server.settle", defaultSettle)
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and the format name.
func (c Config) Validate() error {
	if _, err := model.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk-size must be positive, got %d", c.ChunkSize)
	}
	if c.SlowCap < 1 {
		return fmt.Errorf("slow-cap must be positive, got %d", c.SlowCap)
	}
	if c.ThresholdMs < 0 {
		return fmt.Errorf("threshold-ms must not be negative, got %v", c.ThresholdMs)
	}
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("output must be text or json, got %q", c.Output)
	}
	return nil
}

// LogFormat returns the validated format.
func (c Config) LogFormat() model.LogFormat {
	f, _ := model.ParseFormat(c.Format)
	return f
}
