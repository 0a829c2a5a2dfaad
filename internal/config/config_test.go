package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/loupe/internal/model"
	"github.com/atikulmunna/loupe/internal/reader"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, model.FormatNginx, cfg.LogFormat())
	assert.Equal(t, reader.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, 1000, cfg.SlowCap)
	assert.Equal(t, 10, cfg.TopN)
	assert.Equal(t, 20, cfg.TopLatencyN)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Server.RunTTL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loupe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
format: tomcat
threshold-ms: 200
chunk-size: 65536
server:
  spool-dir: /var/spool/loupe
  run-ttl: 5m
`), 0644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, model.FormatTomcat, cfg.LogFormat())
	assert.Equal(t, 200.0, cfg.ThresholdMs)
	assert.Equal(t, 65536, cfg.ChunkSize)
	assert.Equal(t, "/var/spool/loupe", cfg.Server.SpoolDir)
	assert.Equal(t, 5*time.Minute, cfg.Server.RunTTL)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	base, err := Load(v)
	require.NoError(t, err)

	bad := base
	bad.Format = "apache"
	assert.True(t, errors.Is(bad.Validate(), model.ErrUnknownFormat))

	bad = base
	bad.ChunkSize = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.SlowCap = -1
	assert.Error(t, bad.Validate())

	bad = base
	bad.ThresholdMs = -5
	assert.Error(t, bad.Validate())

	bad = base
	bad.Output = "xml"
	assert.Error(t, bad.Validate())
}
