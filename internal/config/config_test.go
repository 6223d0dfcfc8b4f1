package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZacxDev/video-captioner/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultUploadDir, cfg.UploadDir)
	assert.Equal(t, int64(DefaultMaxConcurrentJobs), cfg.MaxConcurrentJobs)
	assert.Equal(t, DefaultRetention, cfg.Retention)
	assert.Equal(t, types.OutputFormatMP4, cfg.OutputFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.TrustProxyHeaders)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "captioner.yaml")
	body := "upload_dir: /srv/captions\nmax_concurrent_jobs: 4\nretention: 2h\noutput_format: webm\nlog_level: DEBUG\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("CAPTIONER_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("CAPTIONER_TRUST_PROXY_HEADERS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/captions", cfg.UploadDir)
	assert.Equal(t, int64(4), cfg.MaxConcurrentJobs)
	assert.Equal(t, 2*time.Hour, cfg.Retention)
	assert.Equal(t, types.OutputFormatWebM, cfg.OutputFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_format: avi\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_format")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStyleRoundTripAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.yaml")
	require.NoError(t, WriteStyle(path, &Style{FontSize: 48, FontColor: "yellow"}))

	style, err := LoadStyle(path)
	require.NoError(t, err)
	assert.Equal(t, 48, style.FontSize)
	assert.Equal(t, DefaultOutlineColor, style.OutlineColor)

	opts := &CaptionOptions{FontColor: "white"}
	style.Apply(opts)
	assert.Equal(t, 48, opts.FontSize)
	assert.Equal(t, "white", opts.FontColor, "explicit flag must win")
	assert.Equal(t, DefaultOutlineColor, opts.OutlineColor)
}
