package config

import (
	"time"

	"github.com/ZacxDev/video-captioner/pkg/types"
	"github.com/pkg/errors"
)

// CaptionOptions defines options for captioning a single video from the CLI
type CaptionOptions struct {
	InputPath    string
	OutputPath   string
	Text         string
	FontSize     int
	FontColor    string
	OutlineColor string
	FontPath     string
	OutputFormat types.OutputFormat
	Verbose      bool
}

// Config holds the server configuration. It is passed explicitly to the
// components that need it; nothing reads it from package state.
type Config struct {
	ListenAddr        string             `mapstructure:"listen_addr"`
	UploadDir         string             `mapstructure:"upload_dir"`
	MaxUploadBytes    int64              `mapstructure:"max_upload_bytes"`
	MaxConcurrentJobs int64              `mapstructure:"max_concurrent_jobs"`
	RateLimitRPS      float64            `mapstructure:"rate_limit_rps"`
	RateLimitBurst    int                `mapstructure:"rate_limit_burst"`
	TrustProxyHeaders bool               `mapstructure:"trust_proxy_headers"`
	Retention         time.Duration      `mapstructure:"retention"`
	SweepInterval     time.Duration      `mapstructure:"sweep_interval"`
	MinFreeBytes      uint64             `mapstructure:"min_free_bytes"`
	FontPath          string             `mapstructure:"font_path"`
	OutputFormat      types.OutputFormat `mapstructure:"output_format"`
	LogLevel          string             `mapstructure:"log_level"`
	LogFormat         string             `mapstructure:"log_format"`
	ShutdownTimeout   time.Duration      `mapstructure:"shutdown_timeout"`
	Verbose           bool               `mapstructure:"verbose"`
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if c.UploadDir == "" {
		return errors.New("upload_dir is required")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxConcurrentJobs <= 0 {
		return errors.Errorf("max_concurrent_jobs must be positive, got %d", c.MaxConcurrentJobs)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	switch c.LogFormat {
	case "", "text", "console", "json":
	default:
		return errors.Errorf("unsupported log_format: %s (supported: text, json)", c.LogFormat)
	}
	if !c.OutputFormat.Valid() {
		return errors.Errorf("unsupported output_format: %s (supported: mp4, webm)", c.OutputFormat)
	}
	return nil
}

const (
	// Default server settings
	DefaultListenAddr        = ":5000"
	DefaultUploadDir         = "uploads"
	DefaultMaxUploadBytes    = 512 * 1024 * 1024 // 512MB
	DefaultMaxConcurrentJobs = 2
	DefaultRateLimitRPS      = 1.0
	DefaultRateLimitBurst    = 5
	DefaultRetention         = 24 * time.Hour
	DefaultSweepInterval     = 15 * time.Minute
	DefaultMinFreeBytes      = 1024 * 1024 * 1024 // 1GB
	DefaultShutdownTimeout   = 30 * time.Second

	// Caption text settings
	FontFamily          = "Go Bold" // embedded face used when no font_path is set
	GlyphKerning        = -2        // pixels added between adjacent glyphs
	LineInterline       = -1        // pixels added between lines
	OutlineOffset       = 2         // stroke simulation offset in pixels
	DefaultOutlineColor = "black"

	// Wrap width policy: floor((width / WrapWidthDivisor) * (fontSize / WrapFontBase))
	WrapWidthDivisor = 20
	WrapFontBase     = 50

	// Fixed filenames inside a job directory
	InputBaseName  = "input"
	ResultBaseName = "result"
	OutlineLayer   = "outline.png"
	MainLayer      = "main.png"

	// Job directory prefix used by the CLI when no upload dir exists
	TempDirPrefix = "video_caption_"
)
