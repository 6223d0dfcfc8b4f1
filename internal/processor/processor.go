package processor

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ZacxDev/video-captioner/internal/caption"
	"github.com/ZacxDev/video-captioner/internal/ffmpeg"
	"github.com/ZacxDev/video-captioner/pkg/types"
	"github.com/pkg/errors"
)

// VideoBackend probes and encodes videos.
type VideoBackend interface {
	Probe(ctx context.Context, path string) (*ffmpeg.VideoMetadata, error)
	Compose(ctx context.Context, job ffmpeg.CompositeJob) error
}

// TextRenderer rasterises caption text onto a transparent canvas.
type TextRenderer interface {
	Render(text string, style caption.Style, width, height int) (image.Image, error)
}

// Captioner handles caption burn-in operations
type Captioner struct {
	backend  VideoBackend
	renderer TextRenderer
	logger   *slog.Logger
	format   types.OutputFormat
}

// NewCaptioner creates a new captioner
func NewCaptioner(backend VideoBackend, renderer TextRenderer, logger *slog.Logger, format types.OutputFormat) *Captioner {
	if logger == nil {
		logger = slog.Default()
	}
	if !format.Valid() {
		format = types.OutputFormatMP4
	}
	return &Captioner{
		backend:  backend,
		renderer: renderer,
		logger:   logger,
		format:   format,
	}
}

// Format returns the output profile the captioner encodes with.
func (c *Captioner) Format() types.OutputFormat {
	return c.format
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9-_.]`)
	underscores = regexp.MustCompile(`_+`)
)

// SanitizeFilename reduces an uploaded filename to a safe base name without
// its extension. An empty result falls back to "video".
func SanitizeFilename(filename string) string {
	sanitized := filepath.Base(filename)
	sanitized = strings.TrimSuffix(sanitized, filepath.Ext(sanitized))

	sanitized = unsafeChars.ReplaceAllString(sanitized, "_")
	sanitized = underscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_.")

	if sanitized == "" {
		return "video"
	}
	return sanitized
}

// ensureOutputPath creates the parent directory of path and gives it the
// container extension of format.
func ensureOutputPath(path string, format types.OutputFormat) (string, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	return ffmpeg.EnsureExtension(path, format), nil
}
