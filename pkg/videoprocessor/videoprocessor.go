package videoprocessor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ZacxDev/video-captioner/internal/caption"
	"github.com/ZacxDev/video-captioner/internal/config"
	"github.com/ZacxDev/video-captioner/internal/ffmpeg"
	"github.com/ZacxDev/video-captioner/internal/logging"
	"github.com/ZacxDev/video-captioner/internal/processor"
	"github.com/ZacxDev/video-captioner/pkg/types"
	"github.com/pkg/errors"
)

// CaptionOptions defines options for captioning a single video
type CaptionOptions = config.CaptionOptions

// VideoMetadata contains metadata about a video file
type VideoMetadata = ffmpeg.VideoMetadata

// Result describes a captioned video
type Result = processor.Result

// NewCaptioner wires the font renderer and the ffmpeg backend into a
// caption pipeline.
func NewCaptioner(fontPath string, format types.OutputFormat, logger *slog.Logger, verbose bool) (*processor.Captioner, error) {
	renderer, err := caption.NewRenderer(fontPath)
	if err != nil {
		return nil, err
	}
	backend := ffmpeg.NewProcessor(logger, verbose)
	return processor.NewCaptioner(backend, renderer, logger, format), nil
}

// CaptionVideo burns a caption into a single video file. Caption layers are
// rendered into a temporary directory that is removed afterwards.
func CaptionVideo(ctx context.Context, opts *CaptionOptions) (*Result, error) {
	if opts.InputPath == "" || opts.OutputPath == "" {
		return nil, errors.New("input and output paths are required")
	}
	if _, err := os.Stat(opts.InputPath); err != nil {
		return nil, errors.Wrap(err, "input video not accessible")
	}

	format := opts.OutputFormat
	if format == "" {
		format = types.OutputFormatMP4
	}
	if !format.Valid() {
		return nil, errors.Errorf("unsupported output format: %s (supported: mp4, webm)", format)
	}
	if opts.FontColor == "" {
		opts.FontColor = "white"
	}

	level := "info"
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level})
	if err != nil {
		return nil, err
	}

	captioner, err := NewCaptioner(opts.FontPath, format, logger, opts.Verbose)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", config.TempDirPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}
	defer os.RemoveAll(workDir)

	return captioner.Process(ctx, processor.Job{
		ID:         filepath.Base(workDir),
		InputPath:  opts.InputPath,
		OutputPath: opts.OutputPath,
		WorkDir:    workDir,
		Request: caption.Request{
			Text:         opts.Text,
			FontSize:     opts.FontSize,
			FontColor:    opts.FontColor,
			OutlineColor: opts.OutlineColor,
		},
	})
}

// GetVideoMetadata retrieves metadata about a video file
func GetVideoMetadata(ctx context.Context, inputPath string) (*VideoMetadata, error) {
	return ffmpeg.NewProcessor(nil, false).Probe(ctx, inputPath)
}
