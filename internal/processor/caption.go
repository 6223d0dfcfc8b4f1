package processor

import (
	"context"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ZacxDev/video-captioner/internal/caption"
	"github.com/ZacxDev/video-captioner/internal/config"
	"github.com/ZacxDev/video-captioner/internal/ffmpeg"
	"github.com/pkg/errors"
)

// Job is a single caption request against an uploaded video. WorkDir holds
// the intermediate caption layers and must be unique per job.
type Job struct {
	ID         string
	InputPath  string
	OutputPath string
	WorkDir    string
	Request    caption.Request
}

// Result describes a finished caption job.
type Result struct {
	ID         string
	InputPath  string
	OutputPath string
	Video      *ffmpeg.VideoMetadata
	Lines      []string
	Elapsed    time.Duration
}

// Process burns the requested caption into the job's input video.
func (c *Captioner) Process(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	logger := c.logger.With(slog.String("job_id", job.ID))

	styles, err := job.Request.Resolve()
	if err != nil {
		return nil, err
	}
	if job.WorkDir == "" {
		return nil, errors.New("job has no work directory")
	}

	outputPath, err := ensureOutputPath(job.OutputPath, c.format)
	if err != nil {
		return nil, err
	}

	metadata, err := c.backend.Probe(ctx, job.InputPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get video metadata")
	}

	maxChars := caption.MaxCharsPerLine(metadata.Width, styles.Main.FontSize)
	lines := caption.WrapLines(styles.Text, maxChars)
	text := caption.Wrap(styles.Text, maxChars)

	logger.Debug("wrapped caption",
		slog.Int("max_chars", maxChars),
		slog.Int("lines", len(lines)),
		slog.Int("width", metadata.Width),
		slog.Int("height", metadata.Height),
	)

	outlineImg, err := c.renderer.Render(text, styles.Outline, metadata.Width, metadata.Height)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render outline layer")
	}
	mainImg, err := c.renderer.Render(text, styles.Main, metadata.Width, metadata.Height)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render caption layer")
	}

	outlinePath := filepath.Join(job.WorkDir, config.OutlineLayer)
	mainPath := filepath.Join(job.WorkDir, config.MainLayer)
	if err := writePNG(outlinePath, outlineImg); err != nil {
		return nil, err
	}
	if err := writePNG(mainPath, mainImg); err != nil {
		return nil, err
	}

	overlays := overlaysFor(outlinePath, caption.OutlineLayers(outlineImg, metadata.Duration))
	overlays = append(overlays, overlaysFor(mainPath, []caption.Layer{caption.MainLayer(mainImg, metadata.Duration)})...)

	err = c.backend.Compose(ctx, ffmpeg.CompositeJob{
		InputPath:  job.InputPath,
		OutputPath: outputPath,
		Format:     c.format,
		Duration:   metadata.Duration,
		HasAudio:   metadata.HasAudio,
		Overlays:   overlays,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to compose caption")
	}

	elapsed := time.Since(start)
	logger.Info("captioned video",
		slog.String("output", outputPath),
		slog.Duration("elapsed", elapsed),
	)

	return &Result{
		ID:         job.ID,
		InputPath:  job.InputPath,
		OutputPath: outputPath,
		Video:      metadata,
		Lines:      lines,
		Elapsed:    elapsed,
	}, nil
}

func overlaysFor(path string, layers []caption.Layer) []ffmpeg.Overlay {
	overlays := make([]ffmpeg.Overlay, 0, len(layers))
	for _, l := range layers {
		overlays = append(overlays, ffmpeg.Overlay{
			ImagePath: path,
			X:         l.Position.X,
			Y:         l.Position.Y,
			Centered:  l.Position.Centered,
		})
	}
	return overlays
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create layer %s", path)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to encode layer %s", path)
	}
	return errors.WithStack(f.Close())
}
