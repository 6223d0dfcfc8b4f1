package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/video-captioner/pkg/types"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type CodecSettings struct {
	VideoCodec      string
	AudioCodec      string
	ContainerFormat string
	FileExtension   string
	EncoderOptions  ffmpeg.KwArgs
}

var codecPresets = map[types.OutputFormat]CodecSettings{
	types.OutputFormatMP4: {
		VideoCodec:      "libx264",
		AudioCodec:      "aac",
		ContainerFormat: "mp4",
		FileExtension:   ".mp4",
		EncoderOptions: ffmpeg.KwArgs{
			"preset":    "medium",
			"crf":       20,
			"profile:v": "high",
			"movflags":  "+faststart",
		},
	},
	types.OutputFormatWebM: {
		VideoCodec:      "libvpx-vp9",
		AudioCodec:      "libopus",
		ContainerFormat: "webm",
		FileExtension:   ".webm",
		EncoderOptions: ffmpeg.KwArgs{
			"crf":      30,
			"b:v":      0,
			"deadline": "good",
			"cpu-used": 2,
			"row-mt":   1,
		},
	},
}

// GetCodecSettings returns the encoder profile for the format. Unknown
// formats fall back to mp4 (libx264 + aac).
func GetCodecSettings(format types.OutputFormat) CodecSettings {
	if settings, ok := codecPresets[format]; ok {
		return settings
	}
	return codecPresets[types.OutputFormatMP4]
}

// VideoMetadata describes a probed video
type VideoMetadata struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
	HasAudio bool
}

// Overlay is one image layer of a composite. Layers are drawn in slice order,
// so the first overlay ends up directly above the source video.
type Overlay struct {
	ImagePath string
	X, Y      int
	Centered  bool
}

// CompositeJob describes one caption burn-in.
type CompositeJob struct {
	InputPath  string
	OutputPath string
	Format     types.OutputFormat
	Duration   float64
	HasAudio   bool
	Overlays   []Overlay
}

// Processor wraps FFmpeg functionality
type Processor struct {
	logger  *slog.Logger
	verbose bool
}

// NewProcessor creates a new FFmpeg processor
func NewProcessor(logger *slog.Logger, verbose bool) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:  logger,
		verbose: verbose,
	}
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Duration   string `json:"duration"`
		NbFrames   string `json:"nb_frames"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// DefaultProbeTimeout limits ffprobe when the caller sets no deadline.
const DefaultProbeTimeout = 30 * time.Second

// Probe retrieves metadata about a video file
func (p *Processor) Probe(ctx context.Context, inputPath string) (*VideoMetadata, error) {
	timeout, err := probeTimeout(ctx)
	if err != nil {
		return nil, err
	}

	type probeResult struct {
		out string
		err error
	}
	done := make(chan probeResult, 1)
	go func() {
		out, err := ffmpeg.ProbeWithTimeout(inputPath, timeout, ffmpeg.KwArgs{})
		done <- probeResult{out, err}
	}()

	var probe string
	select {
	case res := <-done:
		if res.err != nil {
			return nil, errors.Wrap(res.err, "error probing video")
		}
		probe = res.out
	case <-ctx.Done():
		// ffprobe is bounded by timeout and exits on its own.
		return nil, errors.Wrap(ctx.Err(), "probe cancelled")
	}

	metadata, err := ParseProbe(probe)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("probed video",
		slog.String("path", inputPath),
		slog.Int("width", metadata.Width),
		slog.Int("height", metadata.Height),
		slog.Float64("duration", metadata.Duration),
		slog.String("codec", metadata.Codec),
		slog.Bool("audio", metadata.HasAudio),
	)
	return metadata, nil
}

// probeTimeout bounds ffprobe by the context deadline, or by
// DefaultProbeTimeout when the context has none.
func probeTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.WithStack(err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return DefaultProbeTimeout, nil
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, errors.WithStack(context.DeadlineExceeded)
	}
	return remaining, nil
}

// ParseProbe extracts VideoMetadata from ffprobe JSON output.
func ParseProbe(probe string) (*VideoMetadata, error) {
	var data probeOutput
	if err := json.Unmarshal([]byte(probe), &data); err != nil {
		return nil, errors.Wrap(err, "failed to decode probe output")
	}
	if len(data.Streams) == 0 {
		return nil, errors.New("no streams found in video")
	}

	metadata := &VideoMetadata{}
	videoIndex := -1
	for i, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if videoIndex < 0 {
				videoIndex = i
			}
		case "audio":
			metadata.HasAudio = true
		}
	}
	if videoIndex < 0 {
		return nil, errors.New("no video stream found")
	}
	video := data.Streams[videoIndex]

	// Stream duration first, then container duration, then frames / rate.
	duration := parseSeconds(video.Duration)
	if duration == 0 {
		duration = parseSeconds(data.Format.Duration)
	}
	if duration == 0 {
		frames := parseSeconds(video.NbFrames)
		if rate := parseFrameRate(video.RFrameRate); frames > 0 && rate > 0 {
			duration = frames / rate
		}
	}
	if duration == 0 {
		return nil, errors.New("could not determine video duration")
	}
	if video.Width <= 0 || video.Height <= 0 {
		return nil, errors.Errorf("invalid video dimensions %dx%d", video.Width, video.Height)
	}

	metadata.Duration = duration
	metadata.Width = video.Width
	metadata.Height = video.Height
	metadata.Codec = video.CodecName
	return metadata, nil
}

func parseSeconds(s string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func parseFrameRate(s string) float64 {
	nums := strings.Split(s, "/")
	if len(nums) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(nums[0], 64)
	den, err2 := strconv.ParseFloat(nums[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// BuildComposite assembles the ffmpeg graph for job without running it.
func (p *Processor) BuildComposite(job CompositeJob) (*ffmpeg.Stream, error) {
	if job.Duration <= 0 {
		return nil, errors.Errorf("invalid duration %.3f", job.Duration)
	}

	base := ffmpeg.Input(job.InputPath)
	video := base.Video()

	duration := strconv.FormatFloat(job.Duration, 'f', 3, 64)
	for _, o := range job.Overlays {
		layer := ffmpeg.Input(o.ImagePath, ffmpeg.KwArgs{
			"loop": 1,
			"t":    duration,
		})
		x, y := overlayCoordinates(o)
		video = p.CreateOverlayFilter(video, layer, x, y)
	}

	streams := []*ffmpeg.Stream{video}
	if job.HasAudio {
		streams = append(streams, base.Audio())
	}

	codecSettings := GetCodecSettings(job.Format)
	outputKwargs := ffmpeg.KwArgs{
		"c:v":     codecSettings.VideoCodec,
		"pix_fmt": "yuv420p",
		"threads": GetOptimalThreadCount(),
	}
	if job.HasAudio {
		outputKwargs["c:a"] = codecSettings.AudioCodec
	}
	for k, v := range codecSettings.EncoderOptions {
		outputKwargs[k] = v
	}

	return ffmpeg.Output(streams, job.OutputPath, outputKwargs).OverWriteOutput(), nil
}

// Compose renders the overlays onto the source video and encodes the result
// to job.OutputPath. A failed encode leaves no output file behind.
func (p *Processor) Compose(ctx context.Context, job CompositeJob) error {
	stream, err := p.BuildComposite(job)
	if err != nil {
		return err
	}

	if p.verbose {
		p.logger.Debug("ffmpeg command", slog.String("args", strings.Join(stream.GetArgs(), " ")))
	}

	var stderr bytes.Buffer
	cmd := stream.Compile()
	cmd.Stdout = nil
	cmd.Stderr = &stderr
	if p.verbose {
		cmd.Stderr = io.MultiWriter(&stderr, os.Stderr)
	}

	if err := runContext(ctx, cmd); err != nil {
		p.removePartial(job.OutputPath)
		return errors.Wrapf(err, "failed to compose video: %s", tail(stderr.String(), 20))
	}

	fileInfo, err := p.verifyOutput(job.OutputPath)
	if err != nil {
		return err
	}

	p.logger.Info("composed video",
		slog.String("output", job.OutputPath),
		slog.Int("layers", len(job.Overlays)),
		slog.Float64("size_mb", float64(fileInfo.Size())/1024/1024),
	)
	return nil
}

// verifyOutput checks that ffmpeg left a non-empty file at path and removes
// whatever is there otherwise.
func (p *Processor) verifyOutput(path string) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err == nil && fileInfo.Size() > 0 {
		return fileInfo, nil
	}
	p.removePartial(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify output file")
	}
	return nil, errors.Errorf("output file is empty: %s", path)
}

func (p *Processor) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("failed to remove partial output", slog.String("path", path), slog.Any("error", err))
	}
}

// CreateOverlayFilter creates a filter for overlaying one video on top of another
func (p *Processor) CreateOverlayFilter(main, overlay *ffmpeg.Stream, x, y string) *ffmpeg.Stream {
	return ffmpeg.Filter([]*ffmpeg.Stream{main, overlay}, "overlay", ffmpeg.Args{
		fmt.Sprintf("x=%s", x),
		fmt.Sprintf("y=%s", y),
	})
}

func overlayCoordinates(o Overlay) (string, string) {
	if o.Centered {
		return "(W-w)/2", "(H-h)/2"
	}
	return strconv.Itoa(o.X), strconv.Itoa(o.Y)
}

// runContext runs cmd and kills it when ctx is cancelled.
func runContext(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "ffmpeg start error")
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return errors.WithStack(ctx.Err())
	}
}

// GetOptimalThreadCount returns the encoder thread count: 75% of logical
// cores, at least one.
func GetOptimalThreadCount() int {
	cpuCount, err := cpu.Counts(true)
	if err != nil || cpuCount <= 0 {
		cpuCount = runtime.NumCPU()
	}
	return int(math.Max(1, float64(cpuCount)*0.75))
}

var videoExtensions = []string{".mp4", ".webm", ".mkv", ".avi", ".mov", ".m4v"}

// EnsureExtension gives filename the container extension of format. A
// trailing video extension, in any case, is replaced rather than kept.
func EnsureExtension(filename string, format types.OutputFormat) string {
	want := GetCodecSettings(format).FileExtension
	ext := filepath.Ext(filename)
	if strings.EqualFold(ext, want) {
		return filename
	}
	for _, known := range videoExtensions {
		if strings.EqualFold(ext, known) {
			filename = strings.TrimSuffix(filename, ext)
			break
		}
	}
	return filename + want
}

func tail(s string, lines int) string {
	parts := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}
