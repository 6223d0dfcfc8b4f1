package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZacxDev/video-captioner/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const probeWithAudio = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 640, "height": 360, "duration": "2.002000", "r_frame_rate": "30/1"},
    {"codec_type": "audio", "codec_name": "aac", "duration": "2.010000"}
  ],
  "format": {"duration": "2.010000"}
}`

func TestParseProbe(t *testing.T) {
	md, err := ParseProbe(probeWithAudio)
	require.NoError(t, err)
	assert.Equal(t, 640, md.Width)
	assert.Equal(t, 360, md.Height)
	assert.InDelta(t, 2.002, md.Duration, 1e-9)
	assert.Equal(t, "h264", md.Codec)
	assert.True(t, md.HasAudio)
}

func TestParseProbeDurationFallbacks(t *testing.T) {
	formatOnly := `{"streams":[{"codec_type":"video","codec_name":"vp9","width":1280,"height":720}],"format":{"duration":"12.5"}}`
	md, err := ParseProbe(formatOnly)
	require.NoError(t, err)
	assert.Equal(t, 12.5, md.Duration)
	assert.False(t, md.HasAudio)

	framesOnly := `{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720,"nb_frames":"50","r_frame_rate":"25/1"}],"format":{}}`
	md, err = ParseProbe(framesOnly)
	require.NoError(t, err)
	assert.Equal(t, 2.0, md.Duration)
}

func TestParseProbeErrors(t *testing.T) {
	tests := map[string]string{
		"not json":    `{`,
		"no streams":  `{"streams":[]}`,
		"audio only":  `{"streams":[{"codec_type":"audio","duration":"3"}]}`,
		"no duration": `{"streams":[{"codec_type":"video","width":10,"height":10}],"format":{}}`,
		"no size":     `{"streams":[{"codec_type":"video","duration":"1"}]}`,
	}
	for name, probe := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProbe(probe)
			assert.Error(t, err)
		})
	}
}

func captionJob() CompositeJob {
	return CompositeJob{
		InputPath:  "in.mp4",
		OutputPath: "out.mp4",
		Format:     types.OutputFormatMP4,
		Duration:   2,
		HasAudio:   true,
		Overlays: []Overlay{
			{ImagePath: "outline.png", X: 2, Y: 2},
			{ImagePath: "outline.png", X: -2, Y: -2},
			{ImagePath: "outline.png", X: -2, Y: 2},
			{ImagePath: "outline.png", X: 2, Y: -2},
			{ImagePath: "main.png", Centered: true},
		},
	}
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildCompositeDrawOrder(t *testing.T) {
	p := NewProcessor(nil, false)
	stream, err := p.BuildComposite(captionJob())
	require.NoError(t, err)

	args := stream.GetArgs()
	graph := argValue(args, "-filter_complex")
	require.NotEmpty(t, graph)

	order := []string{
		"overlay=x=2:y=2",
		"overlay=x=-2:y=-2",
		"overlay=x=-2:y=2",
		"overlay=x=2:y=-2",
		"overlay=x=(W-w)/2:y=(H-h)/2",
	}
	last := -1
	for _, f := range order {
		idx := strings.Index(graph, f)
		require.GreaterOrEqual(t, idx, 0, "missing %s in %s", f, graph)
		assert.Greater(t, idx, last, "%s drawn out of order", f)
		last = idx
	}

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-loop 1")
	assert.Contains(t, joined, "-t 2.000")
	assert.Equal(t, "libx264", argValue(args, "-c:v"))
	assert.Equal(t, "aac", argValue(args, "-c:a"))
	assert.Equal(t, "yuv420p", argValue(args, "-pix_fmt"))
	assert.Equal(t, "out.mp4", args[len(args)-2])
	assert.Equal(t, "-y", args[len(args)-1])
}

func TestBuildCompositeWithoutAudio(t *testing.T) {
	job := captionJob()
	job.HasAudio = false
	job.Format = types.OutputFormatWebM

	stream, err := NewProcessor(nil, false).BuildComposite(job)
	require.NoError(t, err)

	args := stream.GetArgs()
	assert.Equal(t, "libvpx-vp9", argValue(args, "-c:v"))
	assert.Empty(t, argValue(args, "-c:a"))
	assert.NotContains(t, strings.Join(args, " "), "0:a")
}

func TestBuildCompositeRejectsZeroDuration(t *testing.T) {
	job := captionJob()
	job.Duration = 0
	_, err := NewProcessor(nil, false).BuildComposite(job)
	assert.Error(t, err)
}

func TestGetCodecSettings(t *testing.T) {
	assert.Equal(t, "libx264", GetCodecSettings(types.OutputFormatMP4).VideoCodec)
	assert.Equal(t, "libopus", GetCodecSettings(types.OutputFormatWebM).AudioCodec)
	assert.Equal(t, "libx264", GetCodecSettings("avi").VideoCodec)
}

func TestEnsureExtension(t *testing.T) {
	tests := []struct {
		in     string
		format types.OutputFormat
		want   string
	}{
		{"clip.mp4", types.OutputFormatWebM, "clip.webm"},
		{"clip", types.OutputFormatMP4, "clip.mp4"},
		{"clip.MOV", types.OutputFormatMP4, "clip.mp4"},
		{"clip.MP4", types.OutputFormatMP4, "clip.MP4"},
		{"notes.v2", types.OutputFormatMP4, "notes.v2.mp4"},
		{"dir.d/result.webm", types.OutputFormatWebM, "dir.d/result.webm"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnsureExtension(tt.in, tt.format), tt.in)
	}
}

func TestVerifyOutputRemovesEmptyFile(t *testing.T) {
	p := NewProcessor(nil, false)
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.mp4")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err := p.verifyOutput(empty)
	assert.ErrorContains(t, err, "output file is empty")
	assert.NoFileExists(t, empty)

	_, err = p.verifyOutput(filepath.Join(dir, "missing.mp4"))
	assert.ErrorContains(t, err, "failed to verify output file")

	good := filepath.Join(dir, "good.mp4")
	require.NoError(t, os.WriteFile(good, []byte("data"), 0o644))
	info, err := p.verifyOutput(good)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())
	assert.FileExists(t, good)
}

func TestMetadataTimeout(t *testing.T) {
	timeout, err := probeTimeout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultProbeTimeout, timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	timeout, err = probeTimeout(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 5*time.Second, timeout, float64(time.Second))

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = probeTimeout(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetadataHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProcessor(nil, false).Probe(ctx, "does-not-matter.mp4")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetOptimalThreadCount(t *testing.T) {
	assert.GreaterOrEqual(t, GetOptimalThreadCount(), 1)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "c\nd", tail("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a", tail("a", 5))
}

func TestRunContextCancels(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := runContext(ctx, exec.Command("sleep", "5"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestComposeRemovesPartialOutput(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	job := captionJob()
	job.InputPath = filepath.Join(dir, "missing.mp4")
	job.OutputPath = filepath.Join(dir, "out.mp4")

	err := NewProcessor(nil, false).Compose(context.Background(), job)
	require.Error(t, err)
	_, statErr := os.Stat(job.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}
