package caption

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"white", color.NRGBA{255, 255, 255, 255}},
		{" Black ", color.NRGBA{0, 0, 0, 255}},
		{"#ff0000", color.NRGBA{255, 0, 0, 255}},
		{"00ff00", color.NRGBA{0, 255, 0, 255}},
		{"#00f", color.NRGBA{0, 0, 255, 255}},
		{"#ffffff80", color.NRGBA{255, 255, 255, 128}},
		{"transparent", color.NRGBA{}},
	}
	for _, tt := range tests {
		c, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, color.NRGBAModel.Convert(c), tt.in)
	}

	for _, bad := range []string{"", "notacolor", "#12", "#gggggg", "#1234567"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestRequestResolve(t *testing.T) {
	styles, err := Request{Text: "Café", FontSize: 40, FontColor: "white"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "Café", styles.Text)
	assert.Equal(t, 40, styles.Main.FontSize)
	assert.Equal(t, 40, styles.Outline.FontSize)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, color.NRGBAModel.Convert(styles.Outline.Color))

	tests := []struct {
		req   Request
		field string
	}{
		{Request{FontSize: 0, FontColor: "white"}, "font_size"},
		{Request{FontSize: -3, FontColor: "white"}, "font_size"},
		{Request{FontSize: 10, FontColor: "nope"}, "font_color"},
		{Request{FontSize: 10, FontColor: "white", OutlineColor: "#zz"}, "outline_color"},
	}
	for _, tt := range tests {
		_, err := tt.req.Resolve()
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "expected validation error for %+v", tt.req)
		assert.Equal(t, tt.field, verr.Field)
	}
}

func TestStackOrder(t *testing.T) {
	outline := image.NewRGBA(image.Rect(0, 0, 4, 4))
	main := image.NewRGBA(image.Rect(0, 0, 4, 4))

	layers := Stack(outline, main, 2.5)
	require.Len(t, layers, 5)

	want := []Position{{X: 2, Y: 2}, {X: -2, Y: -2}, {X: -2, Y: 2}, {X: 2, Y: -2}, Center}
	for i, l := range layers {
		assert.Equal(t, want[i], l.Position, "layer %d", i)
		assert.Equal(t, 2.5, l.Duration)
	}
	for _, l := range layers[:4] {
		assert.Same(t, outline, l.Image)
	}
	assert.Same(t, main, layers[4].Image)
}

func TestRendererRender(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	white := color.NRGBA{255, 255, 255, 255}
	img, err := r.Render("Hello\nworld", Style{FontSize: 40, Color: white}, 640, 360)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 360), img.Bounds())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a, "background must be transparent")
	_, _, _, a = img.At(639, 359).RGBA()
	assert.Zero(t, a)

	var minX, maxX, minY, maxY = 640, 0, 360, 0
	inked := 0
	for y := 0; y < 360; y++ {
		for x := 0; x < 640; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a > 0 {
				inked++
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
			}
		}
	}
	require.NotZero(t, inked, "text must be drawn")

	// The ink block sits around the centre of the frame.
	assert.InDelta(t, 320, (minX+maxX)/2, 20)
	assert.InDelta(t, 180, (minY+maxY)/2, 20)
}

func TestRendererErrors(t *testing.T) {
	_, err := NewRenderer(filepath.Join(t.TempDir(), "missing.ttf"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0o644))
	_, err = NewRenderer(bad)
	assert.Error(t, err)

	r, err := NewRenderer("")
	require.NoError(t, err)
	_, err = r.Render("x", Style{FontSize: 0, Color: color.White}, 10, 10)
	assert.Error(t, err)
	_, err = r.Render("x", Style{FontSize: 10, Color: color.White}, 0, 10)
	assert.Error(t, err)
}

func TestRendererEmptyText(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	img, err := r.Render(Wrap("", 10), Style{FontSize: 20, Color: color.White}, 64, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}
