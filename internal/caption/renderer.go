package caption

import (
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"

	"github.com/ZacxDev/video-captioner/internal/config"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Style is the per-render part of the caption look. Family, kerning and
// line spacing are fixed by the Renderer.
type Style struct {
	FontSize int
	Color    color.Color
}

// Renderer rasterises wrapped caption text onto transparent frame-sized
// images.
type Renderer struct {
	font      *opentype.Font
	kerning   fixed.Int26_6
	interline fixed.Int26_6
}

// NewRenderer loads the caption font. An empty fontPath selects the
// embedded Go Bold face.
func NewRenderer(fontPath string) (*Renderer, error) {
	data := gobold.TTF
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read font %s", fontPath)
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse font")
	}

	return &Renderer{
		font:      f,
		kerning:   fixed.I(config.GlyphKerning),
		interline: fixed.I(config.LineInterline),
	}, nil
}

// Render draws text (lines separated by "\n") centred on a width x height
// canvas with a transparent background.
func (r *Renderer) Render(text string, style Style, width, height int) (image.Image, error) {
	if style.FontSize <= 0 {
		return nil, errors.Errorf("font size must be positive, got %d", style.FontSize)
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid canvas size %dx%d", width, height)
	}
	if style.Color == nil {
		return nil, errors.New("missing text color")
	}

	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(style.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create font face")
	}
	defer face.Close()

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	lines := strings.Split(text, "\n")

	metrics := face.Metrics()
	lineHeight := metrics.Height + r.interline
	blockHeight := lineHeight*fixed.Int26_6(len(lines)-1) + metrics.Ascent + metrics.Descent
	top := (fixed.I(height) - blockHeight) / 2

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(style.Color),
		Face: face,
	}
	for i, line := range lines {
		lineWidth := r.measure(face, line)
		d.Dot = fixed.Point26_6{
			X: (fixed.I(width) - lineWidth) / 2,
			Y: top + metrics.Ascent + lineHeight*fixed.Int26_6(i),
		}
		r.drawLine(d, line)
	}
	return canvas, nil
}

// measure returns the advance of line including font kerning pairs and the
// fixed inter-glyph adjustment.
func (r *Renderer) measure(face font.Face, line string) fixed.Int26_6 {
	var (
		width fixed.Int26_6
		prev  rune = -1
	)
	for _, c := range line {
		if prev >= 0 {
			width += face.Kern(prev, c) + r.kerning
		}
		adv, _ := face.GlyphAdvance(c)
		width += adv
		prev = c
	}
	return width
}

func (r *Renderer) drawLine(d *font.Drawer, line string) {
	prev := rune(-1)
	for _, c := range line {
		if prev >= 0 {
			d.Dot.X += d.Face.Kern(prev, c) + r.kerning
		}
		dr, mask, maskp, adv, ok := d.Face.Glyph(d.Dot, c)
		if ok {
			draw.DrawMask(d.Dst, dr, d.Src, image.Point{}, mask, maskp, draw.Over)
		}
		d.Dot.X += adv
		prev = c
	}
}
