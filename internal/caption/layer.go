package caption

import (
	"image"

	"github.com/ZacxDev/video-captioner/internal/config"
)

// Position places a layer on the frame. Centered layers ignore X and Y.
type Position struct {
	X, Y     int
	Centered bool
}

// Center is the position of the main caption layer.
var Center = Position{Centered: true}

// Layer is a rendered caption image shown for Duration seconds.
type Layer struct {
	Image    image.Image
	Position Position
	Duration float64
}

// outlineOffsets lists the stroke copies in draw order.
var outlineOffsets = []Position{
	{X: config.OutlineOffset, Y: config.OutlineOffset},
	{X: -config.OutlineOffset, Y: -config.OutlineOffset},
	{X: -config.OutlineOffset, Y: config.OutlineOffset},
	{X: config.OutlineOffset, Y: -config.OutlineOffset},
}

// OutlineLayers returns four copies of img offset diagonally. Drawn beneath
// the main layer they read as a stroke around the glyphs.
func OutlineLayers(img image.Image, duration float64) []Layer {
	layers := make([]Layer, 0, len(outlineOffsets))
	for _, pos := range outlineOffsets {
		layers = append(layers, Layer{Image: img, Position: pos, Duration: duration})
	}
	return layers
}

// MainLayer returns the centred caption layer.
func MainLayer(img image.Image, duration float64) Layer {
	return Layer{Image: img, Position: Center, Duration: duration}
}

// Stack returns the caption layers bottom to top: the outline copies, then
// the main text.
func Stack(outline, main image.Image, duration float64) []Layer {
	return append(OutlineLayers(outline, duration), MainLayer(main, duration))
}
