package caption

import (
	"encoding/hex"
	"image/color"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/colornames"
)

// ParseColor accepts an SVG colour name ("white", "gold"), "transparent",
// or a hex value in #rgb, #rrggbb or #rrggbbaa form (the '#' is optional).
func ParseColor(s string) (color.Color, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return nil, errors.New("empty color")
	}
	if v == "transparent" {
		return color.Transparent, nil
	}
	if c, ok := colornames.Map[v]; ok {
		return c, nil
	}

	h := strings.TrimPrefix(v, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 && len(h) != 8 {
		return nil, errors.Errorf("unknown color %q", s)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, errors.Errorf("unknown color %q", s)
	}
	c := color.NRGBA{R: b[0], G: b[1], B: b[2], A: 0xff}
	if len(b) == 4 {
		c.A = b[3]
	}
	return c, nil
}
