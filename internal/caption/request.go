package caption

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/ZacxDev/video-captioner/internal/config"
	"golang.org/x/text/unicode/norm"
)

// Request is what a user asks for: the caption text and how it should look.
type Request struct {
	Text         string
	FontSize     int
	FontColor    string
	OutlineColor string
}

// ValidationError reports a request field the caption cannot be built from.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Styles is a validated Request resolved into the two render styles.
type Styles struct {
	Text    string
	Main    Style
	Outline Style
}

// Resolve validates the request and returns the outline and main styles.
// Text is NFC-normalised so that wrap widths count composed characters.
func (r Request) Resolve() (*Styles, error) {
	if r.FontSize <= 0 {
		return nil, &ValidationError{Field: "font_size", Reason: fmt.Sprintf("must be a positive integer, got %d", r.FontSize)}
	}

	fontColor, err := parseField("font_color", r.FontColor)
	if err != nil {
		return nil, err
	}
	outline := r.OutlineColor
	if strings.TrimSpace(outline) == "" {
		outline = config.DefaultOutlineColor
	}
	outlineColor, err := parseField("outline_color", outline)
	if err != nil {
		return nil, err
	}

	return &Styles{
		Text:    norm.NFC.String(r.Text),
		Main:    Style{FontSize: r.FontSize, Color: fontColor},
		Outline: Style{FontSize: r.FontSize, Color: outlineColor},
	}, nil
}

func parseField(field, value string) (color.Color, error) {
	c, err := ParseColor(value)
	if err != nil {
		return nil, &ValidationError{Field: field, Reason: err.Error()}
	}
	return c, nil
}
