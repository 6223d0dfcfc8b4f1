// Package caption turns caption text into frame-sized overlay images: it
// wraps the text to a character budget, rasterises it and describes where
// each layer sits in the composite.
package caption

import (
	"strings"
	"unicode/utf8"

	"github.com/ZacxDev/video-captioner/internal/config"
)

// Wrap breaks text on word boundaries so that no line is longer than
// maxCharsPerLine runes, and joins the lines with "\n".
//
// A single word longer than the limit is kept whole on its own line. Empty
// (or all-whitespace) text yields a single empty line.
func Wrap(text string, maxCharsPerLine int) string {
	return strings.Join(WrapLines(text, maxCharsPerLine), "\n")
}

// WrapLines is Wrap without the final join.
func WrapLines(text string, maxCharsPerLine int) []string {
	if maxCharsPerLine < 1 {
		maxCharsPerLine = 1
	}

	var (
		lines   []string
		current strings.Builder
		length  int
	)
	for _, word := range strings.Fields(text) {
		n := utf8.RuneCountInString(word)
		if length > 0 && length+1+n > maxCharsPerLine {
			lines = append(lines, current.String())
			current.Reset()
			length = 0
		}
		if length > 0 {
			current.WriteByte(' ')
			length++
		}
		current.WriteString(word)
		length += n
	}
	return append(lines, current.String())
}

// MaxCharsPerLine derives the wrap width from the frame width and font size:
// wider frames and smaller fonts allow more characters per line. The result
// is never below 1.
func MaxCharsPerLine(frameWidth, fontSize int) int {
	n := int((float64(frameWidth) / config.WrapWidthDivisor) * (float64(fontSize) / config.WrapFontBase))
	if n < 1 {
		return 1
	}
	return n
}
