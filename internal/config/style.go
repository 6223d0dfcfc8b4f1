package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Style is a reusable caption preset stored as YAML.
type Style struct {
	FontSize     int    `yaml:"font_size"`
	FontColor    string `yaml:"font_color"`
	OutlineColor string `yaml:"outline_color"`
	FontPath     string `yaml:"font_path,omitempty"`
}

// LoadStyle reads a caption style preset.
func LoadStyle(path string) (*Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read style %s", path)
	}

	var style Style
	if err := yaml.Unmarshal(data, &style); err != nil {
		return nil, errors.Wrapf(err, "failed to parse style %s", path)
	}
	if style.OutlineColor == "" {
		style.OutlineColor = DefaultOutlineColor
	}
	return &style, nil
}

// WriteStyle stores a caption style preset.
func WriteStyle(path string, style *Style) error {
	data, err := yaml.Marshal(style)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0o644))
}

// Apply fills empty fields of opts from the style. Values set explicitly
// on the command line win.
func (s *Style) Apply(opts *CaptionOptions) {
	if opts.FontSize == 0 {
		opts.FontSize = s.FontSize
	}
	if opts.FontColor == "" {
		opts.FontColor = s.FontColor
	}
	if opts.OutlineColor == "" {
		opts.OutlineColor = s.OutlineColor
	}
	if opts.FontPath == "" {
		opts.FontPath = s.FontPath
	}
}
