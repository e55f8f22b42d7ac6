package dashboard

import "maps"

// FallbackColor is used for platforms without an assigned colour.
const FallbackColor = "#607D8B"

// Palette maps platform names to chart colours.
type Palette map[string]string

// DefaultPalette returns the built-in platform colours merged with extra,
// where extra wins.
func DefaultPalette(extra map[string]string) Palette {
	p := Palette{
		"garnix":                         "#4CAF50",
		"github-actions-parallel":        "#2196F3",
		"github-actions-serial":          "#FF9800",
		"github-actions-cachix-parallel": "#9C27B0",
		"github-actions-cachix-serial":   "#F44336",
	}

	maps.Copy(p, extra)

	return p
}

// Color returns the colour for platform.
func (p Palette) Color(platform string) string {
	if c, ok := p[platform]; ok && c != "" {
		return c
	}

	return FallbackColor
}
