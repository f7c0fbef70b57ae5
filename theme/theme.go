// Package theme defines the theme and display-preference models the
// styling subsystem compiles into CSS. All fields are exported plain
// values so themes are structurally comparable and hashable.
package theme

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	idPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	hexPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// Theme is one named look for the web front end.
type Theme struct {
	ID         string     `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	Palette    Palette    `yaml:"palette" json:"palette"`
	Typography Typography `yaml:"typography" json:"typography"`
	// CustomCSS is appended verbatim to the generated stylesheet unless
	// the viewer's preferences disable it.
	CustomCSS string `yaml:"customCss,omitempty" json:"customCss,omitempty"`
}

// Palette holds the theme's colors as hex strings.
type Palette struct {
	Primary    string `yaml:"primary" json:"primary"`
	Secondary  string `yaml:"secondary" json:"secondary"`
	Background string `yaml:"background" json:"background"`
	Surface    string `yaml:"surface" json:"surface"`
	Text       string `yaml:"text" json:"text"`
	Accent     string `yaml:"accent" json:"accent"`
}

// Typography holds font settings.
type Typography struct {
	FontFamily    string `yaml:"fontFamily" json:"fontFamily"`
	BaseSizePx    int    `yaml:"baseSizePx" json:"baseSizePx"`
	HeadingWeight int    `yaml:"headingWeight" json:"headingWeight"`
}

// Validate checks that the theme is well-formed enough to compile.
func (t Theme) Validate() error {
	if !idPattern.MatchString(t.ID) {
		return fmt.Errorf("theme: invalid id %q", t.ID)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("theme %s: name is required", t.ID)
	}
	if err := t.Palette.validate(); err != nil {
		return fmt.Errorf("theme %s: %w", t.ID, err)
	}
	if t.Typography.BaseSizePx < 0 {
		return fmt.Errorf("theme %s: negative base font size", t.ID)
	}
	if w := t.Typography.HeadingWeight; w != 0 && (w < 100 || w > 900) {
		return fmt.Errorf("theme %s: heading weight %d out of range", t.ID, w)
	}
	return nil
}

func (p Palette) validate() error {
	colors := map[string]string{
		"primary":    p.Primary,
		"secondary":  p.Secondary,
		"background": p.Background,
		"surface":    p.Surface,
		"text":       p.Text,
		"accent":     p.Accent,
	}
	for name, val := range colors {
		if val == "" {
			continue // omitted colors fall back to generator defaults
		}
		if !hexPattern.MatchString(val) {
			return fmt.Errorf("palette color %s: %q is not a hex color", name, val)
		}
	}
	return nil
}

// Mode values for Preferences.
const (
	ModeDark  = "dark"
	ModeLight = "light"
)

// Density values for Preferences.
const (
	DensityComfortable = "comfortable"
	DensityCompact     = "compact"
)

// Preferences are the viewer-side display settings that, together with a
// Theme, determine the generated stylesheet.
type Preferences struct {
	Mode             string `yaml:"mode" json:"mode"`
	Density          string `yaml:"density" json:"density"`
	RoundedCorners   bool   `yaml:"roundedCorners" json:"roundedCorners"`
	BackdropBlur     bool   `yaml:"backdropBlur" json:"backdropBlur"`
	DisableCustomCSS bool   `yaml:"disableCustomCss" json:"disableCustomCss"`
}

// DefaultPreferences returns the preferences used when a viewer has none.
func DefaultPreferences() Preferences {
	return Preferences{
		Mode:           ModeDark,
		Density:        DensityComfortable,
		RoundedCorners: true,
	}
}

// Validate checks preference values; empty strings mean "use the default".
func (p Preferences) Validate() error {
	switch p.Mode {
	case "", ModeDark, ModeLight:
	default:
		return fmt.Errorf("theme: unknown mode %q", p.Mode)
	}
	switch p.Density {
	case "", DensityComfortable, DensityCompact:
	default:
		return fmt.Errorf("theme: unknown density %q", p.Density)
	}
	return nil
}
