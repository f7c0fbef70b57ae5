// Package css compiles a theme plus viewer preferences into a stylesheet
// for the web front end. Output is deterministic for equal inputs, which
// the style cache's fingerprint keys depend on.
package css

import (
	"fmt"
	"strings"

	"github.com/streamweave/stylist/theme"
)

// Generator defaults, used when a theme omits a value.
const (
	defaultFontFamily    = `-apple-system, "Segoe UI", Roboto, sans-serif`
	defaultBaseSizePx    = 15
	defaultHeadingWeight = 600
)

var defaultPalettes = map[string]theme.Palette{
	theme.ModeDark: {
		Primary:    "#1e88e5",
		Secondary:  "#90caf9",
		Background: "#101010",
		Surface:    "#1c1c1c",
		Text:       "#e6e6e6",
		Accent:     "#ff4081",
	},
	theme.ModeLight: {
		Primary:    "#1565c0",
		Secondary:  "#1e88e5",
		Background: "#fafafa",
		Surface:    "#ffffff",
		Text:       "#1a1a1a",
		Accent:     "#d81b60",
	},
}

// Build renders the stylesheet for a theme under the given preferences.
func Build(t theme.Theme, p theme.Preferences) string {
	mode := p.Mode
	if mode == "" {
		mode = theme.ModeDark
	}
	pal := resolvePalette(t.Palette, defaultPalettes[mode])

	var b strings.Builder
	fmt.Fprintf(&b, "/* theme: %s (%s) */\n", t.ID, mode)

	b.WriteString(":root {\n")
	writeVar(&b, "color-primary", pal.Primary)
	writeVar(&b, "color-secondary", pal.Secondary)
	writeVar(&b, "color-background", pal.Background)
	writeVar(&b, "color-surface", pal.Surface)
	writeVar(&b, "color-text", pal.Text)
	writeVar(&b, "color-accent", pal.Accent)
	writeVar(&b, "font-family", fontFamily(t.Typography))
	writeVar(&b, "font-size-base", fmt.Sprintf("%dpx", baseSize(t.Typography)))
	writeVar(&b, "heading-weight", fmt.Sprintf("%d", headingWeight(t.Typography)))
	writeVar(&b, "radius", cornerRadius(p))
	writeVar(&b, "spacing-unit", spacingUnit(p))
	b.WriteString("}\n\n")

	b.WriteString("body {\n")
	b.WriteString("  background-color: var(--color-background);\n")
	b.WriteString("  color: var(--color-text);\n")
	b.WriteString("  font-family: var(--font-family);\n")
	b.WriteString("  font-size: var(--font-size-base);\n")
	b.WriteString("}\n\n")

	b.WriteString("h1, h2, h3, .sectionTitle {\n")
	b.WriteString("  font-weight: var(--heading-weight);\n")
	b.WriteString("}\n\n")

	b.WriteString(".card, .listItem, .dialog {\n")
	b.WriteString("  background-color: var(--color-surface);\n")
	b.WriteString("  border-radius: var(--radius);\n")
	b.WriteString("  padding: var(--spacing-unit);\n")
	b.WriteString("}\n\n")

	b.WriteString(".button-primary, .playButton {\n")
	b.WriteString("  background-color: var(--color-primary);\n")
	b.WriteString("  border-radius: var(--radius);\n")
	b.WriteString("}\n\n")

	b.WriteString(".button-primary:hover, .playButton:hover {\n")
	b.WriteString("  background-color: var(--color-secondary);\n")
	b.WriteString("}\n\n")

	b.WriteString(".badge, .progressBar, a:hover {\n")
	b.WriteString("  color: var(--color-accent);\n")
	b.WriteString("}\n\n")

	if p.BackdropBlur {
		b.WriteString(".dialogBackdrop, .navDrawer {\n")
		b.WriteString("  backdrop-filter: blur(12px);\n")
		b.WriteString("  background-color: color-mix(in srgb, var(--color-background) 70%, transparent);\n")
		b.WriteString("}\n\n")
	}

	if custom := strings.TrimSpace(t.CustomCSS); custom != "" && !p.DisableCustomCSS {
		b.WriteString("/* custom */\n")
		b.WriteString(custom)
		b.WriteString("\n")
	}

	return b.String()
}

func writeVar(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "  --%s: %s;\n", name, value)
}

// resolvePalette fills omitted colors from the mode's defaults.
func resolvePalette(p, def theme.Palette) theme.Palette {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return theme.Palette{
		Primary:    pick(p.Primary, def.Primary),
		Secondary:  pick(p.Secondary, def.Secondary),
		Background: pick(p.Background, def.Background),
		Surface:    pick(p.Surface, def.Surface),
		Text:       pick(p.Text, def.Text),
		Accent:     pick(p.Accent, def.Accent),
	}
}

func fontFamily(t theme.Typography) string {
	if t.FontFamily == "" {
		return defaultFontFamily
	}
	return t.FontFamily
}

func baseSize(t theme.Typography) int {
	if t.BaseSizePx <= 0 {
		return defaultBaseSizePx
	}
	return t.BaseSizePx
}

func headingWeight(t theme.Typography) int {
	if t.HeadingWeight == 0 {
		return defaultHeadingWeight
	}
	return t.HeadingWeight
}

func cornerRadius(p theme.Preferences) string {
	if p.RoundedCorners {
		return "8px"
	}
	return "0"
}

func spacingUnit(p theme.Preferences) string {
	if p.Density == theme.DensityCompact {
		return "8px"
	}
	return "14px"
}
