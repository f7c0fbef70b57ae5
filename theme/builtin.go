package theme

// Builtin is the theme served when no theme definitions are configured.
func Builtin() Theme {
	return Theme{
		ID:   "default",
		Name: "Default",
		Palette: Palette{
			Primary:    "#00a4dc",
			Secondary:  "#aa5cc3",
			Background: "#101010",
			Surface:    "#202020",
			Text:       "#e8e8e8",
			Accent:     "#00a4dc",
		},
		Typography: Typography{
			BaseSizePx:    15,
			HeadingWeight: 600,
		},
	}
}
