package overlay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette maps style tags to lipgloss styles for one variant.
type Palette map[StyleTag]lipgloss.Style

var variantBorder = map[Variant]lipgloss.Color{
	VariantConnecting:   lipgloss.Color("11"), // yellow
	VariantReconnecting: lipgloss.Color("11"),
	VariantError:        lipgloss.Color("9"), // red
	VariantMaxAttempts:  lipgloss.Color("9"),
}

// PaletteFor returns the default terminal palette for a variant. The variant
// changes border and title color only; layout is unaffected.
func PaletteFor(variant Variant) Palette {
	border := lipgloss.NewStyle().Foreground(variantBorder[variant])
	return Palette{
		StyleBorder: border,
		StyleTitle:  lipgloss.NewStyle().Bold(true),
		StyleText:   lipgloss.NewStyle(),
		StyleDim:    lipgloss.NewStyle().Faint(true),
		StyleHint:   lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("8")),
	}
}

// Paint renders rows with the given palette, one line per row.
func Paint(rows []Row, palette Palette) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, seg := range row {
			if style, ok := palette[seg.Style]; ok {
				b.WriteString(style.Render(seg.Text))
			} else {
				b.WriteString(seg.Text)
			}
		}
	}
	return b.String()
}

// Render lays out and paints a panel in one step. Identical arguments
// produce byte-identical output.
func Render(variant Variant, title string, lines []string, drawer []string) string {
	return Paint(Layout(variant, title, lines, drawer), PaletteFor(variant))
}

// RenderPlain is Render without styling, for surfaces that cannot carry
// ANSI sequences.
func RenderPlain(variant Variant, title string, lines []string, drawer []string) string {
	rows := Layout(variant, title, lines, drawer)
	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Text()
	}
	return strings.Join(texts, "\n")
}
