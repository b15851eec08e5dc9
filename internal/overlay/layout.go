// Package overlay renders the fixed-width status panel shown over the
// terminal while a session is connecting, reconnecting, or failed.
//
// Layout is split from presentation: Layout produces rows of styled text
// segments with all width and padding arithmetic resolved, and a paint layer
// maps style tags onto a rendering surface. The layout output is therefore
// testable without any terminal dependency.
package overlay

import (
	"regexp"
	"strings"
)

// Variant selects the border semantics of the panel.
type Variant string

const (
	VariantConnecting   Variant = "connecting"
	VariantReconnecting Variant = "reconnecting"
	VariantError        Variant = "error"
	VariantMaxAttempts  Variant = "maxAttempts"
)

// StyleTag labels a segment for the paint layer.
type StyleTag string

const (
	StyleBorder StyleTag = "border"
	StyleTitle  StyleTag = "title"
	StyleText   StyleTag = "text"
	StyleDim    StyleTag = "dim"
	StyleHint   StyleTag = "hint"
)

// Segment is a run of text painted with a single style.
type Segment struct {
	Text  string
	Style StyleTag
}

// Row is one rendered line of the panel.
type Row []Segment

// Text returns the row's unstyled text.
func (r Row) Text() string {
	var b strings.Builder
	for _, seg := range r {
		b.WriteString(seg.Text)
	}
	return b.String()
}

const (
	// fixedContentWidth is used for the connecting/reconnecting variants so
	// frequent re-renders with changing attempt counters never resize the
	// panel.
	fixedContentWidth = 40

	// minContentWidth is the floor for content-driven variants.
	minContentWidth = 24
)

// cancelHintRe matches a trailing parenthesized cancel hint, which renders
// dimmed and right-aligned against the border.
var cancelHintRe = regexp.MustCompile(`^(.*?)\s*(\([^()]*[Cc]ancel[^()]*\))$`)

// Layout computes the panel rows for the given variant, title, and body
// lines. An optional drawer renders as a second box of the same width stacked
// beneath the main box. Layout is pure; identical inputs yield identical
// rows.
func Layout(variant Variant, title string, lines []string, drawer []string) []Row {
	width := contentWidth(variant, title, lines, drawer)

	rows := boxRows(width, title, lines)
	if len(drawer) > 0 {
		rows = append(rows, boxRows(width, "", drawer)...)
	}
	return rows
}

func contentWidth(variant Variant, title string, lines []string, drawer []string) int {
	if variant == VariantConnecting || variant == VariantReconnecting {
		return fixedContentWidth
	}
	width := minContentWidth
	if w := DisplayWidth(title); w > width {
		width = w
	}
	for _, line := range lines {
		if w := DisplayWidth(line); w > width {
			width = w
		}
	}
	for _, line := range drawer {
		if w := DisplayWidth(line); w > width {
			width = w
		}
	}
	return width
}

func boxRows(width int, title string, lines []string) []Row {
	rows := make([]Row, 0, len(lines)+3)
	rows = append(rows, Row{{Text: "╭" + strings.Repeat("─", width+2) + "╮", Style: StyleBorder}})
	if title != "" {
		rows = append(rows, contentRow(width, title, StyleTitle))
	}
	for _, line := range lines {
		if m := cancelHintRe.FindStringSubmatch(line); m != nil {
			if row, ok := hintRow(width, m[1], m[2]); ok {
				rows = append(rows, row)
				continue
			}
		}
		rows = append(rows, contentRow(width, line, StyleText))
	}
	rows = append(rows, Row{{Text: "╰" + strings.Repeat("─", width+2) + "╯", Style: StyleBorder}})
	return rows
}

// contentRow builds "│ text──padding │" with text clipped to the content
// width. Every row's total display width is the content width plus four: two
// border characters and two padding spaces.
func contentRow(width int, text string, style StyleTag) Row {
	text = truncateToWidth(text, width)
	pad := width - DisplayWidth(text)
	return Row{
		{Text: "│ ", Style: StyleBorder},
		{Text: text, Style: style},
		{Text: strings.Repeat(" ", pad), Style: StyleText},
		{Text: " │", Style: StyleBorder},
	}
}

// hintRow right-aligns a cancel hint flush against the border, with the main
// segment dimmed and the hint dimmed further. It reports false when the two
// segments cannot fit side by side, in which case the caller falls back to a
// plain row.
func hintRow(width int, main, hint string) (Row, bool) {
	mainW := DisplayWidth(main)
	hintW := DisplayWidth(hint)
	pad := width - mainW - hintW
	if pad < 1 {
		return nil, false
	}
	return Row{
		{Text: "│ ", Style: StyleBorder},
		{Text: main, Style: StyleDim},
		{Text: strings.Repeat(" ", pad), Style: StyleText},
		{Text: hint, Style: StyleHint},
		{Text: " │", Style: StyleBorder},
	}, true
}
