package overlay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisplayWidth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "ascii", in: "hello", want: 5},
		{name: "empty", in: "", want: 0},
		{name: "emoji", in: "🔌", want: 2},
		{name: "emojiWithVS16", in: "⚠️", want: 2},
		{name: "mixed", in: "ok 🔌", want: 5},
		{name: "regionalIndicators", in: "\U0001F1EC\U0001F1E7", want: 4},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, DisplayWidth(tt.in))
		})
	}
}

func TestTruncateToWidth(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", truncateToWidth("abcdef", 3))
	require.Equal(t, "abcdef", truncateToWidth("abcdef", 10))
	// A wide rune that does not fit is dropped entirely.
	require.Equal(t, "a", truncateToWidth("a🔌", 2))
	// The variation selector follows its code point.
	require.Equal(t, "⚠️", truncateToWidth("⚠️x", 2))
}

func TestLayout_RowWidthInvariant(t *testing.T) {
	t.Parallel()

	rows := Layout(VariantError, "Connection failed", []string{"boom", "with 🔌 emoji"}, nil)
	require.NotEmpty(t, rows)

	// Every row, borders included, spans contentWidth+4 cells.
	want := DisplayWidth(rows[0].Text())
	for i, row := range rows {
		require.Equal(t, want, DisplayWidth(row.Text()), "row %d: %q", i, row.Text())
	}
}

func TestLayout_FixedWidthForTransientVariants(t *testing.T) {
	t.Parallel()

	short := Layout(VariantConnecting, "Connecting", []string{"..."}, nil)
	long := Layout(VariantReconnecting, "Reconnecting", []string{"attempt 14 of 15"}, nil)
	require.Equal(t, fixedContentWidth+4, DisplayWidth(short[0].Text()))
	require.Equal(t, fixedContentWidth+4, DisplayWidth(long[0].Text()))
}

func TestLayout_ContentDrivenWidthWithFloor(t *testing.T) {
	t.Parallel()

	narrow := Layout(VariantError, "e", []string{"x"}, nil)
	require.Equal(t, minContentWidth+4, DisplayWidth(narrow[0].Text()))

	wideLine := strings.Repeat("a", 60)
	wide := Layout(VariantMaxAttempts, "t", []string{wideLine}, nil)
	require.Equal(t, 60+4, DisplayWidth(wide[0].Text()))
}

func TestLayout_CancelHintRightAligned(t *testing.T) {
	t.Parallel()

	rows := Layout(VariantConnecting, "Connecting", []string{"Opening session (press q to cancel)"}, nil)

	var hint Row
	for _, row := range rows {
		for _, seg := range row {
			if seg.Style == StyleHint {
				hint = row
			}
		}
	}
	require.NotNil(t, hint, "expected a hint row")

	// Main text dimmed, hint dimmer, flush against the right border.
	require.Equal(t, StyleDim, hint[1].Style)
	require.Equal(t, "(press q to cancel)", hint[3].Text)
	require.Equal(t, " │", hint[4].Text)
	require.Equal(t, fixedContentWidth+4, DisplayWidth(hint.Text()))
}

func TestLayout_DrawerRendersSecondBoxSameWidth(t *testing.T) {
	t.Parallel()

	rows := Layout(VariantError, "title", []string{"line"}, []string{"drawer line"})

	bottoms := 0
	for _, row := range rows {
		if strings.HasPrefix(row.Text(), "╰") {
			bottoms++
		}
	}
	require.Equal(t, 2, bottoms)

	width := DisplayWidth(rows[0].Text())
	for i, row := range rows {
		require.Equal(t, width, DisplayWidth(row.Text()), "row %d", i)
	}
}

func TestRender_Idempotent(t *testing.T) {
	t.Parallel()

	a := Render(VariantReconnecting, "Reconnecting", []string{"attempt 3 of 15 (press q to cancel)"}, nil)
	b := Render(VariantReconnecting, "Reconnecting", []string{"attempt 3 of 15 (press q to cancel)"}, nil)
	require.Equal(t, a, b)

	pa := RenderPlain(VariantMaxAttempts, "Failed", []string{"No further retries."}, nil)
	pb := RenderPlain(VariantMaxAttempts, "Failed", []string{"No further retries."}, nil)
	require.Equal(t, pa, pb)
}

func TestRenderPlain_TwoCellRune(t *testing.T) {
	t.Parallel()

	rows := Layout(VariantError, "t", []string{"🔌"}, nil)
	for _, row := range rows {
		require.Equal(t, minContentWidth+4, DisplayWidth(row.Text()))
	}
}
