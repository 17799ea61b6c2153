package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"calgrid/internal/layout"
)

const cellWidth = 14

// ColorFunc maps a calendar id to a color ("#RRGGBB" or an ANSI index);
// an empty result keeps the terminal default.
type ColorFunc func(calendarID string) string

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	cellStyle   = lipgloss.NewStyle().Inline(true).Width(cellWidth).MaxWidth(cellWidth)
)

// Terminal renders res as a text grid: one block per week with a date row
// and one row per lane, followed by the timed blocks of week and day views.
func Terminal(res layout.Result, colorFn ColorFunc) string {
	var b strings.Builder

	for _, wk := range res.Weeks {
		var days []int
		for off, d := range wk.Window.Days {
			if !d.Before(res.RangeStart) && !d.After(res.RangeEnd) {
				days = append(days, off)
			}
		}
		if len(days) == 0 {
			continue
		}

		header := make([]string, 0, len(days))
		for _, off := range days {
			d := wk.Window.Days[off]
			header = append(header, cellStyle.Inherit(headerStyle).Render(d.Format("Mon 01/02")))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...))
		b.WriteString("\n")

		for lane := 0; lane < wk.LaneCount; lane++ {
			row := make([]string, 0, len(days))
			for _, off := range days {
				row = append(row, barCell(wk.Segments, lane, off, days[0], colorFn))
			}
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	for _, col := range res.Columns {
		if len(col.Blocks) == 0 {
			continue
		}
		b.WriteString(headerStyle.Render(col.Date.Format("Mon 2006-01-02")))
		b.WriteString("\n")
		for _, blk := range col.Blocks {
			line := fmt.Sprintf("  %s-%s  %s",
				blk.Event.Start.Format("15:04"), blk.Event.End.Format("15:04"), blk.Event.Title)
			b.WriteString(colored(colorFn, blk.Event.CalendarID).Render(line))
			b.WriteString("\n")
		}
	}

	if b.Len() == 0 {
		return mutedStyle.Render("(no events)") + "\n"
	}
	return b.String()
}

// barCell renders the segment occupying lane on day off. The title is
// printed where the bar starts (or on the first visible day) and the rest of
// the bar is drawn as a rule.
func barCell(segs []layout.Segment, lane, off, firstVisible int, colorFn ColorFunc) string {
	for _, seg := range segs {
		if seg.Lane != lane || !seg.Covers(off) {
			continue
		}
		text := strings.Repeat("─", cellWidth-1)
		if off == seg.StartOffset || off == firstVisible {
			text = seg.Event.Title
			if seg.ContinuesBefore && off == seg.StartOffset {
				text = "◀" + text
			}
		}
		if seg.ContinuesAfter && off == seg.EndOffset {
			text = truncate(text, cellWidth-2) + "▶"
		}
		return cellStyle.Inherit(colored(colorFn, seg.Event.CalendarID)).Render(truncate(text, cellWidth-1))
	}
	return cellStyle.Render("")
}

func colored(colorFn ColorFunc, calendarID string) lipgloss.Style {
	st := lipgloss.NewStyle()
	if colorFn == nil {
		return st
	}
	if c := colorFn(calendarID); c != "" {
		st = st.Foreground(lipgloss.Color(c))
	}
	return st
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
