// Package render draws layout results as an SVG month grid or as a plain
// terminal grid.
package render

import (
	"fmt"
	"strings"
	"time"

	"calgrid/internal/layout"
)

// Default SVG geometry; width and height match the capture viewport.
const (
	DefaultWidth      = 984
	DefaultHeight     = 1304
	DefaultMaxLanes   = 3
	DefaultColor      = "#4A90E2"
	defaultFontFamily = "Helvetica, Arial, sans-serif"

	titleHeight   = 64
	weekdayHeight = 28
	dateHeight    = 24
	barHeight     = 20
	barGap        = 4
	notchWidth    = 6
	fontSize      = 13
)

// SVGOptions controls MonthSVG.
type SVGOptions struct {
	Width  int
	Height int
	// MaxLanes is how many lanes are drawn per week; the rest is counted
	// into the "+N" marker of each cell.
	MaxLanes int
	// Colors maps calendar ids to fill colors.
	Colors     map[string]string
	FontFamily string
}

func (o SVGOptions) withDefaults() SVGOptions {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.MaxLanes <= 0 {
		o.MaxLanes = DefaultMaxLanes
	}
	if o.FontFamily == "" {
		o.FontFamily = defaultFontFamily
	}
	return o
}

func (o SVGOptions) color(calendarID string) string {
	if c, ok := o.Colors[calendarID]; ok && c != "" {
		return c
	}
	return DefaultColor
}

// MonthSVG renders the bar area of res as a month grid. Week and day results
// render too, as a grid of their weeks; timed blocks are not drawn. The root
// element carries data-ready="true" so a headless browser can tell the page
// is complete.
func MonthSVG(res layout.Result, opts SVGOptions) string {
	opts = opts.withDefaults()

	var svg strings.Builder
	svg.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg" data-ready="true">
<rect width="100%%" height="100%%" fill="#FFFFFF"/>
<defs>
<style>
.title { font-family: %s; font-size: 28px; font-weight: bold; fill: #111111; }
.weekday { font-family: %s; font-size: 14px; font-weight: bold; fill: #555555; }
.date { font-family: %s; font-size: 14px; fill: #111111; }
.date.muted { fill: #AAAAAA; }
.bar-text { font-family: %s; font-size: %dpx; fill: #FFFFFF; }
.more { font-family: %s; font-size: 12px; fill: #555555; }
</style>
</defs>
`, opts.Width, opts.Height, opts.Width, opts.Height,
		opts.FontFamily, opts.FontFamily, opts.FontFamily, opts.FontFamily, fontSize, opts.FontFamily))

	if len(res.Weeks) == 0 {
		svg.WriteString("</svg>")
		return svg.String()
	}

	focus := focusMonth(res)
	svg.WriteString(fmt.Sprintf(`<text class="title" x="16" y="42">%s</text>
`, escapeXML(focus.Format("January 2006"))))

	colW := float64(opts.Width) / 7
	gridTop := float64(titleHeight + weekdayHeight)
	rowH := (float64(opts.Height) - gridTop) / float64(len(res.Weeks))

	for i, d := range res.Weeks[0].Window.Days {
		svg.WriteString(fmt.Sprintf(`<text class="weekday" x="%.1f" y="%d">%s</text>
`, float64(i)*colW+8, titleHeight+20, d.Weekday().String()[:3]))
	}

	for wi, wk := range res.Weeks {
		top := gridTop + float64(wi)*rowH
		drawWeek(&svg, res, wk, top, colW, rowH, focus.Month(), opts)
	}

	svg.WriteString("</svg>")
	return svg.String()
}

func drawWeek(svg *strings.Builder, res layout.Result, wk layout.WeekLayout, top, colW, rowH float64, month time.Month, opts SVGOptions) {
	for off, d := range wk.Window.Days {
		x := float64(off) * colW
		svg.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#DDDDDD"/>
`, x, top, colW, rowH))

		class := "date"
		if d.Month() != month || d.Before(res.RangeStart) || d.After(res.RangeEnd) {
			class = "date muted"
		}
		svg.WriteString(fmt.Sprintf(`<text class="%s" x="%.1f" y="%.1f">%d</text>
`, class, x+8, top+18, d.Day()))
	}

	lanes := opts.MaxLanes
	if avail := int((rowH - dateHeight - barHeight) / (barHeight + barGap)); avail < lanes {
		lanes = max(avail, 0)
	}

	var total, shown [7]int
	for _, seg := range wk.Segments {
		for off := seg.StartOffset; off <= seg.EndOffset; off++ {
			total[off]++
			if seg.Lane < lanes {
				shown[off]++
			}
		}
		if seg.Lane < lanes {
			drawBar(svg, seg, top, colW, opts)
		}
	}

	for off := range total {
		if more := total[off] - shown[off]; more > 0 {
			y := top + dateHeight + float64(lanes)*(barHeight+barGap) + 14
			svg.WriteString(fmt.Sprintf(`<text class="more" x="%.1f" y="%.1f">+%d</text>
`, float64(off)*colW+8, y, more))
		}
	}
}

func drawBar(svg *strings.Builder, seg layout.Segment, top, colW float64, opts SVGOptions) {
	x := float64(seg.StartOffset)*colW + 2
	w := float64(seg.Width())*colW - 4
	y := top + dateHeight + float64(seg.Lane)*(barHeight+barGap)
	fill := opts.color(seg.Event.CalendarID)

	stroke := ""
	if seg.Event.IsDraft() {
		stroke = ` stroke="#111111" stroke-dasharray="4 2" fill-opacity="0.5"`
	}
	svg.WriteString(fmt.Sprintf(`<g data-event-id="%s" data-lane="%d">
<rect x="%.1f" y="%.1f" width="%.1f" height="%d" rx="3" fill="%s"%s/>
`, escapeXML(seg.Event.ID), seg.Lane, x, y, w, barHeight, fill, stroke))

	mid := y + barHeight/2
	if seg.ContinuesBefore {
		svg.WriteString(fmt.Sprintf(`<polygon points="%.1f,%.1f %.1f,%.1f %.1f,%.1f" fill="#FFFFFF"/>
`, x, y, x+notchWidth, mid, x, y+barHeight))
	}
	if seg.ContinuesAfter {
		r := x + w
		svg.WriteString(fmt.Sprintf(`<polygon points="%.1f,%.1f %.1f,%.1f %.1f,%.1f" fill="#FFFFFF"/>
`, r, y, r-notchWidth, mid, r, y+barHeight))
	}

	title := seg.Event.Title
	if title == "" {
		title = "(no title)"
	}
	svg.WriteString(fmt.Sprintf(`<text class="bar-text" x="%.1f" y="%.1f">%s</text>
</g>
`, x+notchWidth+2, y+barHeight-6, escapeXML(fitText(title, w-2*notchWidth-4, fontSize))))
}

// focusMonth returns a date inside the month a month-view range was built
// for. The leading and trailing spill-over days are always fewer than the
// days of the month, so the middle of the range lands inside it.
func focusMonth(res layout.Result) time.Time {
	days := int(res.RangeEnd.Sub(res.RangeStart).Hours()/24 + 0.5)
	return res.RangeStart.AddDate(0, 0, days/2)
}

// estimateTextWidth approximates text width at an average glyph width of
// 0.6em.
func estimateTextWidth(text string, size int) float64 {
	return float64(len([]rune(text))) * float64(size) * 0.6
}

func fitText(text string, width float64, size int) string {
	if estimateTextWidth(text, size) <= width {
		return text
	}
	runes := []rune(text)
	n := int(width/(float64(size)*0.6)) - 1
	if n <= 0 {
		return ""
	}
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n]) + "…"
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
