package view

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/glabrego/vibetube-cli/internal/render/text"
	tuitheme "github.com/glabrego/vibetube-cli/internal/tui/theme"
	"github.com/glabrego/vibetube-cli/internal/vibetube"
)

var reANSICodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type VideoLineParams struct {
	Video        vibetube.Video
	Now          time.Time
	RelativeTime bool
	Position     int
	Active       bool
	Width        int
}

func RenderVideoLine(p VideoLineParams, th tuitheme.Theme) string {
	date := DateLabel(p.Now, p.Video.CreatedAt.Time, p.RelativeTime)

	cursorMarker := " "
	if p.Active {
		cursorMarker = ">"
	}
	prefix := fmt.Sprintf(" %s%3d. ", cursorMarker, p.Position+1)
	right := fmt.Sprintf("%s · %s · %s", ViewsLabel(p.Video.Views), channelLabel(p.Video), date)

	available := p.Width - visibleLen(prefix) - 1 - visibleLen(right)
	if available < 8 {
		right = ""
		available = p.Width - visibleLen(prefix)
	}
	if available < 1 {
		available = 1
	}

	title := text.Line(p.Video.Title)
	if title == "" {
		title = "(untitled)"
	}
	title = text.Truncate(title, available)
	if p.Video.Duration != "" && visibleLen(title)+len(p.Video.Duration)+3 <= available {
		title += " [" + p.Video.Duration + "]"
	}
	gap := p.Width - visibleLen(prefix) - visibleLen(title) - visibleLen(right)
	if gap < 1 {
		gap = 1
	}
	line := prefix + title
	if right != "" {
		line += strings.Repeat(" ", gap) + th.MetaValue.Render(right)
	}
	return th.RenderActiveLine(p.Active, line)
}

func channelLabel(v vibetube.Video) string {
	name := text.Line(v.ChannelName())
	if name == "" {
		return "unknown channel"
	}
	return text.Truncate(name, 20)
}

func ViewsLabel(n int) string {
	switch {
	case n == 1:
		return "1 view"
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM views", float64(n)/1_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%dK views", n/1000)
	default:
		return fmt.Sprintf("%d views", n)
	}
}

func DateLabel(now, then time.Time, relative bool) string {
	if then.IsZero() {
		return "unknown"
	}
	if relative {
		return RelativeTimeLabel(now, then)
	}
	return then.UTC().Format(time.DateOnly)
}

func RelativeTimeLabel(now, then time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	if then.IsZero() {
		return "unknown"
	}
	if then.After(now) {
		return "just now"
	}
	d := now.Sub(then)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return plural(int(d/time.Minute), "minute")
	}
	if d < 24*time.Hour {
		return plural(int(d/time.Hour), "hour")
	}
	days := int(d / (24 * time.Hour))
	switch {
	case days < 30:
		return plural(days, "day")
	case days < 365:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(stripANSIText(s))
}

func stripANSIText(s string) string {
	return reANSICodes.ReplaceAllString(s, "")
}
