package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/glabrego/vibetube-cli/internal/render/text"
	"github.com/glabrego/vibetube-cli/internal/toggle"
	tuitheme "github.com/glabrego/vibetube-cli/internal/tui/theme"
	"github.com/glabrego/vibetube-cli/internal/vibetube"
)

type WatchParams struct {
	Video        vibetube.Video
	Like         toggle.Resource
	Subscribe    toggle.Resource
	Comments     []vibetube.Comment
	CommentsErr  error
	Now          time.Time
	RelativeTime bool
	Width        int
}

// WatchLines lays out the watch screen body; the caller windows it for scrolling.
func WatchLines(p WatchParams, th tuitheme.Theme) []string {
	width := p.Width
	if width < 20 {
		width = 20
	}
	lines := make([]string, 0, 32)

	title := text.Line(p.Video.Title)
	if title == "" {
		title = "(untitled)"
	}
	for _, l := range text.Wrap(title, width) {
		lines = append(lines, th.Title.Render(l))
	}
	lines = append(lines, strings.Repeat("=", min(width, max(1, visibleLen(title)))))

	meta := fmt.Sprintf("%s · %s", ViewsLabel(p.Video.Views), DateLabel(p.Now, p.Video.CreatedAt.Time, p.RelativeTime))
	if cat := strings.TrimSpace(p.Video.Category); cat != "" {
		meta += " · " + cat
	}
	lines = append(lines, th.MetaValue.Render(meta), "")

	lines = append(lines, LikeLabel(p.Like, th))
	lines = append(lines, SubscribeLabel(text.Line(p.Video.ChannelName()), p.Subscribe, th))
	lines = append(lines, "")

	if desc := text.Plain(p.Video.Description); desc != "" {
		lines = append(lines, th.Section.Render("Description"))
		lines = append(lines, text.Wrap(desc, width)...)
		lines = append(lines, "")
	}

	lines = append(lines, th.Section.Render(fmt.Sprintf("Comments (%d)", len(p.Comments))))
	switch {
	case p.CommentsErr != nil:
		lines = append(lines, th.StateWarn.Render("Comments unavailable"))
	case len(p.Comments) == 0:
		lines = append(lines, th.MetaLabel.Render("No comments yet. Press c to add one."))
	}
	for _, c := range p.Comments {
		header := th.MetaValue.Render(text.Line(c.Author())) + " " + th.MetaLabel.Render(DateLabel(p.Now, c.CreatedAt.Time, true))
		lines = append(lines, header)
		for _, l := range text.Wrap(text.Plain(c.Text), width-2) {
			lines = append(lines, "  "+l)
		}
	}
	return lines
}

func LikeLabel(r toggle.Resource, th tuitheme.Theme) string {
	mark := "♡ Like"
	if r.Active {
		mark = "♥ Liked"
	}
	label := fmt.Sprintf("%s  %s", mark, countLabel(r.Count, "like"))
	if r.Pending {
		label += "  …"
	}
	return th.ToggleState(r.Active, r.Pending, r.Locked).Render(label)
}

func SubscribeLabel(channel string, r toggle.Resource, th tuitheme.Theme) string {
	if channel == "" {
		channel = "unknown channel"
	}
	mark := "Subscribe"
	if r.Active {
		mark = "Subscribed"
	}
	label := fmt.Sprintf("%s  %s  %s", channel, mark, countLabel(r.Count, "subscriber"))
	switch {
	case r.Locked:
		label = fmt.Sprintf("%s  (your channel)  %s", channel, countLabel(r.Count, "subscriber"))
	case r.Pending:
		label += "  …"
	}
	return th.ToggleState(r.Active, r.Pending, r.Locked).Render(label)
}

func countLabel(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
