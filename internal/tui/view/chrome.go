package view

import (
	"fmt"
	"strings"

	tuitheme "github.com/glabrego/vibetube-cli/internal/tui/theme"
)

const (
	ScreenSignIn = "signin"
	ScreenFeed   = "feed"
	ScreenWatch  = "watch"
)

func Toolbar(screen string, prompting bool) string {
	if prompting {
		return "enter submit | esc cancel"
	}
	switch screen {
	case ScreenSignIn:
		return "tab switch field | enter sign in | ctrl+c quit"
	case ScreenWatch:
		return "j/k scroll | l like | s subscribe | c comment | o open | y copy | esc back | q quit"
	default:
		return "j/k move | 1-0 category | / search | enter watch | n more | r reload | t time | X sign out | q quit"
	}
}

// Tabs renders the category bar with digit shortcuts. active < 0 means no
// category is selected, e.g. while showing search results.
func Tabs(names []string, active int, th tuitheme.Theme) string {
	parts := make([]string, 0, len(names))
	for i, name := range names {
		label := fmt.Sprintf("%d %s", (i+1)%10, name)
		if i == active {
			parts = append(parts, th.TabActive.Render(label))
			continue
		}
		parts = append(parts, th.Tab.Render(label))
	}
	return strings.Join(parts, "")
}

type FooterParams struct {
	Source  string
	Shown   int
	Offset  int
	HasMore bool
	User    string
}

func Footer(p FooterParams, th tuitheme.Theme) string {
	more := "end"
	if p.HasMore {
		more = "more"
	}
	parts := []string{
		th.MetaLabel.Render("feed") + " " + th.MetaValue.Render(p.Source),
		th.MetaValue.Render(fmt.Sprintf("%d shown", p.Shown)),
		th.MetaLabel.Render("offset") + " " + th.MetaValue.Render(fmt.Sprintf("%d", p.Offset)),
		th.MetaValue.Render(more),
	}
	if p.User != "" {
		parts = append(parts, th.MetaLabel.Render("user")+" "+th.MetaValue.Render(p.User))
	}
	return strings.Join(parts, " • ")
}

func Message(loading bool, status string, warning bool, th tuitheme.Theme) string {
	state := "idle"
	label := th.StateIdle.Render("state")
	switch {
	case warning:
		state = "warning"
		label = th.StateWarn.Render("state")
	case loading:
		state = "loading"
		label = th.StateLoad.Render("state")
	}
	if status == "" {
		status = "Ready"
	}
	return fmt.Sprintf("%s: %s | %s", label, state, th.MetaValue.Render(status))
}
