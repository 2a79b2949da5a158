package theme

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestToggleState_ByState(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI)
	th := Default()

	cases := []struct {
		name                    string
		active, pending, locked bool
	}{
		{"on", true, false, false},
		{"off", false, false, false},
		{"pending", true, true, false},
		{"locked", false, false, true},
	}
	for _, tc := range cases {
		got := th.ToggleState(tc.active, tc.pending, tc.locked).Render(tc.name)
		if !strings.Contains(got, "\x1b[") {
			t.Fatalf("%s: expected styled output, got %q", tc.name, got)
		}
	}

	if th.ToggleState(true, false, true).Render("x") != th.ToggleLocked.Render("x") {
		t.Fatal("locked should win over active")
	}
	if th.ToggleState(true, true, false).Render("x") != th.TogglePending.Render("x") {
		t.Fatal("pending should win over active")
	}
}

func TestRenderActiveLine(t *testing.T) {
	th := Default()
	if got := th.RenderActiveLine(false, "plain"); got != "plain" {
		t.Fatalf("inactive line should be unchanged, got %q", got)
	}
}
