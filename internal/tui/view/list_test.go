package view

import (
	"strings"
	"testing"
	"time"

	tuitheme "github.com/glabrego/vibetube-cli/internal/tui/theme"
	"github.com/glabrego/vibetube-cli/internal/vibetube"
)

func TestRenderVideoLine_AbsoluteDateWhenRelativeDisabled(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	th := tuitheme.Default()

	line := RenderVideoLine(VideoLineParams{
		Video: vibetube.Video{
			ID:        1,
			Title:     "Absolute date rendering",
			Views:     42,
			Username:  "band",
			CreatedAt: vibetube.Timestamp{Time: now.Add(-2 * time.Hour)},
		},
		Now:          now,
		RelativeTime: false,
		Width:        80,
	}, th)
	plain := stripANSI(line)
	if !strings.HasSuffix(plain, "42 views · band · 2026-02-09") {
		t.Fatalf("expected metadata at right edge, got %q", plain)
	}
	if !strings.HasPrefix(plain, "    1. Absolute date rendering") {
		t.Fatalf("unexpected prefix: %q", plain)
	}
}

func TestRenderVideoLine_ActiveMarkerAndMarkupStripped(t *testing.T) {
	th := tuitheme.Default()
	line := stripANSI(RenderVideoLine(VideoLineParams{
		Video:    vibetube.Video{Title: "<b>Loud</b> &amp; clear"},
		Position: 2,
		Active:   true,
		Width:    80,
	}, th))
	if !strings.Contains(line, ">  3. Loud & clear") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestRenderVideoLine_NarrowDropsMetadata(t *testing.T) {
	th := tuitheme.Default()
	line := stripANSI(RenderVideoLine(VideoLineParams{
		Video: vibetube.Video{Title: "A fairly long video title", Views: 5},
		Width: 24,
	}, th))
	if strings.Contains(line, "views") {
		t.Fatalf("expected metadata dropped on narrow width, got %q", line)
	}
}

func TestViewsLabel(t *testing.T) {
	cases := map[int]string{0: "0 views", 1: "1 view", 999: "999 views", 12_345: "12K views", 2_500_000: "2.5M views"}
	for n, want := range cases {
		if got := ViewsLabel(n); got != want {
			t.Fatalf("ViewsLabel(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestRelativeTimeLabel(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		then time.Time
		want string
	}{
		{then: now.Add(-30 * time.Second), want: "just now"},
		{then: now.Add(-1 * time.Minute), want: "1 minute ago"},
		{then: now.Add(-3 * time.Minute), want: "3 minutes ago"},
		{then: now.Add(-1 * time.Hour), want: "1 hour ago"},
		{then: now.Add(-7 * time.Hour), want: "7 hours ago"},
		{then: now.Add(-1 * 24 * time.Hour), want: "1 day ago"},
		{then: now.Add(-7 * 24 * time.Hour), want: "7 days ago"},
		{then: now.Add(-65 * 24 * time.Hour), want: "2 months ago"},
		{then: now.Add(-800 * 24 * time.Hour), want: "2 years ago"},
		{then: now.Add(time.Hour), want: "just now"},
	}
	for _, tc := range cases {
		if got := RelativeTimeLabel(now, tc.then); got != tc.want {
			t.Fatalf("RelativeTimeLabel(%s) = %q, want %q", tc.then.UTC().Format(time.RFC3339), got, tc.want)
		}
	}
}
