package state

import (
	"github.com/glabrego/vibetube-cli/internal/feed"
)

func ClampCursor(cursor, size int) int {
	if size <= 0 {
		return 0
	}
	if cursor >= size {
		return size - 1
	}
	if cursor < 0 {
		return 0
	}
	return cursor
}

// PageStep is how far pgup/pgdown moves given the terminal height and the
// number of lines taken by chrome.
func PageStep(height, chromeLines int) int {
	if height <= 0 {
		return 10
	}
	step := height - chromeLines
	if step < 3 {
		step = 3
	}
	return step
}

func CenteredWindow(totalRows, cursor, height int) (int, int) {
	if totalRows <= 0 {
		return 0, 0
	}
	if height <= 0 || totalRows <= height {
		return 0, totalRows
	}
	cursor = ClampCursor(cursor, totalRows)
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	maxStart := totalRows - height
	if start > maxStart {
		start = maxStart
	}
	return start, start + height
}

// ClampScroll keeps a scroll offset inside [0, total-height].
func ClampScroll(top, total, height int) int {
	maxTop := total - height
	if maxTop < 0 {
		maxTop = 0
	}
	if top > maxTop {
		return maxTop
	}
	if top < 0 {
		return 0
	}
	return top
}

// IndexByKey finds the item with key, or -1.
func IndexByKey[T feed.Item](items []T, key string) int {
	if key == "" {
		return -1
	}
	for i, item := range items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

// TabForKey maps the digit keys 1-9 and 0 to tab indexes 0-9.
func TabForKey(key string, tabs int) (int, bool) {
	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return 0, false
	}
	idx := int(key[0]-'0') - 1
	if key[0] == '0' {
		idx = 9
	}
	if idx >= tabs {
		return 0, false
	}
	return idx, true
}
