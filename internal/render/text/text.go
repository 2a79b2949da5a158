package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	nethtml "golang.org/x/net/html"
)

var reANSICodes = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// blockTags end a line when they open or close.
var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "tr": true,
}

// Plain turns user-authored text, which may carry markup, into printable text.
// Tags and script/style bodies are dropped, entities decoded, whitespace
// collapsed within lines and terminal control sequences removed.
func Plain(s string) string {
	if s == "" {
		return ""
	}
	s = reANSICodes.ReplaceAllString(s, "")

	var b strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(s))
	skip := 0
loop:
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			break loop
		case nethtml.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
				continue
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
				continue
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		}
	}
	return collapse(stripControl(b.String()))
}

// Line is Plain folded onto a single line, for titles and list rows.
func Line(s string) string {
	return strings.Join(strings.Fields(Plain(s)), " ")
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
}

// collapse squeezes runs of spaces within lines and keeps at most one blank
// line between paragraphs.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// Wrap soft-wraps s to width runes per line. Words longer than width are split.
func Wrap(s string, width int) []string {
	if width < 1 {
		return []string{s}
	}
	paragraphs := strings.Split(s, "\n")
	out := make([]string, 0, len(paragraphs))

	for _, p := range paragraphs {
		words := strings.Fields(p)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		lineLen := 0
		for _, word := range words {
			runes := []rune(word)
			for len(runes) > width {
				if line != "" {
					out = append(out, line)
					line, lineLen = "", 0
				}
				out = append(out, string(runes[:width]))
				runes = runes[width:]
			}
			word = string(runes)
			n := len(runes)

			if line == "" {
				line, lineLen = word, n
				continue
			}
			if lineLen+1+n <= width {
				line += " " + word
				lineLen += 1 + n
				continue
			}
			out = append(out, line)
			line, lineLen = word, n
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Truncate shortens s to width runes, ending with an ellipsis when cut.
func Truncate(s string, width int) string {
	if width < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
