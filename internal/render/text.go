package render

import (
	"strings"

	xhtml "golang.org/x/net/html"
)

// blockTags start a new line in the extracted text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"center": true, "pre": true, "body": true, "title": true,
}

// skipTags have content that is never shown to a reader.
var skipTags = map[string]bool{
	"head": true, "script": true, "style": true,
}

// PlainText reduces an HTML or plain-text error body to readable text,
// one block per line, wrapped to width (0 disables wrapping).
func PlainText(raw string, width int) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	tokenizer := xhtml.NewTokenizer(strings.NewReader(raw))
	var sb strings.Builder
	skipDepth := 0

	newline := func() {
		s := sb.String()
		if s != "" && !strings.HasSuffix(s, "\n") {
			sb.WriteString("\n")
		}
	}

	for {
		tt := tokenizer.Next()
		switch tt {
		case xhtml.ErrorToken:
			return Wrap(strings.TrimSpace(sb.String()), width)

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			t := tokenizer.Token()
			if skipTags[t.Data] && tt == xhtml.StartTagToken {
				skipDepth++
				continue
			}
			if blockTags[t.Data] {
				newline()
			}

		case xhtml.EndTagToken:
			t := tokenizer.Token()
			if skipTags[t.Data] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if blockTags[t.Data] {
				newline()
			}

		case xhtml.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := string(tokenizer.Text())
			for i, line := range strings.Split(text, "\n") {
				if i > 0 {
					newline()
				}
				if f := strings.Join(strings.Fields(line), " "); f != "" {
					if s := sb.String(); s != "" && !strings.HasSuffix(s, "\n") {
						sb.WriteString(" ")
					}
					sb.WriteString(f)
				}
			}
		}
	}
}

// FirstLine returns the first non-blank line of text, cut to at most max
// runes (0 means no limit).
func FirstLine(text string, max int) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)
		if max > 0 && len(r) > max {
			return string(r[:max-1]) + "…"
		}
		return line
	}
	return ""
}

// Wrap performs simple word wrapping to the given width.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var result strings.Builder
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}
		lineLen := 0
		for i, word := range words {
			wlen := len([]rune(word))
			if i > 0 && lineLen+1+wlen > width {
				result.WriteString("\n")
				lineLen = 0
			} else if i > 0 {
				result.WriteString(" ")
				lineLen++
			}
			result.WriteString(word)
			lineLen += wlen
		}
		result.WriteString("\n")
	}
	return strings.TrimRight(result.String(), "\n")
}
