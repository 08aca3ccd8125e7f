package chunker

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	blankRun        = regexp.MustCompile(`\n{3,}`)
)

// blockTags emit a paragraph break on open and close.
var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Aside: true, atom.Nav: true,
	atom.Main: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Ul: true,
	atom.Ol: true, atom.Dl: true, atom.Table: true, atom.Tr: true,
	atom.Figure: true, atom.Figcaption: true, atom.Hr: true, atom.Address: true,
	atom.Details: true, atom.Summary: true,
}

// skipTags have their content dropped entirely.
var skipTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Template: true, atom.Iframe: true, atom.Svg: true,
}

// Clean strips markup, decodes entities and normalizes whitespace. Blank
// lines separate paragraphs; <pre> content survives as a fenced block and
// <blockquote> content keeps a leading "> " marker.
func Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return normalizeWhitespace(stripTags(raw))
}

func stripTags(raw string) string {
	var (
		b          strings.Builder
		skipDepth  int
		preDepth   int
		quoteDepth int
		listDepth  int
	)
	breakPara := func() {
		b.WriteString("\n\n")
		if quoteDepth > 0 {
			b.WriteString("> ")
		}
	}

	z := html.NewTokenizer(strings.NewReader(raw))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			b.WriteString(flowText(string(z.Text()), preDepth > 0, listDepth > 0))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case skipTags[a]:
				if tt == html.StartTagToken {
					skipDepth++
				}
			case a == atom.Br:
				b.WriteString("\n")
			case a == atom.Li:
				b.WriteString("\n- ")
			case a == atom.Ul, a == atom.Ol:
				listDepth++
				breakPara()
			case a == atom.Dt, a == atom.Dd:
				b.WriteString("\n")
			case a == atom.Pre:
				preDepth++
				b.WriteString("\n\n```\n")
			case a == atom.Blockquote:
				quoteDepth++
				breakPara()
			case a == atom.Td, a == atom.Th:
				b.WriteString(" ")
			case blockTags[a]:
				breakPara()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case skipTags[a]:
				if skipDepth > 0 {
					skipDepth--
				}
			case a == atom.Pre:
				if preDepth > 0 {
					preDepth--
					b.WriteString("\n```\n\n")
				}
			case a == atom.Blockquote:
				if quoteDepth > 0 {
					quoteDepth--
				}
				b.WriteString("\n\n")
			case a == atom.Ul, a == atom.Ol:
				if listDepth > 0 {
					listDepth--
				}
				breakPara()
			case blockTags[a]:
				breakPara()
			}
		}
	}
}

// flowText adapts a text token to its position. Preformatted text is kept
// as-is; inside lists newlines are source formatting, not structure; and
// whitespace-only runs between tags only survive as a paragraph break.
func flowText(text string, pre, list bool) string {
	if pre {
		return text
	}
	if list {
		return strings.ReplaceAll(text, "\n", " ")
	}
	if strings.TrimSpace(text) == "" {
		if strings.Contains(text, "\n\n") {
			return "\n\n"
		}
		return " "
	}
	return text
}

// normalizeWhitespace collapses horizontal whitespace and runs of blank
// lines outside fenced blocks; fenced lines are kept verbatim.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		if isFence(line) {
			inFence = !inFence
			out = append(out, strings.TrimSpace(line))
			continue
		}
		if inFence {
			out = append(out, strings.TrimRight(line, " \t"))
			continue
		}
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line == ">" {
			line = ""
		}
		out = append(out, line)
	}
	joined := strings.Join(out, "\n")
	joined = blankRun.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}

// Paragraphs splits cleaned text on blank lines, keeping fenced blocks whole.
func Paragraphs(clean string) []string {
	if clean == "" {
		return nil
	}
	var (
		paragraphs []string
		current    []string
		inFence    bool
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		p := strings.TrimSpace(strings.Join(current, "\n"))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
		current = nil
	}
	for _, line := range strings.Split(clean, "\n") {
		if isFence(line) {
			if !inFence {
				flush()
			}
			current = append(current, line)
			inFence = !inFence
			if !inFence {
				flush()
			}
			continue
		}
		if !inFence && strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return paragraphs
}

func isFence(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}
