package chunker

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

const headingMaxWords = 15

var bulletLine = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)])\s+\S`)

// Classify assigns a shape to a block of cleaned text.
func Classify(text string) feed.Shape {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return feed.ShapeParagraph
	}
	if isFence(trimmed) {
		return feed.ShapeCode
	}
	if strings.HasPrefix(trimmed, ">") {
		return feed.ShapeQuote
	}

	var lines []string
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	bullets := 0
	for _, line := range lines {
		if bulletLine.MatchString(line) {
			bullets++
		}
	}
	if bullets > 0 && bullets*2 > len(lines) {
		return feed.ShapeList
	}
	if len(lines) == 1 && len(strings.Fields(lines[0])) < headingMaxWords {
		return feed.ShapeHeading
	}
	return feed.ShapeParagraph
}
