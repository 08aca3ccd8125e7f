package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

// Unit selects how chunk size is measured.
type Unit string

// Supported size units.
const (
	UnitWords Unit = "words"
	UnitChars Unit = "chars"
)

const (
	defaultTargetSize = 500
	idPrefixLen       = 12
	paragraphSep      = "\n\n"
)

// Options controls chunk sizing.
type Options struct {
	TargetSize int  `mapstructure:"target_size"`
	Unit       Unit `mapstructure:"unit"`
}

// Chunker splits content into chunks. It holds no mutable state and is safe
// for concurrent use.
type Chunker struct {
	opts   Options
	hasher feed.Hasher
}

// New builds a Chunker, filling zero-valued options with defaults.
func New(opts Options, hasher feed.Hasher) *Chunker {
	if opts.TargetSize <= 0 {
		opts.TargetSize = defaultTargetSize
	}
	if opts.Unit != UnitChars {
		opts.Unit = UnitWords
	}
	return &Chunker{opts: opts, hasher: hasher}
}

// Options returns the effective options.
func (c *Chunker) Options() Options {
	return c.opts
}

// Chunk cleans raw and packs its paragraphs into chunks whose ids derive from
// identity and ordinal only. Empty or whitespace-only input yields no chunks.
func (c *Chunker) Chunk(identity, raw string) ([]feed.Chunk, error) {
	paragraphs := Paragraphs(Clean(raw))
	if len(paragraphs) == 0 {
		return []feed.Chunk{}, nil
	}
	prefix, err := c.idPrefix(identity)
	if err != nil {
		return nil, err
	}

	groups := c.pack(paragraphs)
	chunks := make([]feed.Chunk, 0, len(groups))
	for i, group := range groups {
		text := strings.Join(group, paragraphSep)
		chunks = append(chunks, feed.Chunk{
			ID:    prefix + "_" + strconv.Itoa(i),
			Text:  text,
			Shape: Classify(text),
		})
	}
	return chunks, nil
}

// pack greedily groups consecutive paragraphs until the next one would push
// the group past the target size. A lone paragraph larger than the target
// becomes its own oversized group.
func (c *Chunker) pack(paragraphs []string) [][]string {
	var (
		groups  [][]string
		current []string
		size    int
	)
	for _, p := range paragraphs {
		n := c.measure(p)
		if len(current) > 0 && size+n > c.opts.TargetSize {
			groups = append(groups, current)
			current = nil
			size = 0
		}
		current = append(current, p)
		size += n
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func (c *Chunker) measure(text string) int {
	if c.opts.Unit == UnitChars {
		return utf8.RuneCountInString(text)
	}
	return len(strings.Fields(text))
}

func (c *Chunker) idPrefix(identity string) (string, error) {
	sum, err := c.hasher.Hash([]byte(identity))
	if err != nil {
		return "", fmt.Errorf("hash identity: %w", err)
	}
	if len(sum) > idPrefixLen {
		sum = sum[:idPrefixLen]
	}
	return sum, nil
}

// Summary returns the first maxWords words of the cleaned content, with an
// ellipsis when truncated.
func Summary(raw string, maxWords int) string {
	words := strings.Fields(stripFences(Clean(raw)))
	if maxWords <= 0 || len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "…"
}

func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if isFence(line) {
			continue
		}
		out = append(out, strings.TrimPrefix(line, "> "))
	}
	return strings.Join(out, "\n")
}
