package api

import (
	"bytes"
	"fmt"

	"github.com/JakeFAU/openfeeder/internal/content"
	"github.com/JakeFAU/openfeeder/internal/feed"
)

// renderMarkdown flattens an item into a markdown document. Heading chunks
// become second-level headings; everything else is emitted as-is.
func renderMarkdown(doc *content.ItemDocument) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	meta := "Published " + doc.Published.Format("2006-01-02")
	if doc.Author != "" {
		meta = "By " + doc.Author + " · " + meta
	}
	fmt.Fprintf(&b, "_%s_\n\n", meta)
	for _, c := range doc.Chunks {
		if c.Shape == feed.ShapeHeading {
			fmt.Fprintf(&b, "## %s\n\n", c.Text)
			continue
		}
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Source: %s\n", doc.URL)
	return b.Bytes()
}
