// Package feed defines core types shared across the OpenFeeder subsystems.
package feed

import "time"

// Version is the protocol version advertised in every response envelope.
const Version = "1.0"

// Shape classifies the structure of a chunk of text.
type Shape string

// Supported chunk shapes.
const (
	ShapeParagraph Shape = "paragraph"
	ShapeHeading   Shape = "heading"
	ShapeList      Shape = "list"
	ShapeCode      Shape = "code"
	ShapeQuote     Shape = "quote"
)

// Item is a read-only snapshot of one piece of publicly visible content.
type Item struct {
	URL         string    `json:"url" yaml:"url"`
	Title       string    `json:"title" yaml:"title"`
	Body        string    `json:"body" yaml:"body"`
	Author      string    `json:"author,omitempty" yaml:"author"`
	Excerpt     string    `json:"excerpt,omitempty" yaml:"excerpt"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// Chunk is a bounded, shape-classified span of cleaned text.
type Chunk struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Shape     Shape    `json:"type"`
	Relevance *float64 `json:"relevance"`
}

// Page is one page of items returned by a Source.
type Page struct {
	Items []Item
	Total int
}

// Tombstone records that an item existed and was removed.
type Tombstone struct {
	URL       string    `json:"url"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ChangeKind enumerates content mutation events.
type ChangeKind string

// Supported change kinds.
const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Valid reports whether k is a known change kind.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
		return true
	default:
		return false
	}
}

// ChangeEvent describes a single create/update/delete of an item. Item is
// optional and only applied when the configured source is writable.
type ChangeEvent struct {
	Kind ChangeKind `json:"type"`
	URL  string     `json:"url"`
	At   time.Time  `json:"at"`
	Item *Item      `json:"item,omitempty"`
}
