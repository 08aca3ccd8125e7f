// Package chunker turns raw item markup into ordered, shape-classified text
// chunks. Chunking is lossy: formatting is discarded, paragraph boundaries are
// kept, and no paragraph is ever split across two chunks.
package chunker
