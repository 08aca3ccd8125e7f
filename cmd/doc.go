// Package cmd wires the openfeeder CLI: `serve` runs the HTTP server and
// `chunk` previews how a document will be split.
package cmd
