package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/openfeeder/internal/chunker"
	"github.com/JakeFAU/openfeeder/internal/hash/sha256"
)

// newChunkCmd splits a document the way the server would and prints the
// chunks, which is handy when tuning chunker settings.
func newChunkCmd() *cobra.Command {
	var (
		identity string
		size     int
		unit     string
	)
	cmd := &cobra.Command{
		Use:   "chunk [file]",
		Short: "Chunks a document and prints the result as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				// #nosec G304 -- path is supplied by the operator on the command line.
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			if u := chunker.Unit(unit); u != chunker.UnitWords && u != chunker.UnitChars {
				return fmt.Errorf("unknown unit %q", unit)
			}
			if size <= 0 {
				return fmt.Errorf("size must be positive")
			}
			opts := chunker.Options{TargetSize: size, Unit: chunker.Unit(unit)}
			chunks, err := chunker.New(opts, sha256.New()).Chunk(identity, string(raw))
			if err != nil {
				return fmt.Errorf("chunk: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(chunks)
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "/", "identity (usually the item URL) used to derive chunk ids")
	cmd.Flags().IntVar(&size, "size", 500, "target chunk size")
	cmd.Flags().StringVar(&unit, "unit", string(chunker.UnitWords), "size unit: words or chars")
	return cmd
}
