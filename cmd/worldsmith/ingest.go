package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest markdown files or directories into the lore store",
	Long: `Ingest splits markdown documents into heading-delimited sections,
embeds their paragraphs, and appends them to the lore store so the writer
team can retrieve them as established canon.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, false, false)
	if err != nil {
		return err
	}
	defer a.Close()

	sections, chunks := 0, 0
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot stat %s: %w", path, err)
		}

		if info.IsDir() {
			res, err := a.ingester.IngestDir(ctx, path)
			if err != nil {
				return err
			}
			sections += res.Sections
			chunks += res.Chunks
		} else {
			res, err := a.ingester.IngestFile(ctx, path)
			if err != nil {
				return err
			}
			sections += res.Sections
			chunks += res.Chunks
		}
	}

	fmt.Printf("Ingested %d sections (%d chunks)\n", sections, chunks)
	return nil
}
