// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kb-engine/internal/engine"
)

var importCmd = &cobra.Command{
	Use:   "import --batch-file <path> [--batch-file <path>...]",
	Short: "Import extraction batch files into both stores",
	Long: `Import reads extraction batch files (paragraphs with their extracted
entities and triples) and writes each batch atomically to the vector store
and the knowledge graph. Paragraphs whose content hash is already present
are skipped; entities seen before are merged with their mention counts
updated. Re-importing an identical file is a no-op.`,
	Args: cobra.ArbitraryArgs,
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	paths, _ := cmd.Flags().GetStringSlice("batch-file")
	paths = append(paths, args...)
	if len(paths) == 0 {
		return fmt.Errorf("at least one --batch-file is required")
	}
	source, _ := cmd.Flags().GetString("source")
	if source != "" && len(paths) > 1 {
		return fmt.Errorf("--source applies to a single batch file")
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := context.Background()
	for _, path := range paths {
		batch, err := engine.LoadBatch(path)
		if err != nil {
			return err
		}
		if source != "" {
			batch.Source = source
		}
		sum, err := e.ImportBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}
		fmt.Printf("%s: %d paragraph(s) imported, %d duplicate(s) skipped, %d new / %d merged entities, %d relation(s)\n",
			sum.BatchID, sum.Paragraphs, sum.DedupSkipped, sum.NewEntities, sum.MergedEntities, sum.Relations)
	}
	return nil
}

func init() {
	importCmd.Flags().StringSlice("batch-file", nil, "extraction batch file to import (repeatable)")
	importCmd.Flags().String("source", "", "override the batch id recorded for a single file")

	rootCmd.AddCommand(importCmd)
}
