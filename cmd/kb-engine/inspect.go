// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kb-engine/internal/engine"
	"github.com/pdiddy/kb-engine/pkg/types"
)

var inspectBatchCmd = &cobra.Command{
	Use:   "inspect-batch",
	Short: "Report what remains of one batch in each store",
	Long: `Inspect-batch resolves a batch to its contributed ids and reports, per
item kind, how many survive in the vector store versus the knowledge graph.
Diverging counts indicate an inconsistency between the stores.

The batch is named either by --batch (ledger id) or by --batch-file, which
recomputes the id set from the extraction file itself.`,
	RunE: runInspectBatch,
}

func runInspectBatch(cmd *cobra.Command, args []string) error {
	batchID, _ := cmd.Flags().GetString("batch")
	batchFile, _ := cmd.Flags().GetString("batch-file")
	if (batchID == "") == (batchFile == "") {
		return fmt.Errorf("exactly one of --batch or --batch-file is required")
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := context.Background()
	var report *types.BatchReport
	if batchID != "" {
		report, err = e.InspectBatch(ctx, batchID)
	} else {
		var batch *types.ExtractionBatch
		if batch, err = engine.LoadBatch(batchFile); err != nil {
			return err
		}
		report, err = e.InspectItems(ctx, batch)
	}
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return printJSON(report)
	}
	printBatchReport(report)
	return nil
}

func printBatchReport(r *types.BatchReport) {
	fmt.Printf("Batch %s", r.BatchID)
	if r.State != "" {
		fmt.Printf(" (%s)", r.State)
	}
	fmt.Println()

	printPresence("paragraphs", r.Paragraphs)
	printPresence("entities", r.Entities)
	printPresence("relations", r.Relations)

	if r.Empty() {
		fmt.Println("Nothing from this batch remains in either store.")
	}
	for _, p := range r.SampleRemaining {
		fmt.Printf("  remaining: %s  %s\n", p.ID, p.Content)
	}
}

func printPresence(label string, p types.ItemPresence) {
	fmt.Printf("  %-10s  total %d, in vector store %d, in graph %d", label, p.Total, p.InVector, p.InGraph)
	if p.Diverged() {
		fmt.Print("  [DIVERGED]")
	}
	fmt.Println()
}

var inspectGlobalCmd = &cobra.Command{
	Use:   "inspect-global",
	Short: "Summarize both stores across all batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.InspectGlobal(context.Background())
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return printJSON(report)
		}
		printGlobalReport(report)
		return nil
	},
}

func printGlobalReport(r *types.GlobalReport) {
	fmt.Printf("Vector store: %d paragraph(s), %d entit(ies), %d relation(s)\n",
		r.ParagraphVectors, r.EntityVectors, r.RelationVectors)
	fmt.Printf("Graph: %d node(s) (%d paragraph, %d entity), %d edge(s)\n",
		r.GraphNodes, r.ParagraphNodes, r.EntityNodes, r.GraphEdges)

	if len(r.SampleParagraphs) > 0 {
		fmt.Println("Sample paragraphs:")
		for _, p := range r.SampleParagraphs {
			fmt.Printf("  %s  %s\n", p.ID, p.Content)
		}
	}
	if len(r.SampleEntities) > 0 {
		fmt.Println("Sample entities:")
		for _, p := range r.SampleEntities {
			fmt.Printf("  %s  %s\n", p.ID, p.Content)
		}
	}
}

func init() {
	inspectBatchCmd.Flags().String("batch", "", "batch id recorded in the ledger")
	inspectBatchCmd.Flags().String("batch-file", "", "extraction batch file to recompute the id set from")
	inspectBatchCmd.Flags().Bool("json", false, "output report as JSON")

	inspectGlobalCmd.Flags().Bool("json", false, "output report as JSON")

	rootCmd.AddCommand(inspectBatchCmd)
	rootCmd.AddCommand(inspectGlobalCmd)
}
