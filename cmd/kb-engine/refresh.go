// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Verify the persisted state and report the store contents",
	Long: `Refresh re-opens the persisted stores and runs the startup verification:
no journaled mutation may be pending, no batch may be stuck mid-import, and
the vector store and the knowledge graph must hold the same id set. A
diverged state fails with a consistency error and is never repaired
automatically; restore from a backup or rebuild from the batch files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.Reload(context.Background())
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return printJSON(report)
		}
		fmt.Println("State verified: both stores agree.")
		printGlobalReport(report)
		return nil
	},
}

func init() {
	refreshCmd.Flags().Bool("json", false, "output report as JSON")
	rootCmd.AddCommand(refreshCmd)
}
