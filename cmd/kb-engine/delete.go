// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kb-engine/internal/engine"
	"github.com/pdiddy/kb-engine/pkg/types"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Plan and apply a deletion against both stores",
	Long: `Delete removes content from the vector store and the knowledge graph in
lockstep. Targets are chosen one way per invocation: by batch id, by 1-based
paragraph indices into a raw source file, by a hash list file, or by keyword
search with explicit candidate picks.

The impact is always planned and shown first. Applying requires typing YES
(or --yes), and a plan removing more nodes than the safety threshold aborts
unless --override-safety is given. --dry-run stops after the plan.`,
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	sel, err := selectorFromFlags(cmd)
	if err != nil {
		return err
	}
	opts := planOptionsFromFlags(cmd)

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := context.Background()
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	in := bufio.NewReader(cmd.InOrStdin())

	plan, err := e.Plan(ctx, sel, opts)
	if err != nil {
		return err
	}

	// Keyword search without picks: show the candidates and ask.
	if plan.NeedsSelection() {
		if dryRun {
			return printCandidates(plan.Candidates, jsonOutput)
		}
		unattended, _ := cmd.Flags().GetBool("yes")
		picks, err := resolveKeywordPicks(in, plan.Candidates, unattended)
		if err != nil {
			return err
		}
		sel.Picks = picks
		if plan, err = e.Plan(ctx, sel, opts); err != nil {
			return err
		}
	}

	if err := printImpact(&plan.Impact, jsonOutput); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	if plan.Impact.TotalRemovedNodes() == 0 && len(plan.Impact.Relations) == 0 {
		fmt.Println("Nothing to delete.")
		return nil
	}

	apply := engine.ApplyOptions{}
	apply.MaxDeleteNodes, _ = cmd.Flags().GetInt("max-delete-nodes")
	apply.OverrideSafety, _ = cmd.Flags().GetBool("override-safety")
	apply.SkipConfirmation, _ = cmd.Flags().GetBool("yes")

	if !apply.SkipConfirmation {
		fmt.Printf("Type %s to confirm deletion: ", engine.ConfirmToken)
		line, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading confirmation: %w", err)
		}
		apply.Confirmation = strings.TrimSpace(line)
	}

	before, err := e.InspectGlobal(ctx)
	if err != nil {
		return err
	}
	report, err := e.Apply(ctx, plan, apply)
	if err != nil {
		return err
	}
	after, err := e.InspectGlobal(ctx)
	if err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("Graph nodes %d -> %d, edges %d -> %d\n",
			before.GraphNodes, after.GraphNodes, before.GraphEdges, after.GraphEdges)
	}
	if out, _ := cmd.Flags().GetString("report-out"); out != "" {
		if err := writeYAMLReport(out, report); err != nil {
			return err
		}
	}
	return printReport(report, jsonOutput)
}

// writeYAMLReport persists the deletion report for audit purposes.
func writeYAMLReport(path string, report *types.DeletionReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding deletion report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing deletion report: %w", err)
	}
	fmt.Printf("Deletion report written to %s\n", path)
	return nil
}

// selectorFromFlags builds the deletion selector, requiring exactly one
// selection mode.
func selectorFromFlags(cmd *cobra.Command) (engine.Selector, error) {
	batchID, _ := cmd.Flags().GetString("batch")
	batchFile, _ := cmd.Flags().GetString("batch-file")
	rawFile, _ := cmd.Flags().GetString("raw-file")
	rawIndices, _ := cmd.Flags().GetIntSlice("raw-index")
	hashListPath, _ := cmd.Flags().GetString("hash-file")
	hashes, _ := cmd.Flags().GetStringSlice("hash")
	keyword, _ := cmd.Flags().GetString("search-text")

	modes := 0
	var sel engine.Selector
	if batchID != "" {
		modes++
		sel = engine.Selector{Kind: engine.SelectByBatch, BatchID: batchID}
	}
	if batchFile != "" {
		// Resolve targets from the file itself so batches that never made
		// it into the ledger can still be cleaned up. Only paragraph ids
		// are fed in; entity and relation doom follows the usual rules, so
		// entities shared with other batches survive.
		modes++
		batch, err := engine.LoadBatch(batchFile)
		if err != nil {
			return sel, err
		}
		paragraphs, _, _, err := engine.BatchIDSets(batch)
		if err != nil {
			return sel, err
		}
		sel = engine.Selector{Kind: engine.SelectByHashList, HashIDs: paragraphs}
	}
	if rawFile != "" {
		modes++
		if len(rawIndices) == 0 {
			return sel, fmt.Errorf("--raw-file requires at least one --raw-index")
		}
		sel = engine.Selector{Kind: engine.SelectByRawIndex, RawFile: rawFile, RawIndices: rawIndices}
	}
	if hashListPath != "" || len(hashes) > 0 {
		modes++
		ids := append([]string{}, hashes...)
		if hashListPath != "" {
			fromFile, err := readHashList(hashListPath)
			if err != nil {
				return sel, err
			}
			ids = append(ids, fromFile...)
		}
		sel = engine.Selector{Kind: engine.SelectByHashList, HashIDs: ids}
	}
	if keyword != "" {
		modes++
		limit, _ := cmd.Flags().GetInt("search-limit")
		picks, _ := cmd.Flags().GetIntSlice("search-pick")
		sel = engine.Selector{Kind: engine.SelectByKeyword, Query: keyword, Limit: limit, Picks: picks}
	}

	if modes != 1 {
		return sel, fmt.Errorf("exactly one of --batch, --batch-file, --raw-file, --hash-file/--hash, or --search-text is required")
	}
	return sel, nil
}

func planOptionsFromFlags(cmd *cobra.Command) engine.PlanOptions {
	var opts engine.PlanOptions
	opts.DeleteEntities, _ = cmd.Flags().GetBool("delete-entities")
	opts.DeleteRelations, _ = cmd.Flags().GetBool("delete-relations")
	opts.RemoveOrphans, _ = cmd.Flags().GetBool("remove-orphan-entities")
	return opts
}

// readHashList reads one id per line. Blank lines and # comments are
// skipped; bare hashes and prefixed ids are both accepted.
func readHashList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening hash list: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading hash list: %w", err)
	}
	return ids, nil
}

// resolveKeywordPicks obtains the candidate sub-selection. Unattended
// runs never block on input: without explicit --search-pick values they
// fail validation instead.
func resolveKeywordPicks(in *bufio.Reader, candidates []types.KeywordCandidate, unattended bool) ([]int, error) {
	if unattended {
		return nil, types.Validationf(
			"keyword search returned %d candidate(s); pass --search-pick to delete without a prompt",
			len(candidates))
	}
	return promptPicks(in, candidates)
}

func promptPicks(in *bufio.Reader, candidates []types.KeywordCandidate) ([]int, error) {
	fmt.Printf("%d matching paragraph(s):\n", len(candidates))
	for i, c := range candidates {
		fmt.Printf("  %2d. %s  %s\n", i+1, c.ID, c.Preview)
	}
	fmt.Print("Select paragraphs to delete (e.g. 1,3): ")

	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading selection: %w", err)
	}
	return parsePicks(line)
}

func parsePicks(line string) ([]int, error) {
	var picks []int
	for _, field := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' }) {
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", field)
		}
		picks = append(picks, n)
	}
	if len(picks) == 0 {
		return nil, fmt.Errorf("no paragraphs selected")
	}
	return picks, nil
}

func printCandidates(candidates []types.KeywordCandidate, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(candidates)
	}
	fmt.Printf("%d matching paragraph(s):\n", len(candidates))
	for i, c := range candidates {
		fmt.Printf("  %2d. %s  %s\n", i+1, c.ID, c.Preview)
	}
	return nil
}

func printImpact(impact *types.ImpactReport, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(impact)
	}
	fmt.Printf("Plan: %d paragraph(s), %d entit(ies), %d relation(s)",
		len(impact.Paragraphs), len(impact.Entities), len(impact.Relations))
	if len(impact.OrphanEntities) > 0 {
		fmt.Printf(", %d orphan entit(ies)", len(impact.OrphanEntities))
	}
	fmt.Printf(" (%d node(s) total)\n", impact.TotalRemovedNodes())
	return nil
}

func printReport(report *types.DeletionReport, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(report)
	}
	fmt.Printf("Removed: %d paragraph(s), %d entit(ies), %d relation(s), %d orphan(s)\n",
		report.ParagraphsRemoved, report.EntitiesRemoved, report.RelationsRemoved, report.OrphansRemoved)
	if report.Skipped > 0 {
		fmt.Printf("Skipped %d item(s) already absent.\n", report.Skipped)
	}
	if report.Drift {
		fmt.Println("Warning: actual removals differ from the plan (state changed between plan and apply).")
	}
	for _, b := range report.BatchesRemoved {
		fmt.Printf("Batch %s is now fully removed.\n", b)
	}
	return nil
}

func init() {
	deleteCmd.Flags().String("batch", "", "delete everything a batch contributed (batch id)")
	deleteCmd.Flags().String("batch-file", "", "delete the paragraphs an extraction batch file contributed")
	deleteCmd.Flags().String("raw-file", "", "raw source file for index-based selection")
	deleteCmd.Flags().IntSlice("raw-index", nil, "1-based paragraph indices into --raw-file")
	deleteCmd.Flags().String("hash-file", "", "file with one content hash or prefixed id per line")
	deleteCmd.Flags().StringSlice("hash", nil, "content hash or prefixed id (repeatable)")
	deleteCmd.Flags().String("search-text", "", "substring search over paragraph content")
	deleteCmd.Flags().Int("search-limit", 0, "maximum keyword candidates (default 20)")
	deleteCmd.Flags().IntSlice("search-pick", nil, "1-based keyword candidates to delete, skipping the prompt")

	deleteCmd.Flags().Bool("delete-entities", true, "delete entities whose every mentioning paragraph is selected")
	deleteCmd.Flags().Bool("delete-relations", true, "delete relations owned by selected paragraphs")
	deleteCmd.Flags().Bool("remove-orphan-entities", false, "second pass removing entities whose last incident edge this deletion took")

	deleteCmd.Flags().Bool("dry-run", false, "plan only; mutate nothing")
	deleteCmd.Flags().Bool("yes", false, "skip the YES confirmation prompt")
	deleteCmd.Flags().Bool("override-safety", false, "permit plans above the node threshold")
	deleteCmd.Flags().Int("max-delete-nodes", 0, "safety threshold override for this invocation (0 = configured value)")
	deleteCmd.Flags().Bool("json", false, "output plan and report as JSON")
	deleteCmd.Flags().String("report-out", "", "write the deletion report to a YAML file")

	rootCmd.AddCommand(deleteCmd)
}
