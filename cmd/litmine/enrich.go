// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litmine/internal/enrich"
	"github.com/pdiddy/litmine/internal/relevance"
	"github.com/pdiddy/litmine/internal/search"
	"github.com/pdiddy/litmine/internal/store"
	"github.com/pdiddy/litmine/pkg/types"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a project's articles with full text in batches",
	Long: `Enrich runs further enrichment passes over the articles saved in a
project. Use "continue" for articles not yet processed and "retry" for
articles whose last attempt failed. Results are saved back to the project.`,
}

var enrichContinueCmd = &cobra.Command{
	Use:   "continue <project-id>",
	Short: "Enrich the next batch of unprocessed articles",
	Long: `Continue enriches the project's unprocessed articles. With --start and
--end it enriches exactly that range of the stored list instead, whatever
the articles' current state.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnrich(cmd, args[0], enrich.ModeContinue)
	},
}

var enrichRetryCmd = &cobra.Command{
	Use:   "retry <project-id>",
	Short: "Re-attempt articles whose enrichment failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnrich(cmd, args[0], enrich.ModeRetry)
	},
}

func init() {
	enrichCmd.PersistentFlags().String("keyword", "", "keyword to locate (default: the project's keyword)")
	enrichCmd.PersistentFlags().Bool("json", false, "output results as JSON")

	enrichContinueCmd.Flags().Int("start", 0, "first index of the range (inclusive)")
	enrichContinueCmd.Flags().Int("end", 0, "last index of the range (exclusive, 0 = end of list)")
	enrichContinueCmd.Flags().Int("limit", 0, "enrich at most this many unprocessed articles (0 = all)")

	enrichCmd.AddCommand(enrichContinueCmd)
	enrichCmd.AddCommand(enrichRetryCmd)

	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, projectID string, mode enrich.Mode) error {
	ctx, stop := signalContext()
	defer stop()

	c := newComponents()
	st, err := openStore(c.metrics)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	keyword, _ := cmd.Flags().GetString("keyword")
	if keyword == "" {
		keyword = p.Keyword
	}

	var articles []types.Article
	switch {
	case mode == enrich.ModeRetry:
		articles, err = st.LoadArticles(ctx, projectID, store.ArticleFilter{
			Outcomes: []types.Outcome{types.OutcomeNoSecondaryID, types.OutcomeFetchFailed, types.OutcomeParseFailed},
		})
	case cmd.Flags().Changed("start") || cmd.Flags().Changed("end"):
		var snap *types.ProjectSnapshot
		if snap, err = st.Load(ctx, projectID); err == nil {
			start, _ := cmd.Flags().GetInt("start")
			end, _ := cmd.Flags().GetInt("end")
			articles, err = types.Cursor{Start: start, End: end}.Slice(snap.Articles)
		}
	default:
		articles, err = st.LoadArticles(ctx, projectID, store.ArticleFilter{
			Outcomes: []types.Outcome{types.OutcomeUnattempted},
		})
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(articles) > limit {
			articles = articles[:limit]
		}
	}
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to enrich.")
		return nil
	}

	run := c.pipeline.Continue
	if mode == enrich.ModeRetry {
		run = c.pipeline.Retry
	}
	results, report, err := run(ctx, keyword, articles)
	if err != nil {
		return err
	}
	printReport(report)

	n, err := st.Upsert(context.WithoutCancel(ctx), projectID, results)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Saved %d article(s) to project %s\n", n, projectID)

	relevance.Rank(results)
	set := types.CandidateSet{Articles: results, Method: p.SearchMethod}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return search.FormatJSON(set, os.Stdout)
	}
	search.FormatTable(set, os.Stdout)
	return nil
}

// printReport writes a one-line pass summary to stderr.
func printReport(r enrich.Report) {
	fmt.Fprintf(os.Stderr, "%s pass: %d attempted, %d succeeded, %d failed",
		r.Mode, r.Attempted, r.Succeeded, r.Failed())

	outcomes := make([]string, 0, len(r.Outcomes))
	for o := range r.Outcomes {
		if o != types.OutcomeSuccess {
			outcomes = append(outcomes, string(o))
		}
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(os.Stderr, ", %s=%d", o, r.Outcomes[types.Outcome(o)])
	}
	if r.Cancelled {
		fmt.Fprintf(os.Stderr, " (cancelled, %d skipped)", r.Skipped)
	}
	fmt.Fprintln(os.Stderr)
}
