// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litmine/internal/relevance"
	"github.com/pdiddy/litmine/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search Europe PMC and PubMed for articles mentioning a keyword",
	Long: `Search queries the Europe PMC full-text index for the keyword within the
journal allow-list and publication window, falling back to PubMed titles and
abstracts when Europe PMC finds nothing. The best candidates are then
enriched with PubMed Central full text and the list is ranked by relevance.

With --project the ranked results are saved to that project, ready for
"enrich continue".`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("years", 0, "publication window in years (default search.years_back)")
	searchCmd.Flags().StringSlice("journal", nil, "journal allow-list entry, repeatable (default search.journals)")
	searchCmd.Flags().Bool("fetch", true, "enrich the best candidates with full text")
	searchCmd.Flags().Int("max-fulltext", -1, "articles to enrich (default enrich.max_fulltext)")
	searchCmd.Flags().String("project", "", "save results to this project ID")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	keyword := args[0]
	years, _ := cmd.Flags().GetInt("years")
	if years <= 0 {
		years = cfg.Search.YearsBack
	}
	journals, _ := cmd.Flags().GetStringSlice("journal")
	if len(journals) == 0 {
		journals = cfg.Search.Journals
	}
	limit, _ := cmd.Flags().GetInt("max-fulltext")
	if limit < 0 {
		limit = cfg.Enrich.MaxFulltext
	}
	fetch, _ := cmd.Flags().GetBool("fetch")
	projectID, _ := cmd.Flags().GetString("project")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, stop := signalContext()
	defer stop()

	c := newComponents()
	set := c.chain.Search(ctx, search.Query{Keyword: keyword, YearsBack: years, Journals: journals})

	if fetch && len(set.Articles) > 0 {
		results, report, err := c.pipeline.Initial(ctx, keyword, set, limit)
		if err != nil {
			return err
		}
		relevance.Rank(results)
		set.Articles = results
		printReport(report)
	}

	if projectID != "" {
		st, err := openStore(c.metrics)
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := st.Upsert(context.WithoutCancel(ctx), projectID, set.Articles)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %d article(s) to project %s\n", n, projectID)
	}

	if jsonOutput {
		return search.FormatJSON(set, os.Stdout)
	}
	search.FormatTable(set, os.Stdout)
	return nil
}
