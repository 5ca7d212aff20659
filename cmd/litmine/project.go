// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litmine/internal/search"
	"github.com/pdiddy/litmine/internal/store"
	"github.com/pdiddy/litmine/pkg/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage saved projects",
	Long: `Project manages the projects kept in the local SQLite database. A project
holds the articles found for one keyword along with their enrichment state.`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project, its statistics and its articles",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectCreate,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and its articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.Store) error {
			if err := st.DeleteProject(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted project %s\n", args[0])
			return nil
		})
	},
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename <project-id> <name>",
	Short: "Rename a project or change its description",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectRename,
}

var projectExportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Write a project and its articles as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectExport,
}

var projectImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create a project from a YAML export",
	Long: `Import reads a file written by "project export" and stores it as a new
project with a fresh ID. Use "-" to read from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectImport,
}

func init() {
	projectListCmd.Flags().Int("limit", 0, "maximum projects to list (0 = default)")
	projectListCmd.Flags().Int("offset", 0, "projects to skip")
	projectListCmd.Flags().Bool("json", false, "output as JSON")

	projectShowCmd.Flags().Bool("json", false, "output as JSON")

	projectCreateCmd.Flags().String("keyword", "", "keyword the project searches for")
	projectCreateCmd.Flags().Int("years", 0, "publication window in years (default search.years_back)")
	projectCreateCmd.Flags().String("description", "", "free-text description")
	_ = projectCreateCmd.MarkFlagRequired("keyword")

	projectRenameCmd.Flags().String("description", "", "replace the description")

	projectExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectRenameCmd)
	projectCmd.AddCommand(projectExportCmd)
	projectCmd.AddCommand(projectImportCmd)

	rootCmd.AddCommand(projectCmd)
}

// withStore opens the project database for the duration of fn.
func withStore(fn func(ctx context.Context, st *store.Store) error) error {
	st, err := openStore(nil)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), st)
}

func runProjectList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withStore(func(ctx context.Context, st *store.Store) error {
		projects, err := st.ListProjects(ctx, limit, offset)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(projects)
		}
		if len(projects) == 0 {
			fmt.Println("No projects.")
			return nil
		}

		fmt.Printf("%-8s  %-30s  %-25s  %-5s  %-9s  %-8s  %s\n",
			"ID", "Name", "Keyword", "Total", "Processed", "Fulltext", "Updated")
		fmt.Println(strings.Repeat("-", 110))
		for _, p := range projects {
			fmt.Printf("%-8s  %-30s  %-25s  %-5d  %-9d  %-8d  %s\n",
				p.ID, clip(p.Name, 30), clip(p.Keyword, 25), p.TotalArticles,
				p.ProcessedArticles, p.FulltextArticles, p.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	})
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withStore(func(ctx context.Context, st *store.Store) error {
		snap, err := st.Load(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(snap)
		}
		stats, err := st.Stats(ctx, args[0])
		if err != nil {
			return err
		}

		p := snap.Project
		fmt.Printf("Project:   %s (%s)\n", p.Name, p.ID)
		fmt.Printf("Keyword:   %s, %d year(s)\n", p.Keyword, p.Years)
		if p.Description != "" {
			fmt.Printf("About:     %s\n", p.Description)
		}
		fmt.Printf("Articles:  %d total, %d processed, %d with full text\n",
			stats.TotalArticles, stats.ProcessedArticles, stats.FulltextArticles)
		fmt.Printf("Mentions:  %d, figures %d (%d mention the keyword)\n",
			stats.TotalMentions, stats.TotalFigures, stats.KeywordFigures)

		outcomes := make([]string, 0, len(stats.Outcomes))
		for o, n := range stats.Outcomes {
			outcomes = append(outcomes, fmt.Sprintf("%s=%d", o, n))
		}
		sort.Strings(outcomes)
		fmt.Printf("Outcomes:  %s\n\n", strings.Join(outcomes, ", "))

		search.FormatTable(types.CandidateSet{Articles: snap.Articles, Method: p.SearchMethod}, os.Stdout)
		return nil
	})
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	keyword, _ := cmd.Flags().GetString("keyword")
	years, _ := cmd.Flags().GetInt("years")
	if years <= 0 {
		years = cfg.Search.YearsBack
	}
	description, _ := cmd.Flags().GetString("description")

	return withStore(func(ctx context.Context, st *store.Store) error {
		p, err := st.CreateProject(ctx, types.NewProject{
			Name:        args[0],
			Keyword:     keyword,
			Years:       years,
			Description: description,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s\n", p.ID)
		return nil
	})
}

func runProjectRename(cmd *cobra.Command, args []string) error {
	upd := store.MetadataUpdate{Name: &args[1]}
	if cmd.Flags().Changed("description") {
		description, _ := cmd.Flags().GetString("description")
		upd.Description = &description
	}

	return withStore(func(ctx context.Context, st *store.Store) error {
		p, err := st.UpdateMetadata(ctx, args[0], upd)
		if err != nil {
			return err
		}
		fmt.Printf("Project %s is now %q\n", p.ID, p.Name)
		return nil
	})
}

func runProjectExport(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	return withStore(func(ctx context.Context, st *store.Store) error {
		if output == "" {
			return st.ExportYAML(ctx, args[0], os.Stdout)
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		if err := st.ExportYAML(ctx, args[0], f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		fmt.Fprintf(os.Stderr, "Exported project %s to %s\n", args[0], output)
		return nil
	})
}

func runProjectImport(cmd *cobra.Command, args []string) error {
	in := os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	return withStore(func(ctx context.Context, st *store.Store) error {
		p, err := st.ImportYAML(ctx, in)
		if err != nil {
			return err
		}
		fmt.Printf("Imported project %s with %d article(s)\n", p.ID, p.TotalArticles)
		return nil
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
