package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"photosearch/internal/domain"
)

var (
	searchText string
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find photos by description",
	Long: `Search the collection with a natural-language query. Results are ordered
by similarity. Without a query the first indexed photos are listed, oldest first.

Examples:
  photosearch search -q "dog running on a beach"
  photosearch search -q "red car" -k 10 --json
  photosearch search                              # browse`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (empty lists photos)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), GetConfig(), GetRootDir(), logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.retrieve.Retrieve(cmd.Context(), domain.RetrieveRequest{Query: searchText, Limit: searchTopK})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		if strings.TrimSpace(searchText) == "" {
			fmt.Fprintln(out, "No photos stored yet.")
		} else {
			fmt.Fprintln(out, "No matching photos.")
		}
		return nil
	}

	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	for i, r := range results {
		if r.Score != nil {
			fmt.Fprintf(out, "%d. %s %s\n", i+1, bold(r.Path), cyan(fmt.Sprintf("(%.4f)", *r.Score)))
		} else {
			fmt.Fprintf(out, "%d. %s\n", i+1, bold(r.Path))
		}
		fmt.Fprintf(out, "   %s\n", r.Text)
	}
	return nil
}
