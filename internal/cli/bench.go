package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"photosearch/internal/domain"
	"photosearch/internal/eval"
)

var (
	benchQuery string
	benchCases string
	benchTopK  int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure search quality",
	Long: `Run one query and rate the similarity of its matches, or run a YAML file
of labelled queries and report precision, recall, MRR and NDCG.

Cases file format:
  - query: cat on a sofa
    relevant: [cat.png]

Examples:
  photosearch bench -q "dog in the snow"
  photosearch bench --cases testdata/cases.yaml -k 5`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVarP(&benchQuery, "query", "q", "", "single query to rate")
	benchCmd.Flags().StringVar(&benchCases, "cases", "", "YAML file of labelled queries")
	benchCmd.Flags().IntVarP(&benchTopK, "top-k", "k", 10, "results per query")
}

func runBench(cmd *cobra.Command, args []string) error {
	benchQuery = strings.TrimSpace(benchQuery)
	if (benchQuery == "") == (benchCases == "") {
		return fmt.Errorf("exactly one of --query or --cases is required")
	}

	c := GetConfig()
	a, err := openApp(cmd.Context(), c, GetRootDir(), logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.index.Count(cmd.Context(), c.Index.Collection)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("collection %s is empty. Run 'photosearch ingest' first", c.Index.Collection)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "SEMANTIC SEARCH BENCHMARK")
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "Photos indexed: %d\n", count)
	fmt.Fprintf(out, "Model: %s (%s)\n", a.embedder.ModelName(), c.Embedding.Provider)
	fmt.Fprintf(out, "Dimension: %d\n\n", a.embedder.Dimension())

	if benchQuery != "" {
		return benchOne(cmd, a, benchQuery)
	}
	return benchSuite(cmd, a, benchCases)
}

func benchOne(cmd *cobra.Command, a *app, query string) error {
	out := cmd.OutOrStdout()
	results, err := a.retrieve.Retrieve(cmd.Context(), domain.RetrieveRequest{Query: query, Limit: benchTopK})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Query: %q\n", query)
	fmt.Fprintln(out, strings.Repeat("-", 70))
	if len(results) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}

	total := 0.0
	for i, r := range results {
		score := *r.Score
		total += score

		preview := truncate(r.Text, 153)
		fmt.Fprintf(out, "%d. [%s %.3f] %s\n", i+1, rating(score), score, r.Path)
		fmt.Fprintf(out, "   %s\n\n", preview)
	}

	avg := total / float64(len(results))
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "QUALITY METRICS:\n")
	fmt.Fprintf(out, "  Average similarity: %.3f\n", avg)
	fmt.Fprintf(out, "  Top-1 similarity:   %.3f\n", *results[0].Score)

	switch {
	case avg > 0.5:
		color.New(color.FgGreen).Fprintln(out, "  Status: GOOD - descriptions match the query well")
	case avg > 0.3:
		color.New(color.FgYellow).Fprintln(out, "  Status: OK - results are somewhat related")
	default:
		color.New(color.FgRed).Fprintln(out, "  Status: POOR - try a stronger embedding model or a richer vision prompt")
	}
	return nil
}

func benchSuite(cmd *cobra.Command, a *app, path string) error {
	cases, err := eval.LoadCases(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	all := make([]eval.Scores, 0, len(cases))
	for _, tc := range cases {
		results, err := a.retrieve.Retrieve(cmd.Context(), domain.RetrieveRequest{Query: tc.Query, Limit: benchTopK})
		if err != nil {
			return err
		}
		paths := make([]string, len(results))
		for i, r := range results {
			paths[i] = r.Path
		}

		s := eval.Score(paths, tc.Relevant)
		all = append(all, s)
		fmt.Fprintf(out, "%-40s P=%.3f R=%.3f MRR=%.3f NDCG=%.3f\n", truncate(tc.Query, 40), s.Precision, s.Recall, s.MRR, s.NDCG)
	}

	m := eval.Mean(all)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "Mean over %d queries (k=%d):\n", len(cases), benchTopK)
	fmt.Fprintf(out, "  Precision@k: %.3f\n", m.Precision)
	fmt.Fprintf(out, "  Recall@k:    %.3f\n", m.Recall)
	fmt.Fprintf(out, "  MRR:         %.3f\n", m.MRR)
	fmt.Fprintf(out, "  NDCG:        %.3f\n", m.NDCG)
	return nil
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
