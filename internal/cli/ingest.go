package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"photosearch/internal/domain"
	"photosearch/internal/port"
	"photosearch/internal/usecase"
)

var (
	ingestName    string
	ingestWorkers int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>",
	Short: "Store, describe and index photos",
	Long: `Upload a photo, or every image under a directory, into the collection.
Each photo is stored, described by the vision model, embedded and indexed.
Photos whose name is already stored are skipped.

Examples:
  photosearch ingest cat.png
  photosearch ingest cat.png --name pets/cat.png
  photosearch ingest ~/Pictures --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "stored name for a single file (default is the file name)")
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "concurrent ingestions for a directory (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	c := GetConfig()
	if ingestWorkers > 0 {
		c.Ingest.Workers = ingestWorkers
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, c, GetRootDir(), logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if !info.IsDir() {
		return ingestOne(cmd, a, path)
	}
	if ingestName != "" {
		return fmt.Errorf("--name only applies to a single file")
	}
	return ingestDir(cmd, a, path)
}

func ingestOne(cmd *cobra.Command, a *app, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := ingestName
	if name == "" {
		name = filepath.Base(path)
	}

	rec, err := a.ingest.Ingest(cmd.Context(), domain.IngestRequest{Name: name, Data: data})
	if domain.IsDuplicate(err) {
		color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "Already stored: %s\n", name)
		return nil
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color.New(color.FgGreen).Fprintf(out, "Stored %s (id %d)\n", rec.Path, rec.ID)
	fmt.Fprintf(out, "  %s\n", rec.Text)
	return nil
}

func ingestDir(cmd *cobra.Command, a *app, root string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning %s...\n", root)

	files, err := a.batch.Discover(root)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No images found.")
		return nil
	}

	// Non-terminal output (pipes, CI logs) gets only the summary.
	var bar *progressbar.ProgressBar
	if term.IsTerminal(int(os.Stdout.Fd())) {
		bar = newProgressBar(len(files), "Ingesting")
	}
	var (
		mu        sync.Mutex
		processed int
		startTime = time.Now()
	)
	progress := func(_ port.FileInfo, _ error) {
		mu.Lock()
		defer mu.Unlock()

		processed++
		if bar == nil {
			return
		}
		bar.Set(processed)

		elapsed := time.Since(startTime)
		rate := float64(processed) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(len(files)-processed)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
		}
	}

	result, err := a.batch.IngestFiles(cmd.Context(), files, progress)
	printBatchResult(cmd, result, time.Since(startTime))
	if err != nil {
		return fmt.Errorf("ingestion interrupted: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d photos failed", result.Failed, result.Found)
	}
	return nil
}

func printBatchResult(cmd *cobra.Command, result *usecase.BatchResult, took time.Duration) {
	if result == nil {
		return
	}
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(out, "\nIngestion complete in %s (batch %s):\n", formatDuration(took), result.BatchID)
	fmt.Fprintf(out, "  Found:      %d\n", result.Found)
	fmt.Fprintf(out, "  Ingested:   %s\n", green(result.Ingested))
	fmt.Fprintf(out, "  Duplicates: %s\n", yellow(result.Duplicates))
	fmt.Fprintf(out, "  Failed:     %s\n", red(result.Failed))

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nFailures:\n")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - %s: %v\n", e.Path, e.Err)
		}
	}
}

func newProgressBar(total int, label string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
