package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"photosearch/config"
)

var initWriteConfig bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory and the collection",
	Long: `Create .photosearch/ under the root directory and make sure the configured
collection exists with the embedder's dimension and model. Running it again
is harmless; a collection created for another model is reported as an error.

Examples:
  photosearch init
  photosearch init --write-config   # also write .photosearch/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initWriteConfig, "write-config", false, "write the effective config to .photosearch/config.yaml if absent")
}

func runInit(cmd *cobra.Command, args []string) error {
	c := GetConfig()
	root := GetRootDir()

	a, err := openApp(cmd.Context(), c, root, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if initWriteConfig {
		path := filepath.Join(config.DataDir(root), "config.yaml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := c.Save(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(out, "Wrote %s\n", path)
		}
	}

	stats, err := a.collection.Stats(cmd.Context(), c.Index.Collection)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintln(out, "Collection ready:")
	fmt.Fprintf(out, "  Name:      %s\n", stats.Collection.Name)
	fmt.Fprintf(out, "  Dimension: %d\n", stats.Collection.Dimension)
	fmt.Fprintf(out, "  Metric:    %s\n", stats.Collection.Metric)
	fmt.Fprintf(out, "  Model:     %s\n", stats.Collection.Model)
	fmt.Fprintf(out, "  Records:   %d\n", stats.Records)
	fmt.Fprintf(out, "\nIndex stored at: %s\n", c.IndexDBPath(root))
	return nil
}
