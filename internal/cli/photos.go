package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getOutput string

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Fetch a stored photo",
	Long: `Write the bytes of a stored photo to a file, or to stdout.

Examples:
  photosearch get cat.png -o /tmp/cat.png
  photosearch get pets/cat.png > cat.png`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var (
	listOrphans bool
	listJSON    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored photo names",
	Long: `List the names of every stored photo. With --orphans, list only photos
whose bytes are stored but which never made it into the index.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "output file (default is stdout)")
	listCmd.Flags().BoolVar(&listOrphans, "orphans", false, "list only stored photos missing from the index")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

func runGet(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), GetConfig(), GetRootDir(), logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.photos.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if getOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(getOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", getOutput, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), getOutput)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), GetConfig(), GetRootDir(), logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var names []string
	if listOrphans {
		names, err = a.photos.Orphans(cmd.Context())
	} else {
		names, err = a.photos.List(cmd.Context())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJSON {
		if names == nil {
			names = []string{}
		}
		return json.NewEncoder(out).Encode(names)
	}
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return nil
}
