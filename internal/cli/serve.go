package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"photosearch/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve upload, search and image retrieval over HTTP.

Routes:
  POST /photos          multipart upload (field "file", optional "name")
  GET  /photos          stored names (?orphans=true for unindexed ones)
  GET  /search?q=&limit=
  GET  /images/<name>
  GET  /stats
  GET  /healthz`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	c := GetConfig()
	if serveAddr != "" {
		c.Server.Addr = serveAddr
	}

	a, err := openApp(cmd.Context(), c, GetRootDir(), logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(c.Server.Mode)
	srv := server.New(server.Deps{
		Ingest:         a.ingest,
		Retrieve:       a.retrieve,
		Photos:         a.photos,
		Collection:     a.collection,
		CollectionName: c.Index.Collection,
		MaxUploadBytes: c.Ingest.MaxBytes,
	}, logger)

	return srv.Run(cmd.Context(), c.Server.Addr)
}
