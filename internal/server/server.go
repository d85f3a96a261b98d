// Package server exposes ingestion and retrieval over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"photosearch/internal/logging"
	"photosearch/internal/usecase"
)

const headerRequestID = "X-Request-ID"

// Deps are the use cases served by the API.
type Deps struct {
	Ingest     *usecase.IngestUseCase
	Retrieve   *usecase.RetrieveUseCase
	Photos     *usecase.PhotoUseCase
	Collection *usecase.CollectionUseCase

	CollectionName string
	MaxUploadBytes int64
}

type Server struct {
	deps   Deps
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the router. Set the gin mode before calling it.
func New(deps Deps, logger *slog.Logger) *Server {
	s := &Server{deps: deps, logger: logging.OrDiscard(logger)}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if deps.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = deps.MaxUploadBytes
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/stats", s.getStats)
	r.GET("/photos", s.listPhotos)
	r.POST("/photos", s.uploadPhoto)
	r.GET("/search", s.search)
	r.GET("/images/*name", s.getImage)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// requestLogger tags each request with an id and logs it when done.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Set("request_id", id)

		start := time.Now()
		c.Next()

		s.logger.Info("http request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
