package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"photosearch/internal/domain"
)

// multipartOverhead covers boundaries, part headers and the name field.
const multipartOverhead = 64 << 10

type photoResponse struct {
	ID        uint64    `json:"id"`
	Path      string    `json:"path"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// uploadPhoto handles POST /photos with a multipart "file" field and an
// optional "name" field overriding the uploaded filename.
func (s *Server) uploadPhoto(c *gin.Context) {
	if s.deps.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.deps.MaxUploadBytes+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}
	if err != nil {
		writeError(c, errors.Join(domain.ErrInvalidInput, err))
		return
	}
	if s.deps.MaxUploadBytes > 0 && fh.Size > s.deps.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, err)
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = fh.Filename
	}

	// generic types are left for the pipeline to sniff
	mimeType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = ""
	}

	rec, err := s.deps.Ingest.Ingest(c.Request.Context(), domain.IngestRequest{
		Name:     name,
		Data:     data,
		MimeType: mimeType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, photoResponse{ID: rec.ID, Path: rec.Path, Text: rec.Text, CreatedAt: rec.CreatedAt})
}

// search handles GET /search?q=...&limit=N. An empty q browses.
func (s *Server) search(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	results, err := s.deps.Retrieve.Retrieve(c.Request.Context(), domain.RetrieveRequest{
		Query: c.Query("q"),
		Limit: limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// listPhotos handles GET /photos, or GET /photos?orphans=true for stored
// photos that have no index record.
func (s *Server) listPhotos(c *gin.Context) {
	var (
		names []string
		err   error
	)
	if orphans, _ := strconv.ParseBool(c.Query("orphans")); orphans {
		names, err = s.deps.Photos.Orphans(c.Request.Context())
	} else {
		names, err = s.deps.Photos.List(c.Request.Context())
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"photos": names})
}

// getImage handles GET /images/<name> and streams the stored bytes.
func (s *Server) getImage(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	data, err := s.deps.Photos.Get(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.deps.Collection.Stats(c.Request.Context(), s.deps.CollectionName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoCollection):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDescriptionFailure),
		errors.Is(err, domain.ErrEmbeddingFailure),
		errors.Is(err, domain.ErrRetrievalFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
