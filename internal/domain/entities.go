package domain

import "time"

// DefaultNamespace is the blob key prefix under which photo bytes are stored.
const DefaultNamespace = "img/"

// BrowseLimit caps the number of records returned when no query is given.
const BrowseLimit = 10

// MetricCosine is the only distance metric collections support.
const MetricCosine = "cosine"

// ImageExtensions lists the accepted upload extensions, lowercase.
var ImageExtensions = []string{".png", ".jpg", ".jpeg"}

// PhotoRecord is one searchable photo in the vector index.
type PhotoRecord struct {
	ID        uint64
	Vector    []float32
	Text      string
	Path      string
	CreatedAt time.Time
}

// Collection describes a named vector collection. Dimension and Model are
// fixed for the collection's lifetime.
type Collection struct {
	Name          string `json:"name"`
	Dimension     int    `json:"dimension"`
	Metric        string `json:"metric"`
	Model         string `json:"model"`
	SchemaVersion int    `json:"schema_version"`
}

// ScoredResult is a retrieval hit. Score is nil for browse listings.
type ScoredResult struct {
	ID    uint64   `json:"id"`
	Text  string   `json:"text"`
	Path  string   `json:"path"`
	Score *float64 `json:"score"`
}

// IngestRequest carries a new photo into the ingestion pipeline.
type IngestRequest struct {
	Name     string
	Data     []byte
	MimeType string // optional, sniffed from Data when empty
}

// RetrieveRequest selects between browse mode (empty Query) and search mode.
type RetrieveRequest struct {
	Query string
	Limit int
}

// SearchHit is a record matched by a nearest-neighbour search.
type SearchHit struct {
	Record PhotoRecord
	Score  float64
}

// Stats summarizes a collection.
type Stats struct {
	Collection Collection `json:"collection"`
	Records    int        `json:"records"`
}
