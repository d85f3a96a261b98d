package domain

import (
	"errors"
	"fmt"
)

// Stage sentinels. Pipeline errors match exactly one of these with errors.Is.
var (
	ErrAlreadyExists         = errors.New("photo already exists")
	ErrStorageFailure        = errors.New("blob storage failed")
	ErrDescriptionFailure    = errors.New("description generation failed")
	ErrEmbeddingFailure      = errors.New("embedding generation failed")
	ErrIndexFailure          = errors.New("vector index write failed")
	ErrRetrievalFailure      = errors.New("retrieval failed")
	ErrCollectionInitFailure = errors.New("collection initialization failed")
	ErrInvalidInput          = errors.New("invalid input")
)

// Adapter-level causes.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicatePath     = errors.New("path already indexed")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrModelMismatch     = errors.New("embedding model mismatch")
	ErrNoCollection      = errors.New("collection does not exist")
	ErrCollectionExists  = errors.New("collection already exists")
)

// Stage names the step of the ingestion pipeline that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageDedup    Stage = "dedup"
	StageStore    Stage = "store"
	StageDescribe Stage = "describe"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
)

// IngestError reports a failed ingestion. It matches both its stage
// sentinel and the underlying cause with errors.Is.
type IngestError struct {
	Stage Stage
	Name  string
	Kind  error
	Err   error
}

func (e *IngestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ingest %s: %v", e.Name, e.Kind)
	}
	return fmt.Sprintf("ingest %s: %v (stage %s): %v", e.Name, e.Kind, e.Stage, e.Err)
}

func (e *IngestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RetrieveError reports a failed retrieval.
type RetrieveError struct {
	Query string
	Err   error
}

func (e *RetrieveError) Error() string {
	return fmt.Sprintf("%v: %v", ErrRetrievalFailure, e.Err)
}

func (e *RetrieveError) Unwrap() []error {
	return []error{ErrRetrievalFailure, e.Err}
}

// IsDuplicate reports whether err is an informational duplicate rejection
// rather than a genuine failure.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
