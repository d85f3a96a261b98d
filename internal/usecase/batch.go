package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"photosearch/internal/domain"
	"photosearch/internal/logging"
	"photosearch/internal/port"
)

// BatchIngestUseCase ingests every image found under a directory.
type BatchIngestUseCase struct {
	ingest  *IngestUseCase
	walker  port.ImageWalker
	workers int
	logger  *slog.Logger
}

func NewBatchIngestUseCase(ingest *IngestUseCase, walker port.ImageWalker, workers int, logger *slog.Logger) *BatchIngestUseCase {
	if workers <= 0 {
		workers = 1
	}
	return &BatchIngestUseCase{
		ingest:  ingest,
		walker:  walker,
		workers: workers,
		logger:  logging.OrDiscard(logger),
	}
}

// BatchResult summarizes a batch run. Duplicates are not failures.
type BatchResult struct {
	BatchID    string
	Found      int
	Ingested   int
	Duplicates int
	Failed     int
	Records    []domain.PhotoRecord
	Errors     []BatchError
}

type BatchError struct {
	Path string
	Err  error
}

// ProgressFunc is called once per file after its ingestion finishes. It may
// be called from several goroutines at once.
type ProgressFunc func(file port.FileInfo, err error)

// Discover lists the files IngestDir would process.
func (u *BatchIngestUseCase) Discover(root string) ([]port.FileInfo, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return files, nil
}

// IngestDir ingests files with bounded concurrency, naming each photo by
// its path relative to root. Per-file failures are collected in the result;
// only walk errors and cancellation fail the whole batch.
func (u *BatchIngestUseCase) IngestDir(ctx context.Context, root string, progress ProgressFunc) (*BatchResult, error) {
	files, err := u.Discover(root)
	if err != nil {
		return nil, err
	}
	return u.IngestFiles(ctx, files, progress)
}

// IngestFiles ingests an already discovered file list.
func (u *BatchIngestUseCase) IngestFiles(ctx context.Context, files []port.FileInfo, progress ProgressFunc) (*BatchResult, error) {
	result := &BatchResult{BatchID: uuid.NewString(), Found: len(files)}
	log := u.logger.With("batch", result.BatchID)
	log.Info("batch ingest started", "files", len(files), "workers", u.workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rec, err := u.ingestFile(gctx, file)

			mu.Lock()
			switch {
			case err == nil:
				result.Ingested++
				result.Records = append(result.Records, rec)
			case domain.IsDuplicate(err):
				result.Duplicates++
			default:
				result.Failed++
				result.Errors = append(result.Errors, BatchError{Path: file.RelPath, Err: err})
			}
			mu.Unlock()

			if progress != nil {
				progress(file, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	sort.Slice(result.Records, func(i, j int) bool { return result.Records[i].ID < result.Records[j].ID })
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Path < result.Errors[j].Path })

	log.Info("batch ingest finished",
		"ingested", result.Ingested, "duplicates", result.Duplicates, "failed", result.Failed)
	return result, nil
}

func (u *BatchIngestUseCase) ingestFile(ctx context.Context, file port.FileInfo) (domain.PhotoRecord, error) {
	if u.ingest.maxBytes > 0 && file.Size > u.ingest.maxBytes {
		return domain.PhotoRecord{}, &domain.IngestError{
			Stage: domain.StageValidate, Name: file.RelPath, Kind: domain.ErrInvalidInput,
			Err: fmt.Errorf("file is %d bytes, limit is %d", file.Size, u.ingest.maxBytes),
		}
	}

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return domain.PhotoRecord{}, &domain.IngestError{
			Stage: domain.StageValidate, Name: file.RelPath, Kind: domain.ErrInvalidInput,
			Err: fmt.Errorf("read file: %w", err),
		}
	}
	return u.ingest.Ingest(ctx, domain.IngestRequest{Name: file.RelPath, Data: data})
}
