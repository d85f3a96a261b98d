package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.etcd.io/bbolt"

	"photosearch/internal/domain"
)

// vectorCache keeps a collection's vectors in memory for brute-force search.
// Entries are kept in ascending ID order.
type vectorCache struct {
	ids     []uint64
	vectors [][]float32
}

func (c *vectorCache) add(id uint64, v []float32) {
	c.ids = append(c.ids, id)
	c.vectors = append(c.vectors, v)
}

// loadVectors loads all vectors of a collection from bbolt into memory.
// Callers hold s.mu for writing.
func (s *BoltIndex) loadVectors(collection string) (*vectorCache, error) {
	vc := &vectorCache{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		cb := collectionBucket(tx, collection)
		if cb == nil {
			return fmt.Errorf("collection %s: %w", collection, domain.ErrNoCollection)
		}
		return cb.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(k, v)
			if err != nil {
				return err
			}
			vc.add(rec.ID, rec.Vector)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return vc, nil
}

func (s *BoltIndex) cachedVectors(collection string) (*vectorCache, error) {
	s.mu.RLock()
	vc, ok := s.vectors[collection]
	s.mu.RUnlock()
	if ok {
		return vc, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if vc, ok := s.vectors[collection]; ok {
		return vc, nil
	}
	vc, err := s.loadVectors(collection)
	if err != nil {
		return nil, err
	}
	s.vectors[collection] = vc
	return vc, nil
}

// Search finds the limit nearest records to query by cosine similarity.
// Ties keep ascending ID order.
func (s *BoltIndex) Search(ctx context.Context, collection string, query []float32, limit int) ([]domain.SearchHit, error) {
	c, err := s.Collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(query) != c.Dimension {
		return nil, fmt.Errorf("query has %d values, collection %s expects %d: %w",
			len(query), collection, c.Dimension, domain.ErrDimensionMismatch)
	}

	vc, err := s.cachedVectors(collection)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	scores := rankVectors(query, vc.ids, vc.vectors, limit)
	s.mu.RUnlock()

	if len(scores) == 0 {
		return nil, nil
	}

	hits := make([]domain.SearchHit, 0, len(scores))
	err = s.db.View(func(tx *bbolt.Tx) error {
		records := collectionBucket(tx, collection).Bucket(bucketRecords)
		for _, sc := range scores {
			k := itob(sc.id)
			rec, err := decodeRecord(k, records.Get(k))
			if err != nil {
				return err
			}
			hits = append(hits, domain.SearchHit{Record: rec, Score: sc.score})
		}
		return nil
	})
	return hits, err
}

type scored struct {
	id    uint64
	score float64
}

// rankVectors scores every vector against query and returns the top limit,
// highest first. ids must be in ascending order.
func rankVectors(query []float32, ids []uint64, vectors [][]float32, limit int) []scored {
	scores := make([]scored, len(ids))
	for i, id := range ids {
		scores[i] = scored{id: id, score: cosineSimilarity(query, vectors[i])}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if limit > 0 && limit < len(scores) {
		scores = scores[:limit]
	}
	return scores
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
