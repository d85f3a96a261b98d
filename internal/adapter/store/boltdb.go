package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"photosearch/internal/domain"
)

var (
	bucketMeta        = []byte("meta")
	bucketCollections = []byte("collections")
	bucketRecords     = []byte("records")
	bucketPaths       = []byte("paths")
)

// collectionPrefix namespaces per-collection top-level buckets.
const collectionPrefix = "c/"

// BoltIndex is a VectorIndex persisted in a single bbolt file. Each
// collection owns a top-level bucket holding a records sub-bucket (id ->
// record) and a paths sub-bucket (path -> id) that enforces path uniqueness.
// Search is brute force over an in-memory copy of the vectors.
type BoltIndex struct {
	db *bbolt.DB

	mu      sync.RWMutex
	vectors map[string]*vectorCache
}

type storedRecord struct {
	Vector    []float32 `json:"v"`
	Text      string    `json:"t"`
	Path      string    `json:"p"`
	CreatedAt int64     `json:"c"`
}

// OpenBoltIndex opens (or creates) the index at path and applies pending
// schema migrations.
func OpenBoltIndex(path string) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketCollections} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	idx := &BoltIndex{db: db, vectors: make(map[string]*vectorCache)}

	check, err := idx.CheckMigration()
	if err != nil {
		db.Close()
		return nil, err
	}
	if check.Incompatible {
		db.Close()
		return nil, fmt.Errorf("cannot open %s: %s", path, check.Reason)
	}
	if check.NeedsMigration {
		if err := idx.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
	}

	return idx, nil
}

func (s *BoltIndex) Close() error {
	return s.db.Close()
}

func collectionBucket(tx *bbolt.Tx, name string) *bbolt.Bucket {
	return tx.Bucket([]byte(collectionPrefix + name))
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func (s *BoltIndex) CollectionExists(_ context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketCollections).Get([]byte(name)) != nil
		return nil
	})
	return exists, err
}

func (s *BoltIndex) CreateCollection(_ context.Context, c domain.Collection) error {
	if c.Name == "" {
		return fmt.Errorf("collection name is empty")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("collection %s: dimension must be positive, got %d", c.Name, c.Dimension)
	}
	if c.Metric != domain.MetricCosine {
		return fmt.Errorf("collection %s: unsupported metric %q", c.Name, c.Metric)
	}
	c.SchemaVersion = CurrentSchemaVersion

	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketCollections)
		if meta.Get([]byte(c.Name)) != nil {
			return fmt.Errorf("collection %s: %w", c.Name, domain.ErrCollectionExists)
		}

		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(c.Name), data); err != nil {
			return err
		}

		cb, err := tx.CreateBucketIfNotExists([]byte(collectionPrefix + c.Name))
		if err != nil {
			return err
		}
		if _, err := cb.CreateBucketIfNotExists(bucketRecords); err != nil {
			return err
		}
		_, err = cb.CreateBucketIfNotExists(bucketPaths)
		return err
	})
}

func (s *BoltIndex) Collection(_ context.Context, name string) (domain.Collection, error) {
	var c domain.Collection
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		c, err = readCollection(tx, name)
		return err
	})
	return c, err
}

func readCollection(tx *bbolt.Tx, name string) (domain.Collection, error) {
	var c domain.Collection
	data := tx.Bucket(bucketCollections).Get([]byte(name))
	if data == nil {
		return c, fmt.Errorf("collection %s: %w", name, domain.ErrNoCollection)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("collection %s: corrupt metadata: %w", name, err)
	}
	return c, nil
}

func (s *BoltIndex) Count(_ context.Context, collection string) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		cb := collectionBucket(tx, collection)
		if cb == nil {
			return fmt.Errorf("collection %s: %w", collection, domain.ErrNoCollection)
		}
		n = cb.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n, err
}

// Insert assigns the next sequence number of the collection as the record
// ID inside the same write transaction that stores it.
func (s *BoltIndex) Insert(_ context.Context, collection string, rec domain.PhotoRecord) (domain.PhotoRecord, error) {
	if rec.Path == "" {
		return rec, fmt.Errorf("record path is empty")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		c, err := readCollection(tx, collection)
		if err != nil {
			return err
		}
		if len(rec.Vector) != c.Dimension {
			return fmt.Errorf("vector has %d values, collection %s expects %d: %w",
				len(rec.Vector), collection, c.Dimension, domain.ErrDimensionMismatch)
		}

		cb := collectionBucket(tx, collection)
		paths := cb.Bucket(bucketPaths)
		if paths.Get([]byte(rec.Path)) != nil {
			return fmt.Errorf("%s: %w", rec.Path, domain.ErrDuplicatePath)
		}

		records := cb.Bucket(bucketRecords)
		id, err := records.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = id

		data, err := json.Marshal(storedRecord{
			Vector:    rec.Vector,
			Text:      rec.Text,
			Path:      rec.Path,
			CreatedAt: rec.CreatedAt.UnixNano(),
		})
		if err != nil {
			return err
		}
		if err := records.Put(itob(id), data); err != nil {
			return err
		}
		return paths.Put([]byte(rec.Path), itob(id))
	})
	if err != nil {
		return rec, err
	}

	if vc, ok := s.vectors[collection]; ok {
		vc.add(rec.ID, rec.Vector)
	}
	return rec, nil
}

// Scroll returns records in ascending ID order.
func (s *BoltIndex) Scroll(_ context.Context, collection string, limit int) ([]domain.PhotoRecord, error) {
	var out []domain.PhotoRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		cb := collectionBucket(tx, collection)
		if cb == nil {
			return fmt.Errorf("collection %s: %w", collection, domain.ErrNoCollection)
		}

		c := cb.Bucket(bucketRecords).Cursor()
		for k, v := c.First(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Next() {
			rec, err := decodeRecord(k, v)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (s *BoltIndex) HasPath(_ context.Context, collection, path string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		cb := collectionBucket(tx, collection)
		if cb == nil {
			return fmt.Errorf("collection %s: %w", collection, domain.ErrNoCollection)
		}
		found = cb.Bucket(bucketPaths).Get([]byte(path)) != nil
		return nil
	})
	return found, err
}

func decodeRecord(k, v []byte) (domain.PhotoRecord, error) {
	var stored storedRecord
	if err := json.Unmarshal(v, &stored); err != nil {
		return domain.PhotoRecord{}, fmt.Errorf("record %d: %w", btoi(k), err)
	}
	return domain.PhotoRecord{
		ID:        btoi(k),
		Vector:    stored.Vector,
		Text:      stored.Text,
		Path:      stored.Path,
		CreatedAt: time.Unix(0, stored.CreatedAt).UTC(),
	}, nil
}
