package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"photosearch/internal/domain"
)

// SQLiteIndex is a VectorIndex stored in SQLite. Path uniqueness is a table
// constraint and IDs come from AUTOINCREMENT. Search loads the collection's
// vectors and ranks them in Go.
type SQLiteIndex struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteIndex opens (or creates) the database at dbPath. Use ":memory:"
// for a throwaway index.
func OpenSQLiteIndex(dbPath string) (*SQLiteIndex, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	s := &SQLiteIndex{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		metric TEXT NOT NULL,
		model TEXT NOT NULL,
		schema_version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL REFERENCES collections(name),
		path TEXT NOT NULL,
		text TEXT NOT NULL,
		vector BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(collection, path)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection, id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO metadata (key, value) VALUES ('version', ?)`,
		fmt.Sprint(CurrentSchemaVersion))
	return err
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = ?`, name).Scan(&n)
	return n > 0, err
}

func (s *SQLiteIndex) CreateCollection(ctx context.Context, c domain.Collection) error {
	if c.Name == "" {
		return fmt.Errorf("collection name is empty")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("collection %s: dimension must be positive, got %d", c.Name, c.Dimension)
	}
	if c.Metric != domain.MetricCosine {
		return fmt.Errorf("collection %s: unsupported metric %q", c.Name, c.Metric)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO collections (name, dimension, metric, model, schema_version)
		VALUES (?, ?, ?, ?, ?)
	`, c.Name, c.Dimension, c.Metric, c.Model, CurrentSchemaVersion)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("collection %s: %w", c.Name, domain.ErrCollectionExists)
	}
	return nil
}

func (s *SQLiteIndex) Collection(ctx context.Context, name string) (domain.Collection, error) {
	c := domain.Collection{Name: name}
	err := s.db.QueryRowContext(ctx, `
		SELECT dimension, metric, model, schema_version FROM collections WHERE name = ?
	`, name).Scan(&c.Dimension, &c.Metric, &c.Model, &c.SchemaVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("collection %s: %w", name, domain.ErrNoCollection)
	}
	return c, err
}

func (s *SQLiteIndex) Count(ctx context.Context, collection string) (int, error) {
	if _, err := s.Collection(ctx, collection); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) Insert(ctx context.Context, collection string, rec domain.PhotoRecord) (domain.PhotoRecord, error) {
	if rec.Path == "" {
		return rec, fmt.Errorf("record path is empty")
	}
	c, err := s.Collection(ctx, collection)
	if err != nil {
		return rec, err
	}
	if len(rec.Vector) != c.Dimension {
		return rec, fmt.Errorf("vector has %d values, collection %s expects %d: %w",
			len(rec.Vector), collection, c.Dimension, domain.ErrDimensionMismatch)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (collection, path, text, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, collection, rec.Path, rec.Text, encodeVector(rec.Vector), rec.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return rec, fmt.Errorf("%s: %w", rec.Path, domain.ErrDuplicatePath)
		}
		return rec, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return rec, err
	}
	rec.ID = uint64(id)
	return rec, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteIndex) Scroll(ctx context.Context, collection string, limit int) ([]domain.PhotoRecord, error) {
	if _, err := s.Collection(ctx, collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, text, vector, created_at FROM records
		WHERE collection = ? ORDER BY id LIMIT ?
	`, collection, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PhotoRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Search(ctx context.Context, collection string, query []float32, limit int) ([]domain.SearchHit, error) {
	c, err := s.Collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(query) != c.Dimension {
		return nil, fmt.Errorf("query has %d values, collection %s expects %d: %w",
			len(query), collection, c.Dimension, domain.ErrDimensionMismatch)
	}

	records, err := s.Scroll(ctx, collection, 0)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(records))
	vectors := make([][]float32, len(records))
	byID := make(map[uint64]domain.PhotoRecord, len(records))
	for i, r := range records {
		ids[i] = r.ID
		vectors[i] = r.Vector
		byID[r.ID] = r
	}

	scores := rankVectors(query, ids, vectors, limit)
	hits := make([]domain.SearchHit, len(scores))
	for i, sc := range scores {
		hits[i] = domain.SearchHit{Record: byID[sc.id], Score: sc.score}
	}
	return hits, nil
}

func (s *SQLiteIndex) HasPath(ctx context.Context, collection, path string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records WHERE collection = ? AND path = ?
	`, collection, path).Scan(&n)
	return n > 0, err
}

func scanRecord(rows *sql.Rows) (domain.PhotoRecord, error) {
	var (
		rec       domain.PhotoRecord
		id        int64
		blob      []byte
		createdAt int64
	)
	if err := rows.Scan(&id, &rec.Path, &rec.Text, &blob, &createdAt); err != nil {
		return rec, err
	}
	rec.ID = uint64(id)
	rec.Vector = decodeVector(blob)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}

// encodeVector encodes a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

// decodeVector decodes little-endian bytes to a float32 slice.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	binary.Read(bytes.NewReader(b), binary.LittleEndian, &v)
	return v
}
