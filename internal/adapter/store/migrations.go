package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the current on-disk format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keySchemaVersion = []byte("schema_version")

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	Incompatible   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// SchemaVersion returns the stored format version, 0 for a fresh file.
func (s *BoltIndex) SchemaVersion() (int, error) {
	var version int
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySchemaVersion)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &version); err != nil {
			version = 1
		}
		return nil
	})
	return version, err
}

// CheckMigration reports whether the file needs upgrading or was written
// by a newer release.
func (s *BoltIndex) CheckMigration() (*MigrationResult, error) {
	version, err := s.SchemaVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", version, CurrentSchemaVersion)
	case version > CurrentSchemaVersion:
		result.Incompatible = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", version, CurrentSchemaVersion)
	}

	return result, nil
}

// Migrate performs any necessary schema migrations.
func (s *BoltIndex) Migrate() error {
	version, err := s.SchemaVersion()
	if err != nil {
		return err
	}

	for v := version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(CurrentSchemaVersion)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, data)
	})
}

func (s *BoltIndex) runMigration(from, to int) error {
	switch {
	case from == 0 && to == 1:
		// fresh file, buckets are created on open
		return nil
	default:
		return fmt.Errorf("no migration path from v%d to v%d", from, to)
	}
}
