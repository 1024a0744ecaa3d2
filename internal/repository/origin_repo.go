package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"cvquest/internal/database"
	"cvquest/internal/storage"
)

// OriginRepository persists origin-scoped key/value items
type OriginRepository struct {
	db *database.DB
}

func NewOriginRepository(db *database.DB) *OriginRepository {
	return &OriginRepository{db: db}
}

// For returns the storage of a single origin
func (r *OriginRepository) For(origin string) *OriginStore {
	return &OriginStore{db: r.db, origin: origin}
}

// Open implements storage.Provider
func (r *OriginRepository) Open(origin string) storage.Storage {
	return r.For(origin)
}

// Origins lists every origin holding at least one item
func (r *OriginRepository) Origins() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT origin FROM origin_storage ORDER BY origin`)
	if err != nil {
		return nil, storage.Wrap("list origins", err)
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			return nil, storage.Wrap("list origins", err)
		}
		origins = append(origins, origin)
	}
	return origins, rows.Err()
}

// ReplaceAll swaps the whole content of an origin in one transaction
func (r *OriginRepository) ReplaceAll(origin string, items map[string]string) error {
	err := r.db.WithTx(func(tx *database.Tx) error {
		if _, err := tx.Exec(`DELETE FROM origin_storage WHERE origin = ?`, origin); err != nil {
			return err
		}
		upsert := tx.GetDialect().UpsertStorage()
		for key, value := range items {
			if _, err := tx.Exec(upsert, origin, key, value); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return storage.Wrap("replace "+origin, err)
	}
	return nil
}

// OriginStore implements storage.Storage on the origin_storage table
type OriginStore struct {
	db     database.DBTX
	origin string
}

var _ storage.Storage = (*OriginStore)(nil)

// Origin returns the origin this store is scoped to
func (s *OriginStore) Origin() string {
	return s.origin
}

func (s *OriginStore) Get(key string) (string, bool, error) {
	var value string
	query := `SELECT storage_value FROM origin_storage WHERE origin = ? AND storage_key = ?`
	err := s.db.QueryRow(query, s.origin, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storage.Wrap("get "+key, err)
	}
	return value, true, nil
}

func (s *OriginStore) Set(key, value string) error {
	query := s.db.GetDialect().UpsertStorage()
	if _, err := s.db.Exec(query, s.origin, key, value); err != nil {
		return storage.Wrap("set "+key, err)
	}
	return nil
}

func (s *OriginStore) Remove(key string) error {
	query := `DELETE FROM origin_storage WHERE origin = ? AND storage_key = ?`
	if _, err := s.db.Exec(query, s.origin, key); err != nil {
		return storage.Wrap("remove "+key, err)
	}
	return nil
}

func (s *OriginStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT storage_key FROM origin_storage WHERE origin = ? ORDER BY storage_key`, s.origin)
	if err != nil {
		return nil, storage.Wrap("list keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, storage.Wrap("list keys", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("list keys", err)
	}
	return keys, nil
}
