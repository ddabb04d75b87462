package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/storage"
)

// KVStore persists the terminal's local storage in the kv table.
type KVStore struct {
	db *sql.DB
}

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(
		`SELECT value FROM kv WHERE key = ?`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrKeyNotFound
		}
		return nil, err
	}
	return value, nil
}

func (s *KVStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		value,
		time.Now().UTC(),
	)
	return err
}

func (s *KVStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}
