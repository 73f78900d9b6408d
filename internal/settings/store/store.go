package store

import (
	"context"
	"database/sql"
	"fmt"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM platform_settings WHERE key = $1`

	var value string

	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("setting %q not configured", key)
		}

		return "", fmt.Errorf("reading setting: %w", err)
	}

	return value, nil
}
