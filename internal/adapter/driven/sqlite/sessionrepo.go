package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/chargepanel/internal/domain/model"
	"github.com/ericfisherdev/chargepanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port interface.
// Multi-key writes run inside a single transaction on the writer connection,
// so readers never observe a partially rotated credential pair. Values are
// encrypted with AES-256-GCM when a key is configured.
type SessionRepo struct {
	db     *DB
	cipher valueCipher
}

// NewSessionRepo creates a new SessionRepo. key must be 32 bytes for
// AES-256-GCM, or nil to store values in plaintext.
func NewSessionRepo(db *DB, key []byte) *SessionRepo {
	return &SessionRepo{db: db, cipher: valueCipher{key: key}}
}

// Get retrieves the value stored under key.
// Returns ("", nil) if no value exists for that key.
func (r *SessionRepo) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM session_entries WHERE key = ?`
	var stored string
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get session entry %q: %w", key, err)
	}

	value, err := r.cipher.open(stored)
	if err != nil {
		return "", fmt.Errorf("decrypt session entry %q: %w", key, err)
	}
	return value, nil
}

// GetAll returns every stored entry as a key-value map.
func (r *SessionRepo) GetAll(ctx context.Context) (map[string]string, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(entries))
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	return values, nil
}

// SetMany stores or replaces all given pairs in one transaction. Pairs with an
// empty value are deleted instead.
func (r *SessionRepo) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		const upsert = `INSERT OR REPLACE INTO session_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
		const remove = `DELETE FROM session_entries WHERE key = ?`

		for key, value := range values {
			if value == "" {
				if _, err := tx.ExecContext(ctx, remove, key); err != nil {
					return fmt.Errorf("delete session entry %q: %w", key, err)
				}
				continue
			}
			sealed, err := r.cipher.seal(value)
			if err != nil {
				return fmt.Errorf("encrypt session entry %q: %w", key, err)
			}
			if _, err := tx.ExecContext(ctx, upsert, key, sealed); err != nil {
				return fmt.Errorf("set session entry %q: %w", key, err)
			}
		}
		return nil
	})
}

// List returns all stored entries ordered by key.
func (r *SessionRepo) List(ctx context.Context) ([]model.SessionEntry, error) {
	const query = `SELECT key, value, updated_at FROM session_entries ORDER BY key`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list session entries: %w", err)
	}
	defer rows.Close()

	var entries []model.SessionEntry
	for rows.Next() {
		var e model.SessionEntry
		var stored, updatedAt string
		if err := rows.Scan(&e.Key, &stored, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session entry: %w", err)
		}

		e.Value, err = r.cipher.open(stored)
		if err != nil {
			return nil, fmt.Errorf("decrypt session entry %q: %w", e.Key, err)
		}

		e.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for session entry %q: %w", e.Key, err)
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session entries: %w", err)
	}

	return entries, nil
}

// Delete removes the given keys in one transaction.
func (r *SessionRepo) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		const query = `DELETE FROM session_entries WHERE key = ?`
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, query, key); err != nil {
				return fmt.Errorf("delete session entry %q: %w", key, err)
			}
		}
		return nil
	})
}

func (r *SessionRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session tx: %w", err)
	}
	return nil
}
