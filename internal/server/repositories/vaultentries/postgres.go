// Package vaultentries provides the PostgreSQL-backed repository for vault
// entry persistence.
package vaultentries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mvolkovs/passvault/internal/common"
	"github.com/mvolkovs/passvault/internal/dbx"
	"github.com/mvolkovs/passvault/internal/server/models"
)

const uniqueViolation = "23505"

// PostgresRepository implements entry storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new entry. A conflicting (owner, site_name) row yields
// common.ErrEntryExists.
func (r *PostgresRepository) Create(ctx context.Context, entry *models.VaultEntry) error {
	query := `
		INSERT INTO vault_entries (id, owner, site_name, site_url, ciphertext, nonce)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		entry.ID, entry.Owner, entry.SiteName, entry.SiteURL, entry.Ciphertext, entry.Nonce).
		Scan(&entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrEntryExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetForUpdate reads one entry and, when run inside a transaction, locks its
// row so a concurrent update or delete of the same key waits until the
// transaction finishes. This is what serializes the compare-and-swap.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, owner, siteName string) (*models.VaultEntry, error) {
	query := `
		SELECT id, owner, site_name, site_url, ciphertext, nonce, created_at
		FROM vault_entries
		WHERE owner = $1 AND site_name = $2
		FOR UPDATE
	`
	entry := &models.VaultEntry{}
	err := r.db.QueryRowContext(ctx, query, owner, siteName).Scan(
		&entry.ID, &entry.Owner, &entry.SiteName, &entry.SiteURL,
		&entry.Ciphertext, &entry.Nonce, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

// ListByOwner returns all entries belonging to owner, oldest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, owner string) ([]*models.VaultEntry, error) {
	query := `
		SELECT id, owner, site_name, site_url, ciphertext, nonce, created_at
		FROM vault_entries
		WHERE owner = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.VaultEntry
	for rows.Next() {
		entry := &models.VaultEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.Owner, &entry.SiteName, &entry.SiteURL,
			&entry.Ciphertext, &entry.Nonce, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceCiphertext swaps in a new encrypted record (and reference URL) for
// an entry located by ID. Owner, site name, and created_at never change.
func (r *PostgresRepository) ReplaceCiphertext(ctx context.Context, id string, ciphertext, nonce []byte, siteURL string) error {
	query := `
		UPDATE vault_entries
		SET ciphertext = $2, nonce = $3, site_url = $4
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, ciphertext, nonce, siteURL)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrNotFound
	}
	return nil
}

// Delete removes the entry. An already-absent row is reported as
// common.ErrNotFound, not treated as success.
func (r *PostgresRepository) Delete(ctx context.Context, owner, siteName string) error {
	query := `DELETE FROM vault_entries WHERE owner = $1 AND site_name = $2`
	res, err := r.db.ExecContext(ctx, query, owner, siteName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ListCreatedSince returns all entries (any owner) created at or after
// since. Used by the weekly export report.
func (r *PostgresRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*models.VaultEntry, error) {
	query := `
		SELECT id, owner, site_name, site_url, ciphertext, nonce, created_at
		FROM vault_entries
		WHERE created_at >= $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.VaultEntry
	for rows.Next() {
		entry := &models.VaultEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.Owner, &entry.SiteName, &entry.SiteURL,
			&entry.Ciphertext, &entry.Nonce, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
