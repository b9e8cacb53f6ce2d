package vaultentries

import (
	"context"
	"time"

	"github.com/mvolkovs/passvault/internal/server/models"
)

// Repository persists vault entries keyed by (owner, site_name).
// Implementations map storage uniqueness violations to common.ErrEntryExists
// and absent rows to common.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, entry *models.VaultEntry) error
	GetForUpdate(ctx context.Context, owner, siteName string) (*models.VaultEntry, error)
	ListByOwner(ctx context.Context, owner string) ([]*models.VaultEntry, error)
	ReplaceCiphertext(ctx context.Context, id string, ciphertext, nonce []byte, siteURL string) error
	Delete(ctx context.Context, owner, siteName string) error
	ListCreatedSince(ctx context.Context, since time.Time) ([]*models.VaultEntry, error)
}
