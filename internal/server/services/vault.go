// Package services implements the application logic on top of the
// repositories: account lifecycle and the credential vault itself.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mvolkovs/passvault/internal/breach"
	"github.com/mvolkovs/passvault/internal/common"
	"github.com/mvolkovs/passvault/internal/cryptox"
	"github.com/mvolkovs/passvault/internal/dbx"
	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/mvolkovs/passvault/internal/observability"
	"github.com/mvolkovs/passvault/internal/password"
	"github.com/mvolkovs/passvault/internal/server/models"
	"github.com/mvolkovs/passvault/internal/server/notification"
	"github.com/mvolkovs/passvault/internal/server/repositories/repomanager"
)

// CreateEntryParams carries the inputs for storing a new credential.
// When Autogenerate is set, Password is ignored and a fresh secret is
// produced instead.
type CreateEntryParams struct {
	SiteName     string
	SiteURL      string
	Password     string
	Autogenerate bool
}

// UpdateEntryParams carries the inputs for replacing a stored credential.
// OldPassword is the proof of knowledge of the current secret; the update is
// refused unless it matches what is actually stored.
type UpdateEntryParams struct {
	SiteName     string
	SiteURL      string
	OldPassword  string
	NewPassword  string
	Autogenerate bool
}

// VaultService implements the credential vault: acceptance policy, exposure
// check, encryption, and the serialized compare-and-swap update.
type VaultService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	cipher   *cryptox.Cipher
	checker  *breach.Checker
	notifier *notification.Notifier
	logger   logging.Logger
	metrics  *observability.Metrics
}

func NewVaultService(db *sql.DB, repos repomanager.RepositoryManager, cipher *cryptox.Cipher,
	checker *breach.Checker, notifier *notification.Notifier, logger logging.Logger,
	metrics *observability.Metrics) *VaultService {
	return &VaultService{
		db:       db,
		repos:    repos,
		cipher:   cipher,
		checker:  checker,
		notifier: notifier,
		logger:   logger.With("module", "vault_service"),
		metrics:  metrics,
	}
}

// acceptSecret runs a candidate secret through the acceptance pipeline:
// strength policy first, then the exposure index. An indeterminate exposure
// verdict does not block acceptance.
func (s *VaultService) acceptSecret(ctx context.Context, secret string) error {
	if err := password.Evaluate(secret); err != nil {
		return err
	}
	verdict := s.checker.Check(ctx, secret)
	if verdict.Checked && verdict.Exposed {
		return fmt.Errorf("%w: this password has previously appeared in a data breach, please choose a different one", common.ErrBreachedPassword)
	}
	return nil
}

// resolveSecret returns the secret to store: the generated one when
// autogenerate is requested (always policy-passing, no exposure lookup
// needed), otherwise the supplied one after it clears the acceptance
// pipeline.
func (s *VaultService) resolveSecret(ctx context.Context, supplied string, autogenerate bool) (string, error) {
	if autogenerate {
		return password.Generate(), nil
	}
	if err := s.acceptSecret(ctx, supplied); err != nil {
		return "", err
	}
	return supplied, nil
}

// CreateEntry validates, encrypts, and stores a new credential for ownerID.
// Site names are case-folded before storage, so "GitHub" and "github" are
// the same key. A second entry for the same key is refused with
// common.ErrEntryExists. The returned summary never carries the secret;
// callers retrieve stored values through ListEntries.
func (s *VaultService) CreateEntry(ctx context.Context, ownerID string, p CreateEntryParams) (*models.EntrySummary, error) {
	site := strings.ToLower(strings.TrimSpace(p.SiteName))
	if site == "" {
		return nil, fmt.Errorf("%w: website name is required", common.ErrInvalidArgument)
	}

	secret, err := s.resolveSecret(ctx, p.Password, p.Autogenerate)
	if err != nil {
		s.count("create", "rejected")
		return nil, err
	}

	rec, err := s.cipher.Protect(secret)
	if err != nil {
		s.count("create", "error")
		return nil, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}

	entry := &models.VaultEntry{
		ID:         uuid.NewString(),
		Owner:      ownerID,
		SiteName:   site,
		SiteURL:    p.SiteURL,
		Ciphertext: rec.Ciphertext,
		Nonce:      rec.Nonce,
	}
	if err := s.repos.VaultEntries(s.db).Create(ctx, entry); err != nil {
		s.count("create", "error")
		return nil, err
	}

	s.count("create", "ok")
	s.notifyOwner(ctx, ownerID, site, s.notifier.PasswordAdded)

	return &models.EntrySummary{
		SiteName:  entry.SiteName,
		SiteURL:   entry.SiteURL,
		CreatedAt: entry.CreatedAt,
	}, nil
}

// ListEntries returns every credential of ownerID, decrypted. A record that
// fails authentication surfaces as common.ErrDecryptionFailed rather than
// being skipped or returned as garbage.
func (s *VaultService) ListEntries(ctx context.Context, ownerID string) ([]*models.RevealedEntry, error) {
	entries, err := s.repos.VaultEntries(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := make([]*models.RevealedEntry, 0, len(entries))
	for _, entry := range entries {
		plaintext, err := s.cipher.Reveal(&cryptox.Record{Ciphertext: entry.Ciphertext, Nonce: entry.Nonce})
		if err != nil {
			s.logger.Error(ctx, "stored record failed authentication", "site", entry.SiteName, "entry_id", entry.ID)
			return nil, err
		}
		result = append(result, &models.RevealedEntry{
			SiteName:  entry.SiteName,
			SiteURL:   entry.SiteURL,
			Password:  plaintext,
			CreatedAt: entry.CreatedAt,
		})
	}
	return result, nil
}

// UpdateEntry replaces a stored credential after verifying the caller knows
// the current one. The read-compare-write runs in a transaction holding a
// row lock on the entry, so two concurrent updates of the same key are
// serialized and the loser re-proves against the winner's value.
func (s *VaultService) UpdateEntry(ctx context.Context, ownerID string, p UpdateEntryParams) error {
	site := strings.ToLower(strings.TrimSpace(p.SiteName))
	if site == "" {
		return fmt.Errorf("%w: website name is required", common.ErrInvalidArgument)
	}

	// Acceptance of the replacement happens before the transaction so the
	// row lock is never held across a network lookup.
	secret, err := s.resolveSecret(ctx, p.NewPassword, p.Autogenerate)
	if err != nil {
		s.count("update", "rejected")
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.VaultEntries(tx)

		entry, err := repo.GetForUpdate(ctx, ownerID, site)
		if err != nil {
			return err
		}

		current, err := s.cipher.Reveal(&cryptox.Record{Ciphertext: entry.Ciphertext, Nonce: entry.Nonce})
		if err != nil {
			s.logger.Error(ctx, "stored record failed authentication", "site", entry.SiteName, "entry_id", entry.ID)
			return err
		}
		if subtle.ConstantTimeCompare([]byte(current), []byte(p.OldPassword)) != 1 {
			return common.ErrProofMismatch
		}

		rec, err := s.cipher.Protect(secret)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrInternal, err)
		}

		siteURL := p.SiteURL
		if siteURL == "" {
			siteURL = entry.SiteURL
		}
		return repo.ReplaceCiphertext(ctx, entry.ID, rec.Ciphertext, rec.Nonce, siteURL)
	})
	if err != nil {
		s.count("update", "rejected")
		return err
	}

	s.count("update", "ok")
	s.notifyOwner(ctx, ownerID, site, s.notifier.PasswordUpdated)
	return nil
}

// DeleteEntry removes ownerID's credential for the given site. Deleting a
// key that was never stored reports common.ErrNotFound.
func (s *VaultService) DeleteEntry(ctx context.Context, ownerID, siteName string) error {
	site := strings.ToLower(strings.TrimSpace(siteName))
	if err := s.repos.VaultEntries(s.db).Delete(ctx, ownerID, site); err != nil {
		return err
	}
	s.count("delete", "ok")
	return nil
}

// GeneratePassword returns a fresh random secret that satisfies the strength
// policy by construction. Nothing is stored.
func (s *VaultService) GeneratePassword() string {
	return password.Generate()
}

func (s *VaultService) notifyOwner(ctx context.Context, ownerID, site string, notify func(email, username, siteName string)) {
	owner, err := s.repos.Users(s.db).GetByID(ctx, ownerID)
	if err != nil {
		s.logger.Warn(ctx, "owner lookup for notification failed", "error", err.Error())
		return
	}
	notify(owner.Email, owner.Username, site)
}

func (s *VaultService) count(operation, status string) {
	if s.metrics != nil {
		s.metrics.VaultOperationsTotal.WithLabelValues(operation, status).Inc()
	}
}
