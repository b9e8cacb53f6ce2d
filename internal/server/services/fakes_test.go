package services

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mvolkovs/passvault/internal/breach"
	"github.com/mvolkovs/passvault/internal/common"
	"github.com/mvolkovs/passvault/internal/dbx"
	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/mvolkovs/passvault/internal/server/models"
	"github.com/mvolkovs/passvault/internal/server/repositories/refreshtokens"
	"github.com/mvolkovs/passvault/internal/server/repositories/users"
	"github.com/mvolkovs/passvault/internal/server/repositories/vaultentries"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

// fakeRangeClient serves canned suffixes so breach verdicts are
// deterministic in tests.
type fakeRangeClient struct {
	suffixes []string
	err      error
}

func (c *fakeRangeClient) Lookup(_ context.Context, _ string) ([]string, error) {
	return c.suffixes, c.err
}

// exposedClient returns a range client that reports secret as exposed.
func exposedClient(secret string) *fakeRangeClient {
	sum := sha1.Sum([]byte(secret))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return &fakeRangeClient{suffixes: []string{digest[5:]}}
}

func cleanClient() *fakeRangeClient {
	return &fakeRangeClient{suffixes: []string{"0000000000000000000000000000000000A"}}
}

func downClient() *fakeRangeClient {
	return &fakeRangeClient{err: errors.New("connection refused")}
}

func testChecker(client breach.RangeClient) *breach.Checker {
	return breach.NewChecker(client, time.Second, testLogger(), nil)
}

// fakeEntryRepo keeps vault entries in memory, mirroring the repository
// error contract of the Postgres implementation.
type fakeEntryRepo struct {
	mu      sync.Mutex
	entries map[string]*models.VaultEntry
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: map[string]*models.VaultEntry{}}
}

func entryKey(owner, siteName string) string {
	return owner + "/" + siteName
}

func (r *fakeEntryRepo) Create(_ context.Context, entry *models.VaultEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entryKey(entry.Owner, entry.SiteName)
	if _, ok := r.entries[key]; ok {
		return common.ErrEntryExists
	}
	entry.CreatedAt = time.Now()
	clone := *entry
	r.entries[key] = &clone
	return nil
}

func (r *fakeEntryRepo) GetForUpdate(_ context.Context, owner, siteName string) (*models.VaultEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[entryKey(owner, siteName)]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (r *fakeEntryRepo) ListByOwner(_ context.Context, owner string) ([]*models.VaultEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.VaultEntry
	for _, entry := range r.entries {
		if entry.Owner == owner {
			clone := *entry
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (r *fakeEntryRepo) ReplaceCiphertext(_ context.Context, id string, ciphertext, nonce []byte, siteURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.ID == id {
			entry.Ciphertext = ciphertext
			entry.Nonce = nonce
			entry.SiteURL = siteURL
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *fakeEntryRepo) Delete(_ context.Context, owner, siteName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entryKey(owner, siteName)
	if _, ok := r.entries[key]; !ok {
		return common.ErrNotFound
	}
	delete(r.entries, key)
	return nil
}

func (r *fakeEntryRepo) ListCreatedSince(_ context.Context, since time.Time) ([]*models.VaultEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.VaultEntry
	for _, entry := range r.entries {
		if !entry.CreatedAt.Before(since) {
			clone := *entry
			result = append(result, &clone)
		}
	}
	return result, nil
}

// get exposes the stored row for assertions on persisted ciphertext.
func (r *fakeEntryRepo) get(owner, siteName string) *models.VaultEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[entryKey(owner, siteName)]
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User

	// failWith, when set, makes every lookup fail with that error,
	// simulating a database outage.
	failWith error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, common.ErrEntryExists
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: map[string]*models.RefreshToken{}}
}

func (r *fakeTokenRepo) Create(_ context.Context, userID, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (r *fakeTokenRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *rt
	return &clone, nil
}

func (r *fakeTokenRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

// fakeRepos satisfies repomanager.RepositoryManager with the in-memory
// repositories above. The DBTX argument is ignored.
type fakeRepos struct {
	entryRepo *fakeEntryRepo
	userRepo  *fakeUserRepo
	tokenRepo *fakeTokenRepo
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		entryRepo: newFakeEntryRepo(),
		userRepo:  newFakeUserRepo(),
		tokenRepo: newFakeTokenRepo(),
	}
}

func (f *fakeRepos) RunMigrations(context.Context, *sql.DB) error { return nil }

func (f *fakeRepos) Users(dbx.DBTX) users.Repository { return f.userRepo }

func (f *fakeRepos) VaultEntries(dbx.DBTX) vaultentries.Repository { return f.entryRepo }

func (f *fakeRepos) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return f.tokenRepo }
