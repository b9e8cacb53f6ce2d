package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mvolkovs/passvault/internal/breach"
	"github.com/mvolkovs/passvault/internal/common"
	"github.com/mvolkovs/passvault/internal/server/auth"
	"github.com/mvolkovs/passvault/internal/server/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWTSecret = []byte("test-jwt-secret")

func newUserService(t *testing.T, client breach.RangeClient) (*UserService, *fakeRepos, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := newFakeRepos()
	notifier := notification.NewNotifier(nil, testLogger())
	svc := NewUserService(db, repos, testChecker(client), notifier, testLogger(),
		testJWTSecret, 15*time.Minute, 24*time.Hour)
	return svc, repos, mock
}

func TestRegister_Success(t *testing.T) {
	svc, repos, _ := newUserService(t, cleanClient())

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", strongSecret)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEmpty(t, user.Salt)
	assert.NotEmpty(t, user.Verifier)

	stored, err := repos.userRepo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Verifier), strongSecret)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc, _, _ := newUserService(t, cleanClient())

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", "weak")
	assert.ErrorIs(t, err, common.ErrWeakPassword)
}

func TestRegister_BreachedPassword(t *testing.T) {
	svc, _, _ := newUserService(t, exposedClient(strongSecret))

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", strongSecret)
	assert.ErrorIs(t, err, common.ErrBreachedPassword)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _, _ := newUserService(t, cleanClient())

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", strongSecret)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice", "other@example.com", strongSecret)
	assert.ErrorIs(t, err, common.ErrEntryExists)
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _, _ := newUserService(t, cleanClient())

	_, err := svc.Register(context.Background(), "", "alice@example.com", strongSecret)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = svc.Register(context.Background(), "alice", "", strongSecret)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestLogin_Success(t *testing.T) {
	svc, _, _ := newUserService(t, cleanClient())

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", strongSecret)
	require.NoError(t, err)

	pair, err := svc.Login(context.Background(), "alice", strongSecret)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := auth.ParseToken(pair.AccessToken, testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newUserService(t, cleanClient())

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", strongSecret)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "alice", "Wr0ng&Guess!pw")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc, _, _ := newUserService(t, cleanClient())

	_, err := svc.Login(context.Background(), "nobody", strongSecret)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestLogin_RepositoryFailureIsNotUnauthorized(t *testing.T) {
	svc, repos, _ := newUserService(t, cleanClient())

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", strongSecret)
	require.NoError(t, err)

	outage := errors.New("connection refused")
	repos.userRepo.failWith = outage

	_, err = svc.Login(context.Background(), "alice", strongSecret)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrUnauthorized)
	assert.ErrorIs(t, err, outage)
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, repos, mock := newUserService(t, cleanClient())

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", strongSecret)
	require.NoError(t, err)
	pair, err := svc.Login(context.Background(), "alice", strongSecret)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The consumed token is gone.
	_, err = repos.tokenRepo.Find(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrNotFound)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	svc, repos, mock := newUserService(t, cleanClient())

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", strongSecret)
	require.NoError(t, err)

	require.NoError(t, repos.tokenRepo.Create(context.Background(), user.ID, "stale-token", -time.Hour))

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = svc.Refresh(context.Background(), "stale-token")
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}

func TestRefresh_UnknownToken(t *testing.T) {
	svc, _, mock := newUserService(t, cleanClient())

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestRefresh_RepositoryFailureIsNotInvalidToken(t *testing.T) {
	svc, repos, mock := newUserService(t, cleanClient())

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", strongSecret)
	require.NoError(t, err)
	require.NoError(t, repos.tokenRepo.Create(context.Background(), user.ID, "live-token", time.Hour))

	outage := errors.New("connection refused")
	repos.userRepo.failWith = outage

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = svc.Refresh(context.Background(), "live-token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrInvalidToken)
	assert.ErrorIs(t, err, outage)
}
