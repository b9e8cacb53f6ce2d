package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mvolkovs/passvault/internal/breach"
	"github.com/mvolkovs/passvault/internal/common"
	"github.com/mvolkovs/passvault/internal/cryptox"
	"github.com/mvolkovs/passvault/internal/dbx"
	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/mvolkovs/passvault/internal/password"
	"github.com/mvolkovs/passvault/internal/server/auth"
	"github.com/mvolkovs/passvault/internal/server/models"
	"github.com/mvolkovs/passvault/internal/server/notification"
	"github.com/mvolkovs/passvault/internal/server/repositories/repomanager"
)

const saltLength = 16

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserService implements account registration and token-based sessions.
// Account passwords go through the same acceptance pipeline as vault
// secrets: strength policy plus exposure check.
type UserService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	checker  *breach.Checker
	notifier *notification.Notifier
	logger   logging.Logger

	jwtSecret       []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, checker *breach.Checker,
	notifier *notification.Notifier, logger logging.Logger,
	jwtSecret []byte, accessValidity, refreshValidity time.Duration) *UserService {
	return &UserService{
		db:              db,
		repos:           repos,
		checker:         checker,
		notifier:        notifier,
		logger:          logger.With("module", "user_service"),
		jwtSecret:       jwtSecret,
		accessValidity:  accessValidity,
		refreshValidity: refreshValidity,
	}
}

// Register creates an account. The password is checked against the strength
// policy and the exposure index, then only its argon2id verifier is stored.
// A taken username or email yields common.ErrEntryExists.
func (s *UserService) Register(ctx context.Context, username, email, pwd string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, common.ErrInvalidArgument
	}

	if err := password.Evaluate(pwd); err != nil {
		return nil, err
	}
	verdict := s.checker.Check(ctx, pwd)
	if verdict.Checked && verdict.Exposed {
		return nil, common.ErrBreachedPassword
	}

	salt := common.GenerateRandByteArray(saltLength)
	user := &models.User{
		Username: username,
		Email:    email,
		Salt:     salt,
		Verifier: cryptox.HashCredential([]byte(pwd), salt),
	}

	created, err := s.repos.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.notifier.Welcome(created.Email, created.Username)
	return created, nil
}

// Login verifies credentials and returns a fresh token pair. Unknown
// usernames and wrong passwords are indistinguishable to the caller; any
// other lookup failure propagates as-is.
func (s *UserService) Login(ctx context.Context, username, pwd string) (*TokenPair, error) {
	user, err := s.repos.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, err
	}
	if !cryptox.CheckCredential(user.Verifier, []byte(pwd), user.Salt) {
		return nil, common.ErrUnauthorized
	}
	return s.issueTokens(ctx, s.db, user)
}

// Refresh exchanges a live refresh token for a new pair, consuming the old
// token. Rotation runs in a transaction so a token can only be redeemed
// once.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.RefreshTokens(tx)

		rt, err := repo.Find(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		if err := repo.Delete(ctx, rt.Token); err != nil {
			return err
		}
		if time.Now().After(rt.Expires) {
			return common.ErrRefreshTokenExpired
		}

		user, err := s.repos.Users(tx).GetByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}

		pair, err = s.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *UserService) issueTokens(ctx context.Context, db dbx.DBTX, user *models.User) (*TokenPair, error) {
	access, err := auth.GenerateToken(user.ID, user.Username, s.jwtSecret, s.accessValidity)
	if err != nil {
		return nil, err
	}

	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, err
	}
	if err := s.repos.RefreshTokens(db).Create(ctx, user.ID, refresh, s.refreshValidity); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
