// ABOUTME: Account sign-up, login and email change on top of tenant storage
// ABOUTME: An email change moves the account's tenant database with it

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/tenantdb/internal/auth"
	"github.com/2389/tenantdb/internal/store"
	"github.com/2389/tenantdb/internal/tenant"
)

// Email length bounds, inclusive.
const (
	minEmailLen = 6
	maxEmailLen = 60
)

// Account errors
var (
	ErrPasswordMismatch = errors.New("password and confirmation do not match")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrEmailTaken       = errors.New("email already taken")
	ErrBadCredentials   = errors.New("bad credentials")
	ErrEmptyPassword    = errors.New("password is required")
)

// Renamer moves tenant storage between identities. *tenant.Renamer implements it.
type Renamer interface {
	Rename(ctx context.Context, oldIdentity, newIdentity string) error
}

// Reinstater clears the rename tombstone of an identifier. *tenant.Registry implements it.
type Reinstater interface {
	Reinstate(id tenant.ID)
}

// TokenIssuer issues access tokens. *auth.Tokenizer implements it.
type TokenIssuer interface {
	Generate(subject string, roles ...string) (string, error)
}

// Config holds the collaborators of a Service.
type Config struct {
	Users    store.UserStore
	Renamer  Renamer
	Registry Reinstater
	Tokens   TokenIssuer
	Logger   *slog.Logger
}

// Service implements account operations. Account rows live in the default
// tenant; every operation scopes its context accordingly.
type Service struct {
	users    store.UserStore
	renamer  Renamer
	registry Reinstater
	tokens   TokenIssuer
	logger   *slog.Logger
}

// EmailChange is the result of a successful ChangeEmail.
type EmailChange struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    cfg.Users,
		renamer:  cfg.Renamer,
		registry: cfg.Registry,
		tokens:   cfg.Tokens,
		logger:   logger.With("component", "account"),
	}
}

// ValidateEmail checks the length and shape of an email address.
func ValidateEmail(email string) error {
	if n := len(email); n < minEmailLen || n > maxEmailLen {
		return fmt.Errorf("%w: length must be between %d and %d", ErrInvalidEmail, minEmailLen, maxEmailLen)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: missing @", ErrInvalidEmail)
	}
	return nil
}

// SignUp registers a new account. The account's tenant database is created
// on its first routed request.
func (s *Service) SignUp(ctx context.Context, email, password, confirmation string) (*store.User, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if password != confirmation {
		return nil, ErrPasswordMismatch
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	ctx = tenant.WithDefault(ctx)
	exists, err := s.users.UserExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	// The address may have belonged to an account that has since moved away.
	s.registry.Reinstate(tenant.Derive(email))

	s.logger.Info("account created", "user_id", user.ID)
	return user, nil
}

// Authenticate checks credentials and returns a signed access token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(tenant.WithDefault(ctx), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrBadCredentials
		}
		return "", fmt.Errorf("looking up user: %w", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return "", ErrBadCredentials
	}

	token, err := s.tokens.Generate(user.Email, auth.RoleUser)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// ChangeEmail moves the account from current to newEmail. The tenant storage
// is renamed first; if the account row cannot be updated afterwards the
// storage is renamed back.
func (s *Service) ChangeEmail(ctx context.Context, current, newEmail string) (*EmailChange, error) {
	if err := ValidateEmail(newEmail); err != nil {
		return nil, err
	}

	ctx = tenant.WithDefault(ctx)
	exists, err := s.users.UserExists(ctx, newEmail)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	renamed := true
	if err := s.renamer.Rename(ctx, current, newEmail); err != nil {
		if !errors.Is(err, tenant.ErrNotFound) {
			return nil, fmt.Errorf("moving tenant storage: %w", err)
		}
		// Nothing provisioned yet; only the account row moves.
		renamed = false
		s.registry.Reinstate(tenant.Derive(newEmail))
	}

	if err := s.users.UpdateUserEmail(ctx, current, newEmail); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			err = ErrEmailTaken
		}
		if renamed {
			if rbErr := s.renamer.Rename(ctx, newEmail, current); rbErr != nil {
				s.logger.Error("restoring tenant storage after failed email change",
					"old", tenant.Derive(current), "new", tenant.Derive(newEmail), "error", rbErr)
				return nil, errors.Join(fmt.Errorf("updating email: %w", err), rbErr)
			}
		}
		return nil, fmt.Errorf("updating email: %w", err)
	}

	token, err := s.tokens.Generate(newEmail, auth.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("account email changed", "storage_moved", renamed)
	return &EmailChange{Email: newEmail, Token: token}, nil
}
