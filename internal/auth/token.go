// ABOUTME: JWT issuing and verification for API requests
// ABOUTME: HS256 tokens carrying subject, roles, issuer and audience

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HS256 secret length in bytes.
const MinSecretLength = 32

// RoleUser is granted to every account.
const RoleUser = "ROLE_USER"

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWeakSecret   = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
)

// Claims is what a verified token says about its bearer.
type Claims struct {
	Subject string
	Roles   []string
}

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// TokenConfig configures a Tokenizer.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	Type       string // "typ" header, defaults to JWT
	Expiration time.Duration
}

// Tokenizer issues and verifies HS256 signed JWTs.
type Tokenizer struct {
	secret   []byte
	issuer   string
	audience string
	typ      string
	expiry   time.Duration
}

// tokenClaims is the JWT payload.
type tokenClaims struct {
	Roles []string `json:"rol,omitempty"`
	jwt.RegisteredClaims
}

// NewTokenizer creates a Tokenizer. The secret must be at least
// MinSecretLength bytes.
func NewTokenizer(cfg TokenConfig) (*Tokenizer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if cfg.Type == "" {
		cfg.Type = "JWT"
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = 24 * time.Hour
	}
	return &Tokenizer{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		typ:      cfg.Type,
		expiry:   cfg.Expiration,
	}, nil
}

// Generate creates a signed token for subject with the given roles.
func (t *Tokenizer) Generate(subject string, roles ...string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}
	if t.audience != "" {
		claims.Audience = jwt.ClaimStrings{t.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["typ"] = t.typ
	return token.SignedString(t.secret)
}

// Verify validates the token signature, expiry, issuer and audience and
// returns its claims.
func (t *Tokenizer) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	if t.audience != "" {
		opts = append(opts, jwt.WithAudience(t.audience))
	}

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		// Check if it's specifically an expiration error
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return &Claims{Subject: claims.Subject, Roles: claims.Roles}, nil
}
