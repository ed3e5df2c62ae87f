// ABOUTME: Unit tests for JWT token generation and verification
// ABOUTME: Tests valid, tampered, expired and mis-addressed tokens

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSecret is a 32-byte secret that meets MinSecretLength.
var testSecret = []byte("tenantdb-token-test-secret-32b!!")

func newTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := NewTokenizer(TokenConfig{
		Secret:     testSecret,
		Issuer:     "tenantdb",
		Audience:   "tenantdb-api",
		Expiration: time.Hour,
	})
	require.NoError(t, err)
	return tok
}

func TestTokenizer_RoundTrip(t *testing.T) {
	tok := newTestTokenizer(t)

	s, err := tok.Generate("alice@example.com", RoleUser)
	require.NoError(t, err)

	claims, err := tok.Verify(s)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, []string{RoleUser}, claims.Roles)
}

func TestTokenizer_Header(t *testing.T) {
	tok, err := NewTokenizer(TokenConfig{Secret: testSecret, Type: "at+jwt"})
	require.NoError(t, err)

	s, err := tok.Generate("alice@example.com")
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(s, jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, "at+jwt", parsed.Header["typ"])
	assert.Equal(t, "HS256", parsed.Header["alg"])
}

func TestNewTokenizer_WeakSecret(t *testing.T) {
	_, err := NewTokenizer(TokenConfig{Secret: []byte("short")})
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestTokenizer_Expired(t *testing.T) {
	tok := newTestTokenizer(t)
	tok.expiry = -time.Minute

	s, err := tok.Generate("alice@example.com")
	require.NoError(t, err)

	_, err = tok.Verify(s)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenizer_Invalid(t *testing.T) {
	tok := newTestTokenizer(t)
	good, err := tok.Generate("alice@example.com")
	require.NoError(t, err)

	other, err := NewTokenizer(TokenConfig{
		Secret:   []byte("a-completely-different-secret-32"),
		Issuer:   "tenantdb",
		Audience: "tenantdb-api",
	})
	require.NoError(t, err)
	foreign, err := other.Generate("alice@example.com")
	require.NoError(t, err)

	wrongIssuer, err := NewTokenizer(TokenConfig{Secret: testSecret, Issuer: "someone-else", Audience: "tenantdb-api"})
	require.NoError(t, err)
	misissued, err := wrongIssuer.Generate("alice@example.com")
	require.NoError(t, err)

	wrongAudience, err := NewTokenizer(TokenConfig{Secret: testSecret, Issuer: "tenantdb", Audience: "elsewhere"})
	require.NoError(t, err)
	misaddressed, err := wrongAudience.Generate("alice@example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"tampered", tamper(good)},
		{"wrong secret", foreign},
		{"wrong issuer", misissued},
		{"wrong audience", misaddressed},
		{"none algorithm", unsignedToken(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tok.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenizer_MissingSubject(t *testing.T) {
	tok := newTestTokenizer(t)
	s, err := tok.Generate("")
	require.NoError(t, err)

	_, err = tok.Verify(s)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

// tamper changes the first character of the signature.
func tamper(token string) string {
	i := strings.LastIndex(token, ".") + 1
	c := "A"
	if token[i] == 'A' {
		c = "B"
	}
	return token[:i] + c + token[i+1:]
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "alice@example.com",
		"iss": "tenantdb",
		"aud": "tenantdb-api",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return s
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.NoError(t, CheckPassword(hash, "s3cret-pass"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrBadPassword)
}
