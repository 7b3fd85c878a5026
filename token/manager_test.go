package token_test

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/sessions"
	"github.com/jrsteele09/go-pm-server/token"
	"github.com/jrsteele09/go-pm-server/users"
)

const (
	testSecret = "test-secret-that-is-long-enough-for-hs256"
	testIssuer = "https://api.test.local"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newManager(c *clock, opts ...token.ManagerOption) *token.Manager {
	opts = append([]token.ManagerOption{token.WithNowFunc(c.Now), token.WithIssuer(testIssuer)}, opts...)
	return token.New(token.NewHMACSigner(testSecret), opts...)
}

func TestIssueVerify_Session(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	m := newManager(c)

	raw, err := m.Issue(sessions.Identity{UserID: "user-1", Role: users.RoleManager}, token.PurposeSession)
	require.NoError(t, err)

	id, err := m.Verify(raw, token.PurposeSession)
	require.NoError(t, err)
	require.Equal(t, "user-1", id.UserID)
	require.Equal(t, users.RoleManager, id.Role)
	require.NotEmpty(t, id.TokenID)
	require.True(t, c.now.Add(24*time.Hour).Equal(id.ExpiresAt))
}

// TestResetTokenExpiryBoundary tests the one hour window of password reset tokens.
func TestResetTokenExpiryBoundary(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	c := &clock{now: start}
	m := newManager(c)

	raw, err := m.Issue(sessions.Identity{UserID: "user-1", Role: users.RoleAdmin}, token.PurposePasswordReset)
	require.NoError(t, err)

	c.Advance(59 * time.Minute)
	id, err := m.Verify(raw, token.PurposePasswordReset)
	require.NoError(t, err)
	require.Equal(t, "user-1", id.UserID)
	require.Empty(t, id.Role, "reset tokens carry no role")

	c.now = start.Add(time.Hour + time.Second)
	_, err = m.Verify(raw, token.PurposePasswordReset)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	require.NotErrorIs(t, err, apperrors.ErrTokenMalformed)
}

func TestSessionTokenExpires(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	m := newManager(c)

	raw, err := m.Issue(sessions.Identity{UserID: "u", Role: users.RoleMember}, token.PurposeSession)
	require.NoError(t, err)

	c.Advance(23 * time.Hour)
	_, err = m.Verify(raw, token.PurposeSession)
	require.NoError(t, err)

	c.Advance(time.Hour + time.Second)
	_, err = m.Verify(raw, token.PurposeSession)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestWithTokenExpiry(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	m := newManager(c, token.WithTokenExpiry(2*time.Hour, 10*time.Minute))

	d, err := m.Expiry(token.PurposeSession)
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, d)
	d, err = m.Expiry(token.PurposePasswordReset)
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, d)

	_, err = m.Expiry("refresh")
	require.Error(t, err)
}

func TestVerify_PurposeMismatchRejected(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newManager(c)
	id := sessions.Identity{UserID: "u", Role: users.RoleMember}

	reset, err := m.Issue(id, token.PurposePasswordReset)
	require.NoError(t, err)
	_, err = m.Verify(reset, token.PurposeSession)
	require.ErrorIs(t, err, apperrors.ErrTokenMalformed)

	session, err := m.Issue(id, token.PurposeSession)
	require.NoError(t, err)
	_, err = m.Verify(session, token.PurposePasswordReset)
	require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
}

func TestVerify_Malformed(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newManager(c)

	raw, err := m.Issue(sessions.Identity{UserID: "u", Role: users.RoleMember}, token.PurposeSession)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	other := token.New(token.NewHMACSigner("a-completely-different-secret-value"), token.WithNowFunc(c.Now), token.WithIssuer(testIssuer))
	foreign, err := other.Issue(sessions.Identity{UserID: "u", Role: users.RoleAdmin}, token.PurposeSession)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"bad signature":  tampered,
		"foreign secret": foreign,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.Verify(raw, token.PurposeSession)
			require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
		})
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newManager(c)
	claims := token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(c.now.Add(time.Hour)),
		},
		Role:    "admin",
		Purpose: token.PurposeSession,
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(none, token.PurposeSession)
	require.ErrorIs(t, err, apperrors.ErrTokenMalformed)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rs, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	_, err = m.Verify(rs, token.PurposeSession)
	require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
}

func TestVerify_RejectsUnknownRoleAndIssuer(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newManager(c)
	signer := token.NewHMACSigner(testSecret)

	claims := token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(c.now.Add(time.Hour)),
		},
		Role:    "owner",
		Purpose: token.PurposeSession,
	}
	raw, err := signer.Sign(claims)
	require.NoError(t, err)
	_, err = m.Verify(raw, token.PurposeSession)
	require.ErrorIs(t, err, apperrors.ErrTokenMalformed)

	claims.Role = "member"
	claims.Issuer = "https://someone-else"
	raw, err = signer.Sign(claims)
	require.NoError(t, err)
	_, err = m.Verify(raw, token.PurposeSession)
	require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
}

func TestIssue_RequiresUserAndSecret(t *testing.T) {
	c := &clock{now: time.Now()}
	_, err := newManager(c).Issue(sessions.Identity{}, token.PurposeSession)
	require.Error(t, err)

	empty := token.New(token.NewHMACSigner(""))
	_, err = empty.Issue(sessions.Identity{UserID: "u", Role: users.RoleMember}, token.PurposeSession)
	require.Error(t, err)
}

func TestIssue_SessionRequiresKnownRole(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newManager(c)

	_, err := m.Issue(sessions.Identity{UserID: "u"}, token.PurposeSession)
	require.ErrorIs(t, err, apperrors.ErrInvalidRole)

	_, err = m.Issue(sessions.Identity{UserID: "u", Role: "owner"}, token.PurposeSession)
	require.ErrorIs(t, err, apperrors.ErrInvalidRole)

	raw, err := m.Issue(sessions.Identity{UserID: "u", Role: users.RoleAdmin}, token.PurposeSession)
	require.NoError(t, err)
	identity, err := m.Verify(raw, token.PurposeSession)
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, identity.Role)
}
