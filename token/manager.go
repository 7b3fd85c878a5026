package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/sessions"
	"github.com/jrsteele09/go-pm-server/users"
)

// Purpose scopes what a token may be used for. A token is only accepted by
// Verify when asked for the purpose it was issued with.
type Purpose string

const (
	PurposeSession       Purpose = "session"
	PurposePasswordReset Purpose = "passwordReset"
)

const (
	DefaultSessionExpiry = 24 * time.Hour
	DefaultResetExpiry   = time.Hour
)

// Claims is the payload of every token this service signs.
type Claims struct {
	jwt.RegisteredClaims
	Role    string  `json:"role,omitempty"`
	Purpose Purpose `json:"purpose"`
}

type Manager struct {
	signer        Signer
	issuer        string
	sessionExpiry time.Duration
	resetExpiry   time.Duration
	nowFunc       func() time.Time
}

type ManagerOption func(*Manager)

// WithTokenExpiry sets the lifetime of session and password reset tokens. Zero keeps the default.
func WithTokenExpiry(sessionExpiry, resetExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		if sessionExpiry > 0 {
			m.sessionExpiry = sessionExpiry
		}
		if resetExpiry > 0 {
			m.resetExpiry = resetExpiry
		}
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:        signer,
		sessionExpiry: DefaultSessionExpiry,
		resetExpiry:   DefaultResetExpiry,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Expiry returns the configured lifetime for purpose.
func (m *Manager) Expiry(purpose Purpose) (time.Duration, error) {
	switch purpose {
	case PurposeSession:
		return m.sessionExpiry, nil
	case PurposePasswordReset:
		return m.resetExpiry, nil
	}
	return 0, errors.Errorf("unknown token purpose %q", purpose)
}

// Issue signs a token for identity. Password reset tokens carry only the subject.
func (m *Manager) Issue(identity sessions.Identity, purpose Purpose) (string, error) {
	if identity.UserID == "" {
		return "", errors.New("[Manager.Issue] identity has no user id")
	}
	if purpose == PurposeSession && !identity.Role.Valid() {
		return "", errors.Wrapf(apperrors.ErrInvalidRole, "[Manager.Issue] role %q", identity.Role)
	}
	expiry, err := m.Expiry(purpose)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.Issue]")
	}

	now := m.nowFunc()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
		Purpose: purpose,
	}
	if purpose == PurposeSession {
		claims.Role = identity.Role.String()
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.Issue] sign")
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose of raw. It returns
// errors.ErrTokenExpired when the token is past its expiry and
// errors.ErrTokenMalformed for every other rejection, including a purpose mismatch.
func (m *Manager) Verify(raw string, purpose Purpose) (sessions.Identity, error) {
	if raw == "" {
		return sessions.Identity{}, apperrors.Wrapf(apperrors.ErrTokenMalformed, "[Manager.Verify] empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, m.signer.GetVerificationKey, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return sessions.Identity{}, apperrors.Wrapf(apperrors.ErrTokenExpired, "[Manager.Verify] %s", purpose)
		}
		return sessions.Identity{}, apperrors.Wrapf(apperrors.ErrTokenMalformed, "[Manager.Verify] %s: %v", purpose, err)
	}

	if claims.Purpose != purpose {
		return sessions.Identity{}, apperrors.Wrapf(apperrors.ErrTokenMalformed, "[Manager.Verify] purpose %q, want %q", claims.Purpose, purpose)
	}
	if claims.Subject == "" {
		return sessions.Identity{}, apperrors.Wrapf(apperrors.ErrTokenMalformed, "[Manager.Verify] missing subject")
	}

	identity := sessions.Identity{
		UserID:  claims.Subject,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	if purpose == PurposeSession {
		role := users.Role(claims.Role)
		if !role.Valid() {
			return sessions.Identity{}, apperrors.Wrapf(apperrors.ErrTokenMalformed, "[Manager.Verify] role %q", claims.Role)
		}
		identity.Role = role
	}
	return identity, nil
}
