package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-pm-server/federated"
	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/internal/metrics"
	"github.com/jrsteele09/go-pm-server/notify"
	"github.com/jrsteele09/go-pm-server/sessions"
	"github.com/jrsteele09/go-pm-server/token"
	"github.com/jrsteele09/go-pm-server/users"
)

const (
	defaultFrontendURL    = "http://localhost:5173"
	resetPasswordPath     = "/reset-password"
	backgroundSendTimeout = 30 * time.Second
)

// dummyHash is compared against when the email is unknown or the account has
// no password, so that a miss costs the same bcrypt work as a wrong password.
const dummyPassword = "not-a-real-password-0"

var dummyHash = func() string {
	h, _ := users.HashPassword(dummyPassword)
	return h
}()

// Repos holds all repository dependencies for the AuthenticationService
type Repos struct {
	Users users.UserRepo // Repository for user data
}

// RegisterRequest is the input of a local registration.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is returned by every successful login or registration.
type AuthResult struct {
	Token    string
	User     *users.User
	Identity sessions.Identity
	Created  bool // a new account was created by this call
}

// AuthenticationService verifies credentials, federated assertions and reset
// tokens, and issues session tokens for the resulting identity.
type AuthenticationService struct {
	repos       Repos
	tokens      *token.Manager
	providers   *federated.Registry
	notifier    notify.Notifier
	metrics     metrics.Recorder
	validator   *Validator
	nowTime     func() time.Time
	frontendURL string

	background sync.WaitGroup
}

// AuthenticationServiceOption defines a function type to modify the AuthenticationService instance.
type AuthenticationServiceOption func(*AuthenticationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthenticationServiceOption {
	return func(as *AuthenticationService) {
		as.nowTime = nowFunc
	}
}

// WithFrontendURL sets the base of password reset links
func WithFrontendURL(frontendURL string) AuthenticationServiceOption {
	return func(as *AuthenticationService) {
		as.frontendURL = strings.TrimRight(frontendURL, "/")
	}
}

func WithIdentityProviders(providers *federated.Registry) AuthenticationServiceOption {
	return func(as *AuthenticationService) {
		as.providers = providers
	}
}

func WithMetrics(recorder metrics.Recorder) AuthenticationServiceOption {
	return func(as *AuthenticationService) {
		as.metrics = recorder
	}
}

// NewAuthenticationService initializes a new AuthenticationService with required dependencies.
func NewAuthenticationService(
	repos Repos,
	tokens *token.Manager,
	notifier notify.Notifier,
	options ...AuthenticationServiceOption,
) (*AuthenticationService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewAuthenticationService] Users repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthenticationService] token manager is required")
	}
	if notifier == nil {
		return nil, errors.New("[NewAuthenticationService] notifier is required")
	}

	as := &AuthenticationService{
		repos:       repos,
		tokens:      tokens,
		notifier:    notifier,
		providers:   federated.NewRegistry(),
		metrics:     metrics.Noop{},
		validator:   NewValidator(),
		nowTime:     time.Now,
		frontendURL: defaultFrontendURL,
	}

	for _, opt := range options {
		opt(as)
	}

	return as, nil
}

// Register creates a local account with the member role and logs it in.
func (as *AuthenticationService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := as.validator.ValidateRegistration(req); err != nil {
		as.metrics.RecordAuthAttempt(metrics.MethodRegister, metrics.OutcomeFailure)
		return nil, err
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthenticationService.Register] HashPassword")
	}

	now := as.nowTime().UTC()
	user := &users.User{
		Email:        users.NormalizeEmail(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         users.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := as.repos.Users.Create(ctx, user); err != nil {
		as.metrics.RecordAuthAttempt(metrics.MethodRegister, metrics.OutcomeFailure)
		return nil, errors.Wrap(err, "[AuthenticationService.Register] Create")
	}

	as.sendWelcome(user.Email, user.Name)

	result, err := as.issueSession(user, true)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthenticationService.Register]")
	}
	as.metrics.RecordAuthAttempt(metrics.MethodRegister, metrics.OutcomeSuccess)
	return result, nil
}

// Login checks a local email and password. Unknown emails, wrong passwords and
// accounts without a password all fail with the same ErrInvalidCredentials.
func (as *AuthenticationService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if err := as.validator.ValidateUserCredentials(email, password); err != nil {
		as.metrics.RecordAuthAttempt(metrics.MethodLocal, metrics.OutcomeFailure)
		return nil, err
	}

	user, err := as.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrUserNotFound) {
			return nil, errors.Wrap(err, "[AuthenticationService.Login] GetByEmail")
		}
		users.CheckPasswordHash(password, dummyHash)
		as.metrics.RecordAuthAttempt(metrics.MethodLocal, metrics.OutcomeFailure)
		return nil, apperrors.ErrInvalidCredentials
	}

	hash := user.PasswordHash
	if !user.HasPassword() {
		hash = dummyHash
	}
	if !users.CheckPasswordHash(password, hash) || !user.HasPassword() {
		as.metrics.RecordAuthAttempt(metrics.MethodLocal, metrics.OutcomeFailure)
		return nil, apperrors.ErrInvalidCredentials
	}

	result, err := as.issueSession(user, false)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthenticationService.Login]")
	}
	as.metrics.RecordAuthAttempt(metrics.MethodLocal, metrics.OutcomeSuccess)
	return result, nil
}

// FederatedLogin verifies an ID token with the named provider (empty selects
// the default) and logs in the matching account, creating it on first use.
func (as *AuthenticationService) FederatedLogin(ctx context.Context, providerName, rawToken string) (*AuthResult, error) {
	provider, err := as.providers.Get(providerName)
	if err != nil {
		as.metrics.RecordAuthAttempt(metrics.MethodFederated, metrics.OutcomeFailure)
		return nil, err
	}

	fid, err := provider.Verify(ctx, rawToken)
	if err != nil {
		as.metrics.RecordAuthAttempt(metrics.MethodFederated, metrics.OutcomeFailure)
		return nil, errors.Wrap(err, "[AuthenticationService.FederatedLogin] Verify")
	}
	return as.completeFederatedLogin(ctx, fid)
}

// FederatedCodeLogin redeems an authorization code with the named provider.
func (as *AuthenticationService) FederatedCodeLogin(ctx context.Context, providerName, code, redirectURI string) (*AuthResult, error) {
	if err := ValidateRedirectURI(redirectURI); err != nil {
		return nil, err
	}
	provider, err := as.providers.Get(providerName)
	if err != nil {
		as.metrics.RecordAuthAttempt(metrics.MethodFederated, metrics.OutcomeFailure)
		return nil, err
	}
	exchanger, ok := provider.(federated.CodeExchanger)
	if !ok {
		as.metrics.RecordAuthAttempt(metrics.MethodFederated, metrics.OutcomeFailure)
		return nil, errors.Wrapf(apperrors.ErrFederatedTokenInvalid, "[AuthenticationService.FederatedCodeLogin] %s cannot exchange codes", provider.Name())
	}

	fid, err := exchanger.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		as.metrics.RecordAuthAttempt(metrics.MethodFederated, metrics.OutcomeFailure)
		return nil, errors.Wrap(err, "[AuthenticationService.FederatedCodeLogin] ExchangeCode")
	}
	return as.completeFederatedLogin(ctx, fid)
}

func (as *AuthenticationService) completeFederatedLogin(ctx context.Context, fid *federated.Identity) (*AuthResult, error) {
	user, created, err := as.linkFederatedIdentity(ctx, fid)
	if err != nil {
		as.metrics.RecordAuthAttempt(metrics.MethodFederated, metrics.OutcomeFailure)
		return nil, errors.Wrap(err, "[AuthenticationService.completeFederatedLogin]")
	}
	if created {
		as.sendWelcome(user.Email, user.Name)
	}

	result, err := as.issueSession(user, created)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthenticationService.completeFederatedLogin]")
	}
	as.metrics.RecordAuthAttempt(metrics.MethodFederated, metrics.OutcomeSuccess)
	return result, nil
}

// linkFederatedIdentity matches by email. A new email creates a member
// account with no password. An existing account without a federated id gets
// the id and avatar attached; password and role are never touched.
// Only the linked provider subject, or a provider-verified email, may sign in
// to an existing account.
func (as *AuthenticationService) linkFederatedIdentity(ctx context.Context, fid *federated.Identity) (*users.User, bool, error) {
	email := users.NormalizeEmail(fid.Email)

	user, err := as.repos.Users.GetByEmail(ctx, email)
	if err != nil && !apperrors.Is(err, apperrors.ErrUserNotFound) {
		return nil, false, errors.Wrap(err, "GetByEmail")
	}

	if user == nil {
		if !fid.EmailVerified {
			return nil, false, errors.Wrapf(apperrors.ErrFederatedTokenInvalid, "email %s not verified by %s", email, fid.Provider)
		}
		now := as.nowTime().UTC()
		user = &users.User{
			Email:             email,
			Name:              displayName(fid),
			Avatar:            fid.Picture,
			FederatedID:       fid.Subject,
			FederatedProvider: fid.Provider,
			Role:              users.DefaultRole,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		err := as.repos.Users.Create(ctx, user)
		if err == nil {
			return user, true, nil
		}
		if !apperrors.Is(err, apperrors.ErrEmailAlreadyExists) {
			return nil, false, errors.Wrap(err, "Create")
		}
		// Lost a race with a concurrent first login; link to the winner instead.
		if user, err = as.repos.Users.GetByEmail(ctx, email); err != nil {
			return nil, false, errors.Wrap(err, "GetByEmail after conflict")
		}
	}

	if user.IsFederated() && user.FederatedProvider == fid.Provider && user.FederatedID == fid.Subject {
		return user, false, nil
	}
	if !fid.EmailVerified {
		return nil, false, errors.Wrapf(apperrors.ErrFederatedTokenInvalid, "email %s not verified by %s", email, fid.Provider)
	}
	if user.IsFederated() {
		return user, false, nil
	}

	user.FederatedID = fid.Subject
	user.FederatedProvider = fid.Provider
	if fid.Picture != "" {
		user.Avatar = fid.Picture
	}
	user.UpdatedAt = as.nowTime().UTC()
	if err := as.repos.Users.Update(ctx, user); err != nil {
		return nil, false, errors.Wrap(err, "Update")
	}
	return user, false, nil
}

func displayName(fid *federated.Identity) string {
	if name := strings.TrimSpace(fid.Name); name != "" {
		return name
	}
	if at := strings.Index(fid.Email, "@"); at > 0 {
		return fid.Email[:at]
	}
	return fid.Email
}

// ForgotPassword emails a one hour reset link to the account owner. Unlike the
// welcome email, a send failure is returned because the link is the whole result.
func (as *AuthenticationService) ForgotPassword(ctx context.Context, email string) error {
	if err := as.validator.ValidateEmail(email); err != nil {
		return err
	}
	user, err := as.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return errors.Wrap(err, "[AuthenticationService.ForgotPassword] GetByEmail")
	}

	resetToken, err := as.tokens.Issue(sessions.Identity{UserID: user.ID}, token.PurposePasswordReset)
	if err != nil {
		return errors.Wrap(err, "[AuthenticationService.ForgotPassword] Issue")
	}

	if err := as.notifier.SendPasswordReset(ctx, user.Email, as.ResetLink(resetToken)); err != nil {
		as.metrics.RecordNotificationFailure(notify.KindPasswordReset)
		return errors.Wrap(err, "[AuthenticationService.ForgotPassword] SendPasswordReset")
	}
	return nil
}

// ResetLink builds the browser link that carries a reset token.
func (as *AuthenticationService) ResetLink(resetToken string) string {
	return as.frontendURL + resetPasswordPath + "?token=" + url.QueryEscape(resetToken)
}

// ResetPassword sets a new password for the subject of a reset token. It
// returns ErrTokenExpired or ErrTokenMalformed so callers can tell the two apart.
func (as *AuthenticationService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	identity, err := as.tokens.Verify(resetToken, token.PurposePasswordReset)
	if err != nil {
		as.metrics.RecordAuthAttempt(metrics.MethodReset, metrics.OutcomeFailure)
		return errors.Wrap(err, "[AuthenticationService.ResetPassword] Verify")
	}
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	user, err := as.repos.Users.GetByID(ctx, identity.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrUserNotFound) {
			return errors.Wrapf(apperrors.ErrTokenMalformed, "[AuthenticationService.ResetPassword] subject %s no longer exists", identity.UserID)
		}
		return errors.Wrap(err, "[AuthenticationService.ResetPassword] GetByID")
	}

	if err := as.setPassword(ctx, user, newPassword); err != nil {
		return errors.Wrap(err, "[AuthenticationService.ResetPassword]")
	}
	as.metrics.RecordAuthAttempt(metrics.MethodReset, metrics.OutcomeSuccess)
	return nil
}

// ChangePassword replaces the caller's password after checking the current one.
// Accounts without a password must use the reset flow.
func (as *AuthenticationService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := as.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "[AuthenticationService.ChangePassword] GetByID")
	}
	if !users.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperrors.ErrInvalidCredentials
	}
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}
	return errors.Wrap(as.setPassword(ctx, user, newPassword), "[AuthenticationService.ChangePassword]")
}

func (as *AuthenticationService) setPassword(ctx context.Context, user *users.User, password string) error {
	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "HashPassword")
	}
	user.PasswordHash = hash
	user.UpdatedAt = as.nowTime().UTC()
	return errors.Wrap(as.repos.Users.Update(ctx, user), "Update")
}

// VerifySession turns a bearer token into the identity it was issued for.
func (as *AuthenticationService) VerifySession(raw string) (sessions.Identity, error) {
	return as.tokens.Verify(raw, token.PurposeSession)
}

func (as *AuthenticationService) issueSession(user *users.User, created bool) (*AuthResult, error) {
	identity := sessions.NewIdentity(user)
	signed, err := as.tokens.Issue(identity, token.PurposeSession)
	if err != nil {
		return nil, errors.Wrap(err, "issue session")
	}
	return &AuthResult{Token: signed, User: user, Identity: identity, Created: created}, nil
}

// sendWelcome runs in the background; failures are logged and counted only.
func (as *AuthenticationService) sendWelcome(email, name string) {
	as.background.Add(1)
	go func() {
		defer as.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundSendTimeout)
		defer cancel()
		if err := as.notifier.SendWelcome(ctx, email, name); err != nil {
			as.metrics.RecordNotificationFailure(notify.KindWelcome)
			log.Err(err).Str("to", email).Msg("welcome email failed")
		}
	}()
}

// Wait blocks until background notifications have finished or ctx is done.
func (as *AuthenticationService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		as.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
