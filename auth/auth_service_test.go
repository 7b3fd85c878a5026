package auth_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-pm-server/auth"
	"github.com/jrsteele09/go-pm-server/federated"
	fakeprovider "github.com/jrsteele09/go-pm-server/federated/providerfake"
	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/notify"
	fakenotifier "github.com/jrsteele09/go-pm-server/notify/notifyfake"
	"github.com/jrsteele09/go-pm-server/sessions"
	"github.com/jrsteele09/go-pm-server/token"
	"github.com/jrsteele09/go-pm-server/users"
	fakeuserrepo "github.com/jrsteele09/go-pm-server/users/repofake"
)

const (
	secretStr        = "test-secret-that-is-long-enough-for-hs256"
	issuer           = "https://api.test.local"
	frontendURL      = "http://localhost:5173"
	testUserName     = "John Doe"
	testUserEmail    = "john.doe@example.com"
	testUserPassword = "Passw0rd123"
	googleToken      = "google-id-token-1"
	googleSubject    = "google-sub-1"
)

// testFixture holds all test dependencies
type testFixture struct {
	now      time.Time
	userRepo *fakeuserrepo.FakeUserRepo
	notifier *fakenotifier.FakeNotifier
	google   *fakeprovider.FakeProvider
	firebase *fakeprovider.FakeProvider
	tokens   *token.Manager
	service  *auth.AuthenticationService
}

func (f *testFixture) clock() time.Time { return f.now }

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		userRepo: fakeuserrepo.NewFakeUserRepo(),
		notifier: fakenotifier.NewFakeNotifier(),
		google:   fakeprovider.NewFakeProvider(federated.ProviderGoogle),
		firebase: fakeprovider.NewFakeProvider(federated.ProviderFirebase),
	}
	f.tokens = token.New(token.NewHMACSigner(secretStr), token.WithIssuer(issuer), token.WithNowFunc(f.clock))

	service, err := auth.NewAuthenticationService(
		auth.Repos{Users: f.userRepo},
		f.tokens,
		f.notifier,
		auth.WithNowTime(f.clock),
		auth.WithFrontendURL(frontendURL+"/"),
		auth.WithIdentityProviders(federated.NewRegistry(f.google, f.firebase)),
	)
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *testFixture) waitForNotifications(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.service.Wait(ctx))
}

func (f *testFixture) register(t *testing.T) *auth.AuthResult {
	t.Helper()
	result, err := f.service.Register(context.Background(), auth.RegisterRequest{
		Name:     testUserName,
		Email:    testUserEmail,
		Password: testUserPassword,
	})
	require.NoError(t, err)
	return result
}

func (f *testFixture) addGoogleToken(raw, subject, email string) {
	f.google.AddToken(raw, federated.Identity{
		Subject:       subject,
		Email:         email,
		EmailVerified: true,
		Name:          "Jane Google",
		Picture:       "https://example.com/jane.png",
	})
}

func TestNewAuthenticationService_RequiresDependencies(t *testing.T) {
	tokens := token.New(token.NewHMACSigner(secretStr))
	_, err := auth.NewAuthenticationService(auth.Repos{}, tokens, notify.LogNotifier{})
	require.ErrorContains(t, err, "Users repo is required")

	_, err = auth.NewAuthenticationService(auth.Repos{Users: fakeuserrepo.NewFakeUserRepo()}, nil, notify.LogNotifier{})
	require.ErrorContains(t, err, "token manager is required")

	_, err = auth.NewAuthenticationService(auth.Repos{Users: fakeuserrepo.NewFakeUserRepo()}, tokens, nil)
	require.ErrorContains(t, err, "notifier is required")
}

// TestRegisterThenLogin tests that a registered pair logs in to the same identity.
func TestRegisterThenLogin(t *testing.T) {
	f := setupTestFixture(t)

	registered := f.register(t)
	require.True(t, registered.Created)
	require.Equal(t, users.RoleMember, registered.User.Role)
	require.Equal(t, testUserEmail, registered.User.Email)
	require.NotEqual(t, testUserPassword, registered.User.PasswordHash)

	loggedIn, err := f.service.Login(context.Background(), "  John.Doe@Example.com ", testUserPassword)
	require.NoError(t, err)
	require.False(t, loggedIn.Created)

	id, err := f.tokens.Verify(loggedIn.Token, token.PurposeSession)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, id.UserID)
	require.Equal(t, users.RoleMember, id.Role)

	f.waitForNotifications(t)
	welcome := f.notifier.Sent(notify.KindWelcome)
	require.Len(t, welcome, 1)
	require.Equal(t, testUserEmail, welcome[0].Email)
	require.Equal(t, testUserName, welcome[0].Name)
}

// TestLogin_FailuresAreIndistinguishable tests that unknown email and wrong password fail identically.
func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	_, wrongPassword := f.service.Login(context.Background(), testUserEmail, "WrongPassw0rd")
	_, unknownEmail := f.service.Login(context.Background(), "nobody@example.com", testUserPassword)

	require.ErrorIs(t, wrongPassword, apperrors.ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, apperrors.ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLogin_FederatedOnlyAccountHasNoPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.addGoogleToken(googleToken, googleSubject, "jane@example.com")
	_, err := f.service.FederatedLogin(context.Background(), "", googleToken)
	require.NoError(t, err)

	_, err = f.service.Login(context.Background(), "jane@example.com", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	_, err = f.service.Login(context.Background(), "jane@example.com", "AnyPassw0rd")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestLogin_FederatedOnlyAccountRejectsPlaceholderPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.addGoogleToken(googleToken, googleSubject, "jane@example.com")
	_, err := f.service.FederatedLogin(context.Background(), "", googleToken)
	require.NoError(t, err)

	_, err = f.service.Login(context.Background(), "jane@example.com", auth.DummyPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.service.Login(context.Background(), "nobody@example.com", auth.DummyPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	_, err := f.service.Register(context.Background(), auth.RegisterRequest{
		Name:     "Other",
		Email:    "JOHN.DOE@example.com",
		Password: testUserPassword,
	})
	require.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)
	require.Equal(t, 1, f.userRepo.Len())
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := setupTestFixture(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Register(context.Background(), auth.RegisterRequest{
				Name: testUserName, Email: testUserEmail, Password: testUserPassword,
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, f.userRepo.Len())
}

func TestRegister_InvalidInput(t *testing.T) {
	f := setupTestFixture(t)
	tests := map[string]auth.RegisterRequest{
		"missing name":  {Email: testUserEmail, Password: testUserPassword},
		"bad email":     {Name: testUserName, Email: "john.doe", Password: testUserPassword},
		"weak password": {Name: testUserName, Email: testUserEmail, Password: "password"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.Register(context.Background(), req)
			require.Error(t, err)
		})
	}

	_, err := f.service.Register(context.Background(), tests["weak password"])
	require.ErrorIs(t, err, apperrors.ErrWeakPassword)
	require.Equal(t, 0, f.userRepo.Len())
}

func TestRegister_OverlongPasswordIsWeak(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.Register(context.Background(), auth.RegisterRequest{
		Name:     testUserName,
		Email:    testUserEmail,
		Password: testUserPassword + strings.Repeat("x", 72),
	})
	var weak *users.WeakPasswordError
	require.ErrorAs(t, err, &weak)
	require.Equal(t, 0, f.userRepo.Len())
}

// TestRegister_NotificationFailureDoesNotFail tests that a failing welcome email is only logged.
func TestRegister_NotificationFailureDoesNotFail(t *testing.T) {
	f := setupTestFixture(t)
	f.notifier.SetErr(errors.New("smtp down"))

	result := f.register(t)
	require.NotEmpty(t, result.Token)
	f.waitForNotifications(t)
	require.Len(t, f.notifier.Sent(notify.KindWelcome), 1)
}

// TestFederatedLogin_NewEmailCreatesOneUser tests first and repeat federated logins.
func TestFederatedLogin_NewEmailCreatesOneUser(t *testing.T) {
	f := setupTestFixture(t)
	f.addGoogleToken(googleToken, googleSubject, "Jane@Example.com")

	first, err := f.service.FederatedLogin(context.Background(), federated.ProviderGoogle, googleToken)
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Equal(t, "jane@example.com", first.User.Email)
	require.Empty(t, first.User.PasswordHash)
	require.Equal(t, users.RoleMember, first.User.Role)
	require.Equal(t, googleSubject, first.User.FederatedID)
	require.Equal(t, "https://example.com/jane.png", first.User.Avatar)

	second, err := f.service.FederatedLogin(context.Background(), federated.ProviderGoogle, googleToken)
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.User.ID, second.User.ID)
	require.Equal(t, 1, f.userRepo.Len())

	f.waitForNotifications(t)
	require.Len(t, f.notifier.Sent(notify.KindWelcome), 1)
}

// TestFederatedLogin_LinksExistingLocalAccount tests that linking keeps password and role.
func TestFederatedLogin_LinksExistingLocalAccount(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t)

	stored, err := f.userRepo.GetByID(context.Background(), registered.User.ID)
	require.NoError(t, err)
	stored.Role = users.RoleManager
	require.NoError(t, f.userRepo.Update(context.Background(), stored))

	f.addGoogleToken(googleToken, googleSubject, testUserEmail)
	result, err := f.service.FederatedLogin(context.Background(), "", googleToken)
	require.NoError(t, err)
	require.False(t, result.Created)
	require.Equal(t, registered.User.ID, result.User.ID)
	require.Equal(t, users.RoleManager, result.Identity.Role)

	linked, err := f.userRepo.GetByID(context.Background(), registered.User.ID)
	require.NoError(t, err)
	require.Equal(t, googleSubject, linked.FederatedID)
	require.Equal(t, "https://example.com/jane.png", linked.Avatar)
	require.Equal(t, registered.User.PasswordHash, linked.PasswordHash)
	require.Equal(t, users.RoleManager, linked.Role)

	_, err = f.service.Login(context.Background(), testUserEmail, testUserPassword)
	require.NoError(t, err, "password still works after linking")
}

func TestFederatedLogin_AlreadyLinkedIsUnchanged(t *testing.T) {
	f := setupTestFixture(t)
	f.addGoogleToken(googleToken, googleSubject, "jane@example.com")
	first, err := f.service.FederatedLogin(context.Background(), "", googleToken)
	require.NoError(t, err)

	f.google.AddToken("second-token", federated.Identity{
		Subject: "other-sub", Email: "jane@example.com", EmailVerified: true, Picture: "https://example.com/new.png",
	})
	second, err := f.service.FederatedLogin(context.Background(), "", "second-token")
	require.NoError(t, err)
	require.Equal(t, first.User.ID, second.User.ID)
	require.Equal(t, googleSubject, second.User.FederatedID)
	require.Equal(t, "https://example.com/jane.png", second.User.Avatar)
}

func TestFederatedLogin_UnverifiedEmailDoesNotLink(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	f.google.AddToken(googleToken, federated.Identity{Subject: googleSubject, Email: testUserEmail})

	_, err := f.service.FederatedLogin(context.Background(), "", googleToken)
	require.ErrorIs(t, err, apperrors.ErrFederatedTokenInvalid)
}

func TestFederatedLogin_UnverifiedEmailCannotCreateAccount(t *testing.T) {
	f := setupTestFixture(t)
	f.firebase.AddToken("fb-token", federated.Identity{Subject: "fb-sub", Email: "jane@example.com"})

	_, err := f.service.FederatedLogin(context.Background(), federated.ProviderFirebase, "fb-token")
	require.ErrorIs(t, err, apperrors.ErrFederatedTokenInvalid)
	require.Equal(t, 0, f.userRepo.Len())
}

func TestFederatedLogin_OtherProviderNeedsVerifiedEmail(t *testing.T) {
	f := setupTestFixture(t)
	f.addGoogleToken(googleToken, googleSubject, "jane@example.com")
	first, err := f.service.FederatedLogin(context.Background(), "", googleToken)
	require.NoError(t, err)

	f.firebase.AddToken("fb-unverified", federated.Identity{Subject: "fb-other", Email: "jane@example.com"})
	_, err = f.service.FederatedLogin(context.Background(), federated.ProviderFirebase, "fb-unverified")
	require.ErrorIs(t, err, apperrors.ErrFederatedTokenInvalid)

	f.firebase.AddToken("fb-verified", federated.Identity{Subject: "fb-owner", Email: "jane@example.com", EmailVerified: true})
	second, err := f.service.FederatedLogin(context.Background(), federated.ProviderFirebase, "fb-verified")
	require.NoError(t, err)
	require.Equal(t, first.User.ID, second.User.ID)
	require.Equal(t, federated.ProviderGoogle, second.User.FederatedProvider)
	require.Equal(t, googleSubject, second.User.FederatedID)
}

func TestFederatedLogin_LinkedSubjectSignsInWithoutVerifiedEmail(t *testing.T) {
	f := setupTestFixture(t)
	f.addGoogleToken(googleToken, googleSubject, "jane@example.com")
	first, err := f.service.FederatedLogin(context.Background(), "", googleToken)
	require.NoError(t, err)

	f.google.AddToken("refreshed", federated.Identity{Subject: googleSubject, Email: "jane@example.com"})
	second, err := f.service.FederatedLogin(context.Background(), "", "refreshed")
	require.NoError(t, err)
	require.Equal(t, first.User.ID, second.User.ID)
}

func TestFederatedLogin_InvalidToken(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.FederatedLogin(context.Background(), "", "forged")
	require.ErrorIs(t, err, apperrors.ErrFederatedTokenInvalid)

	_, err = f.service.FederatedLogin(context.Background(), "github", googleToken)
	require.ErrorIs(t, err, apperrors.ErrFederatedTokenInvalid)
	require.Equal(t, 0, f.userRepo.Len())
}

func TestFederatedCodeLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.addGoogleToken(googleToken, googleSubject, "jane@example.com")
	f.google.AddCode("code-1", googleToken)

	result, err := f.service.FederatedCodeLogin(context.Background(), "", "code-1", "http://localhost:5173/auth/callback")
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", result.User.Email)

	_, err = f.service.FederatedCodeLogin(context.Background(), "", "unknown-code", "")
	require.ErrorIs(t, err, apperrors.ErrFederatedTokenInvalid)

	_, err = f.service.FederatedCodeLogin(context.Background(), "", "code-1", "ftp://example.com")
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

// TestForgotAndResetPassword tests the full reset flow through the emailed link.
func TestForgotAndResetPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	require.NoError(t, f.service.ForgotPassword(context.Background(), testUserEmail))
	resets := f.notifier.Sent(notify.KindPasswordReset)
	require.Len(t, resets, 1)

	link, err := url.Parse(resets[0].Link)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5173/reset-password", link.Scheme+"://"+link.Host+link.Path)
	resetToken := link.Query().Get("token")
	require.NotEmpty(t, resetToken)

	_, err = f.tokens.Verify(resetToken, token.PurposeSession)
	require.ErrorIs(t, err, apperrors.ErrTokenMalformed, "reset token is not a session token")

	f.now = f.now.Add(59 * time.Minute)
	require.NoError(t, f.service.ResetPassword(context.Background(), resetToken, "NewPassw0rd"))

	_, err = f.service.Login(context.Background(), testUserEmail, testUserPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.service.Login(context.Background(), testUserEmail, "NewPassw0rd")
	require.NoError(t, err)
}

func TestResetPassword_ExpiredAndInvalidAreDistinct(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t)

	resetToken, err := f.tokens.Issue(sessions.Identity{UserID: registered.User.ID}, token.PurposePasswordReset)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour + time.Second)
	err = f.service.ResetPassword(context.Background(), resetToken, "NewPassw0rd")
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)

	err = f.service.ResetPassword(context.Background(), "garbage", "NewPassw0rd")
	require.ErrorIs(t, err, apperrors.ErrTokenMalformed)

	err = f.service.ResetPassword(context.Background(), registered.Token, "NewPassw0rd")
	require.ErrorIs(t, err, apperrors.ErrTokenMalformed, "session token is not a reset token")
}

func TestResetPassword_WeakPasswordAndDeletedUser(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t)
	resetToken, err := f.tokens.Issue(sessions.Identity{UserID: registered.User.ID}, token.PurposePasswordReset)
	require.NoError(t, err)

	require.ErrorIs(t, f.service.ResetPassword(context.Background(), resetToken, "weak"), apperrors.ErrWeakPassword)

	require.NoError(t, f.userRepo.Delete(context.Background(), registered.User.ID))
	require.ErrorIs(t, f.service.ResetPassword(context.Background(), resetToken, "NewPassw0rd"), apperrors.ErrTokenMalformed)
}

func TestForgotPassword_Failures(t *testing.T) {
	f := setupTestFixture(t)

	err := f.service.ForgotPassword(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)

	f.register(t)
	f.notifier.SetErr(errors.New("smtp down"))
	err = f.service.ForgotPassword(context.Background(), testUserEmail)
	require.ErrorContains(t, err, "smtp down")
}

func TestChangePassword(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t)
	ctx := context.Background()

	err := f.service.ChangePassword(ctx, registered.User.ID, "WrongPassw0rd", "NewPassw0rd")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	err = f.service.ChangePassword(ctx, registered.User.ID, testUserPassword, "weak")
	require.ErrorIs(t, err, apperrors.ErrWeakPassword)

	require.NoError(t, f.service.ChangePassword(ctx, registered.User.ID, testUserPassword, "NewPassw0rd"))
	_, err = f.service.Login(ctx, testUserEmail, "NewPassw0rd")
	require.NoError(t, err)

	err = f.service.ChangePassword(ctx, "missing", testUserPassword, "NewPassw0rd")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestSetRoleAndDeleteUser(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	member := f.register(t)

	created, err := f.service.EnsureAdmin(ctx, "Admin", "admin@example.com", "Adm1nPassword")
	require.NoError(t, err)
	require.True(t, created)
	admin, err := f.userRepo.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, admin.Role)

	created, err = f.service.EnsureAdmin(ctx, "Admin", "admin@example.com", "Adm1nPassword")
	require.NoError(t, err)
	require.False(t, created)

	updated, err := f.service.SetRole(ctx, admin.ID, member.User.ID, users.RoleManager)
	require.NoError(t, err)
	require.Equal(t, users.RoleManager, updated.Role)

	_, err = f.service.SetRole(ctx, admin.ID, member.User.ID, "owner")
	require.ErrorIs(t, err, apperrors.ErrInvalidRole)
	_, err = f.service.SetRole(ctx, admin.ID, admin.ID, users.RoleMember)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	list, err := f.service.ListUsers(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)

	require.ErrorIs(t, f.service.DeleteUser(ctx, admin.ID, admin.ID), apperrors.ErrForbidden)
	require.NoError(t, f.service.DeleteUser(ctx, admin.ID, member.User.ID))
	_, err = f.service.GetUser(ctx, member.User.ID)
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
