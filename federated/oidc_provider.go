package federated

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
)

const (
	ProviderGoogle   = "google"
	ProviderFirebase = "firebase"

	googleIssuer         = "https://accounts.google.com"
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	defaultVerifyTimeout = 10 * time.Second
)

// OIDCProvider verifies ID tokens against an OpenID Connect issuer. Discovery
// runs on first use; after that verification only touches the cached key set.
type OIDCProvider struct {
	name         string
	issuer       string
	clientID     string
	clientSecret string
	scopes       []string
	timeout      time.Duration
	httpClient   *http.Client
	now          func() time.Time

	initLock sync.Mutex
	verifier *oidc.IDTokenVerifier
	endpoint oauth2.Endpoint
}

type ProviderOption func(*OIDCProvider)

func WithClientSecret(secret string) ProviderOption {
	return func(p *OIDCProvider) {
		p.clientSecret = secret
	}
}

// WithTimeout bounds every outbound call made while verifying or exchanging.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *OIDCProvider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *OIDCProvider) {
		p.httpClient = client
	}
}

// WithEndpoint sets the OAuth2 endpoint instead of taking it from discovery.
func WithEndpoint(endpoint oauth2.Endpoint) ProviderOption {
	return func(p *OIDCProvider) {
		p.endpoint = endpoint
	}
}

func WithNowFunc(now func() time.Time) ProviderOption {
	return func(p *OIDCProvider) {
		p.now = now
	}
}

func NewOIDCProvider(name, issuer, clientID string, options ...ProviderOption) *OIDCProvider {
	p := &OIDCProvider{
		name:     name,
		issuer:   issuer,
		clientID: clientID,
		scopes:   []string{oidc.ScopeOpenID, "profile", "email"},
		timeout:  defaultVerifyTimeout,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: p.timeout}
	}
	return p
}

// NewGoogleProvider verifies Google Sign-In ID tokens issued to clientID.
func NewGoogleProvider(clientID string, options ...ProviderOption) *OIDCProvider {
	return NewOIDCProvider(ProviderGoogle, googleIssuer, clientID, options...)
}

// NewFirebaseProvider verifies Firebase Authentication ID tokens for projectID.
func NewFirebaseProvider(projectID string, options ...ProviderOption) *OIDCProvider {
	return NewOIDCProvider(ProviderFirebase, firebaseIssuerPrefix+projectID, projectID, options...)
}

// NewOIDCProviderWithVerifier skips discovery and uses verifier directly.
func NewOIDCProviderWithVerifier(name string, verifier *oidc.IDTokenVerifier, options ...ProviderOption) *OIDCProvider {
	p := NewOIDCProvider(name, "", "", options...)
	p.verifier = verifier
	return p
}

func (p *OIDCProvider) Name() string {
	return p.name
}

// clientContext carries the provider's http client into go-oidc and x/oauth2.
func (p *OIDCProvider) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, p.httpClient)
}

func (p *OIDCProvider) init(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	p.initLock.Lock()
	defer p.initLock.Unlock()

	if p.verifier != nil {
		return p.verifier, nil
	}

	// The remote key set keeps this context for later JWKS refreshes, so it must outlive the request.
	discoveryCtx := p.clientContext(context.WithoutCancel(ctx))
	provider, err := oidc.NewProvider(discoveryCtx, p.issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "[OIDCProvider.init] discovery %s", p.issuer)
	}

	cfg := &oidc.Config{ClientID: p.clientID}
	if p.now != nil {
		cfg.Now = p.now
	}
	p.verifier = provider.Verifier(cfg)
	if p.endpoint.TokenURL == "" {
		p.endpoint = provider.Endpoint()
	}
	return p.verifier, nil
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *OIDCProvider) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.verify(ctx, rawIDToken)
}

func (p *OIDCProvider) verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	if rawIDToken == "" {
		return nil, errors.Wrap(apperrors.ErrFederatedTokenInvalid, "[OIDCProvider.Verify] empty token")
	}

	verifier, err := p.init(ctx)
	if err != nil {
		return nil, errors.Wrapf(apperrors.ErrFederatedTokenInvalid, "[OIDCProvider.Verify] %s: %v", p.name, err)
	}

	idToken, err := verifier.Verify(p.clientContext(ctx), rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(apperrors.ErrFederatedTokenInvalid, "[OIDCProvider.Verify] %s: %v", p.name, err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrapf(apperrors.ErrFederatedTokenInvalid, "[OIDCProvider.Verify] claims: %v", err)
	}
	if claims.Email == "" {
		return nil, errors.Wrap(apperrors.ErrFederatedTokenInvalid, "[OIDCProvider.Verify] token carries no email")
	}

	return &Identity{
		Provider:      p.name,
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

var _ CodeExchanger = (*OIDCProvider)(nil)

// ExchangeCode redeems an authorization code and verifies the returned ID token.
func (p *OIDCProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if code == "" {
		return nil, errors.Wrap(apperrors.ErrFederatedTokenInvalid, "[OIDCProvider.ExchangeCode] empty code")
	}
	if _, err := p.init(ctx); err != nil {
		return nil, errors.Wrapf(apperrors.ErrFederatedTokenInvalid, "[OIDCProvider.ExchangeCode] %s: %v", p.name, err)
	}

	cfg := oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     p.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       p.scopes,
	}
	oauth2Token, err := cfg.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, errors.Wrapf(apperrors.ErrFederatedTokenInvalid, "[OIDCProvider.ExchangeCode] exchange: %v", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.Wrap(apperrors.ErrFederatedTokenInvalid, "[OIDCProvider.ExchangeCode] no id_token in token response")
	}
	return p.verify(ctx, rawIDToken)
}
