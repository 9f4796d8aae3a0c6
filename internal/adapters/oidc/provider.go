package oidc

// Package oidc signs users in through an OpenID Connect identity provider.
// The access token it obtains becomes the bearer token the web tier forwards to the API.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-web/internal/errors"
	"github.com/target/mmk-ui-web/internal/ports"
)

// Provider implements ports.AuthProvider and ports.IdentityResolver using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

var (
	_ ports.AuthProvider     = (*Provider)(nil)
	_ ports.IdentityResolver = (*Provider)(nil)
)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // defaults to a 30s-timeout client
}

// DiscoveryDocument is the subset of /.well-known/openid-configuration the provider reads.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider runs discovery and builds the OAuth2 client.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		httpClient:   httpClient,
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       strings.Fields(config.Scope),
			Endpoint:     op.Endpoint(),
		},
	}, nil
}

// Begin builds the authorization URL together with fresh state and nonce values.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri stays the configured one; IdPs match it exactly.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
	)
	return authURL, state, nonce, nil
}

// Exchange trades the authorization code for tokens and maps the ID token claims.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.LoginResult, error) {
	if in.Code == "" {
		return ports.LoginResult{}, apperrors.Validation("authorization code is required")
	}
	if in.State == "" {
		return ports.LoginResult{}, apperrors.Validation("state is required")
	}
	if in.Nonce == "" {
		return ports.LoginResult{}, apperrors.Validation("nonce is required")
	}

	ctx = p.clientContext(ctx)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return ports.LoginResult{}, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "exchange code for token")
	}

	claims, err := p.extractFromIDToken(ctx, token, in.Nonce)
	if err != nil {
		return ports.LoginResult{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "extract id_token")
	}
	if claims.Subject == "" || claims.Email == "" {
		ui, uiErr := p.userInfo(ctx, token.AccessToken)
		if uiErr != nil {
			return ports.LoginResult{}, uiErr
		}
		claims = mergeClaims(claims, ui)
	}

	id := claims.identity()
	if !token.Expiry.IsZero() {
		id.ExpiresAt = token.Expiry
	}
	return ports.LoginResult{Token: token.AccessToken, Identity: &id}, nil
}

// Resolve maps an access token to its identity through the UserInfo endpoint.
func (p *Provider) Resolve(ctx context.Context, token string) (domainauth.Identity, error) {
	if token == "" {
		return domainauth.Identity{}, apperrors.Unauthorized("missing token")
	}
	c, err := p.userInfo(p.clientContext(ctx), token)
	if err != nil {
		return domainauth.Identity{}, err
	}
	return c.identity(), nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	if ctx.Value(oauth2.HTTPClient) != nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) userInfo(ctx context.Context, accessToken string) (standardClaims, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		if strings.HasPrefix(err.Error(), "401") {
			return standardClaims{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "userinfo rejected token")
		}
		return standardClaims{}, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "fetch user info")
	}
	var c standardClaims
	if claimsErr := ui.Claims(&c); claimsErr != nil {
		return standardClaims{}, apperrors.Wrap(claimsErr, apperrors.ErrCodeUpstream, "decode user info")
	}
	if c.Subject == "" {
		c.Subject = ui.Subject
	}
	if c.Email == "" {
		c.Email = ui.Email
	}
	return c, nil
}

func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (standardClaims, error) {
	var c standardClaims
	if !slices.Contains(p.config.Scopes, "openid") {
		return c, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return c, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return c, fmt.Errorf("verify id_token: %w", err)
	}
	if claimsErr := idTok.Claims(&c); claimsErr != nil {
		return c, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" && c.Nonce != expectedNonce {
		return c, errors.New("invalid nonce")
	}
	return c, nil
}

// standardClaims covers the OIDC standard claims used to build an Identity.
type standardClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
	Nonce             string `json:"nonce"`
}

func (c standardClaims) identity() domainauth.Identity {
	name := c.Name
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	if name == "" {
		name = c.PreferredUsername
	}
	return domainauth.Identity{
		UserID: c.Subject,
		Email:  c.Email,
		Name:   name,
	}
}

// mergeClaims fills fields missing from base with values from extra.
func mergeClaims(base, extra standardClaims) standardClaims {
	base.Subject = firstNonEmpty(base.Subject, extra.Subject)
	base.Email = firstNonEmpty(base.Email, extra.Email)
	base.Name = firstNonEmpty(base.Name, extra.Name)
	base.GivenName = firstNonEmpty(base.GivenName, extra.GivenName)
	base.FamilyName = firstNonEmpty(base.FamilyName, extra.FamilyName)
	base.PreferredUsername = firstNonEmpty(base.PreferredUsername, extra.PreferredUsername)
	return base
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString returns a URL-safe random string of exactly length characters.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}

func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
