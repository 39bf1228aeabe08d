// Package oidc implements the owner login flow against an OpenID Connect IdP.
package oidc

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

	"github.com/quantsignal/forecast-api/internal/data"
	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
	"github.com/quantsignal/forecast-api/internal/ports"
)

const (
	wellKnownSuffix    = "/.well-known/openid-configuration"
	defaultTokenExpiry = time.Hour
	randomLength       = 32
)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string // Required
	ClientSecret string // Required
	RedirectURL  string // Required
	Scope        string
	DiscoveryURL string       // Required: issuer URL or its discovery document URL
	HTTPClient   *http.Client // Optional: 30s timeout client
	Clock        data.TimeProvider
}

// Provider implements ports.AuthProvider using go-oidc and x/oauth2.
type Provider struct {
	config   *oauth2.Config
	provider *gooidc.Provider
	verifier *gooidc.IDTokenVerifier
	client   *http.Client
	clock    data.TimeProvider
}

// NewProvider fetches the discovery document and builds the OAuth2 config from it.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	switch {
	case cfg.ClientID == "":
		return nil, errors.New("client ID is required")
	case cfg.ClientSecret == "":
		return nil, errors.New("client secret is required")
	case cfg.RedirectURL == "":
		return nil, errors.New("redirect URL is required")
	case cfg.DiscoveryURL == "":
		return nil, errors.New("discovery URL is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}

	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, client), issuerFromDiscovery(cfg.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
		provider: op,
		verifier: op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		client:   client,
		clock:    clock,
	}, nil
}

func issuerFromDiscovery(u string) string {
	u = strings.TrimSuffix(u, "/")
	return strings.TrimSuffix(u, wellKnownSuffix)
}

// Begin returns the IdP authorization URL. The redirect URI is always the
// configured one; the caller's redirect is only required to be present.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}
	state, err := randomString(randomLength)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(randomLength)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	authURL := p.config.AuthCodeURL(state,
		gooidc.Nonce(nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

// Exchange trades the code for tokens, verifies the ID token and its nonce,
// then fills any missing identity fields from the userinfo endpoint.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	switch {
	case in.Code == "":
		return domainauth.Identity{}, errors.New("authorization code is required")
	case in.State == "":
		return domainauth.Identity{}, errors.New("state is required")
	case in.Nonce == "":
		return domainauth.Identity{}, errors.New("nonce is required")
	}

	ctx = gooidc.ClientContext(ctx, p.client)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	var c claims
	if slices.Contains(p.config.Scopes, gooidc.ScopeOpenID) {
		c, err = p.verifyIDToken(ctx, token, in.Nonce)
		if err != nil {
			return domainauth.Identity{}, err
		}
	}
	if c.subject() == "" || c.email() == "" {
		info, infoErr := p.userInfo(ctx, token)
		if infoErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", infoErr)
		}
		c = c.merge(info)
	}
	if c.subject() == "" {
		return domainauth.Identity{}, errors.New("identity has no subject claim")
	}

	expiresAt := p.clock.Now().Add(defaultTokenExpiry)
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}
	return domainauth.Identity{
		Subject:   c.subject(),
		FirstName: firstNonEmpty(c.GivenName, c.FirstName),
		LastName:  firstNonEmpty(c.FamilyName, c.LastName),
		Email:     c.email(),
		Groups:    c.groups(),
		ExpiresAt: expiresAt,
	}, nil
}

func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token, nonce string) (claims, error) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return claims{}, errors.New("missing id_token in token response")
	}
	idTok, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return claims{}, fmt.Errorf("verify id_token: %w", err)
	}
	if idTok.Nonce != nonce {
		return claims{}, errors.New("invalid nonce")
	}
	var c claims
	if err := idTok.Claims(&c); err != nil {
		return claims{}, fmt.Errorf("parse id_token claims: %w", err)
	}
	return c, nil
}

func (p *Provider) userInfo(ctx context.Context, tok *oauth2.Token) (claims, error) {
	ui, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return claims{}, err
	}
	var c claims
	if err := ui.Claims(&c); err != nil {
		return claims{}, fmt.Errorf("decode user info: %w", err)
	}
	return c, nil
}

// claims accepts both standard OIDC names and the AD/ADFS variants.
type claims struct {
	Sub            string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	Email          string   `json:"email"`
	Mail           string   `json:"mail"`
	GivenName      string   `json:"given_name"`
	FirstName      string   `json:"firstname"`
	FamilyName     string   `json:"family_name"`
	LastName       string   `json:"lastname"`
	Groups         []string `json:"groups"`
	MemberOf       []string `json:"memberof"`
}

func (c claims) subject() string { return firstNonEmpty(c.Sub, c.SamAccountName) }
func (c claims) email() string   { return firstNonEmpty(c.Email, c.Mail) }

func (c claims) groups() []string {
	if len(c.Groups) > 0 {
		return c.Groups
	}
	return c.MemberOf
}

// merge fills fields empty in c from other.
func (c claims) merge(other claims) claims {
	c.Sub = firstNonEmpty(c.Sub, other.Sub)
	c.SamAccountName = firstNonEmpty(c.SamAccountName, other.SamAccountName)
	c.Email = firstNonEmpty(c.Email, other.Email)
	c.Mail = firstNonEmpty(c.Mail, other.Mail)
	c.GivenName = firstNonEmpty(c.GivenName, other.GivenName)
	c.FirstName = firstNonEmpty(c.FirstName, other.FirstName)
	c.FamilyName = firstNonEmpty(c.FamilyName, other.FamilyName)
	c.LastName = firstNonEmpty(c.LastName, other.LastName)
	if len(c.Groups) == 0 {
		c.Groups = other.Groups
	}
	if len(c.MemberOf) == 0 {
		c.MemberOf = other.MemberOf
	}
	return c
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
