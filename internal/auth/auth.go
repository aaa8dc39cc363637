// Package auth builds the credentials the proxy presents to the
// conversational backend.
package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/philipexavier/proxy-rasa/internal/config"
)

// Scheme names the kind of backend credentials in use.
type Scheme string

const (
	SchemeNone              Scheme = "none"
	SchemeStaticBearer      Scheme = "static_bearer"
	SchemeClientCredentials Scheme = "oauth2_client_credentials"
)

// SchemeFor reports which credential scheme cfg selects. Client credentials
// take precedence over a static token.
func SchemeFor(cfg *config.ServerConfig) Scheme {
	switch {
	case cfg == nil:
		return SchemeNone
	case cfg.BackendOAuth.ClientID != "":
		return SchemeClientCredentials
	case cfg.BackendToken != "":
		return SchemeStaticBearer
	default:
		return SchemeNone
	}
}

// NewClientCredentialsConfig maps the OAuth settings onto a clientcredentials.Config.
func NewClientCredentialsConfig(o config.OAuthConfig) (*clientcredentials.Config, error) {
	if o.TokenURL == "" {
		return nil, ErrMissingTokenURL
	}
	if o.ClientSecret == "" {
		return nil, ErrMissingSecret
	}
	return &clientcredentials.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		TokenURL:     o.TokenURL,
		Scopes:       o.Scopes,
		AuthStyle:    oauth2.AuthStyleAutoDetect,
	}, nil
}

// TokenSource returns the token source for the backend, or nil when no
// credentials are configured. Tokens from the client-credentials flow are
// cached and refreshed by oauth2.ReuseTokenSource.
func TokenSource(ctx context.Context, cfg *config.ServerConfig) (oauth2.TokenSource, error) {
	switch SchemeFor(cfg) {
	case SchemeClientCredentials:
		cc, err := NewClientCredentialsConfig(cfg.BackendOAuth)
		if err != nil {
			return nil, err
		}
		return cc.TokenSource(ctx), nil
	case SchemeStaticBearer:
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BackendToken, TokenType: "Bearer"}), nil
	default:
		return nil, nil
	}
}

// NewBackendClient wraps base so every request carries the backend
// credentials. base is returned unchanged when none are configured. The
// token endpoint is reached through base as well.
func NewBackendClient(ctx context.Context, cfg *config.ServerConfig, base *http.Client) (*http.Client, error) {
	if base == nil {
		base = &http.Client{}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	ts, err := TokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return base, nil
	}
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = base.Timeout
	return client, nil
}
