package platforms

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
)

// Profile is the connected account as reported by the platform.
type Profile struct {
	AccountID   string
	AccountName string
	// AccessToken replaces the user token when the platform publishes with a
	// different one (Facebook page tokens).
	AccessToken string
}

// Provider is the OAuth capability of one platform. The connection flow is
// written once against this interface.
type Provider interface {
	Platform() Platform
	AuthURL(state, redirectURI string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code, redirectURI string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	Profile(ctx context.Context, token *oauth2.Token) (*Profile, error)
	// UsesPKCE reports whether AuthURL/Exchange need a code verifier.
	UsesPKCE() bool
	// Refresh renews an access token with a refresh_token grant. Platforms
	// without a standard grant return ErrNotConnected.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type profileFunc func(ctx context.Context, api apiClient, token *oauth2.Token) (*Profile, error)

// oauthProvider implements Provider for every platform; only the oauth2
// config, the extra parameters and the profile lookup vary.
type oauthProvider struct {
	platform    Platform
	conf        oauth2.Config
	pkce        bool
	refreshable bool
	authParams  []oauth2.AuthCodeOption
	api         apiClient
	profile     profileFunc
}

func (p *oauthProvider) Platform() Platform { return p.platform }

func (p *oauthProvider) UsesPKCE() bool { return p.pkce }

func (p *oauthProvider) config(redirectURI string) *oauth2.Config {
	c := p.conf
	c.RedirectURL = redirectURI
	return &c
}

func (p *oauthProvider) AuthURL(state, redirectURI string, opts ...oauth2.AuthCodeOption) string {
	all := append(append([]oauth2.AuthCodeOption{}, p.authParams...), opts...)
	return p.config(redirectURI).AuthCodeURL(state, all...)
}

func (p *oauthProvider) Exchange(ctx context.Context, code, redirectURI string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.api.http)
	all := append(append([]oauth2.AuthCodeOption{}, p.authParams...), opts...)
	tok, err := p.config(redirectURI).Exchange(ctx, code, all...)
	if err != nil {
		return nil, tokenError(p.platform, err)
	}
	return tok, nil
}

func (p *oauthProvider) Profile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	return p.profile(ctx, p.api, token)
}

func (p *oauthProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if !p.refreshable {
		return nil, newError(ErrNotConnected, p.platform, "token refresh is not supported")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.api.http)
	src := p.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, tokenError(p.platform, err)
	}
	return tok, nil
}

func tokenError(p Platform, err error) *Error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		if msg == "" {
			msg = string(re.Body)
		}
		kind := ErrUpstreamRejection
		if status == http.StatusTooManyRequests || status >= 500 {
			kind = ErrNetworkFailure
		}
		return &Error{Kind: kind, Platform: p, Status: status, Message: msg, Err: err}
	}
	return &Error{Kind: ErrNetworkFailure, Platform: p, Message: transportMessage(err), Err: err}
}
