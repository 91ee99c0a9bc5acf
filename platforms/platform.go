package platforms

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Platform identifies a social network.
type Platform string

const (
	Instagram Platform = "instagram"
	Facebook  Platform = "facebook"
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	TikTok    Platform = "tiktok"
	YouTube   Platform = "youtube"
)

// Known lists every platform the service has an adapter for.
var Known = []Platform{Instagram, Facebook, Twitter, LinkedIn, TikTok, YouTube}

// Parse normalizes a platform name.
func Parse(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range Known {
		if p == k {
			return p, nil
		}
	}
	if p == "x" {
		return Twitter, nil
	}
	return "", fmt.Errorf("unsupported platform: %s", s)
}

// Payload is the normalized content of a post.
type Payload struct {
	Text     string
	MediaURL string
	Title    string
}

// Account is the part of a stored credential an adapter needs.
type Account struct {
	AccessToken string
	AccountID   string
}

// Adapter performs one logical publish against a platform.
type Adapter interface {
	// Validate rejects payloads the platform cannot accept, without network access.
	Validate(p Payload) error
	// Publish returns the platform-assigned post id.
	Publish(ctx context.Context, acct Account, p Payload) (string, error)
}

// Registry maps platforms to their adapter and OAuth provider.
type Registry struct {
	adapters  map[Platform]Adapter
	providers map[Platform]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters:  map[Platform]Adapter{},
		providers: map[Platform]Provider{},
	}
}

// Register installs the adapter and provider for p. Either may be nil.
func (r *Registry) Register(p Platform, a Adapter, prov Provider) {
	if a != nil {
		r.adapters[p] = a
	}
	if prov != nil {
		r.providers[p] = prov
	}
}

// Adapter returns the publish adapter for p.
func (r *Registry) Adapter(p Platform) (Adapter, error) {
	if a, ok := r.adapters[p]; ok {
		return a, nil
	}
	return nil, &Error{Kind: ErrConfigurationMissing, Platform: p, Message: "publishing is not configured"}
}

// Provider returns the OAuth provider for p.
func (r *Registry) Provider(p Platform) (Provider, error) {
	if prov, ok := r.providers[p]; ok {
		return prov, nil
	}
	return nil, &Error{Kind: ErrConfigurationMissing, Platform: p, Message: "oauth is not configured"}
}

// Platforms lists the platforms with an adapter, sorted.
func (r *Registry) Platforms() []Platform {
	out := make([]Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func requireToken(p Platform, acct Account) error {
	if strings.TrimSpace(acct.AccessToken) == "" {
		return newError(ErrNotConnected, p, "missing access token")
	}
	return nil
}
