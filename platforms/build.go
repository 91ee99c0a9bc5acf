package platforms

import (
	"net/http"

	"github.com/ArtJustine/scheduler-sub001/config"
)

// FromConfig registers an adapter for every platform and an OAuth provider
// for each platform whose app credentials are configured.
func FromConfig(c config.AppConfig, client *http.Client) *Registry {
	if client == nil {
		client = NewHTTPClient(c.PublishTimeout)
	}
	r := NewRegistry()

	ig := NewInstagramAdapter("", client)
	r.Register(Instagram, ig, nil)
	if c.InstagramClientID != "" && c.InstagramClientSecret != "" {
		r.Register(Instagram, nil, newInstagramProvider(c.InstagramClientID, c.InstagramClientSecret, ig.api))
	}

	fb := NewFacebookAdapter("", client)
	r.Register(Facebook, fb, nil)
	if c.FacebookClientID != "" && c.FacebookClientSecret != "" {
		r.Register(Facebook, nil, newFacebookProvider(c.FacebookClientID, c.FacebookClientSecret, fb.api))
	}

	tw := NewTwitterAdapter("", client)
	r.Register(Twitter, tw, nil)
	if c.TwitterClientID != "" && c.TwitterClientSecret != "" {
		r.Register(Twitter, nil, newTwitterProvider(c.TwitterClientID, c.TwitterClientSecret, tw.api))
	}

	li := NewLinkedInAdapter("", client)
	r.Register(LinkedIn, li, nil)
	if c.LinkedInClientID != "" && c.LinkedInClientSecret != "" {
		r.Register(LinkedIn, nil, newLinkedInProvider(c.LinkedInClientID, c.LinkedInClientSecret, li.api))
	}

	tt := NewTikTokAdapter("", client)
	r.Register(TikTok, tt, nil)
	if c.TikTokClientKey != "" && c.TikTokClientSecret != "" {
		r.Register(TikTok, nil, newTikTokProvider(c.TikTokClientKey, c.TikTokClientSecret, tt.api))
	}

	yt := NewYouTubeAdapter("", client)
	r.Register(YouTube, yt, nil)
	if c.YouTubeClientID != "" && c.YouTubeClientSecret != "" {
		r.Register(YouTube, nil, newYouTubeProvider(c.YouTubeClientID, c.YouTubeClientSecret, yt.api))
	}
	return r
}
