package platforms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstagramPublishImage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/1784/media":
			assert.Equal(t, "hi", r.PostForm.Get("caption"))
			assert.Equal(t, "https://x/y.jpg", r.PostForm.Get("image_url"))
			w.Write([]byte(`{"id":"container-1"}`))
		case "/1784/media_publish":
			assert.Equal(t, "container-1", r.PostForm.Get("creation_id"))
			w.Write([]byte(`{"id":"ig-post-9"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := NewInstagramAdapter(srv.URL, srv.Client())
	id, err := a.Publish(context.Background(), Account{AccessToken: "tok", AccountID: "1784"},
		Payload{Text: "hi", MediaURL: "https://x/y.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "ig-post-9", id)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestInstagramPublishUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid image URL","type":"OAuthException","code":9004}}`))
	}))
	defer srv.Close()

	a := NewInstagramAdapter(srv.URL, srv.Client())
	_, err := a.Publish(context.Background(), Account{AccessToken: "tok", AccountID: "1784"},
		Payload{Text: "hi", MediaURL: "https://x/y.jpg"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamRejection))
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "Invalid image URL")
}

func TestInstagramVideoWaitsForContainer(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/media":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "REELS", r.PostForm.Get("media_type"))
			w.Write([]byte(`{"id":"c-2"}`))
		case "/c-2":
			if atomic.AddInt32(&polls, 1) < 2 {
				w.Write([]byte(`{"status_code":"IN_PROGRESS"}`))
				return
			}
			w.Write([]byte(`{"status_code":"FINISHED"}`))
		case "/me/media_publish":
			w.Write([]byte(`{"id":"reel-1"}`))
		}
	}))
	defer srv.Close()

	a := NewInstagramAdapter(srv.URL, srv.Client())
	a.PollInterval = time.Millisecond
	id, err := a.Publish(context.Background(), Account{AccessToken: "tok"}, Payload{MediaURL: "https://cdn/v.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "reel-1", id)
	assert.EqualValues(t, 2, atomic.LoadInt32(&polls))
}

func TestInstagramSecondStepFailureNamesContainer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/me/media" {
			w.Write([]byte(`{"id":"c-3"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewInstagramAdapter(srv.URL, srv.Client())
	_, err := a.Publish(context.Background(), Account{AccessToken: "tok"}, Payload{MediaURL: "https://x/y.png"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetworkFailure))
	assert.Contains(t, err.Error(), "media container c-3 was left unpublished")
}

func TestInstagramRejectsWithoutNetwork(t *testing.T) {
	a := NewInstagramAdapter("http://127.0.0.1:1", nil)

	_, err := a.Publish(context.Background(), Account{}, Payload{MediaURL: "https://x/y.jpg"})
	assert.True(t, errors.Is(err, ErrNotConnected))

	_, err = a.Publish(context.Background(), Account{AccessToken: "tok"}, Payload{Text: "no media"})
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}
