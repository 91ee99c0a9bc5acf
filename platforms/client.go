package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single outbound request when the caller sets no deadline.
const DefaultTimeout = 60 * time.Second

// NewHTTPClient returns an HTTP client with a request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// errorMessageFunc pulls the human readable message out of an error body.
type errorMessageFunc func(body []byte) string

// apiClient is the shared request path of every adapter. It classifies
// failures: transport errors, timeouts, 429 and 5xx are network failures;
// 401 means the token is no longer valid; other 4xx are upstream rejections.
type apiClient struct {
	platform Platform
	baseURL  string
	http     *http.Client
	message  errorMessageFunc
}

func newAPIClient(p Platform, baseURL string, client *http.Client, msg errorMessageFunc) apiClient {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return apiClient{
		platform: p,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     client,
		message:  msg,
	}
}

type request struct {
	method  string
	url     string // absolute, or a path joined to baseURL
	token   string
	form    url.Values
	json    interface{}
	body    io.Reader
	ctype   string
	headers map[string]string
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c apiClient) do(ctx context.Context, r request, out interface{}) (*response, error) {
	target := r.url
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + r.url
	}

	var body io.Reader
	ctype := r.ctype
	switch {
	case r.json != nil:
		b, err := json.Marshal(r.json)
		if err != nil {
			return nil, &Error{Kind: ErrInvalidPayload, Platform: c.platform, Err: err}
		}
		body = bytes.NewReader(b)
		ctype = "application/json"
	case r.form != nil:
		body = strings.NewReader(r.form.Encode())
		ctype = "application/x-www-form-urlencoded"
	default:
		body = r.body
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, &Error{Kind: ErrInvalidPayload, Platform: c.platform, Err: err}
	}
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrNetworkFailure, Platform: c.platform, Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &Error{Kind: ErrNetworkFailure, Platform: c.platform, Message: "reading response: " + err.Error(), Err: err}
	}
	res := &response{status: resp.StatusCode, header: resp.Header, body: raw}

	if resp.StatusCode >= 300 {
		return res, c.statusError(resp.StatusCode, raw)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return res, &Error{Kind: ErrUpstreamRejection, Platform: c.platform, Status: resp.StatusCode, Message: "malformed response: " + err.Error(), Err: err}
		}
	}
	return res, nil
}

func (c apiClient) statusError(status int, body []byte) *Error {
	msg := ""
	if c.message != nil {
		msg = c.message(body)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 512 {
			msg = msg[:512]
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	kind := ErrUpstreamRejection
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		kind = ErrNetworkFailure
	case status == http.StatusUnauthorized:
		kind = ErrNotConnected
	}
	return &Error{Kind: kind, Platform: c.platform, Status: status, Message: fmt.Sprintf("%s (HTTP %d)", msg, status)}
}

func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return "request timed out"
	}
	return err.Error()
}

// graphErrorMessage reads the Facebook/Instagram Graph API error shape.
func graphErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
		return ""
	}
	return e.Error.Message
}
