package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mbolis/surveyer/log"
	"github.com/pkg/errors"
)

// API is what domain services need from the gateway.
type API interface {
	Do(ctx context.Context, method, path string, body, out any) (status int, err error)
}

type GatewayConfig struct {
	BaseURL string
	// Timeout bounds a whole request; zero means 30s.
	Timeout time.Duration
	// Transport is optional, mostly for tests.
	Transport http.RoundTripper
}

// Gateway is the single request pipeline of one client. It owns that
// client's cookie jar, so the opaque session cookie set by the survey API is
// replayed on every call and never leaves memory.
type Gateway struct {
	baseURL string
	client  *http.Client
	jar     *resettableJar

	mu             sync.RWMutex
	onUnauthorized func(path string)
}

func NewGateway(cfg GatewayConfig) *Gateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	jar := newResettableJar()
	return &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		jar:     jar,
		client: &http.Client{
			Jar:       jar,
			Timeout:   timeout,
			Transport: cfg.Transport,
		},
	}
}

// OnUnauthorized registers the forced logout run when an auth or identity
// endpoint answers 401.
func (g *Gateway) OnUnauthorized(fn func(path string)) {
	g.mu.Lock()
	g.onUnauthorized = fn
	g.mu.Unlock()
}

// ResetCookies forgets the session credential.
func (g *Gateway) ResetCookies() {
	g.jar.reset()
}

// IsIdentityPath reports whether a 401 on path means the session itself is gone.
func IsIdentityPath(path string) bool {
	return strings.Contains(path, "/api/auth/") || strings.Contains(path, "/api/user/me")
}

// Do sends body as JSON and decodes a 2xx reply into out (when both are
// non-nil). Non-2xx replies come back as *APIError.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, "gateway.marshal")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return 0, errors.Wrap(err, "gateway.new_request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		observe(method, path, 0, start)
		return 0, errors.Wrapf(err, "gateway %s %s", method, path)
	}
	defer resp.Body.Close()
	observe(method, path, resp.StatusCode, start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrapf(err, "gateway %s %s: read body", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: messageFrom(respBody),
		}
		if resp.StatusCode == http.StatusUnauthorized {
			apiErr.Forced = g.unauthorized(path)
		}
		return resp.StatusCode, apiErr
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, errors.Wrapf(err, "gateway %s %s: decode body", method, path)
		}
	}
	return resp.StatusCode, nil
}

// isCredentialExchange matches the endpoints where a 401 means "wrong
// credentials" rather than "session gone".
func isCredentialExchange(path string) bool {
	return strings.HasPrefix(path, "/api/auth/login") || strings.HasPrefix(path, "/api/auth/register")
}

func (g *Gateway) unauthorized(path string) bool {
	if !IsIdentityPath(path) || isCredentialExchange(path) {
		log.Debugf("gateway.unauthorized: passing through 401 for %s", path)
		return false
	}

	g.mu.RLock()
	fn := g.onUnauthorized
	g.mu.RUnlock()

	log.Infof("gateway.unauthorized: forced logout after 401 for %s", path)
	forcedLogouts.Inc()
	g.ResetCookies()
	if fn != nil {
		fn(path)
	}
	return true
}

type resettableJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newResettableJar() *resettableJar {
	j := &resettableJar{}
	j.reset()
	return j
}

func (j *resettableJar) reset() {
	// cookiejar.New only fails on a broken PublicSuffixList, and we pass none.
	jar, _ := cookiejar.New(nil)
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
}

func (j *resettableJar) current() *cookiejar.Jar {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar
}

func (j *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.current().SetCookies(u, cookies)
}

func (j *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	return j.current().Cookies(u)
}
