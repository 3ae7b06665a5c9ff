// Package session is the auth context of one client: the cached user profile
// (memory + durable storage) and the login/register/logout operations.
//
// The profile is a cache for display and role routing only. It is restored
// without asking the survey API, so a stale profile looks logged in until the
// first call that needs the session credential fails; the API stays the sole
// authority on whether the credential is valid.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/mbolis/surveyer/database"
	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/log"
	"github.com/mbolis/surveyer/model"
	"github.com/pkg/errors"
)

const userKey = "user"

// Gateway is the part of *httpx.Gateway a session drives.
type Gateway interface {
	httpx.API
	ResetCookies()
	OnUnauthorized(fn func(path string))
}

type Session struct {
	gateway Gateway
	items   database.Items

	mu      sync.RWMutex
	user    *model.User
	loading bool
}

// New builds a session in the loading state; call Hydrate before use.
func New(gateway Gateway, items database.Items) *Session {
	s := &Session{
		gateway: gateway,
		items:   items,
		loading: true,
	}
	gateway.OnUnauthorized(s.forceLogout)
	return s
}

// API is the gateway domain services should use for this client.
func (s *Session) API() httpx.API {
	return s.gateway
}

// User returns a copy of the current profile, or nil when logged out.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Hydrate restores a previously persisted profile. It makes no network call.
// A corrupt entry is discarded.
func (s *Session) Hydrate(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	data, ok, err := s.items.GetItem(ctx, userKey)
	if err != nil || !ok {
		return err
	}

	var user model.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		log.WithError(err).Warn("session.hydrate: discarding corrupt user entry")
		return s.items.RemoveItem(ctx, userKey)
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return nil
}

// Login posts the credentials and, on success, caches the returned profile.
// On failure the state is untouched and msg says why.
func (s *Session) Login(ctx context.Context, username, password string) (ok bool, msg string, err error) {
	var resp model.AuthResponse
	_, err = s.gateway.Do(ctx, http.MethodPost, "/api/auth/login", model.LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		log.WithField("username", username).Debugf("session.login: %s", err)
		return false, loginFailure(err), err
	}
	if resp.User == nil {
		log.WithField("username", username).Warn("session.login: response without user")
		return false, "Login failed: Invalid response from server", errors.New("session.login: response without user")
	}

	data, err := json.Marshal(resp.User)
	if err != nil {
		log.WithError(err).Error("session.login.marshal")
		return false, "Login failed. Please try again.", errors.Wrap(err, "session.login.marshal")
	}
	if err := s.items.SetItem(ctx, userKey, string(data)); err != nil {
		log.WithError(err).Error("session.login.persist")
		return false, "Login failed. Please try again.", errors.Wrap(err, "session.login.persist")
	}

	s.mu.Lock()
	s.user = resp.User
	s.mu.Unlock()
	return true, "Login successful!", nil
}

func loginFailure(err error) string {
	if msg := httpx.ServerMessage(err); msg != "" {
		return msg
	}
	switch status := httpx.StatusOf(err); {
	case status == http.StatusUnauthorized:
		return "Invalid username or password"
	case status >= 500:
		return "Server error. Please try again later."
	}
	return "Login failed. Please try again."
}

// Register creates the account. It never logs in: the account must be
// verified by e-mail first.
func (s *Session) Register(ctx context.Context, req model.RegisterRequest) (ok bool, msg string) {
	if err := model.ValidateRegistration(req); err != nil {
		return false, err.Error()
	}

	status, err := s.gateway.Do(ctx, http.MethodPost, "/api/auth/register", req, nil)
	if err != nil {
		log.WithField("username", req.Username).Debugf("session.register: %s", err)
		if msg := httpx.ServerMessage(err); msg != "" {
			return false, msg
		}
		if httpx.StatusOf(err) == http.StatusConflict {
			return false, "Username or email already exists"
		}
		return false, "Registration failed. Please try again."
	}
	if status != http.StatusCreated {
		return false, "Registration failed"
	}
	return true, "Registration successful! Please log in."
}

// Refresh asks the API whose credential this client holds and caches the
// answer. A 401 there forces the logout through the gateway.
func (s *Session) Refresh(ctx context.Context) error {
	var user model.User
	if _, err := s.gateway.Do(ctx, http.MethodGet, "/api/user/me", nil, &user); err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "session.refresh.marshal")
	}
	if err := s.items.SetItem(ctx, userKey, string(data)); err != nil {
		return errors.Wrap(err, "session.refresh.persist")
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return nil
}

// Logout revokes the credential on a best-effort basis, then always clears
// the local state. The returned error only reports a storage failure.
func (s *Session) Logout(ctx context.Context) error {
	if _, err := s.gateway.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		log.Warnf("session.logout.revoke: %s", err)
	}
	return s.clear(ctx)
}

func (s *Session) forceLogout(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.clear(ctx); err != nil {
		log.Errorf("session.force_logout %s: %s", path, err)
	}
}

func (s *Session) clear(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.gateway.ResetCookies()
	return s.items.RemoveItem(ctx, userKey)
}
