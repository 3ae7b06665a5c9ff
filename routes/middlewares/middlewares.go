package middlewares

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/log"
	"github.com/mbolis/surveyer/model"
	"github.com/mbolis/surveyer/session"
)

const ClientCookie = "client_id"

type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// ClientID identifies the browser by its client_id cookie, issuing a new one
// when missing or malformed, and attaches the client's session to the
// request context.
func ClientID(registry *session.Registry, opts CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if c, err := r.Cookie(ClientCookie); err == nil {
				if id, err := uuid.FromString(c.Value); err == nil {
					clientID = id.String()
				}
			}

			if clientID == "" {
				id, err := uuid.NewV4()
				if err != nil {
					httpx.LogInternalError(w, r, "client_id.generate", err)
					return
				}
				clientID = id.String()
			}

			// refreshed on every request so an active client keeps its id
			http.SetCookie(w, &http.Cookie{
				Path:     "/",
				Name:     ClientCookie,
				Value:    clientID,
				MaxAge:   int(opts.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			s, err := registry.Get(r.Context(), clientID)
			if err != nil {
				httpx.LogInternalError(w, r, "client_id.session", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
		})
	}
}

// RequireRole lets through only logged in users with the given role, as far
// as the cached profile says. The survey API has the final word.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := session.FromContext(r.Context())
			if !ok {
				httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "require_role.no_session")
				return
			}

			user := s.User()
			if user == nil {
				httpx.LogStatusMsg(w, r, http.StatusUnauthorized, log.DebugLevel, "require_role.logged_out", "Please log in")
				return
			}
			if user.Role != role {
				httpx.LogStatusMsg(w, r, http.StatusForbidden, log.DebugLevel, "require_role.role",
					"This page is only available to %s users", strings.ToLower(string(role)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoginRedirect turns a 401 on a browser page load into a redirect to the
// login page, carrying the requested location. API calls get the 401 as is.
func LoginRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !wantsHTML(r) {
			next.ServeHTTP(w, r)
			return
		}

		buf := httpx.NewResponseBuffer()
		next.ServeHTTP(buf, r)
		if buf.Status() != http.StatusUnauthorized {
			if err := buf.Flush(w); err != nil {
				log.Warn("login_redirect.flush: ", err)
			}
			return
		}

		// keep cookies set along the way, such as a fresh client_id
		for _, c := range buf.Header().Values("Set-Cookie") {
			w.Header().Add("Set-Cookie", c)
		}
		w.Header().Set("Location", "/login?goto="+url.QueryEscape(r.RequestURI))
		w.WriteHeader(http.StatusTemporaryRedirect)
	})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
