package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/mbolis/surveyer/app"
	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/log"
	"github.com/mbolis/surveyer/model"
	"github.com/mbolis/surveyer/services"
	"github.com/mbolis/surveyer/session"
)

// current returns the session attached by the ClientID middleware.
func current(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "session.missing")
	}
	return s, ok
}

type sessionView struct {
	User     *model.User `json:"user"`
	LoggedIn bool        `json:"loggedIn"`
	Loading  bool        `json:"loading"`
}

func viewOf(s *session.Session) sessionView {
	user := s.User()
	return sessionView{User: user, LoggedIn: user != nil, Loading: s.Loading()}
}

func GetSession(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		// ?refresh=true checks the cached profile against the API
		if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh && s.User() != nil {
			if err := s.Refresh(r.Context()); err != nil && httpx.StatusOf(err) != http.StatusUnauthorized {
				httpx.LogFailure(w, r, "session.refresh", err, "Failed to verify session")
				return
			}
		}
		render.JSON(w, r, viewOf(s))
	}
}

type loginReply struct {
	Message string `json:"message"`
	sessionView
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		var req model.LoginRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "login.parse_body")
			return
		}

		ok, msg, err := s.Login(r.Context(), req.Username, req.Password)
		if !ok {
			// only a 4xx from the API means the credentials were refused
			status := http.StatusUnauthorized
			if code := httpx.StatusOf(err); code == 0 || code >= 500 {
				status = http.StatusBadGateway
			}
			httpx.LogStatusMsg(w, r, status, log.DebugLevel, "login.failed", "%s", msg)
			return
		}
		render.JSON(w, r, loginReply{Message: msg, sessionView: viewOf(s)})
	}
}

func Register(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		var req model.RegisterRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "register.parse_body")
			return
		}

		ok, msg := s.Register(r.Context(), req)
		if !ok {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "register.failed", "%s", msg)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, model.MessageResponse{Message: msg})
	}
}

func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}
		if err := s.Logout(r.Context()); err != nil {
			// memory is already cleared; only the stored copy may linger
			log.WithError(err).Warn("logout.clear_storage")
		}
		render.JSON(w, r, model.MessageResponse{Message: "Logged out"})
	}
}

// accountFlow adapts one of the services.Auth flows to a JSON reply.
func accountFlow(code string, run func(r *http.Request, auth services.Auth) (bool, string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		ok, msg, err := run(r, services.NewAuth(s.API()))
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, code+".parse_body")
			return
		}
		if !ok {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, code, "%s", msg)
			return
		}
		render.JSON(w, r, model.MessageResponse{Message: msg})
	}
}

func VerifyEmail(app app.App) http.HandlerFunc {
	return accountFlow("verify_email", func(r *http.Request, auth services.Auth) (bool, string, error) {
		token := r.URL.Query().Get("token")
		if token == "" {
			return false, "Invalid or missing verification token", nil
		}
		ok, msg := auth.VerifyEmail(r.Context(), token)
		return ok, msg, nil
	})
}

func ForgotPassword(app app.App) http.HandlerFunc {
	return accountFlow("forgot_password", func(r *http.Request, auth services.Auth) (bool, string, error) {
		var req model.EmailRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return false, "", err
		}
		ok, msg := auth.ForgotPassword(r.Context(), req.Email)
		return ok, msg, nil
	})
}

func ResetPassword(app app.App) http.HandlerFunc {
	return accountFlow("reset_password", func(r *http.Request, auth services.Auth) (bool, string, error) {
		var req model.ResetPasswordRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return false, "", err
		}
		ok, msg := auth.ResetPassword(r.Context(), req.Token, req.NewPassword)
		return ok, msg, nil
	})
}

func ResendVerification(app app.App) http.HandlerFunc {
	return accountFlow("resend_verification", func(r *http.Request, auth services.Auth) (bool, string, error) {
		var req model.EmailRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return false, "", err
		}
		ok, msg := auth.ResendVerification(r.Context(), req.Email)
		return ok, msg, nil
	})
}
