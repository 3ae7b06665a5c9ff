package services

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/log"
	"github.com/mbolis/surveyer/model"
)

// Auth covers the account flows that do not touch the session state.
type Auth struct {
	api httpx.API
}

func NewAuth(api httpx.API) Auth {
	return Auth{api}
}

func (a Auth) VerifyEmail(ctx context.Context, token string) (bool, string) {
	path := "/api/auth/verify-email?token=" + url.QueryEscape(token)
	return a.flow(ctx, http.MethodGet, path, nil, "Email verified successfully!", "Email verification failed")
}

func (a Auth) ForgotPassword(ctx context.Context, email string) (bool, string) {
	return a.flow(ctx, http.MethodPost, "/api/auth/forgot-password", model.EmailRequest{Email: email},
		"Password reset email sent successfully!", "Failed to send password reset email")
}

func (a Auth) ResetPassword(ctx context.Context, token, newPassword string) (bool, string) {
	return a.flow(ctx, http.MethodPost, "/api/auth/reset-password", model.ResetPasswordRequest{Token: token, NewPassword: newPassword},
		"Password reset successfully!", "Password reset failed")
}

func (a Auth) ResendVerification(ctx context.Context, email string) (bool, string) {
	return a.flow(ctx, http.MethodPost, "/api/auth/resend-verification", model.EmailRequest{Email: email},
		"Verification email sent successfully!", "Failed to send verification email")
}

// Me asks the API who the session credential belongs to.
func (a Auth) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if _, err := a.api.Do(ctx, http.MethodGet, "/api/user/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a Auth) flow(ctx context.Context, method, path string, body any, okMsg, failMsg string) (bool, string) {
	var resp model.MessageResponse
	if _, err := a.api.Do(ctx, method, path, body, &resp); err != nil {
		log.Debugf("services.auth %s: %s", path, err)
		if msg := httpx.ServerMessage(err); msg != "" {
			return false, msg
		}
		return false, failMsg
	}
	if resp.Message != "" {
		return true, resp.Message
	}
	return true, okMsg
}
