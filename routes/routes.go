package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/surveyer/app"
	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/model"
	"github.com/mbolis/surveyer/routes/middlewares"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)

	root.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(httpx.Registry, promhttp.HandlerOpts{}))
	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()
	api.Use(
		middlewares.ClientID(app.Sessions, middlewares.CookieOptions{
			Secure: app.SecureCookies,
			MaxAge: app.SessionTTL,
		}),
		middlewares.LoginRedirect,
	)

	api.Get("/session", GetSession(app))
	api.Post("/login", Login(app))
	api.Post("/register", Register(app))
	api.Post("/logout", Logout(app))

	api.Route("/auth", func(r chi.Router) {
		r.Get("/verify-email", VerifyEmail(app))
		r.Post("/forgot-password", ForgotPassword(app))
		r.Post("/reset-password", ResetPassword(app))
		r.Post("/resend-verification", ResendVerification(app))
	})

	api.Route("/creator", func(r chi.Router) {
		r.Use(middlewares.RequireRole(model.RoleCreator))

		r.Get("/dashboard", CreatorDashboard(app))

		// CRUD survey
		r.Get("/surveys", ListMySurveys(app))
		r.Post("/surveys", CreateSurvey(app))
		r.Get(`/surveys/{id:^\d+$}`, GetSurvey(app))
		r.Put(`/surveys/{id:^\d+$}`, UpdateSurvey(app))
		r.Delete(`/surveys/{id:^\d+$}`, DeleteSurvey(app))
		r.Post(`/surveys/{id:^\d+$}/publish`, PublishSurvey(app))

		r.Post(`/surveys/{id:^\d+$}/questions`, AddQuestion(app))
		r.Put(`/surveys/{id:^\d+$}/questions/{qid:^\d+$}`, UpdateQuestion(app))
		r.Delete(`/surveys/{id:^\d+$}/questions/{qid:^\d+$}`, DeleteQuestion(app))
		r.Post(`/surveys/{id:^\d+$}/questions/{qid:^\d+$}/options`, AddOption(app))
		r.Get(`/surveys/{id:^\d+$}/questions/{qid:^\d+$}/answers`, QuestionAnswers(app))

		r.Get(`/surveys/{id:^\d+$}/responses`, SurveyResponses(app))
		r.Get(`/surveys/{id:^\d+$}/responses.csv`, ExportResponses(app))
	})

	api.Route("/respondent", func(r chi.Router) {
		r.Use(middlewares.RequireRole(model.RoleRespondent))

		r.Get("/surveys", ListActiveSurveys(app))
		r.Get(`/surveys/{id:^\d+$}`, TakeSurvey(app))
		r.Post(`/surveys/{id:^\d+$}/responses`, SubmitResponse(app))
	})

	return api
}
