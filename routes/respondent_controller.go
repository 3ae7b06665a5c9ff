package routes

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/surveyer/app"
	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/log"
	"github.com/mbolis/surveyer/model"
	"github.com/mbolis/surveyer/services"
)

func ListActiveSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		surveys, err := services.NewSurveys(s.API()).All(r.Context())
		if err != nil {
			httpx.LogFailure(w, r, "surveys.active", err, "Failed to load surveys")
			return
		}
		render.JSON(w, r, map[string]any{
			"surveys": surveys,
		})
	}
}

// loadPublicSurvey fetches the active survey named by the {id} url param.
func loadPublicSurvey(w http.ResponseWriter, r *http.Request, surveys services.Surveys, code string) (*model.Survey, bool) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return nil, false
	}
	survey, err := surveys.GetPublic(r.Context(), id)
	if err != nil {
		httpx.LogFailure(w, r, code, err, "Survey not found or is not active")
		return nil, false
	}
	survey.Questions = survey.SortedQuestions()
	return survey, true
}

func TakeSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		survey, ok := loadPublicSurvey(w, r, services.NewSurveys(s.API()), "surveys.take")
		if !ok {
			return
		}
		render.JSON(w, r, survey)
	}
}

type submitReply struct {
	Message  string                `json:"message"`
	Response *model.SurveyResponse `json:"response"`
}

func SubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		var req model.SubmitResponseRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		// answers are checked against the survey as the API serves it now
		survey, ok := loadPublicSurvey(w, r, services.NewSurveys(s.API()), "responses.submit.get")
		if !ok {
			return
		}

		resp, err := services.NewResponses(s.API()).Submit(r.Context(), survey, req)
		if err != nil {
			httpx.LogFailure(w, r, "responses.submit", err, "Failed to submit survey. Please try again.")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, submitReply{Message: "Survey submitted successfully!", Response: resp})
	}
}
