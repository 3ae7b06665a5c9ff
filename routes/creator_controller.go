package routes

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/surveyer/app"
	"github.com/mbolis/surveyer/export"
	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/log"
	"github.com/mbolis/surveyer/model"
	"github.com/mbolis/surveyer/services"
	"github.com/pkg/errors"
)

func urlID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param."+param)
		return 0, false
	}
	return id, true
}

// confirmed guards destructive operations: they need ?confirm=true.
func confirmed(w http.ResponseWriter, r *http.Request, code string) bool {
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); ok {
		return true
	}
	httpx.LogStatusMsg(w, r, http.StatusPreconditionRequired, log.DebugLevel, code,
		"This action cannot be undone: repeat it with confirm=true")
	return false
}

// loadSurvey fetches the survey named by the {id} url param.
func loadSurvey(w http.ResponseWriter, r *http.Request, surveys services.Surveys, code string) (*model.Survey, bool) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return nil, false
	}
	survey, err := surveys.Get(r.Context(), id)
	if err != nil {
		httpx.LogFailure(w, r, code, err, "Survey not found")
		return nil, false
	}
	survey.Questions = survey.SortedQuestions()
	return survey, true
}

func CreatorDashboard(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		mine, err := services.NewSurveys(s.API()).Mine(r.Context())
		if err != nil {
			httpx.LogFailure(w, r, "dashboard.surveys", err, "Failed to load surveys")
			return
		}

		// a survey whose count cannot be fetched is left out of the total
		responses := services.NewResponses(s.API())
		var total int64
		for _, survey := range mine {
			n, err := responses.Count(r.Context(), survey.ID)
			if err != nil {
				log.WithField("survey", survey.ID).Debugf("dashboard.response_count: %s", err)
				continue
			}
			total += n
		}

		render.JSON(w, r, map[string]any{
			"surveys": mine,
			"stats":   model.DashboardStats(mine, total),
		})
	}
}

func ListMySurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		mine, err := services.NewSurveys(s.API()).Mine(r.Context())
		if err != nil {
			httpx.LogFailure(w, r, "surveys.mine", err, "Failed to load surveys")
			return
		}
		render.JSON(w, r, map[string]any{
			"surveys": mine,
		})
	}
}

type createSurveyForm struct {
	model.CreateSurveyRequest
	Questions []model.CreateQuestionRequest `json:"questions"`
}

func CreateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		var form createSurveyForm
		if err := render.DecodeJSON(r.Body, &form); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		survey, err := services.NewSurveys(s.API()).CreateWithQuestions(r.Context(), form.CreateSurveyRequest, form.Questions)
		var partial *services.PartialCreateError
		if errors.As(err, &partial) {
			// the survey exists: hand it back so the editor can finish it
			log.WithField("survey", partial.Survey.ID).Warnf("surveys.create.partial: %s", err)
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]any{
				"error":  err.Error(),
				"survey": partial.Survey,
			})
			return
		}
		if err != nil {
			httpx.LogFailure(w, r, "surveys.create", err, "Failed to create survey. Please try again.")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, survey)
	}
}

func GetSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		survey, ok := loadSurvey(w, r, services.NewSurveys(s.API()), "surveys.get")
		if !ok {
			return
		}
		render.JSON(w, r, survey)
	}
}

func UpdateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		var req model.UpdateSurveyRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err := model.ValidateSurveyUpdate(req); err != nil {
			httpx.LogFailure(w, r, "surveys.update", err, "")
			return
		}

		surveys := services.NewSurveys(s.API())
		survey, ok := loadSurvey(w, r, surveys, "surveys.update.get")
		if !ok {
			return
		}

		updated, err := surveys.Update(r.Context(), survey.ID, req)
		if err != nil {
			httpx.LogFailure(w, r, "surveys.update", err, "Failed to update survey")
			return
		}
		survey.Merge(*updated)
		render.JSON(w, r, survey)
	}
}

func DeleteSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		id, ok := urlID(w, r, "id")
		if !ok || !confirmed(w, r, "surveys.delete.confirm") {
			return
		}

		if err := services.NewSurveys(s.API()).Delete(r.Context(), id); err != nil {
			httpx.LogFailure(w, r, "surveys.delete", err, "Failed to delete survey")
			return
		}
		render.JSON(w, r, model.MessageResponse{Message: "Survey deleted successfully"})
	}
}

func PublishSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		surveys := services.NewSurveys(s.API())
		survey, ok := loadSurvey(w, r, surveys, "surveys.publish.get")
		if !ok {
			return
		}

		published, err := surveys.Publish(r.Context(), survey)
		if err != nil {
			httpx.LogFailure(w, r, "surveys.publish", err, "Failed to publish survey")
			return
		}
		survey.Merge(*published)
		render.JSON(w, r, survey)
	}
}

func AddQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		var req model.CreateQuestionRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err := model.ValidateQuestion(req); err != nil {
			httpx.LogFailure(w, r, "questions.add", err, "")
			return
		}

		surveys := services.NewSurveys(s.API())
		survey, ok := loadSurvey(w, r, surveys, "questions.add.get")
		if !ok {
			return
		}

		req.QuestionOrder = survey.NextQuestionOrder()
		added, err := surveys.AddQuestion(r.Context(), survey.ID, req)
		if err != nil {
			httpx.LogFailure(w, r, "questions.add", err, "Failed to add question")
			return
		}
		survey.MergeQuestion(*added)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, survey)
	}
}

// surveyQuestion loads the survey and checks the {qid} question belongs to it.
func surveyQuestion(w http.ResponseWriter, r *http.Request, surveys services.Surveys, code string) (*model.Survey, *model.Question, bool) {
	qid, ok := urlID(w, r, "qid")
	if !ok {
		return nil, nil, false
	}
	survey, ok := loadSurvey(w, r, surveys, code+".get")
	if !ok {
		return nil, nil, false
	}
	q, found := survey.FindQuestion(qid)
	if !found {
		httpx.LogNotFound(w, r, code, qid)
		return nil, nil, false
	}
	return survey, q, true
}

func UpdateQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		var req model.CreateQuestionRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err := model.ValidateQuestion(req); err != nil {
			httpx.LogFailure(w, r, "questions.update", err, "")
			return
		}

		surveys := services.NewSurveys(s.API())
		survey, q, ok := surveyQuestion(w, r, surveys, "questions.update")
		if !ok {
			return
		}

		req.QuestionOrder = q.QuestionOrder
		updated, err := surveys.UpdateQuestion(r.Context(), q.ID, req)
		if err != nil {
			httpx.LogFailure(w, r, "questions.update", err, "Failed to update question")
			return
		}
		survey.MergeQuestion(*updated)
		render.JSON(w, r, survey)
	}
}

func DeleteQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}
		if !confirmed(w, r, "questions.delete.confirm") {
			return
		}

		surveys := services.NewSurveys(s.API())
		survey, q, ok := surveyQuestion(w, r, surveys, "questions.delete")
		if !ok {
			return
		}

		if err := surveys.DeleteQuestion(r.Context(), q.ID); err != nil {
			httpx.LogFailure(w, r, "questions.delete", err, "Failed to delete question")
			return
		}
		survey.RemoveQuestion(q.ID)
		render.JSON(w, r, survey)
	}
}

func AddOption(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		var req model.OptionRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		surveys := services.NewSurveys(s.API())
		survey, q, ok := surveyQuestion(w, r, surveys, "options.add")
		if !ok {
			return
		}
		if err := model.ValidateOption(q, req); err != nil {
			httpx.LogFailure(w, r, "options.add", err, "")
			return
		}

		opt, err := surveys.AddOption(r.Context(), q.ID, req)
		if err != nil {
			httpx.LogFailure(w, r, "options.add", err, "Failed to add option")
			return
		}
		q.Options = append(q.Options, *opt)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, survey)
	}
}

func QuestionAnswers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := current(w, r)
		if !ok {
			return
		}

		_, q, ok := surveyQuestion(w, r, services.NewSurveys(s.API()), "answers.list")
		if !ok {
			return
		}
		answers, err := services.NewResponses(s.API()).AnswersByQuestion(r.Context(), q.ID)
		if err != nil {
			httpx.LogFailure(w, r, "answers.list", err, "Failed to load answers")
			return
		}
		render.JSON(w, r, map[string]any{
			"question": q,
			"answers":  answers,
			"stats":    model.AnswerStats(*q, answers),
		})
	}
}

// surveyResponses loads the survey and all of its responses.
func surveyResponses(w http.ResponseWriter, r *http.Request, code string) (*model.Survey, []model.SurveyResponse, bool) {
	s, ok := current(w, r)
	if !ok {
		return nil, nil, false
	}

	survey, ok := loadSurvey(w, r, services.NewSurveys(s.API()), code+".get")
	if !ok {
		return nil, nil, false
	}
	responses, err := services.NewResponses(s.API()).BySurvey(r.Context(), survey.ID)
	if err != nil {
		httpx.LogFailure(w, r, code, err, "Failed to load survey data")
		return nil, nil, false
	}
	return survey, responses, true
}

func SurveyResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey, responses, ok := surveyResponses(w, r, "responses.list")
		if !ok {
			return
		}
		render.JSON(w, r, map[string]any{
			"survey":    survey,
			"responses": responses,
			"stats":     model.ResponseStats(survey, responses),
		})
	}
}

func ExportResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey, responses, ok := surveyResponses(w, r, "responses.export")
		if !ok {
			return
		}

		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": export.FileName(survey)})
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", disposition)
		if err := export.WriteCSV(w, survey, responses); err != nil {
			log.WithField("survey", survey.ID).Warnf("responses.export.write: %s", err)
		}
	}
}
