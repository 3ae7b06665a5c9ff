// Package apitest runs an in-memory stand-in for the survey API, for tests
// that need the real gateway and a backend with state.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gofrs/uuid"
	"github.com/mbolis/surveyer/model"
)

const cookieName = "token"

type account struct {
	user     model.User
	password string
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	accounts  map[string]*account
	tokens    map[string]string
	surveys   map[int64]*model.Survey
	responses map[int64][]model.SurveyResponse
	nextID    int64
	calls     map[string]int

	// FailQuestionAt makes the n-th question creation answer 500.
	FailQuestionAt int
	questionAdds   int

	// LoginStatus, when set, is the bare status every login answers with.
	LoginStatus int
}

func NewServer() *Server {
	s := &Server{
		accounts:  map[string]*account{},
		tokens:    map[string]string{},
		surveys:   map[int64]*model.Survey{},
		responses: map[int64][]model.SurveyResponse{},
		calls:     map[string]int{},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/register", s.register)
		r.Post("/logout", s.logout)
		r.Get("/verify-email", s.verifyEmail)
		r.Post("/forgot-password", s.message("Password reset email sent"))
		r.Post("/reset-password", s.message("Password reset successfully"))
		r.Post("/resend-verification", s.message("Verification email sent"))
	})
	r.With(s.authenticated).Get("/api/user/me", s.me)

	r.Get("/api/surveys", s.activeSurveys)
	r.Get(`/api/surveys/{id:\d+}/public`, s.publicSurvey)
	r.Post("/api/responses/submit", s.submit)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticated)

		r.Get("/api/surveys/my", s.mySurveys)
		r.Get("/api/surveys/count", s.countSurveys)
		r.Post("/api/surveys", s.createSurvey)
		r.Get(`/api/surveys/{id:\d+}`, s.getSurvey)
		r.Put(`/api/surveys/{id:\d+}`, s.updateSurvey)
		r.Delete(`/api/surveys/{id:\d+}`, s.deleteSurvey)
		r.Post(`/api/surveys/{id:\d+}/publish`, s.publish)

		r.Get(`/api/questions/survey/{id:\d+}`, s.questions)
		r.Post(`/api/questions/survey/{id:\d+}`, s.addQuestion)
		r.Put(`/api/questions/{id:\d+}`, s.updateQuestion)
		r.Delete(`/api/questions/{id:\d+}`, s.deleteQuestion)
		r.Post(`/api/questions/{id:\d+}/options`, s.addOption)

		r.Get(`/api/responses/survey/{id:\d+}`, s.surveyResponses)
		r.Get(`/api/responses/survey/{id:\d+}/count`, s.countResponses)
		r.Get(`/api/responses/question/{id:\d+}/answers`, s.questionAnswers)
		r.Get(`/api/responses/{id:\d+}`, s.getResponse)
	})
	return r
}

// AddUser registers an account directly.
func (s *Server) AddUser(u model.User, password string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	u.CreatedAt = model.NewTime(time.Now())
	s.accounts[u.Username] = &account{user: u, password: password}
	return u
}

// AddSurvey stores a survey owned by username as is.
func (s *Server) AddSurvey(username string, survey model.Survey) model.Survey {
	s.mu.Lock()
	defer s.mu.Unlock()
	if survey.ID == 0 {
		survey.ID = s.id()
	}
	survey.CreatedByUsername = username
	survey.CreatedAt = model.NewTime(time.Now())
	if survey.Questions == nil {
		survey.Questions = []model.Question{}
	}
	s.surveys[survey.ID] = &survey
	return survey
}

// AddResponse stores a response as is.
func (s *Server) AddResponse(resp model.SurveyResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp.ID == 0 {
		resp.ID = s.id()
	}
	s.responses[resp.SurveyID] = append(s.responses[resp.SurveyID], resp)
}

// Survey returns the stored copy of a survey.
func (s *Server) Survey(id int64) (model.Survey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	survey, ok := s.surveys[id]
	if !ok {
		return model.Survey{}, false
	}
	return *survey, true
}

// Calls counts requests by "METHOD /path" (path without query).
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// TotalCalls counts every request received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// RevokeAll drops every session credential, as a backend restart would.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	s.tokens = map[string]string{}
	s.mu.Unlock()
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(cookieName)
		if err != nil {
			fail(w, r, http.StatusUnauthorized, "")
			return
		}
		s.mu.Lock()
		username, ok := s.tokens[c.Value]
		s.mu.Unlock()
		if !ok {
			fail(w, r, http.StatusUnauthorized, "")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r, username)))
	})
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	if msg == "" {
		render.JSON(w, r, map[string]any{"status": status})
		return
	}
	render.JSON(w, r, map[string]any{"message": msg})
}

func urlID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	if s.LoginStatus != 0 {
		status := s.LoginStatus
		s.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	acc, ok := s.accounts[req.Username]
	if !ok || acc.password != req.Password {
		s.mu.Unlock()
		fail(w, r, http.StatusUnauthorized, "")
		return
	}
	token := uuid.Must(uuid.NewV4()).String()
	s.tokens[token] = req.Username
	user := acc.user
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: token, Path: "/", HttpOnly: true})
	render.JSON(w, r, model.AuthResponse{Message: "Login successful", User: &user})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[req.Username]; exists {
		s.mu.Unlock()
		fail(w, r, http.StatusConflict, "Username already exists")
		return
	}
	s.accounts[req.Username] = &account{
		user: model.User{
			ID:        s.id(),
			Username:  req.Username,
			Email:     req.Email,
			Name:      req.Name,
			Role:      req.Role,
			CreatedAt: model.NewTime(time.Now()),
		},
		password: req.Password,
	}
	s.mu.Unlock()

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, model.MessageResponse{Message: "User registered successfully. Please check your email."})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(cookieName); err == nil {
		s.mu.Lock()
		delete(s.tokens, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
	render.JSON(w, r, model.MessageResponse{Message: "Logout successful"})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != "valid-token" {
		fail(w, r, http.StatusBadRequest, "Invalid or expired verification token")
		return
	}
	render.JSON(w, r, model.MessageResponse{Message: "Email verified successfully!"})
}

func (s *Server) message(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, model.MessageResponse{Message: msg})
	}
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	acc := s.accounts[userFrom(r)]
	s.mu.Unlock()
	render.JSON(w, r, acc.user)
}

func (s *Server) activeSurveys(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.filter(func(sv *model.Survey) bool { return sv.IsActive }))
}

func (s *Server) mySurveys(w http.ResponseWriter, r *http.Request) {
	username := userFrom(r)
	render.JSON(w, r, s.filter(func(sv *model.Survey) bool { return sv.CreatedByUsername == username }))
}

func (s *Server) countSurveys(w http.ResponseWriter, r *http.Request) {
	username := userFrom(r)
	render.JSON(w, r, len(s.filter(func(sv *model.Survey) bool { return sv.CreatedByUsername == username })))
}

func (s *Server) filter(keep func(*model.Survey) bool) []model.Survey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Survey{}
	for _, sv := range s.surveys {
		if keep(sv) {
			out = append(out, *sv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// owned runs fn on the survey when the caller owns it.
func (s *Server) owned(w http.ResponseWriter, r *http.Request, id int64, fn func(sv *model.Survey)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.surveys[id]
	if !ok {
		fail(w, r, http.StatusNotFound, "Survey not found")
		return
	}
	if sv.CreatedByUsername != userFrom(r) {
		fail(w, r, http.StatusForbidden, "Unauthorized to access this survey")
		return
	}
	fn(sv)
}

func (s *Server) getSurvey(w http.ResponseWriter, r *http.Request) {
	s.owned(w, r, urlID(r), func(sv *model.Survey) {
		render.JSON(w, r, sv)
	})
}

func (s *Server) publicSurvey(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sv, ok := s.surveys[urlID(r)]
	var out model.Survey
	if ok {
		out = *sv
	}
	s.mu.Unlock()
	if !ok || !out.IsActive {
		fail(w, r, http.StatusNotFound, "Survey not found or inactive")
		return
	}
	render.JSON(w, r, out)
}

func (s *Server) createSurvey(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSurveyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.Title == "" {
		fail(w, r, http.StatusBadRequest, "Title is required")
		return
	}

	s.mu.Lock()
	role := s.accounts[userFrom(r)].user.Role
	s.mu.Unlock()
	if role != model.RoleCreator {
		fail(w, r, http.StatusForbidden, "Only creators can create surveys")
		return
	}

	sv := s.AddSurvey(userFrom(r), model.Survey{Title: req.Title, Description: req.Description})
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sv)
}

func (s *Server) updateSurvey(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateSurveyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "bad request")
		return
	}
	s.owned(w, r, urlID(r), func(sv *model.Survey) {
		sv.Title = req.Title
		sv.Description = req.Description
		render.JSON(w, r, sv)
	})
}

func (s *Server) deleteSurvey(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	s.owned(w, r, id, func(sv *model.Survey) {
		delete(s.surveys, id)
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	s.owned(w, r, urlID(r), func(sv *model.Survey) {
		if len(sv.Questions) == 0 {
			fail(w, r, http.StatusBadRequest, "Cannot publish survey without questions")
			return
		}
		sv.IsActive = true
		render.JSON(w, r, sv)
	})
}

func (s *Server) questions(w http.ResponseWriter, r *http.Request) {
	s.owned(w, r, urlID(r), func(sv *model.Survey) {
		render.JSON(w, r, sv.SortedQuestions())
	})
}

func buildQuestion(s *Server, req model.CreateQuestionRequest) model.Question {
	q := model.Question{
		QuestionText:  req.QuestionText,
		Type:          req.Type,
		QuestionOrder: req.QuestionOrder,
		Options:       []model.QuestionOption{},
	}
	for _, opt := range req.Options {
		q.Options = append(q.Options, model.QuestionOption{ID: s.id(), OptionText: opt.OptionText})
	}
	return q
}

func (s *Server) addQuestion(w http.ResponseWriter, r *http.Request) {
	var req model.CreateQuestionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "bad request")
		return
	}

	s.owned(w, r, urlID(r), func(sv *model.Survey) {
		s.questionAdds++
		if s.FailQuestionAt > 0 && s.questionAdds == s.FailQuestionAt {
			fail(w, r, http.StatusInternalServerError, "Question storage failed")
			return
		}
		q := buildQuestion(s, req)
		q.ID = s.id()
		if q.QuestionOrder == 0 {
			q.QuestionOrder = sv.NextQuestionOrder()
		}
		sv.Questions = append(sv.Questions, q)
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, q)
	})
}

// findQuestion locates a question and its survey; the lock must be held.
func (s *Server) findQuestion(id int64) (*model.Survey, int) {
	for _, sv := range s.surveys {
		for i := range sv.Questions {
			if sv.Questions[i].ID == id {
				return sv, i
			}
		}
	}
	return nil, -1
}

func (s *Server) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var req model.CreateQuestionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sv, i := s.findQuestion(urlID(r))
	if sv == nil || sv.CreatedByUsername != userFrom(r) {
		fail(w, r, http.StatusNotFound, "Question not found")
		return
	}
	q := buildQuestion(s, req)
	q.ID = sv.Questions[i].ID
	if q.QuestionOrder == 0 {
		q.QuestionOrder = sv.Questions[i].QuestionOrder
	}
	sv.Questions[i] = q
	render.JSON(w, r, q)
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, i := s.findQuestion(urlID(r))
	if sv == nil || sv.CreatedByUsername != userFrom(r) {
		fail(w, r, http.StatusNotFound, "Question not found")
		return
	}
	sv.Questions = append(sv.Questions[:i], sv.Questions[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

// addOption answers a bare 400 on any failure, as the real API does.
func (s *Server) addOption(w http.ResponseWriter, r *http.Request) {
	var req model.OptionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sv, i := s.findQuestion(urlID(r))
	if sv == nil || sv.CreatedByUsername != userFrom(r) {
		fail(w, r, http.StatusBadRequest, "")
		return
	}
	opt := model.QuestionOption{ID: s.id(), OptionText: req.OptionText}
	sv.Questions[i].Options = append(sv.Questions[i].Options, opt)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, opt)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitResponseRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.surveys[req.SurveyID]
	if !ok || !sv.IsActive {
		fail(w, r, http.StatusBadRequest, "Survey not found or inactive")
		return
	}
	for _, prev := range s.responses[req.SurveyID] {
		if prev.RespondentEmail == req.RespondentEmail {
			fail(w, r, http.StatusConflict, "Response already submitted for this email")
			return
		}
	}

	resp := model.SurveyResponse{
		ID:              s.id(),
		SurveyID:        req.SurveyID,
		RespondentEmail: req.RespondentEmail,
		SubmittedAt:     model.NewTime(time.Now()),
		Answers:         []model.Answer{},
	}
	for _, a := range req.Answers {
		resp.Answers = append(resp.Answers, model.Answer{
			ID:                s.id(),
			QuestionID:        a.QuestionID,
			AnswerText:        a.AnswerText,
			SelectedOptionIDs: a.SelectedOptionIDs,
		})
	}
	s.responses[req.SurveyID] = append(s.responses[req.SurveyID], resp)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

func (s *Server) surveyResponses(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	s.owned(w, r, id, func(sv *model.Survey) {
		out := append([]model.SurveyResponse{}, s.responses[id]...)
		render.JSON(w, r, out)
	})
}

func (s *Server) countResponses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.responses[urlID(r)])
	s.mu.Unlock()
	render.JSON(w, r, n)
}

func (s *Server) questionAnswers(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, _ := s.findQuestion(id)
	if sv == nil || sv.CreatedByUsername != userFrom(r) {
		fail(w, r, http.StatusBadRequest, "")
		return
	}
	out := []model.Answer{}
	for _, resp := range s.responses[sv.ID] {
		for _, a := range resp.Answers {
			if a.QuestionID == id {
				out = append(out, a)
			}
		}
	}
	render.JSON(w, r, out)
}

func (s *Server) getResponse(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for surveyID, list := range s.responses {
		for _, resp := range list {
			if resp.ID != id {
				continue
			}
			if s.surveys[surveyID] == nil || s.surveys[surveyID].CreatedByUsername != userFrom(r) {
				fail(w, r, http.StatusForbidden, "Unauthorized to view this response")
				return
			}
			render.JSON(w, r, resp)
			return
		}
	}
	fail(w, r, http.StatusNotFound, fmt.Sprintf("Response %d not found", id))
}
