// Package services maps each survey API operation to one HTTP call. The
// functions hold no state: no retry, no caching, no batching.
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/log"
	"github.com/mbolis/surveyer/model"
	"github.com/pkg/errors"
)

type Surveys struct {
	api httpx.API
}

func NewSurveys(api httpx.API) Surveys {
	return Surveys{api}
}

// All lists the active surveys.
func (s Surveys) All(ctx context.Context) ([]model.Survey, error) {
	surveys := []model.Survey{}
	_, err := s.api.Do(ctx, http.MethodGet, "/api/surveys", nil, &surveys)
	return surveys, err
}

// Mine lists the surveys created by the logged in user, drafts included.
func (s Surveys) Mine(ctx context.Context) ([]model.Survey, error) {
	surveys := []model.Survey{}
	_, err := s.api.Do(ctx, http.MethodGet, "/api/surveys/my", nil, &surveys)
	return surveys, err
}

func (s Surveys) Get(ctx context.Context, id int64) (*model.Survey, error) {
	var survey model.Survey
	if _, err := s.api.Do(ctx, http.MethodGet, fmt.Sprintf("/api/surveys/%d", id), nil, &survey); err != nil {
		return nil, err
	}
	return &survey, nil
}

// GetPublic fetches an active survey for answering.
func (s Surveys) GetPublic(ctx context.Context, id int64) (*model.Survey, error) {
	var survey model.Survey
	if _, err := s.api.Do(ctx, http.MethodGet, fmt.Sprintf("/api/surveys/%d/public", id), nil, &survey); err != nil {
		return nil, err
	}
	return &survey, nil
}

func (s Surveys) Count(ctx context.Context) (int64, error) {
	var n int64
	_, err := s.api.Do(ctx, http.MethodGet, "/api/surveys/count", nil, &n)
	return n, err
}

func (s Surveys) Create(ctx context.Context, req model.CreateSurveyRequest) (*model.Survey, error) {
	var survey model.Survey
	if _, err := s.api.Do(ctx, http.MethodPost, "/api/surveys", req, &survey); err != nil {
		return nil, err
	}
	return &survey, nil
}

func (s Surveys) Update(ctx context.Context, id int64, req model.UpdateSurveyRequest) (*model.Survey, error) {
	var survey model.Survey
	if _, err := s.api.Do(ctx, http.MethodPut, fmt.Sprintf("/api/surveys/%d", id), req, &survey); err != nil {
		return nil, err
	}
	return &survey, nil
}

func (s Surveys) Delete(ctx context.Context, id int64) error {
	_, err := s.api.Do(ctx, http.MethodDelete, fmt.Sprintf("/api/surveys/%d", id), nil, nil)
	return err
}

// Publish makes survey answerable. An empty or already active survey is
// refused before any call.
func (s Surveys) Publish(ctx context.Context, survey *model.Survey) (*model.Survey, error) {
	if err := survey.CanPublish(); err != nil {
		return nil, err
	}
	var published model.Survey
	if _, err := s.api.Do(ctx, http.MethodPost, fmt.Sprintf("/api/surveys/%d/publish", survey.ID), nil, &published); err != nil {
		return nil, err
	}
	return &published, nil
}

func (s Surveys) Questions(ctx context.Context, surveyID int64) ([]model.Question, error) {
	questions := []model.Question{}
	_, err := s.api.Do(ctx, http.MethodGet, fmt.Sprintf("/api/questions/survey/%d", surveyID), nil, &questions)
	return questions, err
}

func (s Surveys) AddQuestion(ctx context.Context, surveyID int64, req model.CreateQuestionRequest) (*model.Question, error) {
	var q model.Question
	req = model.NormalizeQuestion(req)
	if _, err := s.api.Do(ctx, http.MethodPost, fmt.Sprintf("/api/questions/survey/%d", surveyID), req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s Surveys) UpdateQuestion(ctx context.Context, questionID int64, req model.CreateQuestionRequest) (*model.Question, error) {
	var q model.Question
	req = model.NormalizeQuestion(req)
	if _, err := s.api.Do(ctx, http.MethodPut, fmt.Sprintf("/api/questions/%d", questionID), req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s Surveys) DeleteQuestion(ctx context.Context, questionID int64) error {
	_, err := s.api.Do(ctx, http.MethodDelete, fmt.Sprintf("/api/questions/%d", questionID), nil, nil)
	return err
}

// AddOption appends one option to an existing choice question.
func (s Surveys) AddOption(ctx context.Context, questionID int64, req model.OptionRequest) (*model.QuestionOption, error) {
	var opt model.QuestionOption
	req.OptionText = strings.TrimSpace(req.OptionText)
	if _, err := s.api.Do(ctx, http.MethodPost, fmt.Sprintf("/api/questions/%d/options", questionID), req, &opt); err != nil {
		return nil, err
	}
	return &opt, nil
}

// PartialCreateError reports a survey that was created but whose questions
// were only partly added. Nothing is rolled back.
type PartialCreateError struct {
	Survey *model.Survey
	// Index is the 1-based position of the question that failed.
	Index int
	Err   error
}

func (e *PartialCreateError) Error() string {
	detail := httpx.ServerMessage(e.Err)
	if detail == "" {
		detail = "Unknown error"
	}
	return fmt.Sprintf("Failed to add question %d: %s", e.Index, detail)
}

func (e *PartialCreateError) Unwrap() error {
	return e.Err
}

// CreateWithQuestions validates the whole form, creates the survey, then adds
// the questions one at a time in order, each with order index+1.
func (s Surveys) CreateWithQuestions(ctx context.Context, req model.CreateSurveyRequest, questions []model.CreateQuestionRequest) (*model.Survey, error) {
	if err := model.ValidateNewSurvey(req, questions); err != nil {
		return nil, err
	}

	survey, err := s.Create(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "create survey")
	}

	for i, q := range questions {
		q.QuestionOrder = i + 1
		added, err := s.AddQuestion(ctx, survey.ID, q)
		if err != nil {
			log.WithField("survey", survey.ID).Warnf("services.create_with_questions: question %d: %s", i+1, err)
			return survey, &PartialCreateError{Survey: survey, Index: i + 1, Err: err}
		}
		survey.MergeQuestion(*added)
	}
	return survey, nil
}
