package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/model"
)

type Responses struct {
	api httpx.API
}

func NewResponses(api httpx.API) Responses {
	return Responses{api}
}

// Submit validates the answers against survey and posts them. Nothing is
// sent when validation fails.
func (r Responses) Submit(ctx context.Context, survey *model.Survey, req model.SubmitResponseRequest) (*model.SurveyResponse, error) {
	req.SurveyID = survey.ID
	if err := model.ValidateResponse(survey, req); err != nil {
		return nil, err
	}
	req.Answers = model.NormalizeAnswers(survey, req.Answers)

	var resp model.SurveyResponse
	if _, err := r.api.Do(ctx, http.MethodPost, "/api/responses/submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r Responses) BySurvey(ctx context.Context, surveyID int64) ([]model.SurveyResponse, error) {
	responses := []model.SurveyResponse{}
	_, err := r.api.Do(ctx, http.MethodGet, fmt.Sprintf("/api/responses/survey/%d", surveyID), nil, &responses)
	return responses, err
}

func (r Responses) Count(ctx context.Context, surveyID int64) (int64, error) {
	var n int64
	_, err := r.api.Do(ctx, http.MethodGet, fmt.Sprintf("/api/responses/survey/%d/count", surveyID), nil, &n)
	return n, err
}

func (r Responses) Get(ctx context.Context, id int64) (*model.SurveyResponse, error) {
	var resp model.SurveyResponse
	if _, err := r.api.Do(ctx, http.MethodGet, fmt.Sprintf("/api/responses/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnswersByQuestion lists every answer given to one question, across responses.
func (r Responses) AnswersByQuestion(ctx context.Context, questionID int64) ([]model.Answer, error) {
	answers := []model.Answer{}
	_, err := r.api.Do(ctx, http.MethodGet, fmt.Sprintf("/api/responses/question/%d/answers", questionID), nil, &answers)
	return answers, err
}
