package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/mbolis/surveyer/apitest"
	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*apitest.Server, *httpx.Gateway) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	srv.AddUser(model.User{Username: "ann", Email: "ann@example.com", Name: "Ann", Role: model.RoleCreator}, "secret")

	gw := httpx.NewGateway(httpx.GatewayConfig{BaseURL: srv.URL})
	var auth model.AuthResponse
	_, err := gw.Do(context.Background(), http.MethodPost, "/api/auth/login",
		model.LoginRequest{Username: "ann", Password: "secret"}, &auth)
	require.NoError(t, err)
	return srv, gw
}

func str(s string) *string {
	return &s
}

func petQuestion() model.CreateQuestionRequest {
	return model.CreateQuestionRequest{
		QuestionText: "Favorite pet?",
		Type:         model.QuestionSingleChoice,
		Options:      []model.OptionRequest{{OptionText: "Cat"}, {OptionText: "Dog"}},
	}
}

func TestCreateAddPublish(t *testing.T) {
	ctx := context.Background()
	_, gw := setup(t)
	surveys := NewSurveys(gw)

	survey, err := surveys.Create(ctx, model.CreateSurveyRequest{Title: "Pet Survey"})
	require.NoError(t, err)
	assert.False(t, survey.IsActive)
	assert.Equal(t, "ann", survey.CreatedByUsername)

	q := petQuestion()
	q.QuestionOrder = survey.NextQuestionOrder()
	added, err := surveys.AddQuestion(ctx, survey.ID, q)
	require.NoError(t, err)
	assert.Equal(t, 1, added.QuestionOrder)
	require.Len(t, added.Options, 2)
	survey.MergeQuestion(*added)

	published, err := surveys.Publish(ctx, survey)
	require.NoError(t, err)
	assert.True(t, published.IsActive)
	survey.Merge(*published)
	assert.True(t, survey.IsActive)
	assert.Len(t, survey.Questions, 1)

	mine, err := surveys.Mine(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	all, err := surveys.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	n, err := surveys.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPublishEmptySurveyMakesNoCall(t *testing.T) {
	srv, gw := setup(t)
	surveys := NewSurveys(gw)

	before := srv.TotalCalls()
	_, err := surveys.Publish(context.Background(), &model.Survey{ID: 42, Title: "Empty"})
	assert.ErrorIs(t, err, model.ErrNoQuestions)
	assert.Equal(t, "Cannot publish survey without questions", err.Error())
	assert.Equal(t, before, srv.TotalCalls())
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	srv, gw := setup(t)
	surveys := NewSurveys(gw)

	survey, err := surveys.CreateWithQuestions(ctx, model.CreateSurveyRequest{Title: "Pets"},
		[]model.CreateQuestionRequest{petQuestion(), {QuestionText: "Why?", Type: model.QuestionText}})
	require.NoError(t, err)
	require.Len(t, survey.Questions, 2)

	updated, err := surveys.Update(ctx, survey.ID, model.UpdateSurveyRequest{Title: "Pets 2", Description: "Again"})
	require.NoError(t, err)
	assert.Equal(t, "Pets 2", updated.Title)

	textQ := survey.SortedQuestions()[1]
	changed, err := surveys.UpdateQuestion(ctx, textQ.ID, model.CreateQuestionRequest{QuestionText: "Why though?", Type: model.QuestionText})
	require.NoError(t, err)
	assert.Equal(t, "Why though?", changed.QuestionText)
	assert.Equal(t, 2, changed.QuestionOrder)

	require.NoError(t, surveys.DeleteQuestion(ctx, textQ.ID))
	questions, err := surveys.Questions(ctx, survey.ID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "Favorite pet?", questions[0].QuestionText)

	require.NoError(t, surveys.Delete(ctx, survey.ID))
	_, found := srv.Survey(survey.ID)
	assert.False(t, found)

	_, err = surveys.Get(ctx, survey.ID)
	assert.Equal(t, http.StatusNotFound, httpx.StatusOf(err))
}

func TestCreateWithQuestionsPartialFailure(t *testing.T) {
	ctx := context.Background()
	srv, gw := setup(t)
	srv.FailQuestionAt = 2

	questions := []model.CreateQuestionRequest{
		petQuestion(),
		{QuestionText: "Why?", Type: model.QuestionText},
		{QuestionText: "Anything else?", Type: model.QuestionText},
	}
	survey, err := NewSurveys(gw).CreateWithQuestions(ctx, model.CreateSurveyRequest{Title: "Pets"}, questions)

	var partial *PartialCreateError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 2, partial.Index)
	assert.Equal(t, "Failed to add question 2: Question storage failed", err.Error())

	// the survey exists with what was added before the failure
	require.NotNil(t, survey)
	assert.Len(t, survey.Questions, 1)
	stored, found := srv.Survey(survey.ID)
	require.True(t, found)
	assert.Len(t, stored.Questions, 1)
	assert.Zero(t, srv.Calls(http.MethodPost, fmt.Sprintf("/api/surveys/%d/publish", survey.ID)))
}

func TestCreateWithQuestionsValidatesFirst(t *testing.T) {
	srv, gw := setup(t)
	before := srv.TotalCalls()

	_, err := NewSurveys(gw).CreateWithQuestions(context.Background(), model.CreateSurveyRequest{Title: "Pets"},
		[]model.CreateQuestionRequest{{QuestionText: "Pick", Type: model.QuestionSingleChoice, Options: []model.OptionRequest{{OptionText: "Only"}}}})
	assert.True(t, model.IsValidationError(err))
	assert.Equal(t, before, srv.TotalCalls())
}

func TestSubmitResponse(t *testing.T) {
	ctx := context.Background()
	srv, gw := setup(t)
	surveys := NewSurveys(gw)

	survey, err := surveys.CreateWithQuestions(ctx, model.CreateSurveyRequest{Title: "Pets"},
		[]model.CreateQuestionRequest{petQuestion(), {QuestionText: "Why?", Type: model.QuestionText}})
	require.NoError(t, err)
	published, err := surveys.Publish(ctx, survey)
	require.NoError(t, err)
	survey.Merge(*published)

	// a respondent has no session at all
	public := httpx.NewGateway(httpx.GatewayConfig{BaseURL: srv.URL})
	answering, err := NewSurveys(public).GetPublic(ctx, survey.ID)
	require.NoError(t, err)

	choice := answering.SortedQuestions()[0]
	text := answering.SortedQuestions()[1]
	responses := NewResponses(public)

	t.Run("invalid answers are not sent", func(t *testing.T) {
		before := srv.TotalCalls()
		_, err := responses.Submit(ctx, answering, model.SubmitResponseRequest{
			RespondentEmail: "r@example.com",
			Answers:         []model.AnswerRequest{{QuestionID: text.ID, AnswerText: str("because")}},
		})
		assert.EqualError(t, err, "Please select an option for: Favorite pet?")
		assert.Equal(t, before, srv.TotalCalls())
	})

	req := model.SubmitResponseRequest{
		RespondentEmail: "r@example.com",
		Answers: []model.AnswerRequest{
			{QuestionID: choice.ID, SelectedOptionIDs: []int64{choice.Options[1].ID}},
			{QuestionID: text.ID, AnswerText: str("  fluffy  ")},
		},
	}
	resp, err := responses.Submit(ctx, answering, req)
	require.NoError(t, err)
	assert.Equal(t, survey.ID, resp.SurveyID)
	require.Len(t, resp.Answers, 2)

	_, err = responses.Submit(ctx, answering, req)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httpx.StatusOf(err))
	assert.Equal(t, "Response already submitted for this email", httpx.ServerMessage(err))

	owned := NewResponses(gw)
	list, err := owned.BySurvey(ctx, survey.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := owned.Count(ctx, survey.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	one, err := owned.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "r@example.com", one.RespondentEmail)
}

func TestAddOptionAndAnswersByQuestion(t *testing.T) {
	ctx := context.Background()
	srv, gw := setup(t)
	surveys := NewSurveys(gw)

	survey, err := surveys.CreateWithQuestions(ctx, model.CreateSurveyRequest{Title: "Pets"}, []model.CreateQuestionRequest{petQuestion()})
	require.NoError(t, err)
	q := survey.Questions[0]

	opt, err := surveys.AddOption(ctx, q.ID, model.OptionRequest{OptionText: "  Fish "})
	require.NoError(t, err)
	assert.Equal(t, "Fish", opt.OptionText)
	assert.NotZero(t, opt.ID)
	stored, _ := srv.Survey(survey.ID)
	assert.Len(t, stored.Questions[0].Options, 3)

	// the API answers a bare 400 for a question it cannot find
	_, err = surveys.AddOption(ctx, 9999, model.OptionRequest{OptionText: "Fish"})
	assert.Equal(t, http.StatusBadRequest, httpx.StatusOf(err))
	assert.Empty(t, httpx.ServerMessage(err))

	srv.AddResponse(model.SurveyResponse{SurveyID: survey.ID, RespondentEmail: "a@example.com",
		Answers: []model.Answer{{QuestionID: q.ID, SelectedOptionIDs: []int64{opt.ID}}}})
	srv.AddResponse(model.SurveyResponse{SurveyID: survey.ID, RespondentEmail: "b@example.com",
		Answers: []model.Answer{{QuestionID: q.ID, SelectedOptionIDs: []int64{q.Options[0].ID}}}})

	answers, err := NewResponses(gw).AnswersByQuestion(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, []int64{opt.ID}, answers[0].SelectedOptionIDs)
}

func TestAuthFlows(t *testing.T) {
	ctx := context.Background()
	_, gw := setup(t)
	auth := NewAuth(gw)

	ok, msg := auth.VerifyEmail(ctx, "valid-token")
	assert.True(t, ok)
	assert.Equal(t, "Email verified successfully!", msg)

	ok, msg = auth.VerifyEmail(ctx, "expired & odd")
	assert.False(t, ok)
	assert.Equal(t, "Invalid or expired verification token", msg)

	ok, msg = auth.ForgotPassword(ctx, "ann@example.com")
	assert.True(t, ok)
	assert.Equal(t, "Password reset email sent", msg)

	ok, _ = auth.ResetPassword(ctx, "t", "new-secret")
	assert.True(t, ok)

	ok, _ = auth.ResendVerification(ctx, "ann@example.com")
	assert.True(t, ok)

	me, err := auth.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ann", me.Username)
}

func TestAuthFlowFallbackMessage(t *testing.T) {
	gw := httpx.NewGateway(httpx.GatewayConfig{BaseURL: "http://127.0.0.1:1"})
	ok, msg := NewAuth(gw).ForgotPassword(context.Background(), "ann@example.com")
	assert.False(t, ok)
	assert.Equal(t, "Failed to send password reset email", msg)
}
