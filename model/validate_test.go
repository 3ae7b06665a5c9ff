package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func petSurvey() *Survey {
	return &Survey{
		ID:    7,
		Title: "Pet Survey",
		Questions: []Question{
			{ID: 12, QuestionText: "Why?", Type: QuestionText, QuestionOrder: 2},
			{ID: 11, QuestionText: "Favorite pet?", Type: QuestionSingleChoice, QuestionOrder: 1, Options: []QuestionOption{
				{ID: 1, OptionText: "Cat"},
				{ID: 2, OptionText: "Dog"},
			}},
			{ID: 13, QuestionText: "Which toys?", Type: QuestionMultipleChoice, QuestionOrder: 3, Options: []QuestionOption{
				{ID: 3, OptionText: "Ball"},
				{ID: 4, OptionText: "Rope"},
			}},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	s := petSurvey()
	complete := []AnswerRequest{
		{QuestionID: 11, SelectedOptionIDs: []int64{1}},
		{QuestionID: 12, AnswerText: str("they purr")},
		{QuestionID: 13, SelectedOptionIDs: []int64{3, 4}},
	}

	t.Run("complete", func(t *testing.T) {
		err := ValidateResponse(s, SubmitResponseRequest{SurveyID: 7, RespondentEmail: "a@b.c", Answers: complete})
		assert.NoError(t, err)
	})

	t.Run("missing email", func(t *testing.T) {
		err := ValidateResponse(s, SubmitResponseRequest{SurveyID: 7, RespondentEmail: "  ", Answers: complete})
		assert.EqualError(t, err, "Please enter your email address")
		assert.True(t, IsValidationError(err))
	})

	t.Run("email format is not checked", func(t *testing.T) {
		err := ValidateResponse(s, SubmitResponseRequest{RespondentEmail: "not-an-email", Answers: complete})
		assert.NoError(t, err)
	})

	t.Run("blank text answer", func(t *testing.T) {
		answers := []AnswerRequest{complete[0], {QuestionID: 12, AnswerText: str("   ")}, complete[2]}
		err := ValidateResponse(s, SubmitResponseRequest{RespondentEmail: "a@b.c", Answers: answers})
		assert.EqualError(t, err, "Please answer: Why?")
	})

	t.Run("reports first failing question in order", func(t *testing.T) {
		err := ValidateResponse(s, SubmitResponseRequest{RespondentEmail: "a@b.c"})
		assert.EqualError(t, err, "Please select an option for: Favorite pet?")
	})

	t.Run("missing choice", func(t *testing.T) {
		answers := []AnswerRequest{complete[0], complete[1], {QuestionID: 13}}
		err := ValidateResponse(s, SubmitResponseRequest{RespondentEmail: "a@b.c", Answers: answers})
		assert.EqualError(t, err, "Please select an option for: Which toys?")
	})

	t.Run("option ids are not checked", func(t *testing.T) {
		answers := []AnswerRequest{{QuestionID: 11, SelectedOptionIDs: []int64{99}}, complete[1], complete[2]}
		err := ValidateResponse(s, SubmitResponseRequest{RespondentEmail: "a@b.c", Answers: answers})
		assert.NoError(t, err)
	})
}

func TestNormalizeAnswers(t *testing.T) {
	s := petSurvey()
	out := NormalizeAnswers(s, []AnswerRequest{
		{QuestionID: 11, AnswerText: str("x"), SelectedOptionIDs: []int64{2, 1}},
		{QuestionID: 12, AnswerText: str("ok"), SelectedOptionIDs: []int64{3}},
		{QuestionID: 13, AnswerText: str(""), SelectedOptionIDs: []int64{}},
		{QuestionID: 99, AnswerText: str("kept")},
	})
	require.Len(t, out, 4)

	assert.Nil(t, out[0].AnswerText)
	assert.Equal(t, []int64{2}, out[0].SelectedOptionIDs)
	assert.Equal(t, "ok", *out[1].AnswerText)
	assert.Nil(t, out[1].SelectedOptionIDs)
	assert.Nil(t, out[2].AnswerText)
	assert.Nil(t, out[2].SelectedOptionIDs)
	assert.Equal(t, "kept", *out[3].AnswerText)
}

func TestValidateNewSurvey(t *testing.T) {
	choice := func(opts ...string) CreateQuestionRequest {
		q := CreateQuestionRequest{QuestionText: "Favorite pet?", Type: QuestionSingleChoice}
		for _, o := range opts {
			q.Options = append(q.Options, OptionRequest{OptionText: o})
		}
		return q
	}

	tests := []struct {
		name      string
		title     string
		questions []CreateQuestionRequest
		want      string
	}{
		{"blank title", " ", []CreateQuestionRequest{choice("Cat", "Dog")}, "Survey title is required"},
		{"no questions", "Pet Survey", nil, "At least one question is required"},
		{"blank question", "Pet Survey", []CreateQuestionRequest{choice("Cat", "Dog"), {Type: QuestionText}}, "Question 2 text is required"},
		{"too few options", "Pet Survey", []CreateQuestionRequest{choice("Cat")}, "Question 1 must have at least 2 options"},
		{"blank option", "Pet Survey", []CreateQuestionRequest{choice("Cat", " ")}, "Question 1, Option 2 text is required"},
		{"text needs no options", "Pet Survey", []CreateQuestionRequest{{QuestionText: "Why?", Type: QuestionText}}, ""},
		{"valid", "Pet Survey", []CreateQuestionRequest{choice("Cat", "Dog")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNewSurvey(CreateSurveyRequest{Title: tt.title}, tt.questions)
			if tt.want == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.want)
			}
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	assert.EqualError(t, ValidateQuestion(CreateQuestionRequest{Type: QuestionText}), "Question text is required")
	assert.EqualError(t, ValidateQuestion(CreateQuestionRequest{QuestionText: "x", Type: "RATING"}), `Unknown question type "RATING"`)
	assert.EqualError(t, ValidateQuestion(CreateQuestionRequest{
		QuestionText: "x",
		Type:         QuestionMultipleChoice,
		Options:      []OptionRequest{{OptionText: "a"}},
	}), "Question must have at least 2 options")
	assert.NoError(t, ValidateQuestion(CreateQuestionRequest{QuestionText: "x", Type: QuestionText}))
}

func TestValidateSurveyUpdate(t *testing.T) {
	assert.EqualError(t, ValidateSurveyUpdate(UpdateSurveyRequest{Title: "  "}), "Survey title is required")
	assert.NoError(t, ValidateSurveyUpdate(UpdateSurveyRequest{Title: "Pets"}))
}

func TestValidateOption(t *testing.T) {
	choice := &Question{QuestionText: "Pet?", Type: QuestionSingleChoice}
	assert.EqualError(t, ValidateOption(choice, OptionRequest{OptionText: " "}), "Option text is required")
	assert.NoError(t, ValidateOption(choice, OptionRequest{OptionText: "Fish"}))

	text := &Question{QuestionText: "Why?", Type: QuestionText}
	assert.EqualError(t, ValidateOption(text, OptionRequest{OptionText: "Fish"}), "Options can only be added to choice questions")
}

func TestNormalizeQuestion(t *testing.T) {
	q := NormalizeQuestion(CreateQuestionRequest{
		QuestionText: "Why?",
		Type:         QuestionText,
		Options:      []OptionRequest{{OptionText: "leftover"}},
	})
	assert.Empty(t, q.Options)
	assert.NotNil(t, q.Options)

	q = NormalizeQuestion(CreateQuestionRequest{
		QuestionText: "Pet?",
		Type:         QuestionSingleChoice,
		Options:      []OptionRequest{{OptionText: " Cat "}, {OptionText: "Dog"}},
	})
	assert.Equal(t, []OptionRequest{{OptionText: "Cat"}, {OptionText: "Dog"}}, q.Options)
}

func TestValidateRegistration(t *testing.T) {
	valid := RegisterRequest{
		Username: "ann",
		Email:    "ann@example.com",
		Password: "secret",
		Name:     "Ann",
		Role:     RoleCreator,
	}
	assert.NoError(t, ValidateRegistration(valid))

	noName := valid
	noName.Name = ""
	assert.EqualError(t, ValidateRegistration(noName), "Name is required")

	badEmail := valid
	badEmail.Email = "ann"
	assert.EqualError(t, ValidateRegistration(badEmail), "Please enter a valid email address")

	badRole := valid
	badRole.Role = "ADMIN"
	assert.EqualError(t, ValidateRegistration(badRole), "Role must be CREATOR or RESPONDENT")
}
