package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a form error detected before any network call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

var validate = validator.New()

// ValidateRegistration checks the registration form.
func ValidateRegistration(req RegisterRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return invalid("%s is required", fe.Field())
	case "email":
		return invalid("Please enter a valid email address")
	case "oneof":
		return invalid("Role must be CREATOR or RESPONDENT")
	}
	return invalid("%s is invalid", fe.Field())
}

// ValidateNewSurvey checks the survey creation form, stopping at the first error.
func ValidateNewSurvey(req CreateSurveyRequest, questions []CreateQuestionRequest) error {
	if blank(req.Title) {
		return invalid("Survey title is required")
	}
	if len(questions) == 0 {
		return invalid("At least one question is required")
	}

	for i, q := range questions {
		n := i + 1
		if blank(q.QuestionText) {
			return invalid("Question %d text is required", n)
		}
		if !q.Type.Valid() {
			return invalid("Question %d has an unknown type %q", n, q.Type)
		}
		if q.Type == QuestionText {
			continue
		}
		if len(q.Options) < 2 {
			return invalid("Question %d must have at least 2 options", n)
		}
		for j, opt := range q.Options {
			if blank(opt.OptionText) {
				return invalid("Question %d, Option %d text is required", n, j+1)
			}
		}
	}
	return nil
}

func ValidateSurveyUpdate(req UpdateSurveyRequest) error {
	if blank(req.Title) {
		return invalid("Survey title is required")
	}
	return nil
}

// ValidateQuestion checks the single question form of the survey editor.
func ValidateQuestion(q CreateQuestionRequest) error {
	if blank(q.QuestionText) {
		return invalid("Question text is required")
	}
	if !q.Type.Valid() {
		return invalid("Unknown question type %q", q.Type)
	}
	if q.Type == QuestionText {
		return nil
	}
	if len(q.Options) < 2 {
		return invalid("Question must have at least 2 options")
	}
	for j, opt := range q.Options {
		if blank(opt.OptionText) {
			return invalid("Option %d text is required", j+1)
		}
	}
	return nil
}

// ValidateOption checks an option appended to an existing question.
func ValidateOption(q *Question, opt OptionRequest) error {
	if !q.IsChoice() {
		return invalid("Options can only be added to choice questions")
	}
	if blank(opt.OptionText) {
		return invalid("Option text is required")
	}
	return nil
}

// NormalizeQuestion strips options from TEXT questions and trims option labels.
func NormalizeQuestion(q CreateQuestionRequest) CreateQuestionRequest {
	if q.Type == QuestionText {
		q.Options = []OptionRequest{}
		return q
	}
	opts := make([]OptionRequest, len(q.Options))
	for i, opt := range q.Options {
		opts[i] = OptionRequest{OptionText: strings.TrimSpace(opt.OptionText)}
	}
	q.Options = opts
	return q
}

// ValidateResponse checks a submission against its survey in question order.
// All questions are mandatory; option ids and e-mail format are not checked.
func ValidateResponse(s *Survey, req SubmitResponseRequest) error {
	if blank(req.RespondentEmail) {
		return invalid("Please enter your email address")
	}

	answers := make(map[int64]AnswerRequest, len(req.Answers))
	for _, a := range req.Answers {
		answers[a.QuestionID] = a
	}

	for _, q := range s.SortedQuestions() {
		a, ok := answers[q.ID]
		switch q.Type {
		case QuestionText:
			if !ok || a.AnswerText == nil || blank(*a.AnswerText) {
				return invalid("Please answer: %s", q.QuestionText)
			}
		case QuestionSingleChoice, QuestionMultipleChoice:
			if !ok || len(a.SelectedOptionIDs) == 0 {
				return invalid("Please select an option for: %s", q.QuestionText)
			}
		}
	}
	return nil
}

// NormalizeAnswers shapes answers to their question types: TEXT keeps only the
// text, choices keep only selections, SINGLE_CHOICE keeps at most one.
// Answers to unknown questions are passed through untouched.
func NormalizeAnswers(s *Survey, answers []AnswerRequest) []AnswerRequest {
	out := make([]AnswerRequest, 0, len(answers))
	for _, a := range answers {
		q, ok := s.FindQuestion(a.QuestionID)
		if !ok {
			out = append(out, a)
			continue
		}
		switch q.Type {
		case QuestionText:
			a.SelectedOptionIDs = nil
		case QuestionSingleChoice:
			a.AnswerText = nil
			if len(a.SelectedOptionIDs) > 1 {
				a.SelectedOptionIDs = a.SelectedOptionIDs[:1]
			}
		case QuestionMultipleChoice:
			a.AnswerText = nil
		}
		if a.AnswerText != nil && *a.AnswerText == "" {
			a.AnswerText = nil
		}
		if len(a.SelectedOptionIDs) == 0 {
			a.SelectedOptionIDs = nil
		}
		out = append(out, a)
	}
	return out
}
