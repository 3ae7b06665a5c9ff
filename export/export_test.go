package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/mbolis/surveyer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string {
	return &s
}

func petSurvey() *model.Survey {
	return &model.Survey{
		ID:    1,
		Title: "Pet Survey",
		Questions: []model.Question{
			{ID: 12, QuestionText: `Why "that" one?`, Type: model.QuestionText, QuestionOrder: 2},
			{ID: 11, QuestionText: "Favorite pet?", Type: model.QuestionSingleChoice, QuestionOrder: 1,
				Options: []model.QuestionOption{{ID: 1, OptionText: "Cat"}, {ID: 2, OptionText: "Dog"}}},
			{ID: 13, QuestionText: "Which toys?", Type: model.QuestionMultipleChoice, QuestionOrder: 3,
				Options: []model.QuestionOption{{ID: 3, OptionText: "Ball"}, {ID: 4, OptionText: "Rope, long"}}},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	submitted := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)
	responses := []model.SurveyResponse{
		{
			ID: 100, RespondentEmail: "a@example.com", SubmittedAt: model.NewTime(submitted),
			Answers: []model.Answer{
				{QuestionID: 11, SelectedOptionIDs: []int64{2}},
				{QuestionID: 12, AnswerText: str("he's \"cute\"\nand loud")},
				{QuestionID: 13, SelectedOptionIDs: []int64{3, 99, 4}},
			},
		},
		{ID: 101, RespondentEmail: "b@example.com", SubmittedAt: model.NewTime(submitted)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, petSurvey(), responses))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Len(t, rec, 5)
	}

	assert.Equal(t, []string{"Respondent Email", "Submitted At", "Favorite pet?", `Why "that" one?`, "Which toys?"}, records[0])
	assert.Equal(t, []string{"a@example.com", "2024-05-01 10:30:00", "Dog", "he's \"cute\"\nand loud", "Ball, Rope, long"}, records[1])
	assert.Equal(t, []string{"b@example.com", "2024-05-01 10:30:00", "", "", ""}, records[2])
}

func TestWriteCSVQuotesEveryField(t *testing.T) {
	var buf bytes.Buffer
	survey := &model.Survey{Title: "Empty"}
	require.NoError(t, WriteCSV(&buf, survey, nil))
	assert.Equal(t, "\"Respondent Email\",\"Submitted At\"\n", buf.String())
}

func TestCellPrefersText(t *testing.T) {
	q := petSurvey().Questions[1]
	got := cell(q, []model.Answer{{QuestionID: 11, AnswerText: str("free text"), SelectedOptionIDs: []int64{1}}})
	assert.Equal(t, "free text", got)

	got = cell(q, []model.Answer{{QuestionID: 11, AnswerText: str(""), SelectedOptionIDs: []int64{1}}})
	assert.Equal(t, "Cat", got)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Pet Survey_responses.csv", FileName(petSurvey()))
}
