// Package export renders survey responses as CSV.
package export

import (
	"bufio"
	"io"
	"strings"

	"github.com/mbolis/surveyer/model"
	"github.com/pkg/errors"
)

const TimeLayout = "2006-01-02 15:04:05"

// Header is the first record: the fixed columns, then the question texts in
// question order.
func Header(survey *model.Survey) []string {
	questions := survey.SortedQuestions()
	header := make([]string, 0, len(questions)+2)
	header = append(header, "Respondent Email", "Submitted At")
	for _, q := range questions {
		header = append(header, q.QuestionText)
	}
	return header
}

// Record flattens one response. A cell holds the answer text, else the labels
// of the selected options joined by ", ", else nothing.
func Record(survey *model.Survey, resp model.SurveyResponse) []string {
	questions := survey.SortedQuestions()

	submitted := ""
	if !resp.SubmittedAt.IsZero() {
		submitted = resp.SubmittedAt.Local().Format(TimeLayout)
	}
	record := make([]string, 0, len(questions)+2)
	record = append(record, resp.RespondentEmail, submitted)

	for _, q := range questions {
		record = append(record, cell(q, resp.Answers))
	}
	return record
}

func cell(q model.Question, answers []model.Answer) string {
	for _, a := range answers {
		if a.QuestionID != q.ID {
			continue
		}
		if a.AnswerText != nil && *a.AnswerText != "" {
			return *a.AnswerText
		}
		labels := make([]string, 0, len(a.SelectedOptionIDs))
		for _, id := range a.SelectedOptionIDs {
			// unknown option ids are skipped
			if opt, ok := q.FindOption(id); ok && opt.OptionText != "" {
				labels = append(labels, opt.OptionText)
			}
		}
		return strings.Join(labels, ", ")
	}
	return ""
}

// WriteCSV writes the header and one record per response. Every field is
// quoted, with embedded quotes doubled; records end with "\n".
func WriteCSV(w io.Writer, survey *model.Survey, responses []model.SurveyResponse) error {
	bw := bufio.NewWriter(w)
	if err := writeRecord(bw, Header(survey)); err != nil {
		return err
	}
	for _, resp := range responses {
		if err := writeRecord(bw, Record(survey, resp)); err != nil {
			return err
		}
	}
	return errors.Wrap(bw.Flush(), "export: flush")
}

func writeRecord(w *bufio.Writer, record []string) error {
	for i, field := range record {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(field, `"`, `""`))
		w.WriteByte('"')
	}
	if err := w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "export: write record")
	}
	return nil
}

// FileName is the download name of a survey export.
func FileName(survey *model.Survey) string {
	return survey.Title + "_responses.csv"
}
