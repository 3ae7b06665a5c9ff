package model

import "math"

type Dashboard struct {
	TotalSurveys       int     `json:"totalSurveys"`
	ActiveSurveys      int     `json:"activeSurveys"`
	DraftSurveys       int     `json:"draftSurveys"`
	TotalQuestions     int     `json:"totalQuestions"`
	AvgQuestions       float64 `json:"avgQuestionsPerSurvey"`
	TotalResponses     int64   `json:"totalResponses"`
	AvgResponsesActive float64 `json:"avgResponsesPerActiveSurvey"`
}

// DashboardStats summarises a creator's surveys. responses is the total
// number of responses over all of them, drafts included.
func DashboardStats(surveys []Survey, responses int64) Dashboard {
	d := Dashboard{
		TotalSurveys:   len(surveys),
		TotalResponses: responses,
	}
	for _, s := range surveys {
		if s.IsActive {
			d.ActiveSurveys++
		} else {
			d.DraftSurveys++
		}
		d.TotalQuestions += len(s.Questions)
	}
	if d.TotalSurveys > 0 {
		d.AvgQuestions = round(float64(d.TotalQuestions)/float64(d.TotalSurveys), 1)
	}
	if d.ActiveSurveys > 0 {
		d.AvgResponsesActive = round(float64(responses)/float64(d.ActiveSurveys), 2)
	}
	return d
}

type OptionTally struct {
	OptionID   int64  `json:"optionId"`
	OptionText string `json:"optionText"`
	Count      int    `json:"count"`
}

type QuestionStats struct {
	QuestionID   int64         `json:"questionId"`
	QuestionText string        `json:"questionText"`
	Type         QuestionType  `json:"type"`
	Answered     int           `json:"answered"`
	Options      []OptionTally `json:"options,omitempty"`
}

type ResponseSummary struct {
	Responses   int             `json:"responses"`
	Questions   int             `json:"questions"`
	PerQuestion []QuestionStats `json:"perQuestion"`
}

// ResponseStats tallies answers per question and, for choice questions, per option.
func ResponseStats(s *Survey, responses []SurveyResponse) ResponseSummary {
	sum := ResponseSummary{
		Responses:   len(responses),
		Questions:   len(s.Questions),
		PerQuestion: []QuestionStats{},
	}

	var answers []Answer
	for _, r := range responses {
		answers = append(answers, r.Answers...)
	}
	for _, q := range s.SortedQuestions() {
		sum.PerQuestion = append(sum.PerQuestion, AnswerStats(q, answers))
	}
	return sum
}

// AnswerStats tallies the answers given to q; answers to other questions
// are ignored.
func AnswerStats(q Question, answers []Answer) QuestionStats {
	qs := QuestionStats{
		QuestionID:   q.ID,
		QuestionText: q.QuestionText,
		Type:         q.Type,
	}
	index := make(map[int64]int, len(q.Options))
	for i, opt := range q.Options {
		index[opt.ID] = i
		qs.Options = append(qs.Options, OptionTally{OptionID: opt.ID, OptionText: opt.OptionText})
	}

	for _, a := range answers {
		if a.QuestionID != q.ID {
			continue
		}
		if (a.AnswerText != nil && !blank(*a.AnswerText)) || len(a.SelectedOptionIDs) > 0 {
			qs.Answered++
		}
		for _, id := range a.SelectedOptionIDs {
			if i, ok := index[id]; ok {
				qs.Options[i].Count++
			}
		}
	}
	return qs
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
