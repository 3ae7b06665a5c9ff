package model

import (
	"errors"
	"sort"
)

var (
	ErrNoQuestions      = &ValidationError{Msg: "Cannot publish survey without questions"}
	ErrAlreadyPublished = &ValidationError{Msg: "Survey is already published"}
)

// SortedQuestions returns a copy of the questions in display order.
func (s *Survey) SortedQuestions() []Question {
	qs := make([]Question, len(s.Questions))
	copy(qs, s.Questions)
	sort.SliceStable(qs, func(i, j int) bool {
		return qs[i].QuestionOrder < qs[j].QuestionOrder
	})
	return qs
}

// NextQuestionOrder is the order assigned to a question appended to s. It
// follows the highest order in use, so gaps left by deletions are never reused.
func (s *Survey) NextQuestionOrder() int {
	next := 1
	for _, q := range s.Questions {
		if q.QuestionOrder >= next {
			next = q.QuestionOrder + 1
		}
	}
	return next
}

// CanPublish reports whether the draft -> active transition is allowed.
func (s *Survey) CanPublish() error {
	if s.IsActive {
		return ErrAlreadyPublished
	}
	if len(s.Questions) == 0 {
		return ErrNoQuestions
	}
	return nil
}

func (s *Survey) FindQuestion(id int64) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// MergeQuestion inserts q, or replaces the question with the same id.
func (s *Survey) MergeQuestion(q Question) {
	if existing, ok := s.FindQuestion(q.ID); ok {
		*existing = q
	} else {
		s.Questions = append(s.Questions, q)
	}
	s.Questions = s.SortedQuestions()
}

// RemoveQuestion drops the question with the given id; it reports whether one was found.
func (s *Survey) RemoveQuestion(id int64) bool {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			s.Questions = append(s.Questions[:i], s.Questions[i+1:]...)
			return true
		}
	}
	return false
}

// Merge applies the result of a survey mutation. Mutation results may come
// back without questions, in which case the known ones are kept.
func (s *Survey) Merge(updated Survey) {
	s.Title = updated.Title
	s.Description = updated.Description
	// publish is one-way
	s.IsActive = s.IsActive || updated.IsActive
	if updated.Questions != nil {
		s.Questions = updated.Questions
	}
}

func (q *Question) IsChoice() bool {
	return q.Type == QuestionSingleChoice || q.Type == QuestionMultipleChoice
}

func (q *Question) FindOption(id int64) (*QuestionOption, bool) {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionSingleChoice, QuestionMultipleChoice:
		return true
	}
	return false
}

// IsValidationError reports whether err is a client-side validation failure.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
