package model

type Role string

const (
	RoleCreator    Role = "CREATOR"
	RoleRespondent Role = "RESPONDENT"
)

type QuestionType string

const (
	QuestionText           QuestionType = "TEXT"
	QuestionSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
)

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	CreatedAt Time   `json:"createdAt"`
}

type Survey struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	IsActive          bool       `json:"isActive"`
	CreatedAt         Time       `json:"createdAt"`
	CreatedByUsername string     `json:"createdByUsername"`
	Questions         []Question `json:"questions"`
}

type Question struct {
	ID            int64            `json:"id"`
	QuestionText  string           `json:"questionText"`
	Type          QuestionType     `json:"type"`
	QuestionOrder int              `json:"questionOrder"`
	Options       []QuestionOption `json:"options"`
}

type QuestionOption struct {
	ID         int64  `json:"id"`
	OptionText string `json:"optionText"`
}

type SurveyResponse struct {
	ID              int64    `json:"id"`
	SurveyID        int64    `json:"surveyId"`
	RespondentEmail string   `json:"respondentEmail"`
	SubmittedAt     Time     `json:"submittedAt"`
	Answers         []Answer `json:"answers"`
}

type Answer struct {
	ID                int64   `json:"id,omitempty"`
	QuestionID        int64   `json:"questionId"`
	AnswerText        *string `json:"answerText,omitempty"`
	SelectedOptionIDs []int64 `json:"selectedOptionIds,omitempty"`
}

// Requests sent to the survey API.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Role     Role   `json:"role" validate:"required,oneof=CREATOR RESPONDENT"`
}

// AuthResponse is the body of a successful login. The session credential
// travels as an http-only cookie, never in the body.
type AuthResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

type CreateSurveyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type UpdateSurveyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type OptionRequest struct {
	OptionText string `json:"optionText"`
}

type CreateQuestionRequest struct {
	QuestionText  string          `json:"questionText"`
	Type          QuestionType    `json:"type"`
	QuestionOrder int             `json:"questionOrder,omitempty"`
	Options       []OptionRequest `json:"options"`
}

type AnswerRequest struct {
	QuestionID        int64   `json:"questionId"`
	AnswerText        *string `json:"answerText,omitempty"`
	SelectedOptionIDs []int64 `json:"selectedOptionIds,omitempty"`
}

type SubmitResponseRequest struct {
	SurveyID        int64           `json:"surveyId"`
	RespondentEmail string          `json:"respondentEmail"`
	Answers         []AnswerRequest `json:"answers"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// MessageResponse is the generic `{message}` body of the account endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}
