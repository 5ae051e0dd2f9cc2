package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var requestValidate = validator.New()

// StartRunRequest starts one application run
type StartRunRequest struct {
	URL       string    `json:"url" validate:"required,url"`
	ProfileID uuid.UUID `json:"profile_id" validate:"required"`
	Mode      string    `json:"mode" validate:"omitempty,oneof=strict medium yolo"`
	Submit    bool      `json:"submit"`
}

// Validate validates the StartRunRequest using the validator.
func (r *StartRunRequest) Validate() error {
	return requestValidate.Struct(r)
}

// CreateProfileRequest creates a candidate profile with optional sub-records
type CreateProfileRequest struct {
	Name        string              `json:"name" validate:"required,min=1"`
	JobFamily   string              `json:"job_family"`
	Summary     string              `json:"summary"`
	Personal    *PersonalInfo       `json:"personal,omitempty"`
	Preferences *ProfilePreferences `json:"preferences,omitempty"`
	WorkAuth    *WorkAuthorization  `json:"work_auth,omitempty"`
	Skills      []Skill             `json:"skills,omitempty"`
}

// Validate validates the CreateProfileRequest using the validator.
func (r *CreateProfileRequest) Validate() error {
	return requestValidate.Struct(r)
}

// StoreAnswerRequest records a profile's answer to a screening question
type StoreAnswerRequest struct {
	Question          string   `json:"question" validate:"required"`
	QuestionType      string   `json:"question_type"`
	Tags              []string `json:"tags"`
	Answer            string   `json:"answer" validate:"required"`
	VerificationState string   `json:"verification_state" validate:"omitempty,oneof=verified needs_review rejected"`
	Source            string   `json:"source"`
}

// Validate validates the StoreAnswerRequest using the validator.
func (r *StoreAnswerRequest) Validate() error {
	return requestValidate.Struct(r)
}

// LoginRequest exchanges the operator password for a bearer token
type LoginRequest struct {
	Operator string `json:"operator" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate validates the LoginRequest using the validator.
func (r *LoginRequest) Validate() error {
	return requestValidate.Struct(r)
}

// LoginResponse carries an issued bearer token
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
