package dto

import "github.com/noah-isme/sma-portal/internal/models"

// RecoveryStartRequest is step 1 of the recovery wizard.
type RecoveryStartRequest struct {
	Identifier string                `form:"identifier" validate:"required,max=100"`
	Method     models.RecoveryMethod `form:"method" validate:"required"`
}

// RecoveryVerifyRequest carries the secret for any verification step.
// Only the fields of the request's method are read.
type RecoveryVerifyRequest struct {
	Code        string   `form:"code"`
	Answers     []string `form:"answers"`
	FullName    string   `form:"full_name"`
	Email       string   `form:"email"`
	Phone       string   `form:"phone"`
	DateOfBirth string   `form:"date_of_birth"`
}

// RecoveryResetRequest is step 3 of the recovery wizard.
type RecoveryResetRequest struct {
	Password        string `form:"password" validate:"required"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// RecoveryView is what the wizard renders for the current step.
type RecoveryView struct {
	ID           string                `json:"id"`
	Step         models.RecoveryStep   `json:"step"`
	Method       models.RecoveryMethod `json:"method"`
	Status       models.RecoveryStatus `json:"status"`
	Destination  string                `json:"destination,omitempty"`
	Questions    []string              `json:"questions,omitempty"`
	AttemptsLeft int                   `json:"attempts_left"`
	IsStudent    bool                  `json:"is_student"`
}
