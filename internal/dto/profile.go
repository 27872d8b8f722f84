package dto

import "github.com/noah-isme/sma-portal/internal/models"

// UpdateProfileRequest edits contact details.
type UpdateProfileRequest struct {
	FullName string `json:"full_name" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
}

// ChangePasswordRequest changes the password of the signed-in user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// UpdatePreferencesRequest stores interface preferences.
type UpdatePreferencesRequest struct {
	Theme              string `json:"theme" validate:"required,oneof=light dark auto"`
	Language           string `json:"language" validate:"required"`
	EmailNotifications bool   `json:"email_notifications"`
}

// TwoFactorCodeRequest confirms a TOTP enrolment.
type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// PasswordConfirmRequest re-authenticates a sensitive action.
type PasswordConfirmRequest struct {
	Password string `json:"password" validate:"required"`
}

// SecurityQuestionInput is one question and its answer.
type SecurityQuestionInput struct {
	Question string `json:"question" validate:"required,min=5,max=255"`
	Answer   string `json:"answer" validate:"required,min=2,max=100"`
}

// SecurityQuestionsRequest replaces the security question set.
type SecurityQuestionsRequest struct {
	Questions []SecurityQuestionInput `json:"questions" validate:"required,len=3,dive"`
}

// SessionRequest targets one session record.
type SessionRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

// TwoFactorSetup is returned when enrolment starts.
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// APICredentials are shown once after regeneration.
type APICredentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// ProfileView is the read side of the profile page.
type ProfileView struct {
	User              *models.User         `json:"user"`
	Student           *models.Student      `json:"student,omitempty"`
	Sessions          []models.UserSession `json:"sessions"`
	Activity          []models.AuditLog    `json:"activity"`
	SecurityQuestions []string             `json:"security_questions"`
	BackupCodesLeft   int                  `json:"backup_codes_left"`
}
