package models

import "time"

// RecoveryMethod names how a user proves ownership of an account.
type RecoveryMethod string

const (
	RecoveryMethodEmail             RecoveryMethod = "email"
	RecoveryMethodSMS               RecoveryMethod = "sms"
	RecoveryMethodBackupCode        RecoveryMethod = "backup_code"
	RecoveryMethodSecurityQuestions RecoveryMethod = "security_questions"
	RecoveryMethodTwoFactor         RecoveryMethod = "two_factor"
	RecoveryMethodIdentity          RecoveryMethod = "identity"
)

// RecoveryMethods lists the methods in the order they are offered.
var RecoveryMethods = []RecoveryMethod{
	RecoveryMethodEmail,
	RecoveryMethodSMS,
	RecoveryMethodBackupCode,
	RecoveryMethodSecurityQuestions,
	RecoveryMethodTwoFactor,
	RecoveryMethodIdentity,
}

// RecoveryStep numbers the wizard screens.
type RecoveryStep int

const (
	RecoveryStepIdentify          RecoveryStep = 1
	RecoveryStepVerifyCode        RecoveryStep = 2
	RecoveryStepReset             RecoveryStep = 3
	RecoveryStepSecurityQuestions RecoveryStep = 4
	RecoveryStepTwoFactor         RecoveryStep = 5
	RecoveryStepIdentity          RecoveryStep = 6
	RecoveryStepDone              RecoveryStep = 7
)

// VerificationStep returns the step that verifies m.
func (m RecoveryMethod) VerificationStep() RecoveryStep {
	switch m {
	case RecoveryMethodSecurityQuestions:
		return RecoveryStepSecurityQuestions
	case RecoveryMethodTwoFactor:
		return RecoveryStepTwoFactor
	case RecoveryMethodIdentity:
		return RecoveryStepIdentity
	default:
		return RecoveryStepVerifyCode
	}
}

// Valid reports whether m is a known method.
func (m RecoveryMethod) Valid() bool {
	for _, known := range RecoveryMethods {
		if m == known {
			return true
		}
	}
	return false
}

// RecoveryStatus is the persisted lifecycle of a recovery request.
type RecoveryStatus string

const (
	RecoveryStatusPending   RecoveryStatus = "pending"
	RecoveryStatusVerified  RecoveryStatus = "verified"
	RecoveryStatusConsumed  RecoveryStatus = "consumed"
	RecoveryStatusExpired   RecoveryStatus = "expired"
	RecoveryStatusLocked    RecoveryStatus = "locked"
	RecoveryStatusCancelled RecoveryStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s RecoveryStatus) Terminal() bool {
	switch s {
	case RecoveryStatusConsumed, RecoveryStatusExpired, RecoveryStatusLocked, RecoveryStatusCancelled:
		return true
	}
	return false
}

// RecoveryRequest is one password recovery attempt.
type RecoveryRequest struct {
	ID         string         `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"user_id"`
	Method     RecoveryMethod `db:"method" json:"method"`
	Step       RecoveryStep   `db:"step" json:"step"`
	Status     RecoveryStatus `db:"status" json:"status"`
	TokenHash  *string        `db:"token_hash" json:"-"`
	Attempts   int            `db:"attempts" json:"attempts"`
	IPAddress  string         `db:"ip_address" json:"ip_address"`
	ExpiresAt  time.Time      `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	VerifiedAt *time.Time     `db:"verified_at" json:"verified_at,omitempty"`
	ConsumedAt *time.Time     `db:"consumed_at" json:"consumed_at,omitempty"`
}

// BackupCode is a single-use recovery credential.
type BackupCode struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	CodeHash  string     `db:"code_hash" json:"-"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// SecurityQuestion stores a question and the bcrypt hash of its normalised answer.
type SecurityQuestion struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Question   string    `db:"question" json:"question"`
	AnswerHash string    `db:"answer_hash" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
