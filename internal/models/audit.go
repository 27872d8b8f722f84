package models

import "time"

// AuditAction constants represent actions written to the activity log.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionLoginFailed       = "LOGIN_FAILED"
	AuditActionLogout            = "LOGOUT"
	AuditActionRegister          = "REGISTER"
	AuditActionProfileUpdate     = "PROFILE_UPDATE"
	AuditActionPasswordChange    = "PASSWORD_CHANGE"
	AuditActionPasswordReset     = "PASSWORD_RESET"
	AuditActionPreferencesUpdate = "PREFERENCES_UPDATE"
	AuditActionTwoFactorEnable   = "TWO_FACTOR_ENABLE"
	AuditActionTwoFactorDisable  = "TWO_FACTOR_DISABLE"
	AuditActionBackupCodes       = "BACKUP_CODES_GENERATE"
	AuditActionSecurityQuestions = "SECURITY_QUESTIONS_UPDATE"
	AuditActionAPICredentials    = "API_CREDENTIALS_REGENERATE"
	AuditActionSessionTerminate  = "SESSION_TERMINATE"
	AuditActionRecoveryStart     = "RECOVERY_START"
	AuditActionRecoveryVerify    = "RECOVERY_VERIFY"
	AuditActionRecoveryFailed    = "RECOVERY_VERIFY_FAILED"
	AuditActionUserApprove       = "USER_APPROVE"
	AuditActionUserReject        = "USER_REJECT"
	AuditActionUserSuspend       = "USER_SUSPEND"
	AuditActionSettingsUpdate    = "SETTINGS_UPDATE"
	AuditActionBackupCreate      = "BACKUP_CREATE"
	AuditActionBackupDelete      = "BACKUP_DELETE"
	AuditActionCacheClear        = "CACHE_CLEAR"
	AuditActionLanguageChange    = "LANGUAGE_CHANGE"
	AuditActionAPITokenIssue     = "API_TOKEN_ISSUE"
	AuditActionReportExport      = "REPORT_EXPORT"
	AuditActionBackupDownload    = "BACKUP_DOWNLOAD"
)

// AuditLog represents an activity trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  *string   `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  *string   `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditLogFilter narrows activity listings.
type AuditLogFilter struct {
	UserID   string
	Action   string
	Since    *time.Time
	Page     int
	PageSize int
}
