package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStaff      UserRole = "STAFF"
	RoleStudent    UserRole = "STUDENT"
)

// IsAdministrative reports whether the role may open the settings panel.
func (r UserRole) IsAdministrative() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// UserStatus is the account lifecycle state. Registrations start pending
// until an administrator approves them.
type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusRejected  UserStatus = "rejected"
)

// Theme values accepted by user preferences.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

// User represents an application user stored in the users table.
type User struct {
	ID                 string     `db:"id" json:"id"`
	Username           string     `db:"username" json:"username"`
	Email              string     `db:"email" json:"email"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	FullName           string     `db:"full_name" json:"full_name"`
	Phone              string     `db:"phone" json:"phone"`
	Role               UserRole   `db:"role" json:"role"`
	Status             UserStatus `db:"status" json:"status"`
	Theme              string     `db:"theme" json:"theme"`
	Language           string     `db:"language" json:"language"`
	EmailNotifications bool       `db:"email_notifications" json:"email_notifications"`
	TwoFactorEnabled   bool       `db:"two_factor_enabled" json:"two_factor_enabled"`
	TwoFactorSecret    *string    `db:"two_factor_secret" json:"-"`
	APIKey             *string    `db:"api_key" json:"api_key,omitempty"`
	APISecretHash      *string    `db:"api_secret_hash" json:"-"`
	LastLogin          *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the user may sign in.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Status    *UserStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
