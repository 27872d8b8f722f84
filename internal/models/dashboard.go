package models

import "time"

// GradeCount is the number of registered students in one grade level.
type GradeCount struct {
	GradeLevel int `db:"grade_level" json:"grade_level"`
	Count      int `db:"count" json:"count"`
}

// DashboardStats is the staff dashboard summary.
type DashboardStats struct {
	TotalStudents       int                `json:"total_students"`
	TotalTeachers       int                `json:"total_teachers"`
	TotalStaff          int                `json:"total_staff"`
	TotalAdmins         int                `json:"total_admins"`
	UsersByStatus       map[UserStatus]int `json:"users_by_status"`
	PendingApprovals    int                `json:"pending_approvals"`
	RecentRegistrations int                `json:"recent_registrations"`
	ActiveSessions      int                `json:"active_sessions"`
	StudentsByGrade     []GradeCount       `json:"students_by_grade"`
	RecentActivity      []AuditLog         `json:"recent_activity"`
	GeneratedAt         time.Time          `json:"generated_at"`
}

// StudentDashboard is the summary a student sees about their own account.
type StudentDashboard struct {
	Student        *Student   `json:"student,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	RecentActivity []AuditLog `json:"recent_activity"`
}
