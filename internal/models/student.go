package models

import "time"

// Student holds the demographic and guardian details of a STUDENT user.
type Student struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	StudentCode   string    `db:"student_code" json:"student_code"`
	DateOfBirth   time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender        string    `db:"gender" json:"gender"`
	Address       string    `db:"address" json:"address"`
	GradeLevel    int       `db:"grade_level" json:"grade_level"`
	GuardianName  string    `db:"guardian_name" json:"guardian_name"`
	GuardianPhone string    `db:"guardian_phone" json:"guardian_phone"`
	GuardianEmail string    `db:"guardian_email" json:"guardian_email"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
