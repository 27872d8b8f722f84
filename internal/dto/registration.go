package dto

// RegisterRequest is the student self-registration form.
type RegisterRequest struct {
	Username        string `form:"username" validate:"required,min=3,max=30,username"`
	Email           string `form:"email" validate:"required,email,max=100"`
	Password        string `form:"password" validate:"required"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
	FullName        string `form:"full_name" validate:"required,min=3,max=100"`
	Phone           string `form:"phone" validate:"required,phone"`
	DateOfBirth     string `form:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender          string `form:"gender" validate:"required,oneof=male female"`
	Address         string `form:"address" validate:"required,max=255"`
	GradeLevel      int    `form:"grade_level" validate:"required,min=10,max=12"`
	GuardianName    string `form:"guardian_name" validate:"required,max=100"`
	GuardianPhone   string `form:"guardian_phone" validate:"required,phone"`
	GuardianEmail   string `form:"guardian_email" validate:"omitempty,email"`
	AcceptTerms     bool   `form:"accept_terms" validate:"required"`
}
