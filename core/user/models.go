package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"golang.org/x/crypto/bcrypt"

	"github.com/learningcloud/backend/core"
)

// Roles. A user holds exactly one; it decides which login endpoint
// and which data scopes are valid for them.
const (
	RoleStudent = "STUDENT"
	RoleTeacher = "TEACHER"
	RoleParent  = "PARENT"
	RoleAdmin   = "ADMIN"
)

var AllRoles = []string{RoleStudent, RoleTeacher, RoleParent, RoleAdmin}

// Grade levels
const (
	MinGradeLevel = 1
	MaxGradeLevel = 4
)

type User struct {
	ID         int       `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       string    `json:"role"`
	Email      string    `json:"email,omitempty"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`

	// student fields
	StudentID   string `json:"student_id,omitempty"`
	GradeLevel  int    `json:"grade_level,omitempty"`
	ParentEmail string `json:"parent_email,omitempty"`

	PasswordHash []byte    `json:"-"` // also holds the student PIN hash
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// SetPIN hashes and stores the student's short numeric PIN.
// PINs share the password hash column; bcrypt at rest either way.
func (u *User) SetPIN(pin string) error { return u.SetPassword(pin) }

func (u *User) CheckPIN(pin string) error { return u.CheckPassword(pin) }

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsParent() bool  { return u.Role == RoleParent }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }

// LoginAttempt is an audit record of a login call, successful or not.
type LoginAttempt struct {
	ID            int       `json:"id"`
	Username      string    `json:"username"` // student_id or email as supplied
	IPAddress     string    `json:"ip_address"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	AttemptedAt   time.Time `json:"attempted_at"` // UTC
}

// NewStudent contains information needed to register a new student.
type NewStudent struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	StudentID   string `json:"student_id" validate:"required,alphanum_"`
	PIN         string `json:"pin" validate:"required,pin"`
	GradeLevel  int    `json:"grade_level" validate:"required,min=1,max=4"`
	ParentEmail string `json:"parent_email" validate:"omitempty,email"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, svc *Service) error {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.StudentID = core.CleanString(ns.StudentID, true /* lower */)
	ns.ParentEmail = core.CleanString(ns.ParentEmail, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkStudentIDUniqueness(ns.StudentID)
}

// NewUser contains information needed to register a teacher or parent.
type NewUser struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"required,oneof=TEACHER PARENT"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkEmailUniqueness(nu.Email)
}

// UpdateProfile defines what information a user may change on themselves.
type UpdateProfile struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	ParentEmail string `json:"parent_email" validate:"omitempty,email"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate, orig User) error {
	name := core.CleanString(up.FirstName)
	if name != "" {
		up.FirstName = name
	} else {
		up.FirstName = orig.FirstName
	}

	name = core.CleanString(up.LastName)
	if name != "" {
		up.LastName = name
	} else {
		up.LastName = orig.LastName
	}

	up.ParentEmail = core.CleanString(up.ParentEmail, true /* lower */)
	return validate.Struct(up)
}

type ChangePassword struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cp ChangePassword) Validate(validate *validator.Validate) error { return validate.Struct(cp) }

type ChangePIN struct {
	OldPIN string `json:"old_pin" validate:"required"`
	PIN    string `json:"pin" validate:"required,pin"`
}

func (cp ChangePIN) Validate(validate *validator.Validate) error { return validate.Struct(cp) }

type QueryFilter struct {
	Search     string `query:"search"`
	Role       string `query:"role"`
	GradeLevel int    `query:"grade_level"`
	IsActive   *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = strings.ToUpper(core.CleanString(qf.Role))
}
