package user

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/learningcloud/backend/core"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrStudentIDExists    = errors.New("a user with this student ID already exists")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByStudentID(ctx context.Context, studentID string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// FirstName, LastName, StudentID or Email.
		FilterUsers(ctx context.Context, filter QueryFilter, page core.Pagination, ord []core.DBOrdering) ([]User, int, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id int, at time.Time) error
		CreateLoginAttempt(ctx context.Context, att LoginAttempt) error
	}

	Service struct {
		repo Repository
		log  core.Logger
	}
)

func NewService(repo Repository, log core.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (svc *Service) checkEmailUniqueness(email string) error {
	if _, err := svc.repo.GetUserByEmail(context.Background(), email); err == nil {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if err != ErrNotFound {
		return err
	}
	return nil
}

func (svc *Service) checkStudentIDUniqueness(studentID string) error {
	if _, err := svc.repo.GetUserByStudentID(context.Background(), studentID); err == nil {
		return core.NewValidationError(ErrStudentIDExists, core.FieldError{Field: "student_id", Error: ErrStudentIDExists.Error()})
	} else if err != ErrNotFound {
		return err
	}
	return nil
}

// RegisterStudent creates a new student principal.
func (svc *Service) RegisterStudent(ctx context.Context, ns NewStudent) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FirstName:   ns.FirstName,
		LastName:    ns.LastName,
		Role:        RoleStudent,
		StudentID:   ns.StudentID,
		GradeLevel:  ns.GradeLevel,
		ParentEmail: ns.ParentEmail,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := usr.SetPIN(ns.PIN); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Register creates a new teacher or parent principal.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Role:      nu.Role,
		Email:     nu.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// AuthenticateStudent checks a student ID + PIN pair.
// A matching user holding any other role is rejected the same as a bad PIN.
func (svc *Service) AuthenticateStudent(ctx context.Context, studentID, pin string) (User, error) {
	usr, err := svc.repo.GetUserByStudentID(ctx, core.CleanString(studentID, true /* lower */))
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !usr.IsStudent() || !usr.IsActive {
		return User{}, ErrInvalidCredentials
	}
	if err = usr.CheckPIN(pin); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return svc.setLastLogin(ctx, usr)
}

// AuthenticateTeacher checks a teacher email + password pair.
func (svc *Service) AuthenticateTeacher(ctx context.Context, email, pwd string) (User, error) {
	return svc.authenticateByEmail(ctx, email, pwd, RoleTeacher)
}

// AuthenticateParent checks a parent email + password pair.
func (svc *Service) AuthenticateParent(ctx context.Context, email, pwd string) (User, error) {
	return svc.authenticateByEmail(ctx, email, pwd, RoleParent)
}

func (svc *Service) authenticateByEmail(ctx context.Context, email, pwd, role string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if usr.Role != role || !usr.IsActive {
		return User{}, ErrInvalidCredentials
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return svc.setLastLogin(ctx, usr)
}

func (svc *Service) setLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = now
	return usr, nil
}

// TrackLoginAttempt records a login call for security monitoring; failures to
// record are logged, never surfaced to the caller.
func (svc *Service) TrackLoginAttempt(ctx context.Context, username, ip string, success bool, failureReason string) {
	att := LoginAttempt{
		Username:      username,
		IPAddress:     ip,
		Success:       success,
		FailureReason: failureReason,
		AttemptedAt:   time.Now().UTC(),
	}
	if err := svc.repo.CreateLoginAttempt(ctx, att); err != nil {
		svc.log.Error("tracking login attempt", err)
	}
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, page core.Pagination, ord []core.DBOrdering) ([]User, int, error) {
	return svc.repo.FilterUsers(ctx, filter, page, ord)
}

func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	usr.FirstName = up.FirstName
	usr.LastName = up.LastName
	if up.ParentEmail != "" {
		usr.ParentEmail = up.ParentEmail
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ChangePassword verifies the old password before setting the new one.
func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) error {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return core.NewValidationError(ErrInvalidCredentials, core.FieldError{Field: "old_password", Error: "incorrect password"})
	}
	if err := usr.SetPassword(cp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

// RecipientEmail resolves where a user's notification emails should go:
// their own address, or the parent email for students.
func (svc *Service) RecipientEmail(ctx context.Context, userID int) (mail.Address, error) {
	usr, err := svc.repo.GetUserByID(ctx, userID)
	if err != nil {
		return mail.Address{}, err
	}
	addr := usr.Email
	if usr.IsStudent() {
		addr = usr.ParentEmail
	}
	if addr == "" {
		return mail.Address{}, nil
	}
	return mail.Address{Name: usr.FullName(), Address: addr}, nil
}

// ChangePIN verifies the old PIN before setting the new one; students only.
func (svc *Service) ChangePIN(ctx context.Context, usr User, cp ChangePIN) error {
	if !usr.IsStudent() {
		return ErrNotFound
	}
	if err := usr.CheckPIN(cp.OldPIN); err != nil {
		return core.NewValidationError(ErrInvalidCredentials, core.FieldError{Field: "old_pin", Error: "incorrect PIN"})
	}
	if err := usr.SetPIN(cp.PIN); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}
