package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           int       `db:"id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Role         string    `db:"role"`
	Email        string    `db:"email"`
	IsActive     bool      `db:"is_active"`
	IsVerified   bool      `db:"is_verified"`
	StudentID    string    `db:"student_id"`
	GradeLevel   int       `db:"grade_level"`
	ParentEmail  string    `db:"parent_email"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Role:         r.Role,
		Email:        r.Email,
		IsActive:     r.IsActive,
		IsVerified:   r.IsVerified,
		StudentID:    r.StudentID,
		GradeLevel:   r.GradeLevel,
		ParentEmail:  r.ParentEmail,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueViolation maps a psql unique violation on `constraint` to mapped.
func trapUniqueViolation(err error, constraint string, mapped error) (error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == constraint {
		return mapped, true
	}
	return err, false
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `
		INSERT INTO app_user (first_name, last_name, role, email, is_active, is_verified,
			student_id, grade_level, parent_email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := repo.db.QueryRowxContext(ctx, query,
		usr.FirstName, usr.LastName, usr.Role, usr.Email, usr.IsActive, usr.IsVerified,
		usr.StudentID, usr.GradeLevel, usr.ParentEmail, usr.PasswordHash,
		usr.CreatedAt, usr.UpdatedAt,
	).Scan(&usr.ID)
	if err != nil {
		if mapped, ok := trapUniqueViolation(err, "app_user_email_key", user.ErrEmailExists); ok {
			return user.User{}, mapped
		}
		if mapped, ok := trapUniqueViolation(err, "app_user_student_id_key", user.ErrStudentIDExists); ok {
			return user.User{}, mapped
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	query := "SELECT * FROM app_user WHERE " + where
	if err := repo.db.GetContext(ctx, &row, query, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, "id = $1", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = $1 AND email <> ''", email)
}

func (repo userRepository) GetUserByStudentID(ctx context.Context, studentID string) (user.User, error) {
	return repo.getUser(ctx, "student_id = $1 AND student_id <> ''", studentID)
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, page core.Pagination, ord []core.DBOrdering) ([]user.User, int, error) {
	where := []string{"TRUE"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return argN(len(args))
	}

	if filter.Search != "" {
		val := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE %[1]s OR last_name ILIKE %[1]s OR student_id ILIKE %[1]s OR email ILIKE %[1]s)", val))
	}
	if filter.Role != "" {
		where = append(where, "role = "+arg(filter.Role))
	}
	if filter.GradeLevel > 0 {
		where = append(where, "grade_level = "+arg(filter.GradeLevel))
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = "+arg(*filter.IsActive))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM app_user WHERE "+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	query := "SELECT * FROM app_user WHERE " + cond + orderBy(ord, "created_at DESC") + limitOffset(&args, page)
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, total, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `
		UPDATE app_user
		SET first_name = $1, last_name = $2, email = $3, is_active = $4, is_verified = $5,
			grade_level = $6, parent_email = $7, password_hash = $8, updated_at = $9
		WHERE id = $10`
	if _, err := repo.db.ExecContext(ctx, query,
		usr.FirstName, usr.LastName, usr.Email, usr.IsActive, usr.IsVerified,
		usr.GradeLevel, usr.ParentEmail, usr.PasswordHash, usr.UpdatedAt, usr.ID,
	); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id int, at time.Time) error {
	if _, err := repo.db.ExecContext(ctx, "UPDATE app_user SET last_login = $1 WHERE id = $2", at, id); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return nil
}

func (repo userRepository) CreateLoginAttempt(ctx context.Context, att user.LoginAttempt) error {
	query := `
		INSERT INTO login_attempt (username, ip_address, success, failure_reason, attempted_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, query,
		att.Username, att.IPAddress, att.Success, att.FailureReason, att.AttemptedAt,
	); err != nil {
		return errors.Wrap(err, "inserting login attempt")
	}
	return nil
}

// orderBy renders an ORDER BY clause; fallback applies when no ordering was requested.
func orderBy(ord []core.DBOrdering, fallback string) string {
	if len(ord) == 0 {
		return " ORDER BY " + fallback
	}
	parts := make([]string, 0, len(ord))
	for _, o := range ord {
		parts = append(parts, o.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func limitOffset(args *[]interface{}, page core.Pagination) string {
	page.Clean()
	*args = append(*args, page.Limit(), page.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(*args)-1, len(*args))
}

func argN(n int) string {
	return fmt.Sprintf("$%d", n)
}
