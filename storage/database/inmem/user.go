package inmem

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.users {
		if usr.Email != "" && u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
		if usr.StudentID != "" && u.StudentID == usr.StudentID {
			return user.User{}, user.ErrStudentIDExists
		}
	}

	repo.db.userSeq++
	usr.ID = repo.db.userSeq
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email != "" && usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByStudentID(_ context.Context, studentID string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.users {
		if usr.StudentID != "" && usr.StudentID == studentID {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) FilterUsers(_ context.Context, filter user.QueryFilter, page core.Pagination, ord []core.DBOrdering) ([]user.User, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []user.User
	for _, usr := range repo.query() {
		if filter.Search != "" && !matchSearch(filter.Search, usr.FirstName, usr.LastName, usr.StudentID, usr.Email) {
			continue
		}
		if filter.Role != "" && usr.Role != filter.Role {
			continue
		}
		if filter.GradeLevel > 0 && usr.GradeLevel != filter.GradeLevel {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		matches = append(matches, usr)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	total := len(matches)
	return paginate(matches, page), total, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id int, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = at
	return nil
}

func (repo *userRepository) CreateLoginAttempt(_ context.Context, att user.LoginAttempt) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	att.ID = len(repo.db.loginAttempts) + 1
	repo.db.loginAttempts = append(repo.db.loginAttempts, att)
	return nil
}

func matchSearch(search string, fields ...string) bool {
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page core.Pagination) []T {
	page.Clean()
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + page.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
