package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/user"
)

func (cli *commandLine) addUser(email, first, last, role, pwd string) error {
	ctx := context.Background()
	role = strings.ToUpper(core.CleanString(role))
	switch role {
	case user.RoleTeacher, user.RoleParent, user.RoleAdmin:
	default:
		return fmt.Errorf("invalid role %q", role)
	}

	usr := user.User{
		FirstName:  core.CleanString(first),
		LastName:   core.CleanString(last),
		Email:      core.CleanString(email, true /* lower */),
		Role:       role,
		IsActive:   true,
		IsVerified: true,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	usr, err := cli.usrRepo.CreateUser(ctx, usr)
	if err != nil {
		return err
	}
	logger.Printf("%s %q created (id=%d)", strings.ToLower(role), usr.Email, usr.ID)
	return nil
}

func (cli *commandLine) addStudent(studentID, first, last string, grade int, pin string) error {
	ctx := context.Background()
	if grade < user.MinGradeLevel || grade > user.MaxGradeLevel {
		return fmt.Errorf("invalid grade level %d", grade)
	}

	usr := user.User{
		FirstName:  core.CleanString(first),
		LastName:   core.CleanString(last),
		Role:       user.RoleStudent,
		StudentID:  core.CleanString(studentID, true /* lower */),
		GradeLevel: grade,
		IsActive:   true,
		IsVerified: true,
	}
	if err := usr.SetPIN(pin); err != nil {
		return err
	}

	usr, err := cli.usrRepo.CreateUser(ctx, usr)
	if err != nil {
		return err
	}
	logger.Printf("student %q created (id=%d)", usr.StudentID, usr.ID)
	return nil
}
