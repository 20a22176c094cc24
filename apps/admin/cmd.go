package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/learningcloud/backend/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - apply pending database migrations")
	fmt.Println("  adduser -email EMAIL -first FIRST -last LAST [-role TEACHER|PARENT|ADMIN] - create a user; the password will be prompted")
	fmt.Println("  addstudent -studentid ID -first FIRST -last LAST -grade 1..4 - create a student; the PIN will be prompted")
	fmt.Println("  sampledata - load the sample catalog (subjects, lessons, quizzes)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserFirst := addUserCmd.String("first", "", "The user's first name.")
	addUserLast := addUserCmd.String("last", "", "The user's last name.")
	addUserRole := addUserCmd.String("role", user.RoleTeacher, "One of TEACHER, PARENT or ADMIN.")

	addStudentCmd := flag.NewFlagSet("addstudent", flag.ExitOnError)
	addStudentID := addStudentCmd.String("studentid", "", "The student's login identifier.")
	addStudentFirst := addStudentCmd.String("first", "", "The student's first name.")
	addStudentLast := addStudentCmd.String("last", "", "The student's last name.")
	addStudentGrade := addStudentCmd.Int("grade", 0, "The student's grade level (1-4).")

	switch args[1] {
	case "migrate":
		return cli.migrate()

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserFirst == "" || *addUserLast == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptSecret("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserFirst, *addUserLast, *addUserRole, pwd)

	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStudentID == "" || *addStudentFirst == "" || *addStudentLast == "" || *addStudentGrade == 0 {
			addStudentCmd.Usage()
			return errHelp
		}
		pin, err := promptSecret("Enter PIN:")
		if err != nil {
			return err
		}
		if pin == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		return cli.addStudent(*addStudentID, *addStudentFirst, *addStudentLast, *addStudentGrade, pin)

	case "sampledata":
		return cli.sampleData()

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	secret, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
