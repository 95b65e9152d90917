package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
	"github.com/eligue/academy/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db          *sql.DB
	usrRepo     user.Repository
	usrSvc      *user.Service
	catalogSvc  *catalog.Service
	progressSvc *progress.Service
	validate    *validator.Validate
	logger      core.Logger
	out         io.Writer
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	w := cli.out
	if w == nil {
		w = os.Stdout
	}
	_, _ = fmt.Fprintf(w, format, args...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)\n")
	cli.printf("  adduser -loginid ID -email EMAIL -role ROLE -firstname NAME -lastname NAME -cin CIN - create a user\n")
	cli.printf("  resetpassword -username LOGIN_ID|EMAIL - set a temporary password\n")
	cli.printf("  resetprogress -username LOGIN_ID|EMAIL - erase a learner's progress\n")
	cli.printf("  seed - load the demo accounts & formation\n")
}

// promptPassword reads a password without echo.
func (cli *commandLine) promptPassword(label string) (string, error) {
	cli.printf("%s:", label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserLoginID := addUserCmd.String("loginid", "", "The login id of the new user.")
	addUserEmail := addUserCmd.String("email", "", "The email of the new user.")
	addUserRole := addUserCmd.String("role", user.RoleAdministrateur, "One of the user roles.")
	addUserFirstName := addUserCmd.String("firstname", "", "The first name of the new user.")
	addUserLastName := addUserCmd.String("lastname", "", "The last name of the new user.")
	addUserCIN := addUserCmd.String("cin", "", "The national identity card number of the new user.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's login id or email. The password will be prompted next.")

	resetProgressCmd := flag.NewFlagSet("resetprogress", flag.ContinueOnError)
	resetProgressUname := resetProgressCmd.String("username", "", "The user's login id or email.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printf("Usage: migrate COMMAND [ARGS]\n")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserLoginID == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			FirstName:       *addUserFirstName,
			LastName:        *addUserLastName,
			CIN:             *addUserCIN,
			Role:            *addUserRole,
			Email:           *addUserEmail,
			LoginID:         *addUserLoginID,
			Password:        pwd,
			PasswordConfirm: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "resetprogress":
		if err := resetProgressCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetProgressUname == "" {
			resetProgressCmd.Usage()
			return errHelp
		}
		return cli.resetProgress(*resetProgressUname)

	case "seed":
		return cli.seed()

	default:
		cli.printUsage()
		return errHelp
	}
}
