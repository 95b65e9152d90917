package main

import (
	"context"

	"github.com/eligue/academy/core/user"
)

// addUser validates nu like the API does and creates the user.
// The password given here is temporary: it must be changed on first login.
func (cli *commandLine) addUser(nu user.NewUser) error {
	if nu.FirstName == "" {
		nu.FirstName = nu.LoginID
	}
	if nu.LastName == "" {
		nu.LastName = nu.Role
	}
	if nu.CIN == "" {
		nu.CIN = "NA"
	}
	if err := nu.Validate(cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	cli.printf("user %q created (id %d)\n", usr.LoginID, usr.ID)
	return nil
}
