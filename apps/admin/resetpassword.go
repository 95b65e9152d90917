package main

import (
	"context"

	"github.com/pkg/errors"
)

// resetPassword sets a temporary password, to be replaced on next login.
func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByLoginIDOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.MustChangePassword = true
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}

func (cli *commandLine) resetProgress(uname string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByLoginIDOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err = cli.progressSvc.Reset(ctx, usr.ID); err != nil {
		return err
	}
	cli.logger.Info("progress reset", usr)
	return nil
}
