package main

import (
	"context"

	"github.com/eligue/academy/storage/database/fixtures"
)

func (cli *commandLine) seed() error {
	data, err := fixtures.Load(context.Background(), cli.usrRepo, cli.catalogSvc)
	if err != nil {
		return err
	}
	cli.printf("formation %q (id %d), %d accounts\n", data.Formation.Title, data.Formation.ID, len(data.Users))
	cli.printf("demo password: %s\n", fixtures.DefaultPassword)
	return nil
}
