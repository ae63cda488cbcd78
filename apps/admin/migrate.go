package main

import (
	"errors"

	"github.com/atlportal/backend/storage/database"
)

var (
	gooseRunFunc = database.RunMigration // mockable

	errNoSQLDatabase = errors.New("migrations require a postgres backend")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
