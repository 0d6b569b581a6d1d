package main

import (
	"errors"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/smartbackpack/storage/database"
)

var (
	gooseRunFunc database.GooseRunFunc = goose.Run // mockable

	errNoSQL = errors.New("migrations require the postgres database engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQL
	}
	return database.RunMigrations(gooseRunFunc, cli.db, args[0], args[1:]...)
}
