package main

import (
	"github.com/learningcloud/backend/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate() error {
	if err := migrateFunc(cli.db.DB); err != nil {
		return err
	}
	logger.Print("migrations applied")
	return nil
}
