package main

import (
	"fmt"

	"github.com/darasahq/darasa/storage/database"
)

// mockable
var (
	migrateFunc = database.Migrate
	statusFunc  = database.MigrationStatus
)

func (cli *commandLine) migrate(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "status":
			return statusFunc(cli.db)
		default:
			return fmt.Errorf("unknown migrate argument %q", args[0])
		}
	}
	return migrateFunc(cli.db)
}
