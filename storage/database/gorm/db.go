// Package gormrepos is an alternate persistence backend for the user,
// organization and access repositories, built on gorm. It shares the schema
// with the sqlx backend; migrations remain goose's job.
package gormrepos

import (
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/storage/database"
)

func Open(conf *core.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  database.DSN(conf),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "opening gorm connection")
	}
	return db, nil
}
