package db

import (
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Job{},
		&models.Source{},
		&models.Item{},
	)
}
