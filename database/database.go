package database

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ShubhamSingh-04/attendance-system-server/config"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

var DB *gorm.DB

func Connect(cfg *config.Config) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	DB = db

	if err := Migrate(DB); err != nil {
		log.Fatalf("auto migrate failed: %v", err)
	}
}

// Migrate creates or updates the schema for every model. Split out from
// Connect so tests can run it against their own database handles.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.Camera{},
		&models.Class{},
		&models.Subject{},
		&models.Teacher{},
		&models.Student{},
		&models.Attendance{},
	)
}
