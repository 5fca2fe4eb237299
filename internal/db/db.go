package db

import (
	"go-candor/internal/casestore"
	"go-candor/internal/chat"
	"go-candor/internal/config"
	"go-candor/internal/user"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config, log *zap.Logger) error {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	DB = db
	log.Named("db").Info("database connected and migrated")
	return nil
}

// Migrate creates or updates every table the server uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&user.User{}); err != nil {
		return err
	}
	if err := db.AutoMigrate(&chat.Chat{}, &chat.Message{}); err != nil {
		return err
	}
	return db.AutoMigrate(casestore.Models()...)
}
