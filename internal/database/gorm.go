package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whatsapp-dispatch/internal/config"
	"whatsapp-dispatch/internal/models"
)

// Open connects to Postgres when DB_HOST is set and otherwise falls back
// to a local sqlite file, then runs auto-migration.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.DBHost != "" {
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		dialector = postgres.Open(dsn)
	} else {
		log.Info().Str("path", cfg.DBPath).Msg("DB_HOST not set, using sqlite")
		dialector = sqlite.Open(cfg.DBPath)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Connection{},
		&models.Contact{},
		&models.Segment{},
		&models.Template{},
		&models.MessageLog{},
		&models.Campaign{},
		&models.AutoReplyRule{},
	); err != nil {
		return nil, fmt.Errorf("auto-migration: %w", err)
	}

	log.Info().Msg("database ready")
	return db, nil
}
