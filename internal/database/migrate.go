package database

import (
	"fmt"

	"github.com/xpanvictor/hearken/internal/repository/transcript"
	"gorm.io/gorm"
)

func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&transcript.TranscriptEntity{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
