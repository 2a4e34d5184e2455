// Package database - Embedded SQL migrations
package database

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for migrations
func (MigrationRecord) TableName() string {
	return "_pawbase_migrations"
}

// RunMigrations executes all pending SQL migrations in filename order
func RunMigrations(db *gorm.DB) error {
	log := zap.L()

	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var count int64
		db.Model(&MigrationRecord{}).Where("name = ?", file).Count(&count)
		if count > 0 {
			log.Debug("migration already applied", zap.String("file", file))
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		log.Info("applying migration", zap.String("file", file))
		if err := db.Exec(string(content)).Error; err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}

		if err := db.Create(&MigrationRecord{Name: file}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}
	}

	return nil
}
