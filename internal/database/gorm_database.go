// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/noldarim/crewkit/internal/config"
	"github.com/noldarim/crewkit/internal/logger"
	"github.com/noldarim/crewkit/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRunNotFound is returned when a run ID does not exist
var ErrRunNotFound = errors.New("run not found")

// GormDB wraps the GORM database connection
type GormDB struct {
	db *gorm.DB
}

// NewGormDB creates a new GORM database connection
func NewGormDB(cfg *config.DatabaseConfig) (*GormDB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	case "mysql":
		dialector = mysql.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.GetGormLogAdapter(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &GormDB{db: db}, nil
}

// AutoMigrate runs database migrations
func (db *GormDB) AutoMigrate() error {
	return db.db.AutoMigrate(
		&models.Run{},
		&models.StepResult{},
	)
}

// DB exposes the underlying connection for read-only helpers such as the record lister
func (db *GormDB) DB() *gorm.DB {
	return db.db
}

// Close closes the database connection
func (db *GormDB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun inserts or updates a run together with its step results
func (db *GormDB) SaveRun(ctx context.Context, run *models.Run) error {
	return db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true}).Create(run).Error; err != nil {
			return fmt.Errorf("failed to save run %s: %w", run.ID, err)
		}
		if len(run.StepResults) == 0 {
			return nil
		}
		for i := range run.StepResults {
			run.StepResults[i].RunID = run.ID
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&run.StepResults).Error; err != nil {
			return fmt.Errorf("failed to save step results for run %s: %w", run.ID, err)
		}
		return nil
	})
}

// GetRun retrieves a run with its step results in execution order
func (db *GormDB) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	err := db.db.WithContext(ctx).
		Preload("StepResults", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_index ASC")
		}).
		First(&run, "id = ?", runID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first, without step results
func (db *GormDB) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	var runs []*models.Run
	q := db.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// DeleteRun deletes a run and its step results
func (db *GormDB) DeleteRun(ctx context.Context, runID string) error {
	return db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&models.StepResult{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Run{}, "id = ?", runID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}
