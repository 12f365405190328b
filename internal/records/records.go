// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package records lists (id, name) rows from an arbitrary table of the
// configured database.
package records

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"github.com/noldarim/crewkit/internal/logger"
	"github.com/noldarim/crewkit/internal/models"
)

// ErrInvalidTable is returned for table names that are not plain identifiers
var ErrInvalidTable = errors.New("invalid table name")

// DefaultLimit caps the rows returned when the caller passes no limit
const DefaultLimit = 100

var validTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Lister reads records over a gorm connection
type Lister struct {
	db *gorm.DB
}

// NewLister creates a record lister
func NewLister(db *gorm.DB) *Lister {
	return &Lister{db: db}
}

// List returns up to limit rows of table ordered by id. The table name is
// validated and quoted, never interpolated raw.
func (l *Lister) List(ctx context.Context, table string, limit int) ([]models.Record, error) {
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var out []models.Record
	err := l.db.WithContext(ctx).
		Table(table).
		Select("id", "name").
		Order("id ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		log := logger.GetDatabaseLogger()
		log.Error().Err(err).Str("table", table).Msg("Failed to list records")
		return nil, fmt.Errorf("failed to list records from %s: %w", table, err)
	}
	if out == nil {
		out = []models.Record{}
	}
	return out, nil
}
