// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func newBufferedAdapter(slow time.Duration) (*GormLogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewGormLogAdapter(zerolog.New(&buf).Level(zerolog.TraceLevel), slow), &buf
}

func TestGormLogAdapter_TraceError(t *testing.T) {
	adapter, buf := newBufferedAdapter(0)

	adapter.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 0
	}, errors.New("boom"))

	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)
	assert.Contains(t, buf.String(), "boom")
}

func TestGormLogAdapter_RecordNotFoundIsQuiet(t *testing.T) {
	adapter, buf := newBufferedAdapter(0)

	adapter.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM runs", 0
	}, gormlogger.ErrRecordNotFound)

	assert.Empty(t, buf.String())
}

func TestGormLogAdapter_SlowQuery(t *testing.T) {
	adapter, buf := newBufferedAdapter(time.Millisecond)

	adapter.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT * FROM runs", 3
	}, nil)

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "Slow query")
	assert.Contains(t, buf.String(), `"rows":3`)
}

func TestGormLogAdapter_LogMode(t *testing.T) {
	adapter, buf := newBufferedAdapter(0)

	silent := adapter.LogMode(gormlogger.Silent)
	silent.Error(context.Background(), "should not appear %d", 1)
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
	assert.Empty(t, buf.String())

	verbose := adapter.LogMode(gormlogger.Info)
	verbose.Info(context.Background(), "migrated %d tables", 2)
	assert.Contains(t, buf.String(), "migrated 2 tables")

	// original adapter is unchanged
	adapter.Info(context.Background(), "hidden")
	assert.NotContains(t, buf.String(), "hidden")
}
