package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"max.com/pricer/pkg/book"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库每个连接各自独立
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))
	return db
}

func TestGormReporter_BatchesAndFlushesOnClose(t *testing.T) {
	db := setupDB(t)
	r := NewGormReporter(db, 2)
	ctx := context.Background()

	require.NoError(t, r.Report(ctx, rec(1, book.SideBuy, 100, true)))

	var count int64
	require.NoError(t, db.Model(&PriceImpact{}).Count(&count).Error)
	assert.Zero(t, count, "below batch size stays buffered")

	require.NoError(t, r.Report(ctx, rec(2, book.SideSell, 0, false)))
	require.NoError(t, db.Model(&PriceImpact{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	require.NoError(t, r.Report(ctx, rec(3, book.SideSell, 4500, true)))
	require.NoError(t, r.Close())
	assert.Equal(t, int64(3), r.Written())

	var rows []PriceImpact
	require.NoError(t, db.Order("event_index").Find(&rows).Error)
	require.Len(t, rows, 3)

	assert.Equal(t, "S", rows[0].Action)
	require.NotNil(t, rows[0].Amount)
	assert.Equal(t, "1.00", *rows[0].Amount)

	assert.Equal(t, "B", rows[1].Action)
	assert.Nil(t, rows[1].Amount, "NA stored as NULL")

	assert.Equal(t, "45.00", *rows[2].Amount)
	assert.Equal(t, int64(42), rows[2].RunID)
	assert.Equal(t, "TEST", rows[2].Instrument)
}

func TestGormReporter_CloseWithEmptyBuffer(t *testing.T) {
	r := NewGormReporter(setupDB(t), 0)
	assert.NoError(t, r.Close())
	assert.Zero(t, r.Written())
}
