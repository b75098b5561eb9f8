package cleaner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/crossfin/crossfin-route-engine/internal/dao"
	"github.com/crossfin/crossfin-route-engine/internal/models"
)

func testSnapshotDAO(t *testing.T) (*dao.PriceSnapshotDAO, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PriceSnapshot{}))
	return dao.NewPriceSnapshotDAO(db), db
}

func insertSnapshot(t *testing.T, db *gorm.DB, coin string, price float64, age time.Duration) {
	t.Helper()
	row := &models.PriceSnapshot{Coin: coin, Price: price, Source: "realtime"}
	require.NoError(t, db.Create(row).Error)
	// 回拨采集时间模拟老数据
	require.NoError(t, db.Model(row).Update("created_at", time.Now().Add(-age)).Error)
}

func TestCleaner_RetentionCutoff(t *testing.T) {
	snapshots, db := testSnapshotDAO(t)
	insertSnapshot(t, db, "BTC", 64000, 10*24*time.Hour)
	insertSnapshot(t, db, "BTC", 65000, time.Hour)

	c := NewCleaner(snapshots, 7, 0, time.Hour)
	assert.EqualValues(t, 1, c.Clean())

	n, err := snapshots.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCleaner_RowCap(t *testing.T) {
	snapshots, db := testSnapshotDAO(t)
	for i := 0; i < 10; i++ {
		insertSnapshot(t, db, "BTC", 64000, time.Duration(10-i)*time.Minute)
	}

	c := NewCleaner(snapshots, 7, 4, time.Hour)
	assert.EqualValues(t, 6, c.Clean())

	n, err := snapshots.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestCleaner_NothingToClean(t *testing.T) {
	snapshots, db := testSnapshotDAO(t)
	insertSnapshot(t, db, "BTC", 64000, time.Hour)

	c := NewCleaner(snapshots, 7, 100, time.Hour)
	assert.EqualValues(t, 0, c.Clean())
}

func TestSnapshotDAO_LatestWithin(t *testing.T) {
	snapshots, db := testSnapshotDAO(t)
	insertSnapshot(t, db, "BTC", 60000, 48*time.Hour)
	insertSnapshot(t, db, "BTC", 64000, time.Hour)
	insertSnapshot(t, db, "XRP", 0.5, 30*time.Minute)
	insertSnapshot(t, db, "DOGE", 0.1, 10*24*time.Hour) // 超出年龄窗口

	prices, err := snapshots.LatestWithin(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 64000.0, prices["BTC"], "newest row wins")
	assert.Equal(t, 0.5, prices["XRP"])
	assert.NotContains(t, prices, "DOGE")
}
