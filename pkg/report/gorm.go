// 文件: pkg/report/gorm.go
// 结果落库：缓冲后批量写入 price_impacts 表
// 生产用 MySQL，测试用 SQLite 内存库

package report

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PriceImpact 表结构
type PriceImpact struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	RunID      int64   `gorm:"column:run_id;index:idx_run_event,priority:1"`
	Instrument string  `gorm:"column:instrument;type:varchar(32);index"`
	EventIndex int64   `gorm:"column:event_index;index:idx_run_event,priority:2"`
	Timestamp  int64   `gorm:"column:ts"`
	Action     string  `gorm:"column:action;type:char(1)"`
	Amount     *string `gorm:"column:amount;type:varchar(64)"` // NA 时为 NULL
	CreatedAt  int64   `gorm:"column:created_at"`
}

// TableName 表名
func (PriceImpact) TableName() string {
	return "price_impacts"
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&PriceImpact{})
}

// GormReporter 批量落库
// 只由 Runner 的单个 goroutine 调用，无需加锁
type GormReporter struct {
	db        *gorm.DB
	buffer    []*PriceImpact
	batchSize int
	written   int64
}

// NewGormReporter 创建
func NewGormReporter(db *gorm.DB, batchSize int) *GormReporter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &GormReporter{
		db:        db,
		buffer:    make([]*PriceImpact, 0, batchSize),
		batchSize: batchSize,
	}
}

// Report 实现 Reporter，缓冲满一批时写库
func (r *GormReporter) Report(ctx context.Context, rec Record) error {
	row := &PriceImpact{
		RunID:      rec.RunID,
		Instrument: rec.Instrument,
		EventIndex: rec.Outcome.EventIndex,
		Timestamp:  rec.Outcome.Timestamp,
		Action:     rec.Action(),
		CreatedAt:  time.Now().UnixMilli(),
	}
	if rec.Outcome.Available {
		v := rec.Value()
		row.Amount = &v
	}

	r.buffer = append(r.buffer, row)
	if len(r.buffer) >= r.batchSize {
		return r.Flush(ctx)
	}
	return nil
}

// Flush 写入缓冲中的全部记录
func (r *GormReporter) Flush(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(r.buffer, r.batchSize).Error; err != nil {
		return fmt.Errorf("write %d price impacts: %w", len(r.buffer), err)
	}
	r.written += int64(len(r.buffer))
	r.buffer = r.buffer[:0]
	return nil
}

// Written 已落库条数
func (r *GormReporter) Written() int64 {
	return r.written
}

// Close 写入剩余记录；连接由调用方管理
func (r *GormReporter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.Flush(ctx)
}
