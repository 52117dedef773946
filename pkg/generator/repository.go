// Package generator 实现按月自动生成值班表的核心引擎
package generator

import (
	"context"
	"time"

	"github.com/zhiban/zhiban/pkg/model"
)

// Repository 生成器消费的值班表存储抽象
// 由 internal/repository 的 Postgres 实现满足
type Repository interface {
	// LoadMonth 一次往返加载整月快照
	LoadMonth(ctx context.Context, year, month int) (*model.MonthSnapshot, error)

	// SaveAssignment 保存单个分配：空代码删除行，否则插入或更新
	// keepRequest 为 false 时顺带删除同单元格的待处理意愿
	SaveAssignment(ctx context.Context, employeeID int64, date string, code model.Code, keepRequest bool) error
}

// Calendar 节假日与事件日历
type Calendar interface {
	// IsHoliday 检查日期是否为节假日
	IsHoliday(date time.Time) bool

	// EventType 返回日期的事件类型（training-quarterly / shooting），无事件为空串
	EventType(date time.Time) string
}
