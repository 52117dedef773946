// Package calendar 提供节假日与训练日判定
package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/logger"
)

// 日历事件类型
const (
	EventTrainingQuarterly = "training-quarterly"
	EventShooting          = "shooting"
)

// Oracle 日历判定接口
type Oracle interface {
	// IsHoliday 判断日期是否为法定节假日
	IsHoliday(date time.Time) bool
	// EventType 返回日期的单位事件类型，无事件返回空串
	EventType(date time.Time) string
}

// Source 可预加载的日历来源
type Source interface {
	// Preload 把日期区间（YYYY-MM-DD，双闭）载入内存
	Preload(ctx context.Context, first, last string) error
	Oracle
}

// dayInfo 单日日历条目
type dayInfo struct {
	Holiday bool
	Event   string
}

// Static 内存日历，测试与无数据库场景使用
type Static struct {
	days map[string]dayInfo
}

// NewStatic 创建空的内存日历
func NewStatic() *Static {
	return &Static{days: make(map[string]dayInfo)}
}

// AddHoliday 登记节假日
func (s *Static) AddHoliday(date string) *Static {
	info := s.days[date]
	info.Holiday = true
	s.days[date] = info
	return s
}

// AddEvent 登记单位事件
func (s *Static) AddEvent(date, event string) *Static {
	info := s.days[date]
	info.Event = event
	s.days[date] = info
	return s
}

// Preload 内存日历无需预加载
func (s *Static) Preload(ctx context.Context, first, last string) error {
	return nil
}

// IsHoliday 判断日期是否为节假日
func (s *Static) IsHoliday(date time.Time) bool {
	return s.days[date.Format("2006-01-02")].Holiday
}

// EventType 返回日期的事件类型
func (s *Static) EventType(date time.Time) string {
	return s.days[date.Format("2006-01-02")].Event
}

// Postgres 数据库日历，整段预加载后只读
type Postgres struct {
	db repository.DB

	mu    sync.RWMutex
	cache map[string]dayInfo
}

// NewPostgres 创建数据库日历
func NewPostgres(db repository.DB) *Postgres {
	return &Postgres{db: db, cache: make(map[string]dayInfo)}
}

// Preload 把日期区间内的日历条目载入缓存
// 生成前按月调用一次，附带上下月各一天的余量
func (p *Postgres) Preload(ctx context.Context, first, last string) error {
	query := `
		SELECT to_char(date, 'YYYY-MM-DD'), holiday, COALESCE(event_type, '')
		FROM calendar_days
		WHERE date >= $1 AND date <= $2
	`

	rows, err := p.db.QueryContext(ctx, query, first, last)
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("查询日历失败: %w", err))
	}
	defer rows.Close()

	loaded := make(map[string]dayInfo)
	for rows.Next() {
		var date, event string
		var holiday bool
		if err := rows.Scan(&date, &holiday, &event); err != nil {
			return errors.RepositoryUnavailable(fmt.Errorf("扫描日历失败: %w", err))
		}
		loaded[date] = dayInfo{Holiday: holiday, Event: event}
	}
	if err := rows.Err(); err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("查询日历失败: %w", err))
	}

	p.mu.Lock()
	for k, v := range loaded {
		p.cache[k] = v
	}
	p.mu.Unlock()

	logger.Debug().Str("first", first).Str("last", last).Int("days", len(loaded)).Msg("日历已预加载")
	return nil
}

// IsHoliday 判断日期是否为节假日
func (p *Postgres) IsHoliday(date time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache[date.Format("2006-01-02")].Holiday
}

// EventType 返回日期的事件类型
func (p *Postgres) EventType(date time.Time) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache[date.Format("2006-01-02")].Event
}
