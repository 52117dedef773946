package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
)

// MemoryRoster 内存值班表仓储
// 测试与演示模式使用，语义与 PostgresRoster 保持一致
type MemoryRoster struct {
	mu sync.Mutex

	employees   []*model.Employee
	assignments map[string]model.Code // "员工ID|日期"
	vacations   []*model.VacationRecord
	wishes      map[string]model.WishInfo
	locks       map[string]*model.Lock
	configs     map[string]json.RawMessage
}

// NewMemoryRoster 创建内存仓储
func NewMemoryRoster(employees ...*model.Employee) *MemoryRoster {
	return &MemoryRoster{
		employees:   employees,
		assignments: make(map[string]model.Code),
		wishes:      make(map[string]model.WishInfo),
		locks:       make(map[string]*model.Lock),
		configs:     make(map[string]json.RawMessage),
	}
}

func cellKey(employeeID int64, date string) string {
	return fmt.Sprintf("%d|%s", employeeID, date)
}

// AddVacation 登记休假记录
func (m *MemoryRoster) AddVacation(v *model.VacationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vacations = append(m.vacations, v)
}

// AddWish 登记班次意愿，来源缺失时归为用户申请
func (m *MemoryRoster) AddWish(employeeID int64, date string, info model.WishInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info.Source == "" {
		info.Source = model.WishFromUser
	}
	m.wishes[cellKey(employeeID, date)] = info
}

// SetCell 直接写入单元格，绕过锁检查（测试铺底数据用）
func (m *MemoryRoster) SetCell(employeeID int64, date string, code model.Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[cellKey(employeeID, date)] = code
}

// CodeAt 读取单元格代码
func (m *MemoryRoster) CodeAt(employeeID int64, date string) model.Code {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignments[cellKey(employeeID, date)]
}

// LoadMonth 组装整月快照
func (m *MemoryRoster) LoadMonth(ctx context.Context, year, month int) (*model.MonthSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &model.MonthSnapshot{
		Year:             year,
		Month:            month,
		Employees:        m.employees,
		Assignments:      make(map[int64]map[int]model.Code),
		PrevMonthLastDay: make(map[int64]model.Code),
		Vacations:        make(map[int64]map[int]model.VacationStatus),
		Wishes:           make(map[int64]map[int]model.WishInfo),
		Locks:            make(map[int64]map[int]model.Code),
	}

	prevLast := time.Date(year, time.Month(month), 0, 0, 0, 0, 0, time.Local).Format("2006-01-02")
	for _, e := range m.employees {
		if code, ok := m.assignments[cellKey(e.ID, prevLast)]; ok {
			snap.PrevMonthLastDay[e.ID] = code
		}
		for day := 1; day <= snap.Days(); day++ {
			date := model.FormatDate(year, month, day)
			if code, ok := m.assignments[cellKey(e.ID, date)]; ok {
				if snap.Assignments[e.ID] == nil {
					snap.Assignments[e.ID] = make(map[int]model.Code)
				}
				snap.Assignments[e.ID][day] = code
			}
			if w, ok := m.wishes[cellKey(e.ID, date)]; ok {
				if snap.Wishes[e.ID] == nil {
					snap.Wishes[e.ID] = make(map[int]model.WishInfo)
				}
				snap.Wishes[e.ID][day] = w
			}
			if l, ok := m.locks[cellKey(e.ID, date)]; ok {
				if snap.Locks[e.ID] == nil {
					snap.Locks[e.ID] = make(map[int]model.Code)
				}
				snap.Locks[e.ID][day] = l.Code
			}
		}
	}

	for _, v := range m.vacations {
		start, err := time.Parse("2006-01-02", v.StartDate)
		if err != nil {
			continue
		}
		end, err := time.Parse("2006-01-02", v.EndDate)
		if err != nil {
			continue
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			day := model.ParseDay(d.Format("2006-01-02"), year, month)
			if day == 0 {
				continue
			}
			if snap.Vacations[v.EmployeeID] == nil {
				snap.Vacations[v.EmployeeID] = make(map[int]model.VacationStatus)
			}
			snap.Vacations[v.EmployeeID][day] = v.Status
		}
	}

	snap.RecountDailyCounts()
	return snap, nil
}

// SaveAssignment 写入单元格，锁定代码不一致时拒绝
func (m *MemoryRoster) SaveAssignment(ctx context.Context, employeeID int64, date string, code model.Code, keepRequest bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := cellKey(employeeID, date)
	if l, ok := m.locks[key]; ok && l.Code != code {
		return errors.LockedCell(employeeID, date, string(l.Code))
	}

	if code == model.CodeEmpty {
		delete(m.assignments, key)
	} else {
		m.assignments[key] = code
	}
	if !keepRequest {
		if w, ok := m.wishes[key]; ok && w.Status == model.WishPending {
			delete(m.wishes, key)
		}
	}
	return nil
}

// DeleteMonth 批量清空月份，受保护代码与锁定单元格除外
func (m *MemoryRoster) DeleteMonth(ctx context.Context, year, month int, adminID uuid.UUID) ([]model.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	protected := make(map[model.Code]bool, len(model.BulkDeleteExcluded))
	for _, c := range model.BulkDeleteExcluded {
		protected[c] = true
	}

	excludedSet := make(map[model.Code]bool)
	days := model.DaysInMonth(year, month)
	for _, e := range m.employees {
		for day := 1; day <= days; day++ {
			key := cellKey(e.ID, model.FormatDate(year, month, day))
			code, ok := m.assignments[key]
			if !ok {
				continue
			}
			if _, locked := m.locks[key]; locked || protected[code] {
				excludedSet[code] = true
				continue
			}
			delete(m.assignments, key)
		}
	}

	excluded := make([]model.Code, 0, len(excludedSet))
	for c := range excludedSet {
		excluded = append(excluded, c)
	}
	sort.Slice(excluded, func(i, j int) bool { return excluded[i] < excluded[j] })
	return excluded, nil
}

// SetLock 设置单元格锁
func (m *MemoryRoster) SetLock(ctx context.Context, lock *model.Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *lock
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.locks[cellKey(lock.EmployeeID, lock.Date)] = &stored
	return nil
}

// ClearLock 解除单元格锁
func (m *MemoryRoster) ClearLock(ctx context.Context, employeeID int64, date string, adminID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, cellKey(employeeID, date))
	return nil
}

// ListLocks 列出月内的全部单元格锁
func (m *MemoryRoster) ListLocks(ctx context.Context, year, month int) ([]*model.Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var locks []*model.Lock
	for _, l := range m.locks {
		if model.ParseDay(l.Date, year, month) > 0 {
			locks = append(locks, l)
		}
	}
	sort.Slice(locks, func(i, j int) bool {
		if locks[i].Date != locks[j].Date {
			return locks[i].Date < locks[j].Date
		}
		return locks[i].EmployeeID < locks[j].EmployeeID
	})
	return locks, nil
}

// LoadConfig 读取配置文档，键缺失时返回 nil
func (m *MemoryRoster) LoadConfig(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.configs[key]
	if !ok {
		return nil, nil
	}
	return raw, nil
}

// SaveConfig 整体替换配置文档
func (m *MemoryRoster) SaveConfig(ctx context.Context, key string, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[key] = raw
	return nil
}
