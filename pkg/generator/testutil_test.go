package generator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
)

// saveCall 记录一次仓储写入
type saveCall struct {
	EmployeeID  int64
	Date        string
	Code        model.Code
	KeepRequest bool
}

// fakeRepo 内存仓储，测试专用
type fakeRepo struct {
	snap   *model.MonthSnapshot
	saves  []saveCall
	locked map[string]model.Code // "员工ID|日期" → 锁定代码
	fail   bool
}

func (r *fakeRepo) LoadMonth(ctx context.Context, year, month int) (*model.MonthSnapshot, error) {
	if r.fail {
		return nil, fmt.Errorf("连接被拒绝")
	}
	return r.snap, nil
}

func (r *fakeRepo) SaveAssignment(ctx context.Context, employeeID int64, date string, code model.Code, keepRequest bool) error {
	if r.fail {
		return fmt.Errorf("连接被拒绝")
	}
	if locked, ok := r.locked[fmt.Sprintf("%d|%s", employeeID, date)]; ok && locked != code {
		return errors.LockedCell(employeeID, date, string(locked))
	}
	r.saves = append(r.saves, saveCall{EmployeeID: employeeID, Date: date, Code: code, KeepRequest: keepRequest})
	return nil
}

// stubCalendar 固定日期集合的日历
type stubCalendar struct {
	holidays map[string]bool
	events   map[string]string
}

func (c *stubCalendar) IsHoliday(date time.Time) bool {
	return c.holidays[date.Format("2006-01-02")]
}

func (c *stubCalendar) EventType(date time.Time) string {
	return c.events[date.Format("2006-01-02")]
}

func emptyCalendar() *stubCalendar {
	return &stubCalendar{holidays: make(map[string]bool), events: make(map[string]string)}
}

// newSnapshot 构建空白月快照
func newSnapshot(year, month int, emps ...*model.Employee) *model.MonthSnapshot {
	return &model.MonthSnapshot{
		Year:             year,
		Month:            month,
		Employees:        emps,
		Assignments:      make(map[int64]map[int]model.Code),
		PrevMonthLastDay: make(map[int64]model.Code),
		Vacations:        make(map[int64]map[int]model.VacationStatus),
		Wishes:           make(map[int64]map[int]model.WishInfo),
		DailyCounts:      make(map[int]map[model.Code]int),
		Locks:            make(map[int64]map[int]model.Code),
	}
}

// setCode 设置快照单元格
func setCode(snap *model.MonthSnapshot, empID int64, day int, code model.Code) {
	if snap.Assignments[empID] == nil {
		snap.Assignments[empID] = make(map[int]model.Code)
	}
	snap.Assignments[empID][day] = code
}

// newCache 由快照构建月缓存
func newCache(t *testing.T, snap *model.MonthSnapshot) (*MonthCache, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{snap: snap}
	cache, err := LoadMonthCache(context.Background(), repo, snap.Year, snap.Month)
	if err != nil {
		t.Fatalf("LoadMonthCache() error = %v", err)
	}
	return cache, repo
}

// emp 构建测试员工
func emp(id int64, name, dog string) *model.Employee {
	return &model.Employee{ID: id, Name: name, Dog: dog}
}
