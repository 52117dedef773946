package generator

import (
	"context"

	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
)

// MonthCache 月快照的读写门面
// 快照在生成运行期间归工作协程独占，不与并发读者共享
type MonthCache struct {
	repo   Repository
	snap   *model.MonthSnapshot
	days   int
	hidden map[int64]bool
}

// LoadMonthCache 从存储加载整月快照并建立索引
// 每日计数由分配全量重算，忽略隐藏员工
func LoadMonthCache(ctx context.Context, repo Repository, year, month int) (*MonthCache, error) {
	snap, err := repo.LoadMonth(ctx, year, month)
	if err != nil {
		if _, ok := err.(*errors.AppError); ok {
			return nil, err
		}
		return nil, errors.RepositoryUnavailable(err)
	}

	if snap.Assignments == nil {
		snap.Assignments = make(map[int64]map[int]model.Code)
	}
	if snap.PrevMonthLastDay == nil {
		snap.PrevMonthLastDay = make(map[int64]model.Code)
	}
	if snap.Vacations == nil {
		snap.Vacations = make(map[int64]map[int]model.VacationStatus)
	}
	if snap.Wishes == nil {
		snap.Wishes = make(map[int64]map[int]model.WishInfo)
	}
	if snap.Locks == nil {
		snap.Locks = make(map[int64]map[int]model.Code)
	}
	snap.RecountDailyCounts()

	c := &MonthCache{
		repo:   repo,
		snap:   snap,
		days:   snap.Days(),
		hidden: make(map[int64]bool),
	}
	for _, e := range snap.Employees {
		if e.Hidden {
			c.hidden[e.ID] = true
		}
	}
	return c, nil
}

// Snapshot 返回底层快照
func (c *MonthCache) Snapshot() *model.MonthSnapshot {
	return c.snap
}

// Days 返回该月天数
func (c *MonthCache) Days() int {
	return c.days
}

// CodeAt 返回单元格代码
// 日 0 表示上月最后一天，越界日返回空闲
func (c *MonthCache) CodeAt(empID int64, day int) model.Code {
	if day == 0 {
		return c.snap.PrevMonthLastDay[empID]
	}
	if day < 1 || day > c.days {
		return model.CodeEmpty
	}
	return c.snap.Assignments[empID][day]
}

// DailyCount 返回某日某代码的在岗人数（不含隐藏员工）
func (c *MonthCache) DailyCount(day int, code model.Code) int {
	return c.snap.DailyCounts[day][code]
}

// VacationStatus 返回某单元格的休假状态
func (c *MonthCache) VacationStatus(empID int64, day int) (model.VacationStatus, bool) {
	s, ok := c.snap.Vacations[empID][day]
	return s, ok
}

// Wish 返回某单元格的意愿信息
func (c *MonthCache) Wish(empID int64, day int) (model.WishInfo, bool) {
	w, ok := c.snap.Wishes[empID][day]
	return w, ok
}

// Save 持久化单元格并同步活动状态
// 空代码删除行，否则插入或更新；keepRequest 为 false 时同单元格的待处理意愿被删除
func (c *MonthCache) Save(ctx context.Context, empID int64, day int, code model.Code, keepRequest bool) error {
	date := model.FormatDate(c.snap.Year, c.snap.Month, day)
	if err := c.repo.SaveAssignment(ctx, empID, date, code, keepRequest); err != nil {
		if _, ok := err.(*errors.AppError); ok {
			return err
		}
		return errors.RepositoryUnavailable(err)
	}

	old := c.snap.Assignments[empID][day]
	if code == model.CodeEmpty {
		delete(c.snap.Assignments[empID], day)
		if len(c.snap.Assignments[empID]) == 0 {
			delete(c.snap.Assignments, empID)
		}
	} else {
		if c.snap.Assignments[empID] == nil {
			c.snap.Assignments[empID] = make(map[int]model.Code)
		}
		c.snap.Assignments[empID][day] = code
	}
	// 隐藏员工不计入每日计数
	if !c.hidden[empID] {
		c.RecountDay(day, old, code)
	}

	if !keepRequest {
		if w, ok := c.snap.Wishes[empID][day]; ok && w.Status == model.WishPending {
			delete(c.snap.Wishes[empID], day)
		}
	}
	return nil
}

// RecountDay 对某日计数做 O(1) 调整
// 计数降为零时删除代码项，某日全部为零时删除日项
func (c *MonthCache) RecountDay(day int, old, new model.Code) {
	if old == new {
		return
	}
	counts := c.snap.DailyCounts[day]
	if old != model.CodeEmpty && counts != nil {
		if counts[old] > 1 {
			counts[old]--
		} else {
			delete(counts, old)
		}
	}
	if new != model.CodeEmpty {
		if counts == nil {
			counts = make(map[model.Code]int)
			if c.snap.DailyCounts == nil {
				c.snap.DailyCounts = make(map[int]map[model.Code]int)
			}
			c.snap.DailyCounts[day] = counts
		}
		counts[new]++
	}
	if len(counts) == 0 {
		delete(c.snap.DailyCounts, day)
	}
}
