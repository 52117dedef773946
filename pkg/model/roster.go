// Package model 定义值班表引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// VacationStatus 休假申请状态
type VacationStatus string

const (
	VacationPending   VacationStatus = "pending"
	VacationApproved  VacationStatus = "approved"
	VacationCancelled VacationStatus = "cancelled"
	VacationRejected  VacationStatus = "rejected"
)

// WishStatus 班次意愿申请状态
type WishStatus string

const (
	WishPending  WishStatus = "pending"
	WishAccepted WishStatus = "accepted"
	WishApproved WishStatus = "approved"
	WishRejected WishStatus = "rejected"
)

// WishSource 意愿申请来源
type WishSource string

const (
	WishFromUser  WishSource = "user"
	WishFromAdmin WishSource = "admin"
)

// Assignment 值班分配：每个 (员工, 日期) 至多一条
type Assignment struct {
	EmployeeID int64     `json:"employee_id" db:"employee_id"`
	Date       string    `json:"date" db:"date"` // YYYY-MM-DD
	Code       Code      `json:"code" db:"code"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// VacationRecord 休假记录，仅 approved 状态阻止生成器写入
type VacationRecord struct {
	ID         int64          `json:"id" db:"id"`
	EmployeeID int64          `json:"employee_id" db:"employee_id"`
	StartDate  string         `json:"start_date" db:"start_date"`
	EndDate    string         `json:"end_date" db:"end_date"`
	Status     VacationStatus `json:"status" db:"status"`
}

// WishRecord 班次意愿记录
// 已接受的免班映射为代码 X，已接受的指定班次映射为所选代码
type WishRecord struct {
	ID         int64      `json:"id" db:"id"`
	EmployeeID int64      `json:"employee_id" db:"employee_id"`
	Date       string     `json:"date" db:"date"`
	Requested  Code       `json:"requested_code" db:"requested_code"`
	Status     WishStatus `json:"status" db:"status"`
	Source     WishSource `json:"source" db:"source"`
}

// Lock 单元格锁：管理员冻结的 (员工, 日期, 代码)
type Lock struct {
	EmployeeID int64     `json:"employee_id" db:"employee_id"`
	Date       string    `json:"date" db:"date"`
	Code       Code      `json:"code" db:"code"`
	SecuredBy  uuid.UUID `json:"secured_by" db:"secured_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// WishInfo 快照中单元格的意愿信息
type WishInfo struct {
	Status    WishStatus `json:"status"`
	Requested Code       `json:"requested_code"`
	Source    WishSource `json:"source"`
}

// MonthSnapshot 一次往返加载的整月数据
// 生成器在运行期间独占该快照
type MonthSnapshot struct {
	Year  int `json:"year"`
	Month int `json:"month"`

	Employees []*Employee `json:"employees"`

	// Assignments[员工ID][日] = 代码
	Assignments map[int64]map[int]Code `json:"assignments"`

	// PrevMonthLastDay[员工ID] = 上月最后一天的代码（夜班溢出和休息检查用）
	PrevMonthLastDay map[int64]Code `json:"prev_month_last_day"`

	// Vacations[员工ID][日] = 状态（approved 与 pending 均在内）
	Vacations map[int64]map[int]VacationStatus `json:"vacations"`

	// Wishes[员工ID][日] = 意愿信息
	Wishes map[int64]map[int]WishInfo `json:"wishes"`

	// DailyCounts[日][代码] = 人数，由 Assignments 重算，忽略隐藏员工
	DailyCounts map[int]map[Code]int `json:"daily_counts"`

	// Locks[员工ID][日] = 锁定代码
	Locks map[int64]map[int]Code `json:"locks"`
}

// Days 返回快照所在月份的天数
func (s *MonthSnapshot) Days() int {
	return DaysInMonth(s.Year, s.Month)
}

// DateOf 返回指定日的日期
func (s *MonthSnapshot) DateOf(day int) time.Time {
	return time.Date(s.Year, time.Month(s.Month), day, 0, 0, 0, 0, time.Local)
}

// EmployeeByID 按ID查找员工
func (s *MonthSnapshot) EmployeeByID(id int64) *Employee {
	for _, e := range s.Employees {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// RecountDailyCounts 由分配全量重算每日计数，忽略隐藏员工
func (s *MonthSnapshot) RecountDailyCounts() {
	s.DailyCounts = make(map[int]map[Code]int)
	hidden := make(map[int64]bool)
	for _, e := range s.Employees {
		if e.Hidden {
			hidden[e.ID] = true
		}
	}
	for empID, byDay := range s.Assignments {
		if hidden[empID] {
			continue
		}
		for day, c := range byDay {
			if c == CodeEmpty {
				continue
			}
			if s.DailyCounts[day] == nil {
				s.DailyCounts[day] = make(map[Code]int)
			}
			s.DailyCounts[day][c]++
		}
	}
}

// ViolationCell 冲突单元格 (员工, 月内日)，派生数据，不持久化
type ViolationCell struct {
	EmployeeID int64 `json:"employee_id"`
	Day        int   `json:"day"`
}

// DaysInMonth 返回某月的天数
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.Local).Day()
}

// FormatDate 格式化 (年, 月, 日) 为 YYYY-MM-DD
func FormatDate(year, month, day int) string {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local).Format("2006-01-02")
}

// ParseDay 从 YYYY-MM-DD 提取月内日，不属于该月时返回 0
func ParseDay(date string, year, month int) int {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0
	}
	if t.Year() != year || int(t.Month()) != month {
		return 0
	}
	return t.Day()
}
