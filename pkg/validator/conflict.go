// Package validator 提供值班表冲突的全量扫描检测
// 检测结果供显示层高亮，也用于生成器的事后一致性校验
package validator

import (
	"fmt"
	"sort"

	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/model"
)

// RosterView 检测器读取值班表的最小视图
// 日 0 表示上月最后一天，越界日视为空闲
type RosterView interface {
	CodeAt(empID int64, day int) model.Code
	Days() int
}

// restSensitive 夜班次日不可接排的代码
var restSensitive = map[model.Code]bool{
	model.CodeDay:       true,
	model.CodeFridaySix: true,
	model.CodeTraining:  true,
	model.CodeShooting:  true,
}

// Detector 冲突检测器
type Detector struct {
	catalog   *catalog.Catalog
	employees []*model.Employee
	byID      map[int64]*model.Employee
}

// NewDetector 创建冲突检测器
func NewDetector(cat *catalog.Catalog, employees []*model.Employee) *Detector {
	d := &Detector{
		catalog:   cat,
		employees: employees,
		byID:      make(map[int64]*model.Employee, len(employees)),
	}
	for _, e := range employees {
		d.byID[e.ID] = e
	}
	return d
}

// CellViolates 检查单元格是否参与任何冲突
// 覆盖三类规则：夜班接班、夜-空-白三连、同犬时间重叠
func (d *Detector) CellViolates(view RosterView, empID int64, day int) bool {
	code := view.CodeAt(empID, day)
	if code == model.CodeEmpty {
		return false
	}

	// 夜班 → 次日接班
	if code == model.CodeNight && restSensitive[view.CodeAt(empID, day+1)] {
		return true
	}
	if restSensitive[code] && view.CodeAt(empID, day-1) == model.CodeNight {
		return true
	}

	// 夜 — 空 — 白 三连（本单元格可为夜班端或白班端）
	if code == model.CodeNight && day+2 <= view.Days() &&
		view.CodeAt(empID, day+1).IsFree() && view.CodeAt(empID, day+2) == model.CodeDay {
		return true
	}
	if code == model.CodeDay && day >= 2 &&
		view.CodeAt(empID, day-1).IsFree() && view.CodeAt(empID, day-2) == model.CodeNight {
		return true
	}

	// 同犬时间重叠
	emp := d.byID[empID]
	if emp != nil && emp.HasDog() {
		for _, other := range d.employees {
			if !emp.SharesDog(other) {
				continue
			}
			otherCode := view.CodeAt(other.ID, day)
			if otherCode == model.CodeEmpty {
				continue
			}
			if d.catalog.Overlap(code, otherCode) {
				return true
			}
		}
	}

	return false
}

// Scan 全量扫描，返回所有冲突单元格（按员工、日排序）
func (d *Detector) Scan(view RosterView) []model.ViolationCell {
	var cells []model.ViolationCell
	for _, e := range d.employees {
		for day := 1; day <= view.Days(); day++ {
			if d.CellViolates(view, e.ID, day) {
				cells = append(cells, model.ViolationCell{EmployeeID: e.ID, Day: day})
			}
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].EmployeeID != cells[j].EmployeeID {
			return cells[i].EmployeeID < cells[j].EmployeeID
		}
		return cells[i].Day < cells[j].Day
	})
	return cells
}

// HourBreach 单名员工的月工时超限
type HourBreach struct {
	EmployeeID int64
	Total      float64
	Ceiling    float64
}

func (b HourBreach) String() string {
	return fmt.Sprintf("员工 %d 月工时 %.1f 超过上限 %.1f", b.EmployeeID, b.Total, b.Ceiling)
}

// CheckHourCeilings 检查所有员工的月工时硬上限
// 上月最后一天的跨午夜班次按溢出分钟计入本月
func (d *Detector) CheckHourCeilings(view RosterView, cfg *model.GeneratorConfig) []HourBreach {
	var breaches []HourBreach
	for _, e := range d.employees {
		total := float64(d.catalog.SpillMinutes(view.CodeAt(e.ID, 0))) / 60.0
		for day := 1; day <= view.Days(); day++ {
			total += d.catalog.Hours(view.CodeAt(e.ID, day))
		}
		ceiling := cfg.MaxHours(e.ID)
		if total > ceiling {
			breaches = append(breaches, HourBreach{EmployeeID: e.ID, Total: total, Ceiling: ceiling})
		}
	}
	return breaches
}
