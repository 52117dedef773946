package generator

import (
	"sort"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/validator"
)

// ViolationSet 增量维护的冲突单元格集合
// 生成器与显示层共用；终态必须与全量扫描一致
type ViolationSet struct {
	cells map[model.ViolationCell]bool
}

// NewViolationSet 创建空集合
func NewViolationSet() *ViolationSet {
	return &ViolationSet{cells: make(map[model.ViolationCell]bool)}
}

// Seed 用全量扫描结果初始化集合
func (v *ViolationSet) Seed(cells []model.ViolationCell) {
	for _, c := range cells {
		v.cells[c] = true
	}
}

// Contains 检查单元格是否在集合中
func (v *ViolationSet) Contains(empID int64, day int) bool {
	return v.cells[model.ViolationCell{EmployeeID: empID, Day: day}]
}

// Len 返回冲突单元格数
func (v *ViolationSet) Len() int {
	return len(v.cells)
}

// Cells 返回排序后的冲突单元格列表
func (v *ViolationSet) Cells() []model.ViolationCell {
	result := make([]model.ViolationCell, 0, len(v.cells))
	for c := range v.cells {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EmployeeID != result[j].EmployeeID {
			return result[i].EmployeeID < result[j].EmployeeID
		}
		return result[i].Day < result[j].Day
	})
	return result
}

// ApplyPlacement 在一次分配后增量更新
// 员工自身规则的影响半径为2天，同犬规则只影响当日的同犬员工
func (v *ViolationSet) ApplyPlacement(det *validator.Detector, c *MonthCache, emp *model.Employee, day int) {
	for d := day - 2; d <= day+2; d++ {
		if d < 1 || d > c.Days() {
			continue
		}
		v.set(emp.ID, d, det.CellViolates(c, emp.ID, d))
	}
	for _, other := range c.Snapshot().Employees {
		if !emp.SharesDog(other) {
			continue
		}
		v.set(other.ID, day, det.CellViolates(c, other.ID, day))
	}
}

// Matches 检查集合是否与全量扫描结果一致
func (v *ViolationSet) Matches(cells []model.ViolationCell) bool {
	if len(cells) != len(v.cells) {
		return false
	}
	for _, c := range cells {
		if !v.cells[c] {
			return false
		}
	}
	return true
}

// set 设置或清除单元格的冲突标记
func (v *ViolationSet) set(empID int64, day int, violates bool) {
	cell := model.ViolationCell{EmployeeID: empID, Day: day}
	if violates {
		v.cells[cell] = true
	} else {
		delete(v.cells, cell)
	}
}
