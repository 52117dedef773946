package generator

import (
	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/model"
)

// restSensitive 夜班次日不可接排的代码
var restSensitive = map[model.Code]bool{
	model.CodeDay:       true,
	model.CodeFridaySix: true,
	model.CodeTraining:  true,
	model.CodeShooting:  true,
}

// Evaluator 无状态的约束谓词集合
// 所有谓词基于活动分配映射加员工/日期上下文
type Evaluator struct {
	catalog *catalog.Catalog
	cfg     *model.GeneratorConfig
}

// NewEvaluator 创建约束评估器
func NewEvaluator(cat *catalog.Catalog, cfg *model.GeneratorConfig) *Evaluator {
	return &Evaluator{catalog: cat, cfg: cfg}
}

// freeAt 检查某日对休息规则是否算空闲
// 月外未加载的日期按空闲处理
func (ev *Evaluator) freeAt(c *MonthCache, empID int64, day int) bool {
	if day < 0 || day > c.Days() {
		return true
	}
	return c.CodeAt(empID, day).IsFree()
}

// RestViolated 硬休息规则：夜班与次日的白班/六小时班/培训/射击不可相邻
// 双向检查，保证生成器不会引入新的违规
func (ev *Evaluator) RestViolated(c *MonthCache, empID int64, day int, cand model.Code) bool {
	if restSensitive[cand] && c.CodeAt(empID, day-1) == model.CodeNight {
		return true
	}
	if cand == model.CodeNight && restSensitive[c.CodeAt(empID, day+1)] {
		return true
	}
	return false
}

// TripletViolated 夜 — 空 — 白 三连规则（第3轮起放宽）
func (ev *Evaluator) TripletViolated(c *MonthCache, empID int64, day int, cand model.Code) bool {
	if cand == model.CodeDay && day >= 2 &&
		ev.freeAt(c, empID, day-1) && c.CodeAt(empID, day-2) == model.CodeNight {
		return true
	}
	if cand == model.CodeNight && day+2 <= c.Days() &&
		ev.freeAt(c, empID, day+1) && c.CodeAt(empID, day+2) == model.CodeDay {
		return true
	}
	return false
}

// MandatoryRestViolated 强制休息规则（第4轮放宽）
// 连班 ≥ 硬上限后必须有至少 mandatory_rest_days 个空闲日才能再排班
// 从目标日期向前越过空闲日走到最近的工作日，统计其前方的连班长度
func (ev *Evaluator) MandatoryRestViolated(c *MonthCache, empID int64, day int) bool {
	if ev.cfg.MandatoryRestDays <= 0 {
		return false
	}

	free := 0
	d := day - 1
	for d >= 0 && ev.freeAt(c, empID, d) {
		if d == 0 {
			// 更早的数据未加载，无法确认工作块
			return false
		}
		free++
		d--
	}
	if d < 0 {
		return false
	}

	block := 0
	for d >= 0 && c.CodeAt(empID, d).IsWork() {
		block++
		d--
	}

	return block >= model.HardMaxConsecutiveShifts && free < ev.cfg.MandatoryRestDays
}

// DogConflict 同犬时间重叠规则（硬，所有轮次）
// 候选班次不得与同日已排班的同犬员工时间重叠
func (ev *Evaluator) DogConflict(c *MonthCache, emp *model.Employee, day int, cand model.Code) bool {
	if !emp.HasDog() {
		return false
	}
	for _, other := range c.Snapshot().Employees {
		if !emp.SharesDog(other) {
			continue
		}
		otherCode := c.CodeAt(other.ID, day)
		if otherCode == model.CodeEmpty {
			continue
		}
		if ev.catalog.Overlap(cand, otherCode) {
			return true
		}
	}
	return false
}

// ConsecutiveBefore 目标日期前紧邻的连续工作日数
func (ev *Evaluator) ConsecutiveBefore(c *MonthCache, empID int64, day int) int {
	count := 0
	for d := day - 1; d >= 0; d-- {
		if !c.CodeAt(empID, d).IsWork() {
			break
		}
		count++
	}
	return count
}

// ConsecutiveWith 若排入目标日期会形成的总连续工作日数
// 前后两侧的既有工作块被连通
func (ev *Evaluator) ConsecutiveWith(c *MonthCache, empID int64, day int) int {
	count := ev.ConsecutiveBefore(c, empID, day) + 1
	for d := day + 1; d <= c.Days(); d++ {
		if !c.CodeAt(empID, d).IsWork() {
			break
		}
		count++
	}
	return count
}

// SameShiftStreak 若排入候选代码会形成的同班次连排长度
func (ev *Evaluator) SameShiftStreak(c *MonthCache, empID int64, day int, cand model.Code) int {
	count := 1
	for d := day - 1; d >= 0; d-- {
		if c.CodeAt(empID, d) != cand {
			break
		}
		count++
	}
	return count
}

// Isolated 孤立检测：以候选日期为中心的 空-空-班-空 或 空-班-空-空 窗口
func (ev *Evaluator) Isolated(c *MonthCache, empID int64, day int) bool {
	if ev.freeAt(c, empID, day-2) && ev.freeAt(c, empID, day-1) && ev.freeAt(c, empID, day+1) {
		return true
	}
	if ev.freeAt(c, empID, day-1) && ev.freeAt(c, empID, day+1) && ev.freeAt(c, empID, day+2) {
		return true
	}
	return false
}

// ExceedsHourCeiling 月工时硬上限检查
func (ev *Evaluator) ExceedsHourCeiling(currentHours float64, cand model.Code, empID int64) bool {
	return currentHours+ev.catalog.Hours(cand) > ev.cfg.MaxHours(empID)
}
