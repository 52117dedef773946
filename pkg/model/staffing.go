// Package model 定义值班表引擎的核心数据模型
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// StaffingRulesKey 最低配员规则的持久化键
const StaffingRulesKey = "MIN_STAFFING_RULES_V1"

// StaffingRules 按工作日类别的最低配员规则
// 顶层键固定为 Daily / Mo-Do / Fr / Sa-So / Holiday，外加核心忽略的 Colors
type StaffingRules struct {
	Daily   map[Code]int      `json:"Daily"`
	MoDo    map[Code]int      `json:"Mo-Do"`
	Fr      map[Code]int      `json:"Fr"`
	SaSo    map[Code]int      `json:"Sa-So"`
	Holiday map[Code]int      `json:"Holiday"`
	Colors  map[string]string `json:"Colors,omitempty"`
}

// ParseStaffingRules 解析持久化的JSON文档，负数计数视为无效
func ParseStaffingRules(raw []byte) (*StaffingRules, error) {
	r := &StaffingRules{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, r); err != nil {
			return nil, fmt.Errorf("解析配员规则失败: %w", err)
		}
	}
	for name, m := range map[string]map[Code]int{
		"Daily": r.Daily, "Mo-Do": r.MoDo, "Fr": r.Fr, "Sa-So": r.SaSo, "Holiday": r.Holiday,
	} {
		for c, n := range m {
			if n < 0 {
				return nil, fmt.Errorf("配员规则 %s.%s 为负数: %d", name, c, n)
			}
		}
	}
	if r.Daily == nil {
		r.Daily = make(map[Code]int)
	}
	return r, nil
}

// ProfileFor 组合某日期的配员画像：Daily ∪ 工作日类别规则
// 节假日优先于周末类别；同一代码取两者较大值（Daily 始终生效）
func (r *StaffingRules) ProfileFor(date time.Time, isHoliday bool) map[Code]int {
	profile := make(map[Code]int, len(r.Daily))
	for c, n := range r.Daily {
		profile[c] = n
	}

	var class map[Code]int
	switch {
	case isHoliday:
		class = r.Holiday
	case date.Weekday() == time.Friday:
		class = r.Fr
	case date.Weekday() == time.Saturday || date.Weekday() == time.Sunday:
		class = r.SaSo
	default:
		class = r.MoDo
	}

	for c, n := range class {
		if n > profile[c] {
			profile[c] = n
		}
	}
	return profile
}

// Encode 序列化为持久化JSON文档
func (r *StaffingRules) Encode() ([]byte, error) {
	return json.Marshal(r)
}
