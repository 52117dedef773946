// Package model 定义值班表引擎的核心数据模型
package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// 生成器硬编码边界
const (
	// SoftMaxConsecutiveShifts 连班软上限（第一轮生效）
	SoftMaxConsecutiveShifts = 6
	// HardMaxConsecutiveShifts 连班硬上限（放宽轮次生效）
	HardMaxConsecutiveShifts = 8
	// DefaultHourCeiling 默认月工时硬上限
	DefaultHourCeiling = 228.0
	// GeneratorSettingsKey 生成器配置的持久化键
	GeneratorSettingsKey = "GENERATOR_SETTINGS_V1"
)

// PartnerPair 优先搭档对（双向），规范化存储为 (min, max, priority)
type PartnerPair struct {
	IDA      int64 `json:"id_a"`
	IDB      int64 `json:"id_b"`
	Priority int   `json:"priority"` // 1 = 最高
}

// PartnerRef 某员工视角下的搭档引用
type PartnerRef struct {
	PartnerID int64
	Priority  int
}

// UserPreference 单个员工的可调偏好
type UserPreference struct {
	MinMonthlyHours    *float64 `json:"min_monthly_hours,omitempty"`
	MaxMonthlyHours    *float64 `json:"max_monthly_hours,omitempty"`
	ShiftExclusions    []Code   `json:"shift_exclusions,omitempty"`
	RatioPreference    int      `json:"ratio_preference_scale"` // 0-100，50 = 无偏好
	MaxSameShiftStreak *int     `json:"max_consecutive_same_shift_override,omitempty"`
}

// UnmarshalJSON 解码时对缺失的比例偏好回填 50（无偏好）
func (p *UserPreference) UnmarshalJSON(data []byte) error {
	type alias UserPreference
	tmp := alias{RatioPreference: 50}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*p = UserPreference(tmp)
	return nil
}

// GeneratorConfig 生成器的全部用户可调旋钮
type GeneratorConfig struct {
	MaxConsecutiveSameShift   int     `json:"max_consecutive_same_shift"`
	MandatoryRestDays         int     `json:"mandatory_rest_days_after_max_shifts"`
	AvoidUnderstaffingHard    bool    `json:"avoid_understaffing_hard"`
	EnsureOneWeekendOff       bool    `json:"ensure_one_weekend_off"`
	WunschfreiRespectLevel    int     `json:"wunschfrei_respect_level"` // 0-100
	FairnessThresholdHours    float64 `json:"fairness_threshold_hours"`
	MinHoursFairnessThreshold float64 `json:"min_hours_fairness_threshold"`
	MinHoursScoreMultiplier   float64 `json:"min_hours_score_multiplier"`
	FairnessScoreMultiplier   float64 `json:"fairness_score_multiplier"`
	IsolationScoreMultiplier  float64 `json:"isolation_score_multiplier"`

	PreferredPartners []PartnerPair             `json:"preferred_partners_prioritized"`
	UserPreferences   map[int64]*UserPreference `json:"user_preferences"`

	// partnerIndex 按员工物化的搭档列表，按优先级升序
	partnerIndex map[int64][]PartnerRef
}

// DefaultGeneratorConfig 返回全部默认值
func DefaultGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		MaxConsecutiveSameShift:   4,
		MandatoryRestDays:         2,
		AvoidUnderstaffingHard:    true,
		EnsureOneWeekendOff:       false,
		WunschfreiRespectLevel:    75,
		FairnessThresholdHours:    10.0,
		MinHoursFairnessThreshold: 20.0,
		MinHoursScoreMultiplier:   5.0,
		FairnessScoreMultiplier:   1.0,
		IsolationScoreMultiplier:  30.0,
		UserPreferences:           make(map[int64]*UserPreference),
	}
}

// ParseGeneratorConfig 解析持久化的JSON文档
// 缺失键回填默认值，越界键重置为默认并返回违规键名
func ParseGeneratorConfig(raw []byte) (*GeneratorConfig, []string, error) {
	cfg := DefaultGeneratorConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, nil, fmt.Errorf("解析生成器配置失败: %w", err)
		}
	}
	invalid := cfg.sanitize()
	cfg.Normalize()
	return cfg, invalid, nil
}

// sanitize 检查数值范围，越界项重置为默认并记录键名
func (c *GeneratorConfig) sanitize() []string {
	var invalid []string
	def := DefaultGeneratorConfig()

	if c.MaxConsecutiveSameShift <= 0 {
		c.MaxConsecutiveSameShift = def.MaxConsecutiveSameShift
		invalid = append(invalid, "max_consecutive_same_shift")
	}
	if c.MandatoryRestDays < 0 {
		c.MandatoryRestDays = def.MandatoryRestDays
		invalid = append(invalid, "mandatory_rest_days_after_max_shifts")
	}
	if c.WunschfreiRespectLevel < 0 || c.WunschfreiRespectLevel > 100 {
		c.WunschfreiRespectLevel = def.WunschfreiRespectLevel
		invalid = append(invalid, "wunschfrei_respect_level")
	}
	if c.FairnessThresholdHours < 0 {
		c.FairnessThresholdHours = def.FairnessThresholdHours
		invalid = append(invalid, "fairness_threshold_hours")
	}
	if c.MinHoursFairnessThreshold < 0 {
		c.MinHoursFairnessThreshold = def.MinHoursFairnessThreshold
		invalid = append(invalid, "min_hours_fairness_threshold")
	}
	if c.MinHoursScoreMultiplier < 0 {
		c.MinHoursScoreMultiplier = def.MinHoursScoreMultiplier
		invalid = append(invalid, "min_hours_score_multiplier")
	}
	if c.FairnessScoreMultiplier < 0 {
		c.FairnessScoreMultiplier = def.FairnessScoreMultiplier
		invalid = append(invalid, "fairness_score_multiplier")
	}
	if c.IsolationScoreMultiplier < 0 {
		c.IsolationScoreMultiplier = def.IsolationScoreMultiplier
		invalid = append(invalid, "isolation_score_multiplier")
	}
	for id, p := range c.UserPreferences {
		if p == nil {
			delete(c.UserPreferences, id)
			continue
		}
		if p.RatioPreference < 0 || p.RatioPreference > 100 {
			p.RatioPreference = 50
			invalid = append(invalid, fmt.Sprintf("user_preferences.%d.ratio_preference_scale", id))
		}
	}
	return invalid
}

// Normalize 规范化搭档对并物化每员工的搭档索引，返回接收者以便链式调用
// 对内排序为 (min, max)，历史遗留的无优先级对迁移为优先级1
func (c *GeneratorConfig) Normalize() *GeneratorConfig {
	seen := make(map[[2]int64]int)
	normalized := make([]PartnerPair, 0, len(c.PreferredPartners))

	for _, p := range c.PreferredPartners {
		if p.IDA == p.IDB || p.IDA == 0 || p.IDB == 0 {
			continue
		}
		a, b := p.IDA, p.IDB
		if a > b {
			a, b = b, a
		}
		prio := p.Priority
		if prio <= 0 {
			prio = 1
		}
		key := [2]int64{a, b}
		if old, ok := seen[key]; ok {
			// 重复对保留更高优先级（数值更小）
			if prio < normalized[old].Priority {
				normalized[old].Priority = prio
			}
			continue
		}
		seen[key] = len(normalized)
		normalized = append(normalized, PartnerPair{IDA: a, IDB: b, Priority: prio})
	}

	sort.Slice(normalized, func(i, j int) bool {
		if normalized[i].Priority != normalized[j].Priority {
			return normalized[i].Priority < normalized[j].Priority
		}
		if normalized[i].IDA != normalized[j].IDA {
			return normalized[i].IDA < normalized[j].IDA
		}
		return normalized[i].IDB < normalized[j].IDB
	})
	c.PreferredPartners = normalized

	c.partnerIndex = make(map[int64][]PartnerRef)
	for _, p := range c.PreferredPartners {
		c.partnerIndex[p.IDA] = append(c.partnerIndex[p.IDA], PartnerRef{PartnerID: p.IDB, Priority: p.Priority})
		c.partnerIndex[p.IDB] = append(c.partnerIndex[p.IDB], PartnerRef{PartnerID: p.IDA, Priority: p.Priority})
	}
	for id := range c.partnerIndex {
		refs := c.partnerIndex[id]
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].Priority != refs[j].Priority {
				return refs[i].Priority < refs[j].Priority
			}
			return refs[i].PartnerID < refs[j].PartnerID
		})
	}
	return c
}

// PartnersOf 返回员工的搭档列表，按优先级升序
func (c *GeneratorConfig) PartnersOf(empID int64) []PartnerRef {
	return c.partnerIndex[empID]
}

// MaxHours 返回员工的月工时硬上限
func (c *GeneratorConfig) MaxHours(empID int64) float64 {
	if p := c.UserPreferences[empID]; p != nil && p.MaxMonthlyHours != nil && *p.MaxMonthlyHours < DefaultHourCeiling {
		return *p.MaxMonthlyHours
	}
	return DefaultHourCeiling
}

// MinHours 返回员工的个人最低月工时，未设置时为0
func (c *GeneratorConfig) MinHours(empID int64) float64 {
	if p := c.UserPreferences[empID]; p != nil && p.MinMonthlyHours != nil {
		return *p.MinMonthlyHours
	}
	return 0
}

// RatioPreference 返回员工的白夜比偏好（0-100，50 = 无偏好）
func (c *GeneratorConfig) RatioPreference(empID int64) int {
	if p := c.UserPreferences[empID]; p != nil {
		return p.RatioPreference
	}
	return 50
}

// IsExcluded 检查员工是否明确排除某代码
func (c *GeneratorConfig) IsExcluded(empID int64, code Code) bool {
	p := c.UserPreferences[empID]
	if p == nil {
		return false
	}
	for _, ex := range p.ShiftExclusions {
		if ex == code {
			return true
		}
	}
	return false
}

// SameShiftCap 返回员工的同班次连排上限（可个人覆盖）
func (c *GeneratorConfig) SameShiftCap(empID int64) int {
	if p := c.UserPreferences[empID]; p != nil && p.MaxSameShiftStreak != nil && *p.MaxSameShiftStreak > 0 {
		return *p.MaxSameShiftStreak
	}
	return c.MaxConsecutiveSameShift
}

// Encode 序列化为持久化JSON文档（整体替换）
func (c *GeneratorConfig) Encode() ([]byte, error) {
	return json.Marshal(c)
}
