package handler

import (
	"net/http"
)

// RuleParam 规则参数定义
type RuleParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, bool, array
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// RuleDefinition 排班规则定义
// RelaxedInRound 为 0 表示任何轮次都不放宽
type RuleDefinition struct {
	Name           string      `json:"name"`
	DisplayName    string      `json:"display_name"`
	Type           string      `json:"type"` // hard 硬规则, soft 软规则
	Category       string      `json:"category"`
	Description    string      `json:"description"`
	RelaxedInRound int         `json:"relaxed_in_round"`
	Params         []RuleParam `json:"params"`
}

// RulesResponse 规则库响应
type RulesResponse struct {
	Rules []RuleDefinition `json:"rules"`
}

// generatorRules 生成器实际执行的规则清单
func generatorRules() []RuleDefinition {
	return []RuleDefinition{
		{
			Name:           "night_rest",
			DisplayName:    "夜班次日休息",
			Type:           "hard",
			Category:       "休息保障",
			Description:    "夜班次日不得安排白班、六小时班、训练或射击，任何轮次均不放宽。",
			RelaxedInRound: 0,
			Params:         []RuleParam{},
		},
		{
			Name:           "dog_conflict",
			DisplayName:    "同犬时段冲突",
			Type:           "hard",
			Category:       "资源限制",
			Description:    "共用同一只犬的两名训导员不得排入时间重叠的班次。",
			RelaxedInRound: 0,
			Params:         []RuleParam{},
		},
		{
			Name:           "hour_ceiling",
			DisplayName:    "月工时上限",
			Type:           "hard",
			Category:       "工时限制",
			Description:    "月工时不得超过228小时加上月夜班结转，或员工个人上限中较小者。",
			RelaxedInRound: 0,
			Params: []RuleParam{
				{Name: "max_hours_per_month", Type: "float", Description: "个人月工时上限(小时)", Default: "228"},
			},
		},
		{
			Name:           "exclusion",
			DisplayName:    "班次排除",
			Type:           "hard",
			Category:       "个人限制",
			Description:    "被排除某班次代码的员工永不参与该代码的排班。",
			RelaxedInRound: 0,
			Params:         []RuleParam{},
		},
		{
			Name:           "consecutive",
			DisplayName:    "连班上限",
			Type:           "hard",
			Category:       "休息保障",
			Description:    "连续工作日第1轮以6天为上限，之后在允许时提升到8天硬上限。",
			RelaxedInRound: 0,
			Params: []RuleParam{
				{Name: "soft_max", Type: "int", Description: "软上限(天)", Default: "6"},
				{Name: "hard_max", Type: "int", Description: "硬上限(天)", Default: "8"},
			},
		},
		{
			Name:           "night_free_day",
			DisplayName:    "夜-空-白三连禁止",
			Type:           "soft",
			Category:       "休息保障",
			Description:    "夜班、空一天、白班的三连模式在前两轮被禁止，第3轮起放宽。",
			RelaxedInRound: 3,
			Params:         []RuleParam{},
		},
		{
			Name:           "mandatory_rest",
			DisplayName:    "长工作块后强制休息",
			Type:           "soft",
			Category:       "休息保障",
			Description:    "8天以上的工作块之后必须休息指定天数，第4轮放宽。",
			RelaxedInRound: 4,
			Params: []RuleParam{
				{Name: "mandatory_rest_days_after_max_shifts", Type: "int", Description: "强制休息天数", Default: "2", Min: "0", Max: "7"},
			},
		},
		{
			Name:           "same_shift_streak",
			DisplayName:    "同班次连排上限",
			Type:           "soft",
			Category:       "排班模式",
			Description:    "同一班次代码的连排天数超过上限时第1轮跳过该候选人。",
			RelaxedInRound: 2,
			Params: []RuleParam{
				{Name: "max_consecutive_same_shift", Type: "int", Description: "同班次连排上限(天)", Default: "4", Min: "1", Max: "14"},
			},
		},
		{
			Name:           "wish_free",
			DisplayName:    "免班意愿尊重",
			Type:           "soft",
			Category:       "偏好",
			Description:    "待定的免班意愿在尊重级别达到50时于第1轮跳过该候选人。",
			RelaxedInRound: 2,
			Params: []RuleParam{
				{Name: "wunschfrei_respect_level", Type: "int", Description: "尊重级别", Default: "75", Min: "0", Max: "100"},
			},
		},
		{
			Name:           "fairness",
			DisplayName:    "工时公平",
			Type:           "soft",
			Category:       "公平性",
			Description:    "明显低于候选池平均工时的员工在第1轮评分中优先。",
			RelaxedInRound: 2,
			Params: []RuleParam{
				{Name: "fairness_threshold_hours", Type: "float", Description: "公平性阈值(小时)", Default: "10"},
				{Name: "fairness_score_multiplier", Type: "float", Description: "公平性加分", Default: "1"},
			},
		},
		{
			Name:           "partner",
			DisplayName:    "搭档同班",
			Type:           "soft",
			Category:       "协作",
			Description:    "配置的搭档对按优先级牵引到同一班次，搭档已就位时牵引减弱。",
			RelaxedInRound: 2,
			Params:         []RuleParam{},
		},
		{
			Name:           "ratio_preference",
			DisplayName:    "白夜比偏好",
			Type:           "soft",
			Category:       "偏好",
			Description:    "按员工的白夜班比例偏好定向加减分，50为中性。",
			RelaxedInRound: 2,
			Params: []RuleParam{
				{Name: "ratio_preference", Type: "int", Description: "白班比例偏好", Default: "50", Min: "0", Max: "100"},
			},
		},
		{
			Name:           "isolation",
			DisplayName:    "孤立班惩罚",
			Type:           "soft",
			Category:       "排班模式",
			Description:    "会造成两侧空闲的孤立班次在第1轮评分中被惩罚，周末保护并入该项。",
			RelaxedInRound: 2,
			Params: []RuleParam{
				{Name: "isolation_score_multiplier", Type: "float", Description: "孤立惩罚分", Default: "30"},
				{Name: "ensure_one_weekend_off", Type: "bool", Description: "保证每月至少一个空闲周末", Default: "false"},
			},
		},
	}
}

// Rules 返回生成器规则库
func Rules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RulesResponse{Rules: generatorRules()})
}
