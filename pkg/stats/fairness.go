// Package stats 提供值班表的统计分析功能
package stats

import (
	"math"
	"sort"
)

// FairnessReport 月工时公平性指标
type FairnessReport struct {
	Gini      float64            `json:"gini"`     // 基尼系数 (0=完全公平)
	Mean      float64            `json:"mean"`     // 人均工时
	StdDev    float64            `json:"std_dev"`  // 标准差
	MinHours  float64            `json:"min_hours"`
	MaxHours  float64            `json:"max_hours"`
	ByEmployee map[int64]float64 `json:"by_employee"`
}

// Fairness 由每员工月工时计算公平性报告
func Fairness(hours map[int64]float64) *FairnessReport {
	report := &FairnessReport{ByEmployee: make(map[int64]float64, len(hours))}
	if len(hours) == 0 {
		return report
	}

	values := make([]float64, 0, len(hours))
	var sum float64
	first := true
	for id, h := range hours {
		report.ByEmployee[id] = h
		values = append(values, h)
		sum += h
		if first || h < report.MinHours {
			report.MinHours = h
		}
		if first || h > report.MaxHours {
			report.MaxHours = h
		}
		first = false
	}

	n := float64(len(values))
	report.Mean = sum / n

	var variance float64
	for _, h := range values {
		variance += (h - report.Mean) * (h - report.Mean)
	}
	report.StdDev = math.Sqrt(variance / n)
	report.Gini = gini(values)
	return report
}

// gini 计算基尼系数
func gini(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum, weighted float64
	for i, v := range sorted {
		sum += v
		weighted += float64(i+1) * v
	}
	if sum == 0 {
		return 0
	}
	n := float64(len(sorted))
	return (2*weighted)/(n*sum) - (n+1)/n
}
