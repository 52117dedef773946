// Package stats 提供值班表的统计分析功能
package stats

// CoverageReport 配员覆盖率报告
type CoverageReport struct {
	TotalRequired    int     `json:"total_required"`    // 全月要求的班次槽位数
	TotalFilled      int     `json:"total_filled"`      // 实际填满的槽位数
	FillRate         float64 `json:"fill_rate"`         // 填充率（百分比）
	UnderStaffedSlots int    `json:"under_staffed_slots"` // 四轮后仍未达标的 (日, 代码) 数
}

// Coverage 由槽位计数构建覆盖率报告
func Coverage(required, filled, understaffed int) *CoverageReport {
	report := &CoverageReport{
		TotalRequired:     required,
		TotalFilled:       filled,
		UnderStaffedSlots: understaffed,
	}
	if required > 0 {
		report.FillRate = float64(filled) / float64(required) * 100
	} else {
		report.FillRate = 100
	}
	return report
}
