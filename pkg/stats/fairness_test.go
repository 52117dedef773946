package stats

import (
	"math"
	"testing"
)

func TestFairnessUniform(t *testing.T) {
	report := Fairness(map[int64]float64{1: 120, 2: 120, 3: 120})

	if report.Gini != 0 {
		t.Errorf("完全均匀的 Gini = %v, want 0", report.Gini)
	}
	if report.Mean != 120 || report.StdDev != 0 {
		t.Errorf("Mean = %v, StdDev = %v", report.Mean, report.StdDev)
	}
	if report.MinHours != 120 || report.MaxHours != 120 {
		t.Errorf("MinHours = %v, MaxHours = %v", report.MinHours, report.MaxHours)
	}
}

func TestFairnessSkewed(t *testing.T) {
	report := Fairness(map[int64]float64{1: 0, 2: 0, 3: 300})

	if report.Gini <= 0.5 {
		t.Errorf("极端不均的 Gini = %v, want > 0.5", report.Gini)
	}
	if report.Mean != 100 {
		t.Errorf("Mean = %v, want 100", report.Mean)
	}
	if report.MinHours != 0 || report.MaxHours != 300 {
		t.Errorf("MinHours = %v, MaxHours = %v", report.MinHours, report.MaxHours)
	}
	if len(report.ByEmployee) != 3 {
		t.Errorf("ByEmployee 条目数 = %d, want 3", len(report.ByEmployee))
	}
}

func TestFairnessTwoValues(t *testing.T) {
	// 两人 {60, 180}：Gini = (2*(1*60+2*180))/(2*240) - 3/2 = 0.25
	report := Fairness(map[int64]float64{1: 60, 2: 180})
	if math.Abs(report.Gini-0.25) > 1e-9 {
		t.Errorf("Gini = %v, want 0.25", report.Gini)
	}
}

func TestFairnessEmpty(t *testing.T) {
	report := Fairness(nil)
	if report.Gini != 0 || report.Mean != 0 || len(report.ByEmployee) != 0 {
		t.Errorf("空输入报告 = %+v", report)
	}
}

func TestFairnessAllZero(t *testing.T) {
	report := Fairness(map[int64]float64{1: 0, 2: 0})
	if report.Gini != 0 {
		t.Errorf("全零工时的 Gini = %v, want 0", report.Gini)
	}
}
