package generator

import (
	"testing"

	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/model"
)

func newLive(hours map[int64]float64) *liveState {
	if hours == nil {
		hours = make(map[int64]float64)
	}
	return &liveState{
		hours:       hours,
		dayShifts:   make(map[int64]int),
		nightShifts: make(map[int64]int),
		unavailable: make(map[int]map[int64]bool),
	}
}

func newScorer(cfg *model.GeneratorConfig) *Scorer {
	if cfg == nil {
		cfg = model.DefaultGeneratorConfig()
	}
	cfg.Normalize()
	cat := catalog.Default()
	return NewScorer(cfg, cat, NewEvaluator(cat, cfg))
}

func TestScoreLess(t *testing.T) {
	tests := []struct {
		name string
		a, b *Score
		want bool
	}{
		{
			name: "搭档分优先于一切",
			a:    &Score{EmployeeID: 1, Partner: 1, Hours: 200},
			b:    &Score{EmployeeID: 2, Partner: 1000, MinHours: 5, Fair: 1},
			want: true,
		},
		{
			name: "工时缺口分大者优先",
			a:    &Score{EmployeeID: 1, Partner: 1000, MinHours: 5},
			b:    &Score{EmployeeID: 2, Partner: 1000, MinHours: 1},
			want: true,
		},
		{
			name: "公平分大者优先",
			a:    &Score{EmployeeID: 1, Partner: 1000, Fair: 1},
			b:    &Score{EmployeeID: 2, Partner: 1000},
			want: true,
		},
		{
			name: "孤立惩罚小者优先",
			a:    &Score{EmployeeID: 1, Partner: 1000},
			b:    &Score{EmployeeID: 2, Partner: 1000, Isolation: 30},
			want: true,
		},
		{
			name: "延续昨日班次者优先",
			a:    &Score{EmployeeID: 1, Partner: 1000, Continuity: 0},
			b:    &Score{EmployeeID: 2, Partner: 1000, Continuity: 1},
			want: true,
		},
		{
			name: "全部相同时工时低者优先",
			a:    &Score{EmployeeID: 1, Partner: 1000, Hours: 60},
			b:    &Score{EmployeeID: 2, Partner: 1000, Hours: 72},
			want: true,
		},
		{
			name: "完全平局按员工ID",
			a:    &Score{EmployeeID: 2, Partner: 1000},
			b:    &Score{EmployeeID: 1, Partner: 1000},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.want {
				t.Errorf("Less() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPartnerScore(t *testing.T) {
	cfg := model.DefaultGeneratorConfig()
	cfg.PreferredPartners = []model.PartnerPair{
		{IDA: 1, IDB: 2, Priority: 1},
		{IDA: 1, IDB: 3, Priority: 2},
	}
	sc := newScorer(cfg)

	tests := []struct {
		name    string
		prepare func(snap *model.MonthSnapshot)
		pool    map[int64]bool
		empID   int64
		want    int
	}{
		{
			name:    "搭档在候选池中按优先级牵引",
			prepare: func(s *model.MonthSnapshot) {},
			pool:    map[int64]bool{2: true},
			empID:   1,
			want:    1,
		},
		{
			name: "搭档已就位时牵引减弱",
			prepare: func(s *model.MonthSnapshot) {
				setCode(s, 2, 10, model.CodeDay)
			},
			pool:  map[int64]bool{},
			empID: 1,
			want:  101,
		},
		{
			name:    "多个搭档取最优",
			prepare: func(s *model.MonthSnapshot) {},
			pool:    map[int64]bool{2: true, 3: true},
			empID:   1,
			want:    1,
		},
		{
			name:    "无搭档时回退分",
			prepare: func(s *model.MonthSnapshot) {},
			pool:    map[int64]bool{},
			empID:   4,
			want:    partnerNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := newSnapshot(2025, 6, emp(1, "张伟", ""), emp(2, "李娜", ""), emp(3, "王磊", ""), emp(4, "刘洋", ""))
			tt.prepare(snap)
			cache, _ := newCache(t, snap)

			if got := sc.partnerScore(cache, tt.pool, tt.empID, 10, model.CodeDay); got != tt.want {
				t.Errorf("partnerScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRatioScore(t *testing.T) {
	cfg := model.DefaultGeneratorConfig()
	cfg.UserPreferences[1] = &model.UserPreference{RatioPreference: 80}
	sc := newScorer(cfg)

	tests := []struct {
		name   string
		empID  int64
		days   int
		nights int
		cand   model.Code
		want   float64
	}{
		{"无偏好恒为0", 2, 3, 3, model.CodeDay, 0},
		{"偏白班者排白班得负分", 1, 0, 0, model.CodeDay, -30},
		{"偏白班者排夜班得正分", 1, 0, 0, model.CodeNight, 30},
		{"已达目标比例时接近0", 1, 8, 2, model.CodeDay, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := newLive(nil)
			live.dayShifts[tt.empID] = tt.days
			live.nightShifts[tt.empID] = tt.nights

			if got := sc.ratioScore(live, tt.empID, tt.cand); got != tt.want {
				t.Errorf("ratioScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildScoreComponents(t *testing.T) {
	cfg := model.DefaultGeneratorConfig()
	minHours := 100.0
	cfg.UserPreferences[1] = &model.UserPreference{MinMonthlyHours: &minHours, RatioPreference: 50}
	sc := newScorer(cfg)

	snap := newSnapshot(2025, 6, emp(1, "张伟", ""), emp(2, "李娜", ""))
	setCode(snap, 1, 9, model.CodeDay)
	cache, _ := newCache(t, snap)

	live := newLive(map[int64]float64{1: 40, 2: 120})

	// 员工1：缺口 60 > 阈值20 → 最高工时缺口分；池均值 80 - 40 > 10 → 公平分
	s := sc.Build(cache, live, map[int64]bool{}, 80, 1, 10, model.CodeDay)
	if s.MinHours != cfg.MinHoursScoreMultiplier {
		t.Errorf("MinHours = %v, want %v", s.MinHours, cfg.MinHoursScoreMultiplier)
	}
	if s.Fair != cfg.FairnessScoreMultiplier {
		t.Errorf("Fair = %v, want %v", s.Fair, cfg.FairnessScoreMultiplier)
	}
	if s.Continuity != 0 {
		t.Errorf("昨日同班次的 Continuity = %d, want 0", s.Continuity)
	}

	// 员工2：高于均值无公平分，孤立日受罚
	s2 := sc.Build(cache, live, map[int64]bool{}, 80, 2, 10, model.CodeDay)
	if s2.Fair != 0 {
		t.Errorf("Fair = %v, want 0", s2.Fair)
	}
	if s2.Isolation != cfg.IsolationScoreMultiplier {
		t.Errorf("Isolation = %v, want %v", s2.Isolation, cfg.IsolationScoreMultiplier)
	}
	if s2.Continuity != 1 {
		t.Errorf("换班次的 Continuity = %d, want 1", s2.Continuity)
	}
}

func TestRankOrdersByHours(t *testing.T) {
	sc := newScorer(nil)
	snap := newSnapshot(2025, 6, emp(1, "张伟", ""), emp(2, "李娜", ""), emp(3, "王磊", ""))
	setCode(snap, 1, 9, model.CodeDay)
	setCode(snap, 2, 9, model.CodeDay)
	setCode(snap, 3, 9, model.CodeDay)
	cache, _ := newCache(t, snap)

	live := newLive(map[int64]float64{1: 96, 2: 48, 3: 72})
	scores := sc.Rank(cache, live, []int64{1, 2, 3}, 10, model.CodeDay)

	got := []int64{scores[0].EmployeeID, scores[1].EmployeeID, scores[2].EmployeeID}
	want := []int64{2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rank() 顺序 = %v, want %v", got, want)
		}
	}
}

func TestConsumesLastFreeWeekend(t *testing.T) {
	cfg := model.DefaultGeneratorConfig()
	sc := newScorer(cfg)

	// 2025年6月的周六：7、14、21、28
	t.Run("其他周末仍空闲时不消耗", func(t *testing.T) {
		snap := newSnapshot(2025, 6, emp(1, "张伟", ""))
		cache, _ := newCache(t, snap)
		if sc.consumesLastFreeWeekend(cache, 1, 7) {
			t.Error("consumesLastFreeWeekend() = true, want false")
		}
	})

	t.Run("最后一个空闲周末被消耗", func(t *testing.T) {
		snap := newSnapshot(2025, 6, emp(1, "张伟", ""))
		for _, sat := range []int{14, 21, 28} {
			setCode(snap, 1, sat, model.CodeDay)
		}
		cache, _ := newCache(t, snap)
		if !sc.consumesLastFreeWeekend(cache, 1, 7) {
			t.Error("consumesLastFreeWeekend() = false, want true")
		}
	})

	t.Run("工作日不参与", func(t *testing.T) {
		snap := newSnapshot(2025, 6, emp(1, "张伟", ""))
		cache, _ := newCache(t, snap)
		if sc.consumesLastFreeWeekend(cache, 1, 10) {
			t.Error("consumesLastFreeWeekend() = true, want false")
		}
	})
}
