package generator

import (
	"sort"
	"time"

	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/model"
)

// partnerNone 无搭档适用时的回退分
const partnerNone = 1000

// Score 单个候选人的分量向量
// 构建一次，排序时不再重算
type Score struct {
	EmployeeID int64   `json:"employee_id"`
	Partner    int     `json:"partner"`    // 搭档优先级分，越小越好
	MinHours   float64 `json:"min_hours"`  // 最低工时缺口分，越大越好
	Fair       float64 `json:"fair"`       // 公平性分，越大越好
	Ratio      float64 `json:"ratio"`      // 白夜比偏离分，越小越好
	Isolation  float64 `json:"isolation"`  // 孤立惩罚，越小越好
	Continuity int     `json:"continuity"` // 0 = 延续昨日同班次
	Hours      float64 `json:"hours"`      // 当前月工时（最终平局判据）
}

// Less 字典序比较：搭档 → 工时缺口 → 公平 → 比例 → 孤立 → 延续性 → 当前工时
func (s *Score) Less(o *Score) bool {
	if s.Partner != o.Partner {
		return s.Partner < o.Partner
	}
	if s.MinHours != o.MinHours {
		return s.MinHours > o.MinHours
	}
	if s.Fair != o.Fair {
		return s.Fair > o.Fair
	}
	if s.Ratio != o.Ratio {
		return s.Ratio < o.Ratio
	}
	if s.Isolation != o.Isolation {
		return s.Isolation < o.Isolation
	}
	if s.Continuity != o.Continuity {
		return s.Continuity < o.Continuity
	}
	if s.Hours != o.Hours {
		return s.Hours < o.Hours
	}
	return s.EmployeeID < o.EmployeeID
}

// Scorer 软评分模型
type Scorer struct {
	cfg     *model.GeneratorConfig
	catalog *catalog.Catalog
	eval    *Evaluator
}

// NewScorer 创建评分模型
func NewScorer(cfg *model.GeneratorConfig, cat *catalog.Catalog, eval *Evaluator) *Scorer {
	return &Scorer{cfg: cfg, catalog: cat, eval: eval}
}

// PoolAverage 当前候选池的月工时均值
func (sc *Scorer) PoolAverage(hours map[int64]float64, pool []int64) float64 {
	if len(pool) == 0 {
		return 0
	}
	var sum float64
	for _, id := range pool {
		sum += hours[id]
	}
	return sum / float64(len(pool))
}

// Build 为单个候选人构建分量向量
func (sc *Scorer) Build(c *MonthCache, live *liveState, pool map[int64]bool, poolAvg float64, empID int64, day int, cand model.Code) *Score {
	s := &Score{
		EmployeeID: empID,
		Partner:    sc.partnerScore(c, pool, empID, day, cand),
		Hours:      live.hours[empID],
	}

	// 最低工时缺口
	deficit := sc.cfg.MinHours(empID) - live.hours[empID]
	switch {
	case deficit > sc.cfg.MinHoursFairnessThreshold:
		s.MinHours = sc.cfg.MinHoursScoreMultiplier
	case deficit > 0:
		s.MinHours = 1
	}

	// 公平性：明显低于候选池均值时加分
	if poolAvg-live.hours[empID] > sc.cfg.FairnessThresholdHours {
		s.Fair = sc.cfg.FairnessScoreMultiplier
	}

	s.Ratio = sc.ratioScore(live, empID, cand)

	if sc.eval.Isolated(c, empID, day) {
		s.Isolation = sc.cfg.IsolationScoreMultiplier
	}
	if sc.cfg.EnsureOneWeekendOff && sc.consumesLastFreeWeekend(c, empID, day) {
		s.Isolation += sc.cfg.IsolationScoreMultiplier
	}

	// 延续性：昨日同班次优先
	if c.CodeAt(empID, day-1) != cand {
		s.Continuity = 1
	}
	return s
}

// partnerScore 搭档优先级分
// 搭档本身是候选人 → priority；搭档已在同班次就位 → 100 + priority（牵引较弱）
func (sc *Scorer) partnerScore(c *MonthCache, pool map[int64]bool, empID int64, day int, cand model.Code) int {
	best := partnerNone
	for _, ref := range sc.cfg.PartnersOf(empID) {
		score := partnerNone
		if c.CodeAt(ref.PartnerID, day) == cand {
			score = 100 + ref.Priority
		} else if pool[ref.PartnerID] {
			score = ref.Priority
		}
		if score < best {
			best = score
		}
	}
	return best
}

// ratioScore 白夜比偏离分
// 符号定向：白班/六小时班候选把比例拉向目标时得负分（更优）
func (sc *Scorer) ratioScore(live *liveState, empID int64, cand model.Code) float64 {
	pref := sc.cfg.RatioPreference(empID)
	if pref == 50 {
		return 0
	}
	total := live.dayShifts[empID] + live.nightShifts[empID]
	current := 50.0
	if total > 0 {
		current = float64(live.dayShifts[empID]) / float64(total) * 100
	}
	diff := float64(pref) - current
	if cand == model.CodeNight {
		return diff
	}
	return -diff
}

// consumesLastFreeWeekend 检查排入该日是否会耗尽员工本月最后一个完整空闲周末
func (sc *Scorer) consumesLastFreeWeekend(c *MonthCache, empID int64, day int) bool {
	date := c.Snapshot().DateOf(day)
	if wd := date.Weekday(); wd != time.Saturday && wd != time.Sunday {
		return false
	}
	freeWeekends := 0
	for d := 1; d <= c.Days(); d++ {
		if c.Snapshot().DateOf(d).Weekday() != time.Saturday {
			continue
		}
		if d == day || d+1 == day {
			continue
		}
		if c.CodeAt(empID, d).IsFree() && (d+1 > c.Days() || c.CodeAt(empID, d+1).IsFree()) {
			freeWeekends++
		}
	}
	return freeWeekends == 0
}

// Rank 构建并按字典序排序候选人分量向量
func (sc *Scorer) Rank(c *MonthCache, live *liveState, pool []int64, day int, cand model.Code) []*Score {
	poolSet := make(map[int64]bool, len(pool))
	for _, id := range pool {
		poolSet[id] = true
	}
	avg := sc.PoolAverage(live.hours, pool)

	scores := make([]*Score, 0, len(pool))
	for _, id := range pool {
		scores = append(scores, sc.Build(c, live, poolSet, avg, id, day, cand))
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Less(scores[j])
	})
	return scores
}
