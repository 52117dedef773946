package generator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/stats"
	"github.com/zhiban/zhiban/pkg/validator"
)

// Progress 进度回调：单调递增的百分比加短文本
// 必须可以从工作协程安全调用
type Progress func(pct int, msg string)

// UnderStaffedSlot 四轮后仍未达最低配员的 (日, 代码)
type UnderStaffedSlot struct {
	Day      int        `json:"day"`
	Code     model.Code `json:"code"`
	Required int        `json:"required"`
	Placed   int        `json:"placed"`
}

// Completion 生成完成摘要
// 低于致命级别的问题全部在此汇总，不向上层抛出
type Completion struct {
	RunID          string             `json:"run_id"`
	OK             bool               `json:"ok"`
	Cancelled      bool               `json:"cancelled"`
	Placed         int                `json:"placed"`
	UnderStaffed   []UnderStaffedSlot `json:"under_staffed,omitempty"`
	SkippedReasons map[string]int     `json:"skipped_reasons,omitempty"`
	Violations     []model.ViolationCell `json:"violations,omitempty"`
	Fairness       *stats.FairnessReport `json:"fairness,omitempty"`
	Coverage       *stats.CoverageReport `json:"coverage,omitempty"`
	Duration       time.Duration      `json:"duration"`
	Error          string             `json:"error,omitempty"`
}

// liveState 单次运行私有的活动计数器，运行结束即丢弃
type liveState struct {
	hours       map[int64]float64
	dayShifts   map[int64]int // 白班或六小时班次数
	nightShifts map[int64]int
	unavailable map[int]map[int64]bool // 日 → 当日不可排的员工
}

// Engine 值班表生成引擎
// 驱动顺序：日期升序，单日内 六小时班 → 白班 → 夜班，四轮逐步放宽
type Engine struct {
	cache    *MonthCache
	registry *LockRegistry
	catalog  *catalog.Catalog
	cfg      *model.GeneratorConfig
	rules    *model.StaffingRules
	calendar Calendar
	eval     *Evaluator
	scorer   *Scorer
	detector *validator.Detector
	log      *logger.GeneratorLogger
	progress Progress

	live       *liveState
	violations *ViolationSet

	placed        int
	totalRequired int
	totalFilled   int
	skipped       map[string]int
	understaffed  []UnderStaffedSlot
	lastPct       int
}

// New 创建生成引擎
func New(cache *MonthCache, cat *catalog.Catalog, cfg *model.GeneratorConfig, rules *model.StaffingRules, cal Calendar, progress Progress) *Engine {
	eval := NewEvaluator(cat, cfg)
	return &Engine{
		cache:    cache,
		registry: NewLockRegistry(cache.Snapshot()),
		catalog:  cat,
		cfg:      cfg,
		rules:    rules,
		calendar: cal,
		eval:     eval,
		scorer:   NewScorer(cfg, cat, eval),
		detector: validator.NewDetector(cat, cache.Snapshot().Employees),
		log:      logger.NewGeneratorLogger(),
		progress: progress,
		skipped:  make(map[string]int),
	}
}

// Run 生成整月值班表
// 算法只前进不回滚：取消或致命错误时已提交的写入保持可见
func (e *Engine) Run(ctx context.Context) (*Completion, error) {
	start := time.Now()
	runID := uuid.New().String()
	snap := e.cache.Snapshot()
	e.log.StartRun(runID, snap.Year, snap.Month, len(snap.Employees))

	e.initLiveState()
	e.violations = NewViolationSet()
	e.violations.Seed(e.detector.Scan(e.cache))

	// 运行前已超限的员工：既有手工录入造成，本次运行不再加班次
	preRun := make(map[int64]bool)
	for _, b := range e.detector.CheckHourCeilings(e.cache, e.cfg) {
		preRun[b.EmployeeID] = true
		logger.Warn().Int64("employee", b.EmployeeID).
			Float64("total", b.Total).Float64("ceiling", b.Ceiling).
			Msg("运行前月工时已超上限")
	}

	completion := &Completion{RunID: runID, OK: true}

	for day := 1; day <= e.cache.Days(); day++ {
		// 每日边界是安全的取消检查点
		if ctx.Err() != nil {
			completion.Cancelled = true
			break
		}
		e.reportProgress(day*100/e.cache.Days(), fmt.Sprintf("正在排第 %d 天", day))

		if err := e.planDay(ctx, day); err != nil {
			return e.finish(completion, start, err), err
		}
	}

	if !completion.Cancelled {
		e.reportProgress(100, "生成完成")

		// 事后不变量检查：本次运行引入的工时上限破坏属于致命错误
		for _, b := range e.detector.CheckHourCeilings(e.cache, e.cfg) {
			if preRun[b.EmployeeID] {
				continue
			}
			err := errors.InvariantBroken(b.String())
			return e.finish(completion, start, err), err
		}
	}

	if full := e.detector.Scan(e.cache); !e.violations.Matches(full) {
		logger.Error().
			Int("incremental", e.violations.Len()).
			Int("full_scan", len(full)).
			Msg("冲突集合与全量扫描不一致")
	}

	return e.finish(completion, start, nil), nil
}

// finish 汇总完成载荷
func (e *Engine) finish(completion *Completion, start time.Time, fatal error) *Completion {
	completion.Placed = e.placed
	completion.UnderStaffed = e.understaffed
	completion.SkippedReasons = e.skipped
	completion.Violations = e.violations.Cells()
	completion.Fairness = stats.Fairness(e.live.hours)
	completion.Coverage = stats.Coverage(e.totalRequired, e.totalFilled, len(e.understaffed))
	completion.Duration = time.Since(start)
	if fatal != nil {
		completion.OK = false
		completion.Error = fatal.Error()
	}
	e.log.RunComplete(completion.RunID, completion.Duration, e.placed, completion.Cancelled)
	return completion
}

// initLiveState 由快照播种活动状态
// 既有的固定代码使员工当日不可排，工作代码计入每日已排数
func (e *Engine) initLiveState() {
	e.live = &liveState{
		hours:       make(map[int64]float64),
		dayShifts:   make(map[int64]int),
		nightShifts: make(map[int64]int),
		unavailable: make(map[int]map[int64]bool),
	}
	for day := 1; day <= e.cache.Days(); day++ {
		e.live.unavailable[day] = make(map[int64]bool)
	}

	snap := e.cache.Snapshot()
	for _, emp := range snap.Employees {
		// 上月最后一天跨午夜班次的工时结转
		e.live.hours[emp.ID] = float64(e.catalog.SpillMinutes(e.cache.CodeAt(emp.ID, 0))) / 60.0

		for day := 1; day <= e.cache.Days(); day++ {
			code := e.cache.CodeAt(emp.ID, day)
			if code != model.CodeEmpty {
				e.live.unavailable[day][emp.ID] = true
				e.live.hours[emp.ID] += e.catalog.Hours(code)
				switch code {
				case model.CodeDay, model.CodeFridaySix:
					e.live.dayShifts[emp.ID]++
				case model.CodeNight:
					e.live.nightShifts[emp.ID]++
				}
			}

			// 已批准休假与已接受意愿即使没有分配行也阻止排班
			if st, ok := e.cache.VacationStatus(emp.ID, day); ok && st == model.VacationApproved {
				e.live.unavailable[day][emp.ID] = true
			}
			if w, ok := e.cache.Wish(emp.ID, day); ok && (w.Status == model.WishAccepted || w.Status == model.WishApproved) {
				e.live.unavailable[day][emp.ID] = true
			}
			if _, locked := e.registry.IsLocked(emp.ID, day); locked {
				e.live.unavailable[day][emp.ID] = true
			}
		}
	}
}

// planDay 排单日的全部计划班次
func (e *Engine) planDay(ctx context.Context, day int) error {
	snap := e.cache.Snapshot()
	date := snap.DateOf(day)
	holiday := e.calendar.IsHoliday(date)
	profile := e.rules.ProfileFor(date, holiday)

	for _, code := range model.PlannedOrder() {
		// 六小时班只在周五或节假日排（节假日周五只排一次）
		if code == model.CodeFridaySix && date.Weekday() != time.Friday && !holiday {
			continue
		}
		required := profile[code]
		if required <= 0 {
			continue
		}
		e.totalRequired += required

		need := required - e.cache.DailyCount(day, code)
		if need <= 0 {
			e.totalFilled += required
			continue
		}

		for round := 1; round <= 4 && need > 0; round++ {
			var err error
			need, err = e.fillRound(ctx, day, code, round, need)
			if err != nil {
				return err
			}
		}

		placed := e.cache.DailyCount(day, code)
		if need > 0 {
			e.understaffed = append(e.understaffed, UnderStaffedSlot{
				Day: day, Code: code, Required: required, Placed: placed,
			})
			e.log.UnderStaffed(day, string(code), required, placed)
			e.totalFilled += placed
		} else {
			e.totalFilled += required
		}
	}
	return nil
}

// fillRound 在单轮规则下尽量填满需求，返回剩余需求
// 每次成功分配后重新收集候选池（搭档分、犬冲突、工时都会变化）
func (e *Engine) fillRound(ctx context.Context, day int, code model.Code, round, need int) (int, error) {
	for need > 0 {
		pool, skipped := e.candidates(day, code, round)
		if len(pool) == 0 {
			e.log.NoCandidate(day, string(code), round, skipped)
			return need, nil
		}

		ranked := e.rank(pool, day, code, round)
		placed := false
		for _, empID := range ranked {
			if !e.registry.Allows(empID, day, code) {
				e.log.LockedCell(empID, day)
				e.live.unavailable[day][empID] = true
				continue
			}
			if err := e.place(ctx, empID, day, code, round); err != nil {
				if errors.Is(err, errors.CodeLockedCell) {
					e.log.LockedCell(empID, day)
					e.live.unavailable[day][empID] = true
					continue
				}
				return need, err
			}
			placed = true
			break
		}
		if !placed {
			return need, nil
		}
		need--
	}
	return need, nil
}

// rank 排序候选池：第1轮用评分模型，其余轮按当前工时升序
func (e *Engine) rank(pool []int64, day int, code model.Code, round int) []int64 {
	if round == 1 {
		scores := e.scorer.Rank(e.cache, e.live, pool, day, code)
		ranked := make([]int64, len(scores))
		for i, s := range scores {
			ranked[i] = s.EmployeeID
		}
		return ranked
	}
	ranked := make([]int64, len(pool))
	copy(ranked, pool)
	sort.Slice(ranked, func(i, j int) bool {
		if e.live.hours[ranked[i]] != e.live.hours[ranked[j]] {
			return e.live.hours[ranked[i]] < e.live.hours[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

// place 提交一次分配并同步全部活动计数器
func (e *Engine) place(ctx context.Context, empID int64, day int, code model.Code, round int) error {
	if err := e.cache.Save(ctx, empID, day, code, false); err != nil {
		return err
	}

	e.live.hours[empID] += e.catalog.Hours(code)
	switch code {
	case model.CodeDay, model.CodeFridaySix:
		e.live.dayShifts[empID]++
	case model.CodeNight:
		e.live.nightShifts[empID]++
	}
	e.live.unavailable[day][empID] = true
	e.placed++

	if emp := e.cache.Snapshot().EmployeeByID(empID); emp != nil {
		e.violations.ApplyPlacement(e.detector, e.cache, emp, day)
	}
	e.log.Placement(day, string(code), empID, round)
	return nil
}

// candidates 收集某轮存活的候选员工，附带按原因统计的跳过直方图
func (e *Engine) candidates(day int, code model.Code, round int) ([]int64, map[string]int) {
	snap := e.cache.Snapshot()
	date := snap.DateOf(day)
	var pool []int64
	skipped := make(map[string]int)

	for _, emp := range snap.Employees {
		// 隐藏员工保留既有数据但不再新排班
		if emp.Hidden || !emp.IsActiveOn(date) {
			continue
		}
		if e.live.unavailable[day][emp.ID] {
			continue
		}
		if reason := e.roundReject(emp, day, code, round); reason != "" {
			skipped[reason]++
			e.skipped[reason]++
			continue
		}
		pool = append(pool, emp.ID)
	}
	return pool, skipped
}

// roundReject 依某轮的规则集检查候选人，返回第一个不满足的规则名
func (e *Engine) roundReject(emp *model.Employee, day int, code model.Code, round int) string {
	// 硬规则：所有轮次
	if e.cfg.IsExcluded(emp.ID, code) {
		return "exclusion"
	}
	if e.eval.ExceedsHourCeiling(e.live.hours[emp.ID], code, emp.ID) {
		return "hour_ceiling"
	}
	if e.eval.RestViolated(e.cache, emp.ID, day, code) {
		return "rest_rule"
	}
	if e.eval.DogConflict(e.cache, emp, day, code) {
		return "dog_conflict"
	}

	// 连班上限：第1轮软上限，之后按配置提升到硬上限
	limit := model.SoftMaxConsecutiveShifts
	if round > 1 && e.cfg.AvoidUnderstaffingHard {
		limit = model.HardMaxConsecutiveShifts
	}
	if e.eval.ConsecutiveWith(e.cache, emp.ID, day) > limit {
		return "consecutive"
	}

	// 夜-空-白三连：第3轮起放宽
	if round <= 2 && e.eval.TripletViolated(e.cache, emp.ID, day, code) {
		return "night_free_day"
	}

	// 强制休息：第4轮放宽；第1轮只在新开工作块时检查
	if round < 4 {
		checkRest := round > 1 || e.eval.ConsecutiveBefore(e.cache, emp.ID, day) == 0
		if checkRest && e.eval.MandatoryRestViolated(e.cache, emp.ID, day) {
			return "mandatory_rest"
		}
	}

	// 第1轮的额外软规则
	if round == 1 {
		if e.eval.SameShiftStreak(e.cache, emp.ID, day, code) > e.cfg.SameShiftCap(emp.ID) {
			return "same_shift_streak"
		}
		if w, ok := e.cache.Wish(emp.ID, day); ok &&
			w.Status == model.WishPending && isWishFree(w.Requested) &&
			e.cfg.WunschfreiRespectLevel >= 50 {
			return "wish_free"
		}
	}
	return ""
}

// isWishFree 检查意愿申请的目标是否为免班
func isWishFree(requested model.Code) bool {
	return requested == model.CodeWishFree || requested == model.CodePending || requested == model.CodeEmpty
}

// reportProgress 上报单调递增的进度
func (e *Engine) reportProgress(pct int, msg string) {
	if e.progress == nil {
		return
	}
	if pct < e.lastPct {
		pct = e.lastPct
	}
	e.lastPct = pct
	e.progress(pct, msg)
}
