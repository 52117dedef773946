package generator

import (
	"context"
	"testing"

	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/validator"
)

// dailyRules 全类别统一的最低配员规则
func dailyRules(profile map[model.Code]int) *model.StaffingRules {
	return &model.StaffingRules{Daily: profile}
}

func runEngine(t *testing.T, snap *model.MonthSnapshot, rules *model.StaffingRules, cfg *model.GeneratorConfig, progress Progress) (*Completion, *MonthCache) {
	t.Helper()
	cache, _ := newCache(t, snap)
	if cfg == nil {
		cfg = model.DefaultGeneratorConfig()
	}
	cfg.Normalize()

	eng := New(cache, catalog.Default(), cfg, rules, emptyCalendar(), progress)
	completion, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return completion, cache
}

func TestRunFillsMinimumStaffing(t *testing.T) {
	snap := newSnapshot(2025, 6,
		emp(1, "张伟", ""), emp(2, "李娜", ""), emp(3, "王磊", ""),
		emp(4, "刘洋", ""), emp(5, "陈静", ""), emp(6, "赵强", ""),
	)
	rules := dailyRules(map[model.Code]int{model.CodeDay: 1, model.CodeNight: 1})

	completion, cache := runEngine(t, snap, rules, nil, nil)

	if !completion.OK || completion.Cancelled {
		t.Fatalf("Completion = {OK:%v Cancelled:%v Error:%q}", completion.OK, completion.Cancelled, completion.Error)
	}
	if len(completion.UnderStaffed) != 0 {
		t.Fatalf("六人排两个槽位不应欠配: %v", completion.UnderStaffed)
	}
	for day := 1; day <= cache.Days(); day++ {
		if cache.DailyCount(day, model.CodeDay) < 1 {
			t.Errorf("第 %d 天白班欠配", day)
		}
		if cache.DailyCount(day, model.CodeNight) < 1 {
			t.Errorf("第 %d 天夜班欠配", day)
		}
	}
	if len(completion.Violations) != 0 {
		t.Errorf("生成结果含冲突单元格: %v", completion.Violations)
	}
	if completion.Coverage == nil || completion.Coverage.FillRate != 100 {
		t.Errorf("Coverage = %+v, want 填充率 100", completion.Coverage)
	}
	if completion.Fairness == nil {
		t.Error("缺少公平性报告")
	}
}

func TestRunNeverBreaksHardRules(t *testing.T) {
	// 两名训导员共用一条犬
	snap := newSnapshot(2025, 6,
		emp(1, "张伟", "雷克斯"), emp(2, "李娜", "雷克斯"),
		emp(3, "王磊", "贝拉"), emp(4, "刘洋", ""), emp(5, "陈静", ""),
	)
	rules := dailyRules(map[model.Code]int{model.CodeDay: 2, model.CodeNight: 1})

	completion, cache := runEngine(t, snap, rules, nil, nil)
	if !completion.OK {
		t.Fatalf("Completion.Error = %q", completion.Error)
	}

	cat := catalog.Default()
	det := validator.NewDetector(cat, snap.Employees)
	if cells := det.Scan(cache); len(cells) != 0 {
		t.Errorf("全量扫描发现冲突: %v", cells)
	}

	// 夜班次日接班与同犬重叠逐格复核
	for _, e := range snap.Employees {
		for day := 1; day <= cache.Days(); day++ {
			if cache.CodeAt(e.ID, day) != model.CodeNight {
				continue
			}
			next := cache.CodeAt(e.ID, day+1)
			if next == model.CodeDay || next == model.CodeFridaySix {
				t.Errorf("员工 %d 第 %d 天夜班后第二天接 %s", e.ID, day, next)
			}
		}
	}
	if breaches := det.CheckHourCeilings(cache, model.DefaultGeneratorConfig()); len(breaches) != 0 {
		t.Errorf("工时上限被突破: %v", breaches)
	}
}

func TestRunSkipsLockedAndUnavailable(t *testing.T) {
	snap := newSnapshot(2025, 6,
		emp(1, "张伟", ""), emp(2, "李娜", ""), emp(3, "王磊", ""), emp(4, "刘洋", ""),
	)
	snap.Locks[1] = map[int]model.Code{10: model.CodeVacation}
	snap.Vacations[2] = map[int]model.VacationStatus{10: model.VacationApproved}
	snap.Wishes[3] = map[int]model.WishInfo{10: {Status: model.WishAccepted, Requested: model.CodeWishFree}}
	rules := dailyRules(map[model.Code]int{model.CodeDay: 1})

	completion, cache := runEngine(t, snap, rules, nil, nil)
	if !completion.OK {
		t.Fatalf("Completion.Error = %q", completion.Error)
	}

	for _, id := range []int64{1, 2, 3} {
		if got := cache.CodeAt(id, 10); got != model.CodeEmpty {
			t.Errorf("员工 %d 第 10 天不可排却被写入 %q", id, got)
		}
	}
	if got := cache.CodeAt(4, 10); got != model.CodeDay {
		t.Errorf("第 10 天唯一可用员工未被排入, CodeAt(4, 10) = %q", got)
	}
}

func TestRunReportsUnderStaffing(t *testing.T) {
	snap := newSnapshot(2025, 6, emp(1, "张伟", ""))
	rules := dailyRules(map[model.Code]int{model.CodeDay: 2})

	completion, _ := runEngine(t, snap, rules, nil, nil)

	if !completion.OK {
		t.Fatalf("欠配不是致命错误, Error = %q", completion.Error)
	}
	if len(completion.UnderStaffed) == 0 {
		t.Fatal("单人排双槽位应报告欠配")
	}
	for _, slot := range completion.UnderStaffed {
		if slot.Required != 2 {
			t.Errorf("槽位 %+v 的 Required = %d, want 2", slot, slot.Required)
		}
		if slot.Placed >= slot.Required {
			t.Errorf("槽位 %+v 不欠配却被报告", slot)
		}
	}
	if completion.Coverage.FillRate >= 100 {
		t.Errorf("FillRate = %v, want < 100", completion.Coverage.FillRate)
	}
}

func TestRunRespectsExclusions(t *testing.T) {
	cfg := model.DefaultGeneratorConfig()
	cfg.UserPreferences[1] = &model.UserPreference{
		ShiftExclusions: []model.Code{model.CodeNight},
		RatioPreference: 50,
	}
	snap := newSnapshot(2025, 6, emp(1, "张伟", ""), emp(2, "李娜", ""), emp(3, "王磊", ""))
	rules := dailyRules(map[model.Code]int{model.CodeNight: 1})

	completion, cache := runEngine(t, snap, rules, cfg, nil)
	if !completion.OK {
		t.Fatalf("Completion.Error = %q", completion.Error)
	}

	for day := 1; day <= cache.Days(); day++ {
		if cache.CodeAt(1, day) == model.CodeNight {
			t.Errorf("被排除夜班的员工在第 %d 天被排入夜班", day)
		}
	}
	if completion.SkippedReasons["exclusion"] == 0 {
		t.Error("跳过直方图缺少 exclusion 计数")
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	snap := newSnapshot(2025, 6, emp(1, "张伟", ""), emp(2, "李娜", ""))
	cache, _ := newCache(t, snap)
	cfg := model.DefaultGeneratorConfig()
	cfg.Normalize()
	rules := dailyRules(map[model.Code]int{model.CodeDay: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := New(cache, catalog.Default(), cfg, rules, emptyCalendar(), nil)
	completion, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !completion.Cancelled {
		t.Error("预先取消的上下文未标记 Cancelled")
	}
	if completion.Placed != 0 {
		t.Errorf("取消前不应有写入, Placed = %d", completion.Placed)
	}
}

func TestRunProgressMonotonic(t *testing.T) {
	snap := newSnapshot(2025, 6, emp(1, "张伟", ""), emp(2, "李娜", ""), emp(3, "王磊", ""))
	rules := dailyRules(map[model.Code]int{model.CodeDay: 1})

	var pcts []int
	progress := func(pct int, msg string) {
		pcts = append(pcts, pct)
	}
	completion, _ := runEngine(t, snap, rules, nil, progress)
	if !completion.OK {
		t.Fatalf("Completion.Error = %q", completion.Error)
	}

	if len(pcts) == 0 {
		t.Fatal("进度回调从未触发")
	}
	for i := 1; i < len(pcts); i++ {
		if pcts[i] < pcts[i-1] {
			t.Fatalf("进度倒退: %v", pcts)
		}
	}
	if pcts[len(pcts)-1] != 100 {
		t.Errorf("最终进度 = %d, want 100", pcts[len(pcts)-1])
	}
}

func TestRunCarriesNightSpill(t *testing.T) {
	// 上月最后一天夜班结转 8 小时，上限压到 20：本月至多一次白班
	maxHours := 20.0
	cfg := model.DefaultGeneratorConfig()
	cfg.UserPreferences[1] = &model.UserPreference{MaxMonthlyHours: &maxHours, RatioPreference: 50}

	snap := newSnapshot(2025, 6, emp(1, "张伟", ""), emp(2, "李娜", ""), emp(3, "王磊", ""))
	snap.PrevMonthLastDay[1] = model.CodeNight
	rules := dailyRules(map[model.Code]int{model.CodeDay: 1})

	completion, cache := runEngine(t, snap, rules, cfg, nil)
	if !completion.OK {
		t.Fatalf("Completion.Error = %q", completion.Error)
	}

	var hours float64
	cat := catalog.Default()
	for day := 1; day <= cache.Days(); day++ {
		hours += cat.Hours(cache.CodeAt(1, day))
	}
	spill := float64(cat.SpillMinutes(model.CodeNight)) / 60.0
	if hours+spill > maxHours {
		t.Errorf("员工1本月 %.1f 小时加结转 %.1f 超过上限 %.1f", hours, spill, maxHours)
	}
}

// 手工录入已把员工推过个人上限时，运行不应致命中止
// 该员工本次不再被排班，超限保持原状
func TestRunToleratesPreexistingOverHours(t *testing.T) {
	snap := newSnapshot(2025, 6,
		emp(1, "张伟", ""), emp(2, "李娜", ""), emp(3, "王磊", ""), emp(4, "刘洋", ""),
	)
	// 员工1个人上限20小时，铺底两个夜班已是24小时
	setCode(snap, 1, 1, model.CodeNight)
	setCode(snap, 1, 3, model.CodeNight)
	cfg := model.DefaultGeneratorConfig()
	low := 20.0
	cfg.UserPreferences[1] = &model.UserPreference{MaxMonthlyHours: &low, RatioPreference: 50}

	rules := dailyRules(map[model.Code]int{model.CodeDay: 1})
	completion, cache := runEngine(t, snap, rules, cfg, nil)

	if !completion.OK {
		t.Fatalf("既有超限不应致命: %q", completion.Error)
	}
	// 员工1不再获得新班次
	got := 0
	for day := 1; day <= cache.Days(); day++ {
		if cache.CodeAt(1, day) != model.CodeEmpty {
			got++
		}
	}
	if got != 2 {
		t.Errorf("员工1月内班次数 = %d, want 铺底的2", got)
	}
	if completion.SkippedReasons["hour_ceiling"] == 0 {
		t.Error("跳过直方图缺少 hour_ceiling 记录")
	}
}
