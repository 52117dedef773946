package scenario

import (
	"fmt"
	"testing"

	"github.com/zhiban/zhiban/internal/calendar"
	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/pkg/model"
)

// TestMonthGeneration 测试典型月份的完整生成
// 六名训导员，每日白班加夜班，周五叠加六小时班，6月4日为节假日
func TestMonthGeneration(t *testing.T) {
	repo := repository.NewMemoryRoster(
		handler(1, "张伟", ""), handler(2, "李娜", ""), handler(3, "王磊", ""),
		handler(4, "刘洋", ""), handler(5, "陈静", ""), handler(6, "赵强", ""),
	)
	rules := &model.StaffingRules{
		Daily: map[model.Code]int{model.CodeDay: 1, model.CodeNight: 1},
		Fr:    map[model.Code]int{model.CodeFridaySix: 1},
	}
	cal := calendar.NewStatic().AddHoliday("2025-06-04")

	completion, cache := generate(t, repo, 2025, 6, rules, nil, cal)

	if !completion.OK || completion.Cancelled {
		t.Fatalf("生成未正常完成: OK=%v Cancelled=%v Error=%q", completion.OK, completion.Cancelled, completion.Error)
	}
	if len(completion.UnderStaffed) != 0 {
		t.Fatalf("六人足以覆盖需求，却报告欠配: %v", completion.UnderStaffed)
	}
	if len(completion.Violations) != 0 {
		t.Fatalf("生成结果含冲突单元格: %v", completion.Violations)
	}

	// 每日覆盖检查
	for day := 1; day <= cache.Days(); day++ {
		if cache.DailyCount(day, model.CodeDay) < 1 {
			t.Errorf("第 %d 天白班欠配", day)
		}
		if cache.DailyCount(day, model.CodeNight) < 1 {
			t.Errorf("第 %d 天夜班欠配", day)
		}
	}
	// 2025年6月的周五：6、13、20、27
	for _, fri := range []int{6, 13, 20, 27} {
		if cache.DailyCount(fri, model.CodeFridaySix) < 1 {
			t.Errorf("周五第 %d 天六小时班欠配", fri)
		}
	}

	t.Logf("共排入 %d 个班次，填充率 %.1f%%，Gini %.3f",
		completion.Placed, completion.Coverage.FillRate, completion.Fairness.Gini)
}

// TestUnderStaffingReported 测试人手不足时欠配被报告而非中止
func TestUnderStaffingReported(t *testing.T) {
	repo := repository.NewMemoryRoster(handler(1, "张伟", ""), handler(2, "李娜", ""))
	rules := &model.StaffingRules{
		Daily: map[model.Code]int{model.CodeDay: 3},
	}

	completion, _ := generate(t, repo, 2025, 6, rules, nil, nil)

	if !completion.OK {
		t.Fatalf("欠配不应是致命错误: %q", completion.Error)
	}
	if len(completion.UnderStaffed) == 0 {
		t.Fatal("两人排三个槽位必然欠配，却未报告")
	}
	for _, slot := range completion.UnderStaffed {
		if slot.Code != model.CodeDay || slot.Required != 3 {
			t.Errorf("欠配槽位内容异常: %+v", slot)
		}
	}
	if completion.Coverage.FillRate >= 100 {
		t.Errorf("填充率 = %.1f, want < 100", completion.Coverage.FillRate)
	}

	t.Logf("报告 %d 个欠配槽位，填充率 %.1f%%", len(completion.UnderStaffed), completion.Coverage.FillRate)
}

// TestRerunIsIdempotentOnCoverage 测试重复生成不会重复填充已满的槽位
func TestRerunIsIdempotentOnCoverage(t *testing.T) {
	repo := repository.NewMemoryRoster(
		handler(1, "张伟", ""), handler(2, "李娜", ""), handler(3, "王磊", ""), handler(4, "刘洋", ""),
	)
	rules := &model.StaffingRules{
		Daily: map[model.Code]int{model.CodeDay: 1},
	}

	first, _ := generate(t, repo, 2025, 6, rules, nil, nil)
	if first.Placed == 0 {
		t.Fatal("首轮生成未排入任何班次")
	}

	// 首轮后的全部单元格快照
	before := make(map[string]model.Code)
	for day := 1; day <= 30; day++ {
		date := model.FormatDate(2025, 6, day)
		for _, e := range []int64{1, 2, 3, 4} {
			before[fmt.Sprintf("%d|%s", e, date)] = repo.CodeAt(e, date)
		}
	}

	second, cache := generate(t, repo, 2025, 6, rules, nil, nil)
	if second.Placed != 0 {
		t.Errorf("二次生成重复排入 %d 个班次, want 0", second.Placed)
	}
	for day := 1; day <= cache.Days(); day++ {
		if got := cache.DailyCount(day, model.CodeDay); got != 1 {
			t.Errorf("第 %d 天白班人数 = %d, want 1", day, got)
		}
	}
	// 二次运行零写入：逐格与首轮结果一致
	for day := 1; day <= 30; day++ {
		date := model.FormatDate(2025, 6, day)
		for _, e := range []int64{1, 2, 3, 4} {
			if got := repo.CodeAt(e, date); got != before[fmt.Sprintf("%d|%s", e, date)] {
				t.Errorf("员工 %d %s 被二次运行改写为 %q", e, date, got)
			}
		}
	}
}
