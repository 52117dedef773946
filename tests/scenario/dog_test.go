package scenario

import (
	"testing"

	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/model"
)

// TestSharedDogNeverDoubleBooked 测试共用一条犬的训导员永不排入时间重叠的班次
func TestSharedDogNeverDoubleBooked(t *testing.T) {
	emps := []*model.Employee{
		handler(1, "张伟", "雷克斯"), handler(2, "李娜", "雷克斯"),
		handler(3, "王磊", ""), handler(4, "刘洋", ""),
		handler(5, "陈静", ""), handler(6, "赵强", ""), handler(7, "孙敏", ""),
	}
	repo := repository.NewMemoryRoster(emps...)
	rules := &model.StaffingRules{
		Daily: map[model.Code]int{model.CodeDay: 2, model.CodeNight: 1},
	}

	completion, cache := generate(t, repo, 2025, 6, rules, nil, nil)
	if !completion.OK {
		t.Fatalf("生成失败: %q", completion.Error)
	}

	cat := catalog.Default()
	for day := 1; day <= cache.Days(); day++ {
		a := cache.CodeAt(1, day)
		b := cache.CodeAt(2, day)
		if a == model.CodeEmpty || b == model.CodeEmpty {
			continue
		}
		if cat.Overlap(a, b) {
			t.Errorf("第 %d 天同犬双排: 员工1=%q 员工2=%q", day, a, b)
		}
	}

	if len(completion.Violations) != 0 {
		t.Errorf("完成载荷报告冲突: %v", completion.Violations)
	}
	t.Logf("共排入 %d 个班次，跳过原因: %v", completion.Placed, completion.SkippedReasons)
}

// TestSharedDogAllowsDayNightSplit 测试同犬白夜错开是合法分工
func TestSharedDogAllowsDayNightSplit(t *testing.T) {
	emps := []*model.Employee{
		handler(1, "张伟", "雷克斯"), handler(2, "李娜", "雷克斯"),
	}
	repo := repository.NewMemoryRoster(emps...)
	// 铺底：员工1白班
	repo.SetCell(1, "2025-06-10", model.CodeDay)

	rules := &model.StaffingRules{
		Daily: map[model.Code]int{model.CodeNight: 1},
	}
	completion, cache := generate(t, repo, 2025, 6, rules, nil, nil)
	if !completion.OK {
		t.Fatalf("生成失败: %q", completion.Error)
	}

	// 10日的夜班必须由员工2承担：员工1当日已有白班
	if got := cache.CodeAt(2, 10); got != model.CodeNight {
		t.Errorf("CodeAt(2, 10) = %q, want N", got)
	}
	if len(completion.Violations) != 0 {
		t.Errorf("白夜错开不应产生冲突: %v", completion.Violations)
	}
}
