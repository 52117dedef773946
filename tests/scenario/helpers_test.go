// Package scenario 提供值班表生成的场景测试
package scenario

import (
	"context"
	"testing"

	"github.com/zhiban/zhiban/internal/calendar"
	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/generator"
	"github.com/zhiban/zhiban/pkg/model"
)

// handler 构建测试训导员
func handler(id int64, name, dog string) *model.Employee {
	return &model.Employee{ID: id, Name: name, Dog: dog}
}

// generate 对内存仓储执行一次完整生成
func generate(t *testing.T, repo *repository.MemoryRoster, year, month int, rules *model.StaffingRules, cfg *model.GeneratorConfig, cal calendar.Source) (*generator.Completion, *generator.MonthCache) {
	t.Helper()

	if cfg == nil {
		cfg = model.DefaultGeneratorConfig()
	}
	cfg.Normalize()
	if cal == nil {
		cal = calendar.NewStatic()
	}

	cache, err := generator.LoadMonthCache(context.Background(), repo, year, month)
	if err != nil {
		t.Fatalf("加载月快照失败: %v", err)
	}

	engine := generator.New(cache, catalog.Default(), cfg, rules, cal, nil)
	completion, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	return completion, cache
}
