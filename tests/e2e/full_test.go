// Package e2e 提供贯穿中间件与处理器的端到端测试
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zhiban/zhiban/internal/calendar"
	"github.com/zhiban/zhiban/internal/handler"
	"github.com/zhiban/zhiban/internal/middleware"
	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/model"
)

// newServer 组装与生产一致的路由和中间件链
func newServer(repo *repository.MemoryRoster) http.Handler {
	rosterHandler := handler.NewRosterHandler(repo, calendar.NewStatic(), catalog.Default())
	configHandler := handler.NewConfigHandler(repo)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/roster/generate", rosterHandler.Generate)
	mux.HandleFunc("/api/v1/roster/generate/status", rosterHandler.Status)
	mux.HandleFunc("/api/v1/roster/delete-month", rosterHandler.DeleteMonth)
	mux.HandleFunc("/api/v1/roster/lock", rosterHandler.Lock)
	mux.HandleFunc("/api/v1/config/generator", configHandler.Generator)
	mux.HandleFunc("/api/v1/config/staffing", configHandler.Staffing)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recovery,
		middleware.Logging,
	)
}

func call(t *testing.T, srv http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("序列化失败: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if len(rec.Body.Bytes()) > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("解析响应失败: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, parsed
}

// TestFullRosterWorkflow 测试锁定、配置、生成、删除、再生成的完整工作流
func TestFullRosterWorkflow(t *testing.T) {
	repo := repository.NewMemoryRoster(
		&model.Employee{ID: 1, Name: "张伟", Dog: "雷克斯"},
		&model.Employee{ID: 2, Name: "李娜", Dog: "雷克斯"},
		&model.Employee{ID: 3, Name: "王磊"},
		&model.Employee{ID: 4, Name: "刘洋"},
		&model.Employee{ID: 5, Name: "陈静"},
	)
	srv := newServer(repo)
	admin := uuid.New().String()

	// 1. 管理员锁定一个休假单元格
	repo.SetCell(2, "2025-06-15", model.CodeVacation)
	rec, _ := call(t, srv, http.MethodPost, "/api/v1/roster/lock", map[string]interface{}{
		"employee_id": 2, "date": "2025-06-15", "code": "U", "admin_id": admin,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("锁定失败: %d %s", rec.Code, rec.Body.String())
	}

	// 2. 写入配员规则与生成器配置
	rec, _ = call(t, srv, http.MethodPut, "/api/v1/config/staffing", map[string]interface{}{
		"Daily": map[string]int{"T": 1, "N": 1},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("写入配员规则失败: %d", rec.Code)
	}
	rec, _ = call(t, srv, http.MethodPut, "/api/v1/config/generator", map[string]interface{}{
		"preferred_partners_prioritized": []map[string]interface{}{
			{"id_a": 3, "id_b": 4, "priority": 1},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("写入生成器配置失败: %d", rec.Code)
	}

	// 3. 启动生成并轮询到完成
	rec, _ = call(t, srv, http.MethodPost, "/api/v1/roster/generate", map[string]int{
		"year": 2025, "month": 6,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("启动生成失败: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("响应缺少请求ID头")
	}

	result := waitForCompletion(t, srv, 2025, 6)
	if okFlag, _ := result["ok"].(bool); !okFlag {
		t.Fatalf("生成未成功: %v", result)
	}

	// 4. 锁定单元格未被覆盖
	if got := repo.CodeAt(2, "2025-06-15"); got != model.CodeVacation {
		t.Errorf("锁定单元格 = %q, want U", got)
	}

	// 5. 每天白夜班都有人
	for day := 1; day <= 30; day++ {
		date := model.FormatDate(2025, 6, day)
		var hasDay, hasNight bool
		for _, e := range []int64{1, 2, 3, 4, 5} {
			switch repo.CodeAt(e, date) {
			case model.CodeDay:
				hasDay = true
			case model.CodeNight:
				hasNight = true
			}
		}
		if !hasDay || !hasNight {
			t.Errorf("%s 覆盖不完整: 白班=%v 夜班=%v", date, hasDay, hasNight)
		}
	}

	// 6. 批量删除后受保护单元格保留
	rec, body := call(t, srv, http.MethodPost, "/api/v1/roster/delete-month", map[string]interface{}{
		"year": 2025, "month": 6, "admin_id": admin,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("批量删除失败: %d %s", rec.Code, rec.Body.String())
	}
	excluded, _ := body["excluded_codes"].([]interface{})
	if len(excluded) == 0 {
		t.Error("excluded_codes 为空，锁定休假应被保留")
	}
	if got := repo.CodeAt(2, "2025-06-15"); got != model.CodeVacation {
		t.Errorf("删除后锁定单元格 = %q, want U", got)
	}
	if got := repo.CodeAt(1, "2025-06-01"); got != model.CodeEmpty {
		t.Errorf("删除后普通单元格残留 %q", got)
	}

	// 7. 再次生成恢复覆盖
	rec, _ = call(t, srv, http.MethodPost, "/api/v1/roster/generate", map[string]int{
		"year": 2025, "month": 6,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("再次生成失败: %d", rec.Code)
	}
	result = waitForCompletion(t, srv, 2025, 6)
	if okFlag, _ := result["ok"].(bool); !okFlag {
		t.Fatalf("再次生成未成功: %v", result)
	}
}

// waitForCompletion 轮询状态端点直到运行结束，返回完成载荷
func waitForCompletion(t *testing.T, srv http.Handler, year, month int) map[string]interface{} {
	t.Helper()
	path := fmt.Sprintf("/api/v1/roster/generate/status?year=%d&month=%d", year, month)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, body := call(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("状态查询失败: %d %s", rec.Code, rec.Body.String())
		}
		if running, _ := body["running"].(bool); !running {
			result, _ := body["result"].(map[string]interface{})
			if result == nil {
				t.Fatalf("状态缺少完成载荷: %v", body)
			}
			return result
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("生成运行超时未结束")
	return nil
}
