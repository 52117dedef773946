// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhiban/zhiban/internal/calendar"
	"github.com/zhiban/zhiban/internal/metrics"
	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/pkg/catalog"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/generator"
	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/model"
)

// runState 单个月份的生成运行状态
type runState struct {
	RunID     string                 `json:"run_id"`
	Year      int                    `json:"year"`
	Month     int                    `json:"month"`
	Running   bool                   `json:"running"`
	Pct       int                    `json:"pct"`
	Message   string                 `json:"message"`
	StartedAt time.Time              `json:"started_at"`
	Result    *generator.Completion  `json:"result,omitempty"`

	cancel context.CancelFunc
}

// runRegistry 按月份单飞的运行表
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*runState
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*runState)}
}

// monthKey 生成运行表键
func monthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// begin 登记新运行，同月已有运行时拒绝
func (r *runRegistry) begin(year, month int, cancel context.CancelFunc) (*runState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := monthKey(year, month)
	if existing, ok := r.runs[key]; ok && existing.Running {
		return nil, errors.ErrAlreadyRunning
	}

	state := &runState{
		RunID:     uuid.New().String(),
		Year:      year,
		Month:     month,
		Running:   true,
		Message:   "已启动",
		StartedAt: time.Now(),
		cancel:    cancel,
	}
	r.runs[key] = state
	metrics.SetActiveGenerations(r.activeLocked())
	return state, nil
}

// activeLocked 统计进行中的运行数，须持锁调用
func (r *runRegistry) activeLocked() int {
	n := 0
	for _, s := range r.runs {
		if s.Running {
			n++
		}
	}
	return n
}

// progress 更新运行进度
func (r *runRegistry) progress(year, month, pct int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.runs[monthKey(year, month)]; ok {
		s.Pct = pct
		s.Message = msg
	}
}

// complete 记录完成载荷并释放单飞槽
func (r *runRegistry) complete(year, month int, result *generator.Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.runs[monthKey(year, month)]; ok {
		s.Running = false
		s.Result = result
		s.Pct = 100
	}
	metrics.SetActiveGenerations(r.activeLocked())
}

// get 查询运行状态，返回锁内拷贝
// 工作协程仍在修改原对象，调用方只能拿到快照
func (r *runRegistry) get(year, month int) (runState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.runs[monthKey(year, month)]
	if !ok {
		return runState{}, false
	}
	snapshot := *s
	snapshot.cancel = nil
	return snapshot, true
}

// cancelRun 请求取消运行
func (r *runRegistry) cancelRun(year, month int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.runs[monthKey(year, month)]
	if !ok || !s.Running || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// RosterHandler 值班表处理器
type RosterHandler struct {
	repo    repository.RosterRepository
	cal     calendar.Source
	catalog *catalog.Catalog
	runs    *runRegistry
}

// NewRosterHandler 创建值班表处理器
func NewRosterHandler(repo repository.RosterRepository, cal calendar.Source, cat *catalog.Catalog) *RosterHandler {
	return &RosterHandler{
		repo:    repo,
		cal:     cal,
		catalog: cat,
		runs:    newRunRegistry(),
	}
}

// monthRequest 指定月份的请求体
type monthRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// validate 校验年月范围
func (m *monthRequest) validate() *errors.AppError {
	if m.Year < 2000 || m.Year > 2100 {
		return errors.InvalidInput("year", "年份超出范围")
	}
	if m.Month < 1 || m.Month > 12 {
		return errors.InvalidInput("month", "月份必须在1到12之间")
	}
	return nil
}

// Generate 启动月度生成
func (h *RosterHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req monthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if appErr := req.validate(); appErr != nil {
		respondError(w, appErr)
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	state, err := h.runs.begin(req.Year, req.Month, cancel)
	if err != nil {
		cancel()
		respondError(w, asAppError(err))
		return
	}

	go h.runGeneration(runCtx, cancel, state)

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": state.RunID,
		"year":   state.Year,
		"month":  state.Month,
	})
}

// runGeneration 后台工作协程：加载快照、预热日历、驱动引擎
func (h *RosterHandler) runGeneration(ctx context.Context, cancel context.CancelFunc, state *runState) {
	defer cancel()
	year, month := state.Year, state.Month
	start := time.Now()

	completion, err := h.generateMonth(ctx, year, month)
	if err != nil && completion == nil {
		completion = &generator.Completion{RunID: state.RunID, Error: err.Error()}
	}
	h.runs.complete(year, month, completion)

	status := "success"
	switch {
	case completion.Cancelled:
		status = "cancelled"
	case completion.Error != "":
		status = "failure"
	}
	metrics.RecordGeneration(status, time.Since(start))

	key := monthKey(year, month)
	if completion.Fairness != nil {
		metrics.SetFairnessGini(key, completion.Fairness.Gini)
	}
	if completion.Coverage != nil {
		metrics.SetCoverageRate(key, completion.Coverage.FillRate)
	}
	metrics.SetUnderStaffedSlots(key, len(completion.UnderStaffed))
}

// generateMonth 执行一次完整生成
func (h *RosterHandler) generateMonth(ctx context.Context, year, month int) (*generator.Completion, error) {
	cfg, err := h.loadGeneratorConfig(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := h.loadStaffingRules(ctx)
	if err != nil {
		return nil, err
	}

	// 日历预加载带前后各一天的余量
	prev := time.Date(year, time.Month(month), 0, 0, 0, 0, 0, time.Local).Format("2006-01-02")
	next := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.Local).Format("2006-01-02")
	if err := h.cal.Preload(ctx, prev, next); err != nil {
		return nil, err
	}

	cache, err := generator.LoadMonthCache(ctx, h.repo, year, month)
	if err != nil {
		return nil, err
	}

	engine := generator.New(cache, h.catalog, cfg, rules, h.cal, func(pct int, msg string) {
		h.runs.progress(year, month, pct, msg)
	})
	return engine.Run(ctx)
}

// loadGeneratorConfig 读取生成器配置，缺失或无效键回退默认值
func (h *RosterHandler) loadGeneratorConfig(ctx context.Context) (*model.GeneratorConfig, error) {
	raw, err := h.repo.LoadConfig(ctx, model.GeneratorSettingsKey)
	if err != nil {
		return nil, err
	}
	cfg, invalid, err := model.ParseGeneratorConfig(raw)
	if err != nil {
		logger.Warn().Err(err).Msg("生成器配置文档无法解析，使用默认值")
		return model.DefaultGeneratorConfig().Normalize(), nil
	}
	for _, key := range invalid {
		logger.Warn().Str("key", key).Msg("生成器配置键无效，已回退默认值")
	}
	return cfg, nil
}

// loadStaffingRules 读取最低配员规则
func (h *RosterHandler) loadStaffingRules(ctx context.Context) (*model.StaffingRules, error) {
	raw, err := h.repo.LoadConfig(ctx, model.StaffingRulesKey)
	if err != nil {
		return nil, err
	}
	rules, err := model.ParseStaffingRules(raw)
	if err != nil {
		logger.Warn().Err(err).Msg("配员规则文档无法解析，使用空规则")
		return &model.StaffingRules{}, nil
	}
	return rules, nil
}

// Status 查询生成进度
func (h *RosterHandler) Status(w http.ResponseWriter, r *http.Request) {
	year, month, appErr := monthQuery(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	state, ok := h.runs.get(year, month)
	if !ok {
		respondError(w, errors.New(errors.CodeNotFound, "该月份没有生成运行记录"))
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// Cancel 取消进行中的生成
func (h *RosterHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req monthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if appErr := req.validate(); appErr != nil {
		respondError(w, appErr)
		return
	}

	if !h.runs.cancelRun(req.Year, req.Month) {
		respondError(w, errors.New(errors.CodeNotFound, "该月份没有进行中的生成运行"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"cancelled": true})
}

// deleteMonthRequest 批量删除月份请求
type deleteMonthRequest struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	AdminID string `json:"admin_id"`
}

// DeleteMonth 批量清空月份，受保护代码与锁定单元格除外
func (h *RosterHandler) DeleteMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req deleteMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	mr := monthRequest{Year: req.Year, Month: req.Month}
	if appErr := mr.validate(); appErr != nil {
		respondError(w, appErr)
		return
	}
	adminID, err := uuid.Parse(req.AdminID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的管理员ID格式"))
		return
	}

	// 生成进行中的月份不允许批量删除
	if state, ok := h.runs.get(req.Year, req.Month); ok && state.Running {
		respondError(w, errors.New(errors.CodeAlreadyRunning, "该月份正在生成，无法删除"))
		return
	}

	excluded, err := h.repo.DeleteMonth(r.Context(), req.Year, req.Month, adminID)
	if err != nil {
		respondError(w, asAppError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"message":        "月份已清空，受保护单元格保留",
		"excluded_codes": excluded,
	})
}

// lockRequest 单元格锁请求
type lockRequest struct {
	EmployeeID int64  `json:"employee_id"`
	Date       string `json:"date"`
	Code       string `json:"code"`
	AdminID    string `json:"admin_id"`
}

// Lock 锁定单元格
func (h *RosterHandler) Lock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		respondError(w, errors.InvalidInput("date", "日期格式无效，应为YYYY-MM-DD"))
		return
	}
	adminID, err := uuid.Parse(req.AdminID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的管理员ID格式"))
		return
	}

	lock := &model.Lock{
		EmployeeID: req.EmployeeID,
		Date:       req.Date,
		Code:       model.Code(req.Code),
		SecuredBy:  adminID,
	}
	if err := h.repo.SetLock(r.Context(), lock); err != nil {
		respondError(w, asAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Unlock 解除单元格锁
func (h *RosterHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	adminID, err := uuid.Parse(req.AdminID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的管理员ID格式"))
		return
	}

	if err := h.repo.ClearLock(r.Context(), req.EmployeeID, req.Date, adminID); err != nil {
		respondError(w, asAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Locks 列出月内的全部单元格锁
func (h *RosterHandler) Locks(w http.ResponseWriter, r *http.Request) {
	year, month, appErr := monthQuery(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	locks, err := h.repo.ListLocks(r.Context(), year, month)
	if err != nil {
		respondError(w, asAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"locks": locks})
}

// monthQuery 从查询参数解析年月
func monthQuery(r *http.Request) (int, int, *errors.AppError) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0, 0, errors.InvalidInput("year", "年份必须为整数")
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		return 0, 0, errors.InvalidInput("month", "月份必须为整数")
	}
	mr := monthRequest{Year: year, Month: month}
	if appErr := mr.validate(); appErr != nil {
		return 0, 0, appErr
	}
	return year, month, nil
}

// asAppError 把任意错误规整为AppError
func asAppError(err error) *errors.AppError {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr
	}
	return errors.Wrap(err, errors.CodeInternal, "内部错误")
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}
