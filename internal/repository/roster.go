// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/model"
)

// RosterRepository 值班表仓储接口
type RosterRepository interface {
	// 月度快照与单元格写入
	LoadMonth(ctx context.Context, year, month int) (*model.MonthSnapshot, error)
	SaveAssignment(ctx context.Context, employeeID int64, date string, code model.Code, keepRequest bool) error
	DeleteMonth(ctx context.Context, year, month int, adminID uuid.UUID) ([]model.Code, error)

	// 单元格锁
	SetLock(ctx context.Context, lock *model.Lock) error
	ClearLock(ctx context.Context, employeeID int64, date string, adminID uuid.UUID) error
	ListLocks(ctx context.Context, year, month int) ([]*model.Lock, error)

	// 键值配置文档
	LoadConfig(ctx context.Context, key string) (json.RawMessage, error)
	SaveConfig(ctx context.Context, key string, raw json.RawMessage) error
}

// PostgresRoster 基于 PostgreSQL 的值班表仓储
type PostgresRoster struct {
	db DB
}

// NewPostgresRoster 创建值班表仓储
func NewPostgresRoster(db DB) *PostgresRoster {
	return &PostgresRoster{db: db}
}

// monthRange 返回月份的首末日期
func monthRange(year, month int) (string, string) {
	first := model.FormatDate(year, month, 1)
	last := model.FormatDate(year, month, model.DaysInMonth(year, month))
	return first, last
}

// LoadMonth 一次往返加载整月快照
// 包含员工、月内分配、上月最后一天、休假、意愿和锁
func (r *PostgresRoster) LoadMonth(ctx context.Context, year, month int) (*model.MonthSnapshot, error) {
	snap := &model.MonthSnapshot{
		Year:             year,
		Month:            month,
		Assignments:      make(map[int64]map[int]model.Code),
		PrevMonthLastDay: make(map[int64]model.Code),
		Vacations:        make(map[int64]map[int]model.VacationStatus),
		Wishes:           make(map[int64]map[int]model.WishInfo),
		DailyCounts:      make(map[int]map[model.Code]int),
		Locks:            make(map[int64]map[int]model.Code),
	}

	if err := r.loadEmployees(ctx, snap); err != nil {
		return nil, err
	}
	if err := r.loadAssignments(ctx, snap); err != nil {
		return nil, err
	}
	if err := r.loadVacations(ctx, snap); err != nil {
		return nil, err
	}
	if err := r.loadWishes(ctx, snap); err != nil {
		return nil, err
	}
	if err := r.loadLocks(ctx, snap); err != nil {
		return nil, err
	}

	snap.RecountDailyCounts()
	return snap, nil
}

// loadEmployees 加载全部员工，活跃性与隐藏由快照消费方判断
func (r *PostgresRoster) loadEmployees(ctx context.Context, snap *model.MonthSnapshot) error {
	query := `
		SELECT id, name, COALESCE(dog, ''), hidden, archived_at, COALESCE(role, '')
		FROM employees
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("查询员工失败: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		e := &model.Employee{}
		var archivedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.Name, &e.Dog, &e.Hidden, &archivedAt, &e.Role); err != nil {
			return errors.RepositoryUnavailable(fmt.Errorf("扫描员工失败: %w", err))
		}
		if archivedAt.Valid {
			e.ArchivedAt = &archivedAt.Time
		}
		snap.Employees = append(snap.Employees, e)
	}
	return rows.Err()
}

// loadAssignments 加载月内分配与上月最后一天的代码
func (r *PostgresRoster) loadAssignments(ctx context.Context, snap *model.MonthSnapshot) error {
	_, last := monthRange(snap.Year, snap.Month)
	prevLast := time.Date(snap.Year, time.Month(snap.Month), 0, 0, 0, 0, 0, time.Local).Format("2006-01-02")

	query := `
		SELECT employee_id, to_char(date, 'YYYY-MM-DD'), code
		FROM roster_entries
		WHERE date >= $1 AND date <= $2
	`

	rows, err := r.db.QueryContext(ctx, query, prevLast, last)
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("查询排班分配失败: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var empID int64
		var date, code string
		if err := rows.Scan(&empID, &date, &code); err != nil {
			return errors.RepositoryUnavailable(fmt.Errorf("扫描排班分配失败: %w", err))
		}
		if date == prevLast {
			snap.PrevMonthLastDay[empID] = model.Code(code)
			continue
		}
		day := model.ParseDay(date, snap.Year, snap.Month)
		if day == 0 {
			continue
		}
		if snap.Assignments[empID] == nil {
			snap.Assignments[empID] = make(map[int]model.Code)
		}
		snap.Assignments[empID][day] = model.Code(code)
	}
	return rows.Err()
}

// loadVacations 加载与本月重叠的休假区间并按日展开
func (r *PostgresRoster) loadVacations(ctx context.Context, snap *model.MonthSnapshot) error {
	first, last := monthRange(snap.Year, snap.Month)

	query := `
		SELECT employee_id, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), status
		FROM vacations
		WHERE start_date <= $2 AND end_date >= $1
	`

	rows, err := r.db.QueryContext(ctx, query, first, last)
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("查询休假记录失败: %w", err))
	}
	defer rows.Close()

	days := model.DaysInMonth(snap.Year, snap.Month)
	for rows.Next() {
		var empID int64
		var start, end, status string
		if err := rows.Scan(&empID, &start, &end, &status); err != nil {
			return errors.RepositoryUnavailable(fmt.Errorf("扫描休假记录失败: %w", err))
		}
		startT, err1 := time.Parse("2006-01-02", start)
		endT, err2 := time.Parse("2006-01-02", end)
		if err1 != nil || err2 != nil {
			continue
		}
		for t := startT; !t.After(endT); t = t.AddDate(0, 0, 1) {
			if t.Year() != snap.Year || int(t.Month()) != snap.Month {
				continue
			}
			day := t.Day()
			if day < 1 || day > days {
				continue
			}
			if snap.Vacations[empID] == nil {
				snap.Vacations[empID] = make(map[int]model.VacationStatus)
			}
			snap.Vacations[empID][day] = model.VacationStatus(status)
		}
	}
	return rows.Err()
}

// loadWishes 加载月内班次意愿
func (r *PostgresRoster) loadWishes(ctx context.Context, snap *model.MonthSnapshot) error {
	first, last := monthRange(snap.Year, snap.Month)

	query := `
		SELECT employee_id, to_char(date, 'YYYY-MM-DD'), COALESCE(requested_code, ''), status, COALESCE(source, 'user')
		FROM wishes
		WHERE date >= $1 AND date <= $2
	`

	rows, err := r.db.QueryContext(ctx, query, first, last)
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("查询意愿记录失败: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var empID int64
		var date, requested, status, source string
		if err := rows.Scan(&empID, &date, &requested, &status, &source); err != nil {
			return errors.RepositoryUnavailable(fmt.Errorf("扫描意愿记录失败: %w", err))
		}
		day := model.ParseDay(date, snap.Year, snap.Month)
		if day == 0 {
			continue
		}
		if snap.Wishes[empID] == nil {
			snap.Wishes[empID] = make(map[int]model.WishInfo)
		}
		snap.Wishes[empID][day] = model.WishInfo{
			Status:    model.WishStatus(status),
			Requested: model.Code(requested),
			Source:    model.WishSource(source),
		}
	}
	return rows.Err()
}

// loadLocks 加载月内单元格锁
func (r *PostgresRoster) loadLocks(ctx context.Context, snap *model.MonthSnapshot) error {
	first, last := monthRange(snap.Year, snap.Month)

	query := `
		SELECT employee_id, to_char(date, 'YYYY-MM-DD'), code
		FROM cell_locks
		WHERE date >= $1 AND date <= $2
	`

	rows, err := r.db.QueryContext(ctx, query, first, last)
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("查询单元格锁失败: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var empID int64
		var date, code string
		if err := rows.Scan(&empID, &date, &code); err != nil {
			return errors.RepositoryUnavailable(fmt.Errorf("扫描单元格锁失败: %w", err))
		}
		day := model.ParseDay(date, snap.Year, snap.Month)
		if day == 0 {
			continue
		}
		if snap.Locks[empID] == nil {
			snap.Locks[empID] = make(map[int]model.Code)
		}
		snap.Locks[empID][day] = model.Code(code)
	}
	return rows.Err()
}

// lockedCode 查询单元格锁定的代码，未锁定返回空
func (r *PostgresRoster) lockedCode(ctx context.Context, employeeID int64, date string) (model.Code, error) {
	var code string
	err := r.db.QueryRowContext(ctx,
		"SELECT code FROM cell_locks WHERE employee_id = $1 AND date = $2",
		employeeID, date,
	).Scan(&code)
	if err == sql.ErrNoRows {
		return model.CodeEmpty, nil
	}
	if err != nil {
		return model.CodeEmpty, errors.RepositoryUnavailable(fmt.Errorf("查询单元格锁失败: %w", err))
	}
	return model.Code(code), nil
}

// SaveAssignment 写入单元格：空代码删除行，否则插入或更新
// 单元格锁定为其它代码时拒绝写入；除非 keepRequest，同单元格的待定意愿会被清除
func (r *PostgresRoster) SaveAssignment(ctx context.Context, employeeID int64, date string, code model.Code, keepRequest bool) error {
	locked, err := r.lockedCode(ctx, employeeID, date)
	if err != nil {
		return err
	}
	if locked != model.CodeEmpty && locked != code {
		return errors.LockedCell(employeeID, date, string(locked))
	}

	if code == model.CodeEmpty {
		_, err = r.db.ExecContext(ctx,
			"DELETE FROM roster_entries WHERE employee_id = $1 AND date = $2",
			employeeID, date,
		)
	} else {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO roster_entries (employee_id, date, code, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (employee_id, date) DO UPDATE SET code = $3, updated_at = NOW()
		`, employeeID, date, string(code))
	}
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("写入排班单元格失败: %w", err))
	}

	if !keepRequest {
		_, err = r.db.ExecContext(ctx,
			"DELETE FROM wishes WHERE employee_id = $1 AND date = $2 AND status = $3",
			employeeID, date, string(model.WishPending),
		)
		if err != nil {
			return errors.RepositoryUnavailable(fmt.Errorf("清除待定意愿失败: %w", err))
		}
	}
	return nil
}

// DeleteMonth 批量清空月份，返回被保护而跳过的代码列表
// 受保护集合与锁定单元格永不删除
func (r *PostgresRoster) DeleteMonth(ctx context.Context, year, month int, adminID uuid.UUID) ([]model.Code, error) {
	first, last := monthRange(year, month)

	protected := make([]string, 0, len(model.BulkDeleteExcluded))
	for _, c := range model.BulkDeleteExcluded {
		protected = append(protected, string(c))
	}

	// 先收集将被跳过的代码
	skipQuery := `
		SELECT DISTINCT code FROM roster_entries r
		WHERE r.date >= $1 AND r.date <= $2
		AND (code = ANY($3) OR EXISTS (
			SELECT 1 FROM cell_locks l
			WHERE l.employee_id = r.employee_id AND l.date = r.date
		))
	`
	rows, err := r.db.QueryContext(ctx, skipQuery, first, last, pq.Array(protected))
	if err != nil {
		return nil, errors.RepositoryUnavailable(fmt.Errorf("查询受保护代码失败: %w", err))
	}
	var excluded []model.Code
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, errors.RepositoryUnavailable(fmt.Errorf("扫描受保护代码失败: %w", err))
		}
		excluded = append(excluded, model.Code(code))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.RepositoryUnavailable(fmt.Errorf("查询受保护代码失败: %w", err))
	}

	deleteQuery := `
		DELETE FROM roster_entries r
		WHERE r.date >= $1 AND r.date <= $2
		AND NOT (code = ANY($3))
		AND NOT EXISTS (
			SELECT 1 FROM cell_locks l
			WHERE l.employee_id = r.employee_id AND l.date = r.date
		)
	`
	result, err := r.db.ExecContext(ctx, deleteQuery, first, last, pq.Array(protected))
	if err != nil {
		return nil, errors.RepositoryUnavailable(fmt.Errorf("批量删除月份失败: %w", err))
	}

	deleted, _ := result.RowsAffected()
	sort.Slice(excluded, func(i, j int) bool { return excluded[i] < excluded[j] })

	logger.Info().
		Int("year", year).
		Int("month", month).
		Str("admin_id", adminID.String()).
		Int64("deleted", deleted).
		Int("excluded_codes", len(excluded)).
		Msg("批量删除月份完成")

	return excluded, nil
}

// SetLock 锁定单元格
func (r *PostgresRoster) SetLock(ctx context.Context, lock *model.Lock) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cell_locks (employee_id, date, code, secured_by, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (employee_id, date) DO UPDATE SET code = $3, secured_by = $4, created_at = NOW()
	`, lock.EmployeeID, lock.Date, string(lock.Code), lock.SecuredBy)
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("设置单元格锁失败: %w", err))
	}

	logger.Info().
		Int64("employee_id", lock.EmployeeID).
		Str("date", lock.Date).
		Str("code", string(lock.Code)).
		Str("admin_id", lock.SecuredBy.String()).
		Msg("单元格已锁定")
	return nil
}

// ClearLock 解除单元格锁
func (r *PostgresRoster) ClearLock(ctx context.Context, employeeID int64, date string, adminID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM cell_locks WHERE employee_id = $1 AND date = $2",
		employeeID, date,
	)
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("解除单元格锁失败: %w", err))
	}

	logger.Info().
		Int64("employee_id", employeeID).
		Str("date", date).
		Str("admin_id", adminID.String()).
		Msg("单元格锁已解除")
	return nil
}

// ListLocks 列出月内的全部单元格锁
func (r *PostgresRoster) ListLocks(ctx context.Context, year, month int) ([]*model.Lock, error) {
	first, last := monthRange(year, month)

	query := `
		SELECT employee_id, to_char(date, 'YYYY-MM-DD'), code, secured_by, created_at
		FROM cell_locks
		WHERE date >= $1 AND date <= $2
		ORDER BY date, employee_id
	`

	rows, err := r.db.QueryContext(ctx, query, first, last)
	if err != nil {
		return nil, errors.RepositoryUnavailable(fmt.Errorf("查询单元格锁失败: %w", err))
	}
	defer rows.Close()

	var locks []*model.Lock
	for rows.Next() {
		l := &model.Lock{}
		var code string
		if err := rows.Scan(&l.EmployeeID, &l.Date, &code, &l.SecuredBy, &l.CreatedAt); err != nil {
			return nil, errors.RepositoryUnavailable(fmt.Errorf("扫描单元格锁失败: %w", err))
		}
		l.Code = model.Code(code)
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

// LoadConfig 读取配置文档，缺失时返回 nil
func (r *PostgresRoster) LoadConfig(ctx context.Context, key string) (json.RawMessage, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM app_config WHERE key = $1",
		key,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.RepositoryUnavailable(fmt.Errorf("读取配置失败: %w", err))
	}
	return json.RawMessage(raw), nil
}

// SaveConfig 整体替换配置文档
func (r *PostgresRoster) SaveConfig(ctx context.Context, key string, raw json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_config (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()
	`, key, []byte(raw))
	if err != nil {
		return errors.RepositoryUnavailable(fmt.Errorf("保存配置失败: %w", err))
	}
	return nil
}
