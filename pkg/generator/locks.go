package generator

import "github.com/zhiban/zhiban/pkg/model"

// LockRegistry 每 (员工, 日) 的锁状态
// 生成器写入和手工覆盖前都必须先查询
type LockRegistry struct {
	locks map[int64]map[int]model.Code
}

// NewLockRegistry 由月快照建立锁注册表
func NewLockRegistry(snap *model.MonthSnapshot) *LockRegistry {
	return &LockRegistry{locks: snap.Locks}
}

// IsLocked 查询单元格的锁定代码
func (r *LockRegistry) IsLocked(empID int64, day int) (model.Code, bool) {
	c, ok := r.locks[empID][day]
	return c, ok
}

// Allows 检查写入是否被允许：未锁定，或与锁定代码一致
func (r *LockRegistry) Allows(empID int64, day int, code model.Code) bool {
	locked, ok := r.locks[empID][day]
	if !ok {
		return true
	}
	return locked == code
}

// LockedDays 返回某员工本月所有被锁定的日
func (r *LockRegistry) LockedDays(empID int64) map[int]model.Code {
	return r.locks[empID]
}
