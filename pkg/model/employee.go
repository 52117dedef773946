// Package model 定义值班表引擎的核心数据模型
package model

import "time"

// Employee 带犬员（员工）
// 生成期间视为只读，仅由外部用户管理模块修改
type Employee struct {
	ID         int64      `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Dog        string     `json:"dog,omitempty" db:"dog"`   // 所配犬名，空 = 未配犬
	Hidden     bool       `json:"hidden" db:"hidden"`       // 隐藏员工不计入在岗人数
	ArchivedAt *time.Time `json:"archived_at,omitempty" db:"archived_at"`
	Role       string     `json:"role,omitempty" db:"role"` // 对核心不透明
}

// IsActiveOn 检查员工在指定日期是否在职
// 归档日期当天及之后视为离职
func (e *Employee) IsActiveOn(date time.Time) bool {
	if e.ArchivedAt == nil {
		return true
	}
	return date.Before(*e.ArchivedAt)
}

// HasDog 检查员工是否配犬
func (e *Employee) HasDog() bool {
	return e.Dog != ""
}

// SharesDog 检查两名员工是否共用同一条犬
// 同一条犬可以由多名员工共用
func (e *Employee) SharesDog(other *Employee) bool {
	return e.HasDog() && other.HasDog() && e.Dog == other.Dog && e.ID != other.ID
}
