// Package model 定义值班表引擎的核心数据模型
package model

// Code 班次代码（短令牌）
type Code string

const (
	CodeDay       Code = "T"  // 白班（12小时）
	CodeNight     Code = "N"  // 夜班（12小时，跨午夜）
	CodeFridaySix Code = "6"  // 周五六小时班
	CodeTraining  Code = "QA" // 季度培训
	CodeShooting  Code = "S"  // 射击训练
	CodeVacation  Code = "U"  // 已批准休假
	CodeWishFree  Code = "X"  // 已接受的免班申请
	CodePending   Code = "WF" // 待处理的免班申请
	CodeAdmLeave  Code = "EU" // 行政培训假
	CodeSick      Code = "K"  // 不可用/病假
	CodeEmpty     Code = ""   // 空单元格 = 空闲
)

// Kind 班次种类（封闭枚举，避免对显示文本做字符串嗅探）
type Kind int

const (
	KindEmpty   Kind = iota // 空闲
	KindWork                // 工作班次（计入休息规则）
	KindLeave               // 休假类（休假/免班/行政假/病假）
	KindPending             // 待处理申请
)

// workCodes 计入休息规则和连班统计的工作代码
var workCodes = map[Code]bool{
	CodeDay:       true,
	CodeNight:     true,
	CodeFridaySix: true,
	CodeTraining:  true,
	CodeShooting:  true,
}

// plannedCodes 生成器负责排入的代码
var plannedCodes = map[Code]bool{
	CodeDay:       true,
	CodeNight:     true,
	CodeFridaySix: true,
}

// protectedCodes 生成器和批量删除永远不可覆盖的代码
var protectedCodes = map[Code]bool{
	CodeVacation: true,
	CodeWishFree: true,
	CodeTraining: true,
	CodeShooting: true,
	CodeAdmLeave: true,
}

// BulkDeleteExcluded 批量删除的排除列表（与旧系统逐字节兼容）
var BulkDeleteExcluded = []Code{
	CodeWishFree, CodeShooting, CodeTraining, CodeAdmLeave, CodePending, CodeVacation,
}

// ClassifyCode 返回代码的种类
func ClassifyCode(c Code) Kind {
	switch {
	case c == CodeEmpty:
		return KindEmpty
	case workCodes[c]:
		return KindWork
	case c == CodePending:
		return KindPending
	default:
		return KindLeave
	}
}

// IsWork 检查代码是否为工作班次
func (c Code) IsWork() bool {
	return workCodes[c]
}

// IsFree 检查代码对休息规则和公平性是否算空闲
func (c Code) IsFree() bool {
	return !workCodes[c]
}

// IsPlanned 检查代码是否由生成器排入
func (c Code) IsPlanned() bool {
	return plannedCodes[c]
}

// IsProtected 检查代码是否受保护（不可覆盖）
func (c Code) IsProtected() bool {
	return protectedCodes[c]
}

// PlannedOrder 返回单日内的排班顺序：周五六小时班 → 白班 → 夜班
func PlannedOrder() []Code {
	return []Code{CodeFridaySix, CodeDay, CodeNight}
}
