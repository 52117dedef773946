// Package catalog 提供班次代码的静态描述和 O(1) 时间区间查询
package catalog

import (
	"sync"

	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/model"
)

// Shift 班次代码的静态属性
type Shift struct {
	Code      model.Code `json:"code"`
	Name      string     `json:"name"`
	Hours     float64    `json:"hours"`                // 每次出勤的工时
	StartTime string     `json:"start_time,omitempty"` // HH:MM，空 = 无时间区间
	EndTime   string     `json:"end_time,omitempty"`   // HH:MM，结束 ≤ 开始时视为跨午夜
	Color     string     `json:"color,omitempty"`
	Plannable bool       `json:"plannable"` // 是否由生成器排入
}

// interval 半开分钟区间 [s, e)，跨午夜时 e 已加 1440
type interval struct {
	start int
	end   int
}

// Catalog 不可变的班次目录
type Catalog struct {
	shifts    map[model.Code]*Shift
	intervals map[model.Code]interval

	mu     sync.Mutex
	warned map[model.Code]bool
}

// New 由班次定义构建目录，预处理分钟区间
func New(shifts []*Shift) *Catalog {
	c := &Catalog{
		shifts:    make(map[model.Code]*Shift, len(shifts)),
		intervals: make(map[model.Code]interval),
		warned:    make(map[model.Code]bool),
	}
	for _, s := range shifts {
		c.shifts[s.Code] = s
		if s.StartTime == "" || s.EndTime == "" {
			continue
		}
		start, ok1 := parseMinutes(s.StartTime)
		end, ok2 := parseMinutes(s.EndTime)
		if !ok1 || !ok2 {
			continue
		}
		// 结束 ≤ 开始视为跨午夜；零长度班次因此不可表示
		if end <= start {
			end += 1440
		}
		c.intervals[s.Code] = interval{start: start, end: end}
	}
	return c
}

// Default 返回带犬单位的标准班次目录
func Default() *Catalog {
	return New([]*Shift{
		{Code: model.CodeDay, Name: "白班", Hours: 12, StartTime: "08:00", EndTime: "20:00", Color: "#FFE08A", Plannable: true},
		{Code: model.CodeNight, Name: "夜班", Hours: 12, StartTime: "20:00", EndTime: "08:00", Color: "#4A5899", Plannable: true},
		{Code: model.CodeFridaySix, Name: "周五六小时班", Hours: 6, StartTime: "08:00", EndTime: "14:00", Color: "#9AD29A", Plannable: true},
		{Code: model.CodeTraining, Name: "季度培训", Hours: 8, StartTime: "08:00", EndTime: "16:00", Color: "#C8A2C8"},
		{Code: model.CodeShooting, Name: "射击训练", Hours: 8, StartTime: "08:00", EndTime: "16:00", Color: "#D2B48C"},
		{Code: model.CodeVacation, Name: "休假", Color: "#87CEEB"},
		{Code: model.CodeWishFree, Name: "免班（已接受）", Color: "#DDDDDD"},
		{Code: model.CodePending, Name: "免班（待处理）", Color: "#EEEEEE"},
		{Code: model.CodeAdmLeave, Name: "行政培训假", Color: "#F0E68C"},
		{Code: model.CodeSick, Name: "不可用", Color: "#F08080"},
	})
}

// Get 查询班次定义，未知代码返回 nil
func (c *Catalog) Get(code model.Code) *Shift {
	return c.shifts[code]
}

// Has 检查代码是否在目录中
func (c *Catalog) Has(code model.Code) bool {
	_, ok := c.shifts[code]
	return ok
}

// Hours 返回代码的每次出勤工时，未知代码为 0
func (c *Catalog) Hours(code model.Code) float64 {
	if s := c.shifts[code]; s != nil {
		return s.Hours
	}
	return 0
}

// Interval 返回代码的分钟区间 [s, e)，无区间时 ok 为 false
func (c *Catalog) Interval(code model.Code) (start, end int, ok bool) {
	iv, found := c.intervals[code]
	if !found {
		return 0, 0, false
	}
	return iv.start, iv.end, true
}

// SpillMinutes 返回跨午夜班次溢出到次日的分钟数
// 用于上月最后一天夜班的工时结转
func (c *Catalog) SpillMinutes(code model.Code) int {
	iv, found := c.intervals[code]
	if !found || iv.end <= 1440 {
		return 0
	}
	return iv.end - 1440
}

// Overlap 检查两个代码的时间区间是否重叠
// 无区间的代码不参与重叠判断，首次遇到时告警一次
func (c *Catalog) Overlap(a, b model.Code) bool {
	ia, oka := c.intervals[a]
	ib, okb := c.intervals[b]
	if !oka {
		c.warnNoInterval(a)
		return false
	}
	if !okb {
		c.warnNoInterval(b)
		return false
	}
	return ia.start < ib.end && ib.start < ia.end
}

// All 返回目录中的全部班次
func (c *Catalog) All() []*Shift {
	result := make([]*Shift, 0, len(c.shifts))
	for _, s := range c.shifts {
		result = append(result, s)
	}
	return result
}

// warnNoInterval 对无时间区间的代码只告警一次
func (c *Catalog) warnNoInterval(code model.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warned[code] {
		return
	}
	c.warned[code] = true
	logger.Warn().Str("code", string(code)).Msg("班次代码无时间区间，重叠检查恒为否")
}

// parseMinutes 解析 HH:MM 为当日分钟数
func parseMinutes(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' ||
		s[3] < '0' || s[3] > '9' || s[4] < '0' || s[4] > '9' {
		return 0, false
	}
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
