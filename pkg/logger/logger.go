// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// GeneratorLogger 值班表生成器专用日志器
type GeneratorLogger struct {
	base *zerolog.Logger
}

// NewGeneratorLogger 创建生成器日志器
func NewGeneratorLogger() *GeneratorLogger {
	l := Get().With().Str("component", "generator").Logger()
	return &GeneratorLogger{base: &l}
}

// StartRun 记录生成开始
func (l *GeneratorLogger) StartRun(runID string, year, month, employees int) {
	l.base.Info().
		Str("run_id", runID).
		Int("year", year).
		Int("month", month).
		Int("employees", employees).
		Msg("开始生成值班表")
}

// Placement 记录一次成功分配
func (l *GeneratorLogger) Placement(day int, code string, empID int64, round int) {
	l.base.Debug().
		Int("day", day).
		Str("code", code).
		Int64("employee_id", empID).
		Int("round", round).
		Msg("分配成功")
}

// NoCandidate 记录某轮无存活候选人
func (l *GeneratorLogger) NoCandidate(day int, code string, round int, skipped map[string]int) {
	l.base.Debug().
		Int("day", day).
		Str("code", code).
		Int("round", round).
		Interface("skipped_reasons", skipped).
		Msg("本轮无候选人")
}

// LockedCell 记录锁定单元格被跳过
func (l *GeneratorLogger) LockedCell(empID int64, day int) {
	l.base.Warn().
		Int64("employee_id", empID).
		Int("day", day).
		Msg("单元格已锁定，跳过")
}

// UnderStaffed 记录四轮后仍未达配员
func (l *GeneratorLogger) UnderStaffed(day int, code string, required, placed int) {
	l.base.Warn().
		Int("day", day).
		Str("code", code).
		Int("required", required).
		Int("placed", placed).
		Msg("配员不足")
}

// RunComplete 记录生成完成
func (l *GeneratorLogger) RunComplete(runID string, duration time.Duration, placed int, cancelled bool) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Int("placed", placed).
		Bool("cancelled", cancelled).
		Msg("值班表生成完成")
}
