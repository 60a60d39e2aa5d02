package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewDefault 根据配置的日志级别创建默认的 slog.Logger。
//
// 日志输出到标准输出，格式为文本，级别支持 debug / info / warn / error，
// 无法识别的级别回退为 info。
//
// 参数:
//
//	level: 日志级别字符串
//
// 返回值:
//
//	*slog.Logger: 初始化完成的日志记录器
func NewDefault(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

// parseLevel 将字符串日志级别转换为 slog.Level。
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}
