package ingest

import (
	"context"
	"log/slog"

	"reviewhunter/internal/store"
	"reviewhunter/internal/upstream"
)

// Outcome 表示一次采集运行的终态。
type Outcome int

const (
	// Committed 表示运行完整结束，全部写入已提交。
	Committed Outcome = iota
	// PartiallyCommitted 表示运行因限流提前终止，已完成的写入照常提交。
	PartiallyCommitted
	// Aborted 表示运行因不可恢复错误终止，本次写入全部回滚。
	Aborted
)

// String 返回终态的可读名字。
func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case PartiallyCommitted:
		return "partially_committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Run 在单个事务内执行一个采集阶段并按终止原因决定提交或回滚。
//
// fn 返回 nil 时提交并报告 Committed；返回限流错误时提交已完成
// 的部分并报告 PartiallyCommitted（下次运行从落库进度续传）；
// 返回其他错误时回滚并报告 Aborted。
//
// 参数:
//
//	ctx: 取消用上下文
//	st: 存储实例（非事务视图）
//	logger: 日志记录器
//	fn: 采集阶段主体，收到的是事务绑定的存储视图
//
// 返回值:
//
//	Outcome: 运行终态
//	error: 导致非 Committed 终态的原始错误
func Run(ctx context.Context, st *store.Store, logger *slog.Logger, fn func(context.Context, *store.Store) error) (Outcome, error) {
	tx, err := st.Begin(ctx)
	if err != nil {
		return Aborted, err
	}

	runErr := fn(ctx, tx)
	if runErr == nil {
		if err := tx.Commit(); err != nil {
			return Aborted, err
		}
		return Committed, nil
	}

	if upstream.IsThrottled(runErr) {
		logger.Warn("run interrupted by rate limit, committing partial progress",
			slog.String("error", runErr.Error()))
		if err := tx.Commit(); err != nil {
			return Aborted, err
		}
		return PartiallyCommitted, runErr
	}

	logger.Error("run failed, rolling back",
		slog.String("error", runErr.Error()))
	if err := tx.Rollback(); err != nil {
		logger.Error("rollback failed", slog.String("error", err.Error()))
	}
	return Aborted, runErr
}
