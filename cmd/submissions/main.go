package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"reviewhunter/internal/config"
	"reviewhunter/internal/ingest"
	"reviewhunter/internal/pkg/logger"
	"reviewhunter/internal/store"
	"reviewhunter/internal/upstream"
)

// main 是帖子采集命令的入口函数。
//
// 它负责：
// 1. 加载配置与命令行参数
// 2. 初始化日志与存储
// 3. 在单个事务内按检索词翻页采集帖子
// 4. 按终态决定退出码（完整提交为 0，其余为 1）
func main() {
	var (
		configPath = flag.String("config", "", "配置文件路径（留空用默认配置）")
		query      = flag.String("q", "", "检索词（必填）")
		resume     = flag.Bool("resume", true, "从已保存的最旧帖子继续翻页")
	)
	flag.Parse()
	if *query == "" {
		log.Fatal("missing required flag: -q")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	appLogger := logger.NewDefault(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.SQLite.DSN, appLogger)
	if err != nil {
		appLogger.Error("open store failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	client := upstream.NewRedditClient(cfg.Reddit, cfg.App, appLogger)

	outcome, err := ingest.Run(ctx, st, appLogger, func(ctx context.Context, tx *store.Store) error {
		return ingest.Submissions(ctx, tx, client, appLogger, *query, *resume)
	})
	appLogger.Info("submission ingest run finished",
		slog.String("outcome", outcome.String()))
	if outcome != ingest.Committed {
		if err != nil {
			appLogger.Error("run ended early", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
