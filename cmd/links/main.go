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
)

// main 是正文链接提取命令的入口函数。
//
// 扫描库中所有带正文的帖子，把正文里指向媒体域名的链接
// 登记为待解析媒体。纯本地操作，不访问任何上游。
func main() {
	configPath := flag.String("config", "", "配置文件路径（留空用默认配置）")
	flag.Parse()

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

	outcome, err := ingest.Run(ctx, st, appLogger, func(ctx context.Context, tx *store.Store) error {
		return ingest.Links(ctx, tx, appLogger)
	})
	appLogger.Info("link ingest run finished",
		slog.String("outcome", outcome.String()))
	if outcome != ingest.Committed {
		if err != nil {
			appLogger.Error("run ended early", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
