package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reviewhunter/internal/config"
	"reviewhunter/internal/ingest"
	"reviewhunter/internal/pkg/logger"
	"reviewhunter/internal/store"
	"reviewhunter/internal/upstream"
)

// main 是图片采集命令的入口函数。
//
// 它负责：
// 1. 加载配置
// 2. 初始化日志、存储与上游客户端
// 3. 解析待处理的媒体积压并抓取图片
// 4. 按终态决定退出码（完整提交为 0，其余为 1）
//
// 图片抓取可能跑很久，顺带起一个 Metrics 端点供观察进度。
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
	imgurClient := upstream.NewImgurClient(cfg.Imgur, cfg.App, appLogger)
	binaryClient := upstream.NewBinaryClient(cfg.App, appLogger)

	if addr := os.Getenv("REVIEWHUNTER_METRICS_ADDR"); addr != "" {
		go func() {
			appLogger.Info("metrics server started", slog.String("addr", addr))
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil && err != http.ErrServerClosed {
				appLogger.Error("metrics server stopped with error", slog.String("error", err.Error()))
			}
		}()
	}

	outcome, err := ingest.Run(ctx, st, appLogger, func(ctx context.Context, tx *store.Store) error {
		return ingest.Images(ctx, tx, imgurClient, binaryClient, appLogger)
	})
	appLogger.Info("image ingest run finished",
		slog.String("outcome", outcome.String()))
	if outcome != ingest.Committed {
		if err != nil {
			appLogger.Error("run ended early", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
