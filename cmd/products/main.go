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

// main 是商品采集命令的入口函数。
//
// 两个子阶段二选一：
//
//	-term <检索词>  检索商品目录并落库结果
//	-fetch          为尚未入库详情的商品抓取详情
//
// 每个子阶段独立成一次事务运行，退出码规则同其他命令。
func main() {
	var (
		configPath = flag.String("config", "", "配置文件路径（留空用默认配置）")
		term       = flag.String("term", "", "目录检索词")
		fetch      = flag.Bool("fetch", false, "抓取待处理商品的详情")
	)
	flag.Parse()
	if (*term != "") == *fetch {
		log.Fatal("exactly one of -term or -fetch is required")
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
	client := upstream.NewZapposClient(cfg.Zappos, cfg.App, appLogger)

	if addr := os.Getenv("REVIEWHUNTER_METRICS_ADDR"); addr != "" {
		go func() {
			appLogger.Info("metrics server started", slog.String("addr", addr))
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil && err != http.ErrServerClosed {
				appLogger.Error("metrics server stopped with error", slog.String("error", err.Error()))
			}
		}()
	}

	outcome, err := ingest.Run(ctx, st, appLogger, func(ctx context.Context, tx *store.Store) error {
		if *fetch {
			return ingest.ProductFetch(ctx, tx, client, appLogger)
		}
		return ingest.ProductSearch(ctx, tx, client, appLogger, *term)
	})
	appLogger.Info("product ingest run finished",
		slog.String("outcome", outcome.String()))
	if outcome != ingest.Committed {
		if err != nil {
			appLogger.Error("run ended early", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
