package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"reviewhunter/internal/config"
	"reviewhunter/internal/pkg/metrics"
)

// BinaryFetcher 抽象出原始字节抓取能力，独立图片的采集按托管方路由到不同实现。
type BinaryFetcher interface {
	FetchBytes(ctx context.Context, rawURL string) ([]byte, *string, error)
}

// BinaryClient 抓取社交内容源直接托管的图片字节。
//
// 无凭证、无限流头；401/403 视为致命，其余失败记录日志后仅保留元数据。
type BinaryClient struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewBinaryClient 创建通用字节抓取客户端。
func NewBinaryClient(app config.AppConfig, logger *slog.Logger) *BinaryClient {
	return &BinaryClient{
		httpClient: &http.Client{Timeout: app.HTTPTimeout},
		userAgent:  app.UserAgent,
		logger:     logger,
	}
}

// FetchBytes 抓取原始字节，返回内容与 Content-Type。
func (c *BinaryClient) FetchBytes(ctx context.Context, rawURL string) ([]byte, *string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("reddit").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("reddit", "error").Inc()
		c.logger.Warn("image fetch failed, keeping metadata only",
			slog.String("url", rawURL),
			slog.String("error", err.Error()))
		return nil, nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		metrics.UpstreamRequestsTotal.WithLabelValues("reddit", "fatal").Inc()
		return nil, nil, &FatalError{Source: "reddit", URL: rawURL, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequestsTotal.WithLabelValues("reddit", "error").Inc()
		c.logger.Error("unable to get resource",
			slog.String("url", rawURL),
			slog.Int("status", resp.StatusCode),
			slog.String("reason", resp.Status))
		c.logger.Warn("image fetch failed, keeping metadata only", slog.String("url", rawURL))
		return nil, nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("reddit", "error").Inc()
		c.logger.Warn("image body read failed, keeping metadata only",
			slog.String("url", rawURL),
			slog.String("error", err.Error()))
		return nil, nil, nil
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("reddit", "success").Inc()
	mimetype := resp.Header.Get("Content-Type")
	return body, &mimetype, nil
}
