package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"reviewhunter/internal/classify"
	"reviewhunter/internal/config"
	"reviewhunter/internal/pkg/metrics"
)

// ImagePayload 是图床 API 返回的单张图片元数据。
type ImagePayload struct {
	ID          string  `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Datetime    *int64  `json:"datetime"`
	Type        *string `json:"type"`
	Link        string  `json:"link"`
	Views       *int64  `json:"views"`
}

// AlbumPayload 是图床 API 返回的相册元数据（含图片列表）。
type AlbumPayload struct {
	ID          string         `json:"id"`
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Datetime    int64          `json:"datetime"`
	Link        string         `json:"link"`
	Views       int64          `json:"views"`
	Images      []ImagePayload `json:"images"`
}

// ImgurClient 是图床源客户端。
//
// 每个 JSON 请求都携带 Client-ID 凭证头。失败语义：
// 401/403 为致命（凭证无效，立即中止），429 或剩余配额逼近安全边际
// 为限流信号（提前停止、保留进度），其余非 2xx 按单项失败处理。
// 原始字节抓取不携带凭证头，且主机名先去掉子域名前缀。
type ImgurClient struct {
	httpClient *http.Client
	apiBaseURL string
	clientID   string
	userAgent  string
	margin     int
	logger     *slog.Logger
}

// NewImgurClient 创建图床源客户端。
func NewImgurClient(cfg config.ImgurConfig, app config.AppConfig, logger *slog.Logger) *ImgurClient {
	return &ImgurClient{
		httpClient: &http.Client{Timeout: app.HTTPTimeout},
		apiBaseURL: cfg.APIBaseURL,
		clientID:   cfg.ClientID,
		userAgent:  app.UserAgent,
		margin:     cfg.RateLimitMargin,
		logger:     logger,
	}
}

// throttleFromHeaders 检查限流响应头。
//
// 用户级与应用级剩余配额任一低于等于安全边际时返回限流信号，
// 以便在配额耗尽被惩罚之前带着部分进度提前退出。
func (c *ImgurClient) throttleFromHeaders(header http.Header) error {
	nearLimit := func(name string) bool {
		raw := header.Get(name)
		if raw == "" {
			return false
		}
		remaining, err := strconv.Atoi(raw)
		if err != nil {
			return false
		}
		return remaining <= c.margin
	}

	if !nearLimit("X-RateLimit-UserRemaining") && !nearLimit("X-RateLimit-ClientRemaining") {
		return nil
	}

	var resetAt time.Time
	if raw := header.Get("X-RateLimit-UserReset"); raw != "" {
		if reset, err := strconv.ParseInt(raw, 10, 64); err == nil {
			resetAt = time.Unix(reset, 0)
		}
	}
	metrics.ThrottleSignalsTotal.WithLabelValues("imgur").Inc()
	return &ThrottledError{Source: "imgur", ResetAt: resetAt}
}

// classifyFailure 将非 2xx 响应映射为对应的失败结果。
func (c *ImgurClient) classifyFailure(resp *http.Response, requestURL string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &FatalError{Source: "imgur", URL: requestURL, StatusCode: resp.StatusCode}
	case http.StatusTooManyRequests:
		metrics.ThrottleSignalsTotal.WithLabelValues("imgur").Inc()
		return &ThrottledError{Source: "imgur"}
	}

	if err := c.throttleFromHeaders(resp.Header); err != nil {
		return err
	}

	c.logger.Error("unable to get resource",
		slog.String("url", requestURL),
		slog.Int("status", resp.StatusCode),
		slog.String("reason", resp.Status))
	return &StatusError{
		Source:     "imgur",
		URL:        requestURL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
}

// GetJSON 抓取并解码一个 JSON 端点。
//
// 成功响应在消费数据之前先检查限流头：临近配额下限时抛出限流信号，
// 丢弃该页数据，保证已保存的进度优先于吃满配额。
func (c *ImgurClient) GetJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.clientID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("imgur").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgur", "error").Inc()
		return fmt.Errorf("get %s: %w", requestURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := c.classifyFailure(resp, requestURL)
		metrics.UpstreamRequestsTotal.WithLabelValues("imgur", statusLabel(err)).Inc()
		return err
	}

	// 先查配额再消费数据。
	if err := c.throttleFromHeaders(resp.Header); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgur", "throttled").Inc()
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgur", "error").Inc()
		return fmt.Errorf("decode %s: %w", requestURL, err)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("imgur", "success").Inc()
	return nil
}

// FetchAlbum 抓取相册元数据。
//
// 响应按约定包裹为 {"data": {...}}。
func (c *ImgurClient) FetchAlbum(ctx context.Context, albumID string) (*AlbumPayload, error) {
	apiURL := fmt.Sprintf("%s/album/%s", c.apiBaseURL, albumID)

	var wrapped struct {
		Data AlbumPayload `json:"data"`
	}
	if err := c.GetJSON(ctx, apiURL, &wrapped); err != nil {
		return nil, err
	}
	return &wrapped.Data, nil
}

// FetchImageMeta 抓取单张图片的元数据。
func (c *ImgurClient) FetchImageMeta(ctx context.Context, imageID string) (*ImagePayload, error) {
	apiURL := fmt.Sprintf("%s/image/%s", c.apiBaseURL, imageID)

	var wrapped struct {
		Data ImagePayload `json:"data"`
	}
	if err := c.GetJSON(ctx, apiURL, &wrapped); err != nil {
		return nil, err
	}
	return &wrapped.Data, nil
}

// FetchBytes 抓取图片原始字节。
//
// 请求不携带凭证头，并先通过 StripBrandSubdomain 改写主机名，
// 因为部分资源子域名会拒绝携带凭证的请求。
// 瞬时失败时记录日志并返回空值（仅保留元数据）；
// 限流与致命失败照常向上传播。
func (c *ImgurClient) FetchBytes(ctx context.Context, rawURL string) ([]byte, *string, error) {
	fetchURL := classify.StripBrandSubdomain(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("imgur").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgur", "error").Inc()
		c.logger.Warn("image fetch failed, keeping metadata only",
			slog.String("url", fetchURL),
			slog.String("error", err.Error()))
		return nil, nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := c.classifyFailure(resp, fetchURL)
		metrics.UpstreamRequestsTotal.WithLabelValues("imgur", statusLabel(err)).Inc()
		if IsThrottled(err) || IsFatal(err) {
			return nil, nil, err
		}
		c.logger.Warn("image fetch failed, keeping metadata only", slog.String("url", fetchURL))
		return nil, nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("imgur", "error").Inc()
		c.logger.Warn("image body read failed, keeping metadata only",
			slog.String("url", fetchURL),
			slog.String("error", err.Error()))
		return nil, nil, nil
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("imgur", "success").Inc()
	mimetype := resp.Header.Get("Content-Type")
	return body, &mimetype, nil
}

// statusLabel 返回用于 metrics 的结果标签。
func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsThrottled(err):
		return "throttled"
	case IsFatal(err):
		return "fatal"
	default:
		return "error"
	}
}
