package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"reviewhunter/internal/config"
	"reviewhunter/internal/pkg/metrics"
)

// 目录检索固定约束在这些类目内，减少请求量。
var shoeCategories = []string{"Shoes", "Boots"}

// ProductSearchPayload 是目录检索返回的一条结果。
type ProductSearchPayload struct {
	BrandName     string `json:"brandName"`
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	CategoryFacet string `json:"categoryFacet"`
}

// SearchPage 是目录检索的一页响应。
type SearchPage struct {
	TotalResultCount json.Number            `json:"totalResultCount"`
	Results          []ProductSearchPayload `json:"results"`
}

// ProductPayload 是商品详情端点的原始字段。
type ProductPayload struct {
	BrandName         string  `json:"brandName"`
	ProductName       string  `json:"productName"`
	DefaultProductURL string  `json:"defaultProductUrl"`
	Description       *string `json:"description"`
}

// ZapposClient 是零售目录源客户端。
//
// 每个请求通过附加 key 查询参数签名。限流策略分两层：
// 收到 429 时固定等待后重试一次（响应式），仍 429 则向上抛限流信号；
// 成功响应后检查短窗与长窗剩余配额，逼近下限时睡到该窗口的重置时刻
// 再把控制权交还调用方（预防式自限速）。
type ZapposClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	pageLimit  int
	retryDelay time.Duration
	logger     *slog.Logger

	// 测试中替换以避免真实睡眠。
	sleep func(time.Duration)
}

// NewZapposClient 创建零售目录源客户端。
func NewZapposClient(cfg config.ZapposConfig, app config.AppConfig, logger *slog.Logger) *ZapposClient {
	return &ZapposClient{
		httpClient: &http.Client{Timeout: app.HTTPTimeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		userAgent:  app.UserAgent,
		pageLimit:  cfg.PageLimit,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// resetWait 根据短窗/长窗限流头计算预防式等待时长。
//
// 任一窗口剩余配额低于等于 1 时，返回距该窗口重置时刻（毫秒时间戳）的时长。
func resetWait(header http.Header, now time.Time) time.Duration {
	leThreshold := func(window string) bool {
		raw := header.Get("X-RateLimit-" + window + "-RateRemaining")
		if raw == "" {
			return false
		}
		remaining, err := strconv.Atoi(raw)
		if err != nil {
			return false
		}
		return remaining <= 1
	}

	resetLong := leThreshold("Long")
	resetShort := leThreshold("Short")
	if !resetLong && !resetShort {
		return 0
	}

	window := "Short"
	if resetLong {
		window = "Long"
	}
	resetMs, err := strconv.ParseInt(header.Get("X-RateLimit-"+window+"-RateReset"), 10, 64)
	if err != nil {
		return 0
	}
	return time.UnixMilli(resetMs).Sub(now)
}

// dispatch 发起一次已签名的请求并读取响应体。
//
// 429 重试一次；404/504 映射为 ErrNotFound 由调用方跳过该项；
// 其余非 2xx 立即报错，不做额外重试。
func (c *ZapposClient) dispatch(ctx context.Context, requestURL string, params url.Values) ([]byte, error) {
	params.Set("key", c.apiKey)
	signed := requestURL + "?" + params.Encode()

	var resp *http.Response
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		start := time.Now()
		resp, err = c.httpClient.Do(req)
		metrics.UpstreamRequestDuration.WithLabelValues("zappos").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues("zappos", "error").Inc()
			return nil, fmt.Errorf("get %s: %w", requestURL, err)
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt > 0 {
			break
		}

		resp.Body.Close()
		c.logger.Warn("encountered rate limit, waiting before retry",
			slog.Duration("delay", c.retryDelay))
		metrics.BackoffSleepSeconds.WithLabelValues("zappos").Add(c.retryDelay.Seconds())
		c.sleep(c.retryDelay)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.ThrottleSignalsTotal.WithLabelValues("zappos").Inc()
		metrics.UpstreamRequestsTotal.WithLabelValues("zappos", "throttled").Inc()
		return nil, &ThrottledError{Source: "zappos"}
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGatewayTimeout {
		metrics.UpstreamRequestsTotal.WithLabelValues("zappos", "not_found").Inc()
		return nil, fmt.Errorf("get %s: status %s: %w", requestURL, resp.Status, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequestsTotal.WithLabelValues("zappos", "error").Inc()
		return nil, &StatusError{
			Source:     "zappos",
			URL:        requestURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("zappos", "error").Inc()
		return nil, fmt.Errorf("read %s: %w", requestURL, err)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("zappos", "success").Inc()

	// 预防式自限速。
	if wait := resetWait(resp.Header, time.Now()); wait > 0 {
		c.logger.Info("approaching rate limit, waiting",
			slog.Duration("wait", wait))
		metrics.BackoffSleepSeconds.WithLabelValues("zappos").Add(wait.Seconds())
		c.sleep(wait)
	}

	return body, nil
}

// Search 发起一页目录检索。
func (c *ZapposClient) Search(ctx context.Context, term string, page int) (*SearchPage, error) {
	includes, _ := json.Marshal([]string{"categoryFacet"})
	filters, _ := json.Marshal(map[string][]string{"categoryFacet": shoeCategories})

	params := url.Values{}
	params.Set("term", term)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(c.pageLimit))
	params.Set("includes", string(includes))
	params.Set("filters", string(filters))

	body, err := c.dispatch(ctx, c.baseURL+"/Search", params)
	if err != nil {
		return nil, err
	}

	var result SearchPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &result, nil
}

// PaginatedSearch 按固定页大小翻页检索，直到累计结果数达到首页宣告的总数。
func (c *ZapposClient) PaginatedSearch(ctx context.Context, term string) ([]ProductSearchPayload, error) {
	var (
		results []ProductSearchPayload
		stopAt  = -1
	)

	for page := 1; stopAt < 0 || len(results) < stopAt; page++ {
		searchPage, err := c.Search(ctx, term, page)
		if err != nil {
			return nil, err
		}
		metrics.PagesFetchedTotal.WithLabelValues("zappos").Inc()

		// 首页宣告的总数是权威的终止条件。
		if stopAt < 0 {
			total, err := searchPage.TotalResultCount.Int64()
			if err != nil {
				return nil, fmt.Errorf("parse total result count: %w", err)
			}
			stopAt = int(total)
		}

		// 宣告的总数可能大于实际可翻到的结果数，空页即终止。
		if len(searchPage.Results) == 0 {
			break
		}
		results = append(results, searchPage.Results...)
	}

	return results, nil
}

// Product 抓取单个商品详情。
//
// 商品 ID 不允许为负。上游按约定把商品包裹在单元素数组里：
// 出现多个元素时记录警告并只取第一个。
func (c *ZapposClient) Product(ctx context.Context, productID int64) (*ProductPayload, error) {
	if productID < 0 {
		return nil, errors.New("product id cannot be negative")
	}

	includes, _ := json.Marshal([]string{"description"})
	params := url.Values{}
	params.Set("includes", string(includes))

	body, err := c.dispatch(ctx, fmt.Sprintf("%s/Product/%d", c.baseURL, productID), params)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Product []ProductPayload `json:"product"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode product response: %w", err)
	}
	if len(wrapped.Product) == 0 {
		return nil, fmt.Errorf("product %d: empty payload: %w", productID, ErrNotFound)
	}
	if len(wrapped.Product) > 1 {
		c.logger.Warn("found additional products in payload",
			slog.Int("extra", len(wrapped.Product)-1),
			slog.Int64("product_id", productID))
	}

	return &wrapped.Product[0], nil
}
