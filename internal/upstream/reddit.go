package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"reviewhunter/internal/config"
	"reviewhunter/internal/pkg/metrics"
)

// Listing 是搜索端点返回的一页结果。
type Listing struct {
	Data struct {
		After    *string        `json:"after"`
		Children []ListingChild `json:"children"`
	} `json:"data"`
}

// ListingChild 是结果页中的一条子项。
type ListingChild struct {
	Data SubmissionPayload `json:"data"`
}

// SubmissionPayload 是搜索结果中单条帖子的原始字段。
// 缺失的可选字段解码为零值/空指针，不报错。
type SubmissionPayload struct {
	ID             string  `json:"id"`
	Subreddit      string  `json:"subreddit"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	AuthorFullname string  `json:"author_fullname"`
	Permalink      string  `json:"permalink"`
	URL            string  `json:"url"`
	CreatedUTC     float64 `json:"created_utc"`
	SelftextHTML   *string `json:"selftext_html"`
	NumComments    int     `json:"num_comments"`
	Gilded         int     `json:"gilded"`
	Downs          int     `json:"downs"`
	Ups            int     `json:"ups"`
	Score          int     `json:"score"`
}

// RedditClient 是社交内容源的搜索客户端。
//
// 该上游没有可读的限流响应头：非 2xx 一律记录日志后按流结束处理，
// 由调用方检查是否产出过数据。
type RedditClient struct {
	httpClient *http.Client
	baseURL    string
	subreddit  string
	userAgent  string
	pageLimit  int
	logger     *slog.Logger
}

// NewRedditClient 创建社交内容源客户端。
func NewRedditClient(cfg config.RedditConfig, app config.AppConfig, logger *slog.Logger) *RedditClient {
	return &RedditClient{
		httpClient: &http.Client{Timeout: app.HTTPTimeout},
		baseURL:    cfg.BaseURL,
		subreddit:  cfg.Subreddit,
		userAgent:  app.UserAgent,
		pageLimit:  cfg.PageLimit,
		logger:     logger,
	}
}

// Search 发起一次搜索请求。
//
// 结果固定按“最新在前”排序，这是按最旧已存记录续传能够成立的前提。
//
// 参数:
//
//	ctx: 上下文
//	query: 检索词
//	after: 续传游标（空字符串表示从最新开始）
//
// 返回值:
//
//	*Listing: 解码后的结果页
//	error: 非 2xx 返回 *StatusError，传输失败返回底层错误
func (c *RedditClient) Search(ctx context.Context, query, after string) (*Listing, error) {
	searchURL := fmt.Sprintf("%s/r/%s/search.json", c.baseURL, c.subreddit)

	values := url.Values{}
	values.Set("q", query)
	values.Set("limit", strconv.Itoa(c.pageLimit))
	values.Set("sort", "new")
	values.Set("restrict_sr", "true")
	values.Set("sr_detail", "false")
	if after != "" {
		values.Set("after", after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("reddit").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("reddit", "error").Inc()
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequestsTotal.WithLabelValues("reddit", "error").Inc()
		return nil, &StatusError{
			Source:     "reddit",
			URL:        searchURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	var listing Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("reddit", "error").Inc()
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("reddit", "success").Inc()
	return &listing, nil
}

// SearchPager 逐页遍历搜索结果。
//
// Next 的返回值区分三种情形，调用方必须显式分支：
//
//	(page, nil): 一页结果
//	(nil, nil):  游标耗尽，正常结束
//	(nil, err):  失败导致流提前结束（已记录日志，调用方决定如何收尾）
type SearchPager struct {
	client *RedditClient
	query  string
	after  string
	done   bool
}

// PaginatedSearch 创建一个从给定游标开始的结果页遍历器。
//
// after 为空表示从最新结果开始。
func (c *RedditClient) PaginatedSearch(query, after string) *SearchPager {
	return &SearchPager{
		client: c,
		query:  query,
		after:  after,
	}
}

// Next 返回下一页结果。遍历结束后再次调用始终返回 (nil, nil)。
func (p *SearchPager) Next(ctx context.Context) (*Listing, error) {
	if p.done {
		return nil, nil
	}

	listing, err := p.client.Search(ctx, p.query, p.after)
	if err != nil {
		p.done = true
		p.client.logger.Error("search request failed, ending pagination",
			slog.String("query", p.query),
			slog.String("after", p.after),
			slog.String("error", err.Error()))
		return nil, err
	}

	metrics.PagesFetchedTotal.WithLabelValues("reddit").Inc()

	if listing.Data.After == nil || *listing.Data.After == "" {
		p.done = true
	} else {
		p.after = *listing.Data.After
	}
	return listing, nil
}
