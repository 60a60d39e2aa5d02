package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App    AppConfig    `json:"app"`
	SQLite SQLiteConfig `json:"sqlite"`
	Reddit RedditConfig `json:"reddit"`
	Imgur  ImgurConfig  `json:"imgur"`
	Zappos ZapposConfig `json:"zappos"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env         string        `json:"env"`          // 运行环境: local / prod
	LogLevel    string        `json:"log_level"`    // 日志级别: debug / info / warn / error
	HTTPTimeout time.Duration `json:"http_timeout"` // 单次 HTTP 请求超时上限
	UserAgent   string        `json:"user_agent"`   // 所有上游请求的 User-Agent
}

// SQLiteConfig SQLite 数据库配置。
type SQLiteConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串（文件路径）
}

// RedditConfig 社交内容源（Reddit 搜索 API）配置。
type RedditConfig struct {
	BaseURL   string `json:"base_url"`   // API 基础地址
	Subreddit string `json:"subreddit"`  // 检索的目标版块
	PageLimit int    `json:"page_limit"` // 每页条数上限（服务端约定 100）
}

// ImgurConfig 图床源（Imgur v3 API）配置。
type ImgurConfig struct {
	APIBaseURL      string `json:"api_base_url"`      // API 基础地址
	ClientID        string `json:"client_id"`         // Client-ID 凭证
	RateLimitMargin int    `json:"rate_limit_margin"` // 剩余配额安全边际，低于等于该值触发限流信号
}

// ZapposConfig 零售目录源（Zappos API）配置。
type ZapposConfig struct {
	BaseURL    string        `json:"base_url"`    // API 基础地址
	APIKey     string        `json:"api_key"`     // key 查询参数凭证
	PageLimit  int           `json:"page_limit"`  // 每页条数上限（服务端约定 500）
	RetryDelay time.Duration `json:"retry_delay"` // 429 重试前的固定等待时间
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
// 环境变量优先级高于配置文件。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json")
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:         "local",
			LogLevel:    "info",
			HTTPTimeout: 60 * time.Second,
			UserAgent:   "N/A:reviewhunter:0.1.0 (goodyearwelt review ingest)",
		},
		SQLite: SQLiteConfig{
			DSN: "reviews.db",
		},
		Reddit: RedditConfig{
			BaseURL:   "https://reddit.com",
			Subreddit: "goodyearwelt",
			PageLimit: 100,
		},
		Imgur: ImgurConfig{
			APIBaseURL:      "https://api.imgur.com/3",
			ClientID:        "",
			RateLimitMargin: 3,
		},
		Zappos: ZapposConfig{
			BaseURL:    "http://api.zappos.com",
			APIKey:     "",
			PageLimit:  500,
			RetryDelay: 2 * time.Minute,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPTimeout == 0 {
		cfg.App.HTTPTimeout = defaults.App.HTTPTimeout
	}
	if cfg.App.UserAgent == "" {
		cfg.App.UserAgent = defaults.App.UserAgent
	}
	if cfg.SQLite.DSN == "" {
		cfg.SQLite.DSN = defaults.SQLite.DSN
	}
	if cfg.Reddit.BaseURL == "" {
		cfg.Reddit.BaseURL = defaults.Reddit.BaseURL
	}
	if cfg.Reddit.Subreddit == "" {
		cfg.Reddit.Subreddit = defaults.Reddit.Subreddit
	}
	if cfg.Reddit.PageLimit == 0 {
		cfg.Reddit.PageLimit = defaults.Reddit.PageLimit
	}
	if cfg.Imgur.APIBaseURL == "" {
		cfg.Imgur.APIBaseURL = defaults.Imgur.APIBaseURL
	}
	if cfg.Imgur.RateLimitMargin == 0 {
		cfg.Imgur.RateLimitMargin = defaults.Imgur.RateLimitMargin
	}
	if cfg.Zappos.BaseURL == "" {
		cfg.Zappos.BaseURL = defaults.Zappos.BaseURL
	}
	if cfg.Zappos.PageLimit == 0 {
		cfg.Zappos.PageLimit = defaults.Zappos.PageLimit
	}
	if cfg.Zappos.RetryDelay == 0 {
		cfg.Zappos.RetryDelay = defaults.Zappos.RetryDelay
	}
}

// applyEnvOverrides 应用环境变量覆盖。凭证类配置只建议通过环境变量传入。
func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_dsn", "DB_DSN")
	_ = viper.BindEnv("imgur_client_id", "IMGUR_CLIENT_ID")
	_ = viper.BindEnv("zappos_api_key", "ZAPPOS_API_KEY")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.HTTPTimeout = d
		}
	}
	if v := os.Getenv("APP_USER_AGENT"); v != "" {
		cfg.App.UserAgent = v
	}

	if v := viper.GetString("db_dsn"); v != "" {
		cfg.SQLite.DSN = v
	}

	if v := os.Getenv("REDDIT_BASE_URL"); v != "" {
		cfg.Reddit.BaseURL = v
	}
	if v := os.Getenv("REDDIT_SUBREDDIT"); v != "" {
		cfg.Reddit.Subreddit = v
	}
	if v := os.Getenv("REDDIT_PAGE_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Reddit.PageLimit = i
		}
	}

	if v := os.Getenv("IMGUR_API_BASE_URL"); v != "" {
		cfg.Imgur.APIBaseURL = v
	}
	if v := viper.GetString("imgur_client_id"); v != "" {
		cfg.Imgur.ClientID = v
	}
	if v := os.Getenv("IMGUR_RATE_LIMIT_MARGIN"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Imgur.RateLimitMargin = i
		}
	}

	if v := os.Getenv("ZAPPOS_BASE_URL"); v != "" {
		cfg.Zappos.BaseURL = v
	}
	if v := viper.GetString("zappos_api_key"); v != "" {
		cfg.Zappos.APIKey = v
	}
	if v := os.Getenv("ZAPPOS_PAGE_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Zappos.PageLimit = i
		}
	}
	if v := os.Getenv("ZAPPOS_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Zappos.RetryDelay = d
		}
	}
}

// UnmarshalJSON 自定义 JSON 解析，支持时间 Duration 字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		HTTPTimeout string `json:"http_timeout"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.HTTPTimeout != "" {
		duration, err := time.ParseDuration(aux.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("invalid http_timeout format: %w", err)
		}
		a.HTTPTimeout = duration
	}

	return nil
}

// UnmarshalJSON 自定义 JSON 解析，支持时间 Duration 字符串。
func (z *ZapposConfig) UnmarshalJSON(data []byte) error {
	type Alias ZapposConfig
	aux := &struct {
		RetryDelay string `json:"retry_delay"`
		*Alias
	}{
		Alias: (*Alias)(z),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.RetryDelay != "" {
		duration, err := time.ParseDuration(aux.RetryDelay)
		if err != nil {
			return fmt.Errorf("invalid retry_delay format: %w", err)
		}
		z.RetryDelay = duration
	}

	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		HTTPTimeout string `json:"http_timeout"`
		*Alias
	}{
		HTTPTimeout: a.HTTPTimeout.String(),
		Alias:       (*Alias)(&a),
	})
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (z ZapposConfig) MarshalJSON() ([]byte, error) {
	type Alias ZapposConfig
	return json.Marshal(&struct {
		RetryDelay string `json:"retry_delay"`
		*Alias
	}{
		RetryDelay: z.RetryDelay.String(),
		Alias:      (*Alias)(&z),
	})
}
