package upstream

import (
	"errors"
	"fmt"
	"time"
)

// 上游失败被归为四类可区分的结果，编排器据此决定提交、部分提交还是回滚：
//
//   - ThrottledError: 限流信号，停止本次运行并保留已完成的进度
//   - FatalError:     凭证类失败（401/403），立即中止并回滚
//   - ErrNotFound:    单个资源缺失，跳过该项继续
//   - StatusError:    其余非 2xx，按瞬时失败处理（记录日志后跳过）

// ErrNotFound 表示单个资源缺失（如 404/504），调用方应跳过该项。
var ErrNotFound = errors.New("upstream: resource not found")

// ThrottledError 表示上游要求减速的限流信号。
//
// 可能是响应式的（显式 429），也可能是预防式的（剩余配额逼近下限）。
type ThrottledError struct {
	Source  string    // 上游标识: reddit / imgur / zappos
	ResetAt time.Time // 配额重置时间（零值表示未知）
}

func (e *ThrottledError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("%s: rate limited", e.Source)
	}
	return fmt.Sprintf("%s: rate limited until %s", e.Source, e.ResetAt.Format(time.RFC3339))
}

// FatalError 表示凭证类失败，继续运行只会产生更多同样的失败。
type FatalError struct {
	Source     string
	URL        string
	StatusCode int
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: authentication failed with status %d for %s", e.Source, e.StatusCode, e.URL)
}

// StatusError 表示未被识别为限流或致命失败的非 2xx 响应。
type StatusError struct {
	Source     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: request for %s failed with status %s", e.Source, e.URL, e.Status)
}

// IsThrottled 判断错误是否为限流信号。
func IsThrottled(err error) bool {
	var throttled *ThrottledError
	return errors.As(err, &throttled)
}

// IsFatal 判断错误是否为凭证类致命失败。
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
