package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/types"
)

// Policy 定义重试策略配置
type Policy struct {
	MaxRetries   int                                               // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration                                     // 首次重试前的延迟
	MaxDelay     time.Duration                                     // 单次延迟上限
	Multiplier   float64                                           // 指数退避倍增因子
	Jitter       bool                                              // 是否添加 ±25% 随机抖动
	Classifier   func(err error) bool                              // 判断错误是否可重试，nil 时使用 IsRetryable
	OnRetry      func(attempt int, err error, delay time.Duration) // 每次等待前回调
}

// DefaultPolicy 返回默认的重试策略
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer runs an operation until it succeeds, fails permanently or runs out of attempts.
type Retryer interface {
	// Do 执行 fn，attempt 从 0 开始计数
	Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error
}

// RetryAfterer is implemented by errors that carry a server-provided wait hint.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// backoffRetryer 基于指数退避的重试器实现
type backoffRetryer struct {
	policy Policy
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewBackoffRetryer 创建指数退避重试器，policy 会被复制并规范化
func NewBackoffRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := *policy
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 1 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	if p.Classifier == nil {
		p.Classifier = IsRetryable
	}
	return &backoffRetryer{
		policy: p,
		logger: logger.With(zap.String("component", "retry")),
		sleep:  sleepContext,
	}
}

// Do 实现 Retryer.Do
func (r *backoffRetryer) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delayFor(attempt, lastErr)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}
			if err := r.sleep(ctx, delay); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !r.policy.Classifier(lastErr) {
			r.logger.Debug("error not retryable", zap.Error(lastErr))
			return lastErr
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	if r.policy.MaxRetries == 0 {
		return lastErr
	}
	return &ExhaustedError{Attempts: r.policy.MaxRetries + 1, Err: lastErr}
}

// delayFor 计算第 attempt 次重试前的等待时间，服务端提示优先
func (r *backoffRetryer) delayFor(attempt int, lastErr error) time.Duration {
	delay := r.calculateDelay(attempt)
	var ra RetryAfterer
	if errors.As(lastErr, &ra) {
		if hint := ra.RetryAfter(); hint > delay {
			delay = hint
		}
		if delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}
	return delay
}

// jitterFraction 抖动幅度（±25%）
const jitterFraction = 0.25

// calculateDelay 指数退避：delay = initial * multiplier^(attempt-1)，可选 ±25% 抖动
func (r *backoffRetryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}

	floor := float64(r.policy.InitialDelay)
	if r.policy.Jitter {
		delay += (rand.Float64()*2 - 1) * delay * jitterFraction
		floor *= 1 - jitterFraction
	}

	// 下限为初始延迟减去抖动幅度，首次重试同样双向抖动
	if delay < floor {
		delay = floor
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ===== 错误分类 =====

// RetryableError 显式标记可重试的错误
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// WrapRetryable 将错误包装为可重试错误
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable is the default classifier. It accepts errors wrapped by
// WrapRetryable and *types.Error values marked retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}
	return types.IsRetryable(err)
}
