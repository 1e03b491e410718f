package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/types"
)

// State 熔断器状态
type State int

const (
	// StateClosed 正常放行
	StateClosed State = iota
	// StateOpen 熔断中，直接拒绝
	StateOpen
	// StateHalfOpen 放行少量试探请求
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen 熔断器拒绝调用时返回的错误链上必有此哨兵
var ErrOpen = errors.New("circuit breaker open")

const (
	defaultThreshold        = 5
	defaultResetTimeout     = 30 * time.Second
	defaultHalfOpenMaxCalls = 1
)

// Config 熔断器配置
type Config struct {
	// Threshold 连续失败多少次后打开
	Threshold int
	// ResetTimeout 打开后多久进入半开
	ResetTimeout time.Duration
	// HalfOpenMaxCalls 半开状态同时放行的试探请求数
	HalfOpenMaxCalls int
	// IsFailure 判断错误是否计入失败，nil 时使用 CountsAsFailure
	IsFailure func(error) bool
	// OnStateChange 状态变更后在锁外同步调用
	OnStateChange func(from, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Threshold:        defaultThreshold,
		ResetTimeout:     defaultResetTimeout,
		HalfOpenMaxCalls: defaultHalfOpenMaxCalls,
	}
}

// CountsAsFailure 上游故障才计入失败：调用方取消与 4xx 类客户端错误不计。
func CountsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if e, ok := types.AsError(err); ok && !e.Retryable && types.HTTPStatusFor(e) < http.StatusInternalServerError {
		return false
	}
	return true
}

// Breaker 连续失败计数的三态熔断器，并发安全
type Breaker struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCalls int
}

// New 创建熔断器，非法配置项回落到默认值
func New(cfg Config, logger *zap.Logger) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = defaultHalfOpenMaxCalls
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = CountsAsFailure
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{cfg: cfg, logger: logger, now: time.Now}
}

// Do 在熔断器保护下执行 fn。拒绝时返回包裹 ErrOpen 的错误，fn 不会被调用。
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// State 当前状态；打开且已过 ResetTimeout 时仍报告 open，直到下一次调用触发半开
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 手动恢复到关闭状态
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.transition(StateClosed)
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	from, to := b.state, b.state
	var rejected bool

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			rejected = true
			break
		}
		to = StateHalfOpen
		b.transition(StateHalfOpen)
		b.halfOpenCalls = 1
	case StateHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			rejected = true
			break
		}
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	b.notify(from, to)
	if rejected {
		return ErrOpen
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	from, to := b.state, b.state

	switch {
	case err == nil:
		b.failures = 0
		if b.state == StateHalfOpen {
			to = StateClosed
			b.transition(StateClosed)
		}
	case b.cfg.IsFailure(err):
		b.failures++
		if b.state == StateHalfOpen || (b.state == StateClosed && b.failures >= b.cfg.Threshold) {
			to = StateOpen
			b.transition(StateOpen)
			b.logger.Warn("circuit opened",
				zap.Int("consecutive_failures", b.failures),
				zap.Error(err))
		}
	default:
		// 不计入失败的错误归还半开名额
		if b.state == StateHalfOpen && b.halfOpenCalls > 0 {
			b.halfOpenCalls--
		}
	}
	b.mu.Unlock()

	b.notify(from, to)
}

// transition 调用方持有锁
func (b *Breaker) transition(to State) State {
	from := b.state
	b.state = to
	b.halfOpenCalls = 0
	switch to {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.failures = 0
	}
	return from
}

func (b *Breaker) notify(from, to State) {
	if from == to {
		return
	}
	b.logger.Info("circuit state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to))
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
