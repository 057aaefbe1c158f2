// Package retry 提供了一个可注入的有界重试策略。
// 向量化与生成两处网络调用共用同一套策略对象，测试时可替换 sleep 实现假时钟。
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy 描述一次有界指数退避重试：最大尝试次数、基础延迟与抖动比例。
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      float64 // 0~1，按比例随机放大延迟

	// sleep 可在测试中替换，默认带 ctx 取消的真实休眠。
	sleep func(ctx context.Context, d time.Duration) error
}

// New 创建一个重试策略，参数非法时回退到安全默认值。
func New(maxAttempts int, baseDelay time.Duration, jitter float64) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	if jitter < 0 || jitter > 1 {
		jitter = 0
	}
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, Jitter: jitter}
}

// WithSleep 返回替换了休眠实现的策略副本，仅用于测试。
func (p Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

// permanentError 标记不应重试的错误。
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 将 err 标记为永久失败，Do 不会对其重试。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do 执行 op，失败时按指数退避重试，直到成功、尝试耗尽、遇到永久错误或 ctx 取消。
// 返回最后一次的错误（永久错误会先解包）。
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = defaultSleep
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		if attempt == p.MaxAttempts-1 {
			break
		}
		if err := sleep(ctx, p.delay(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// delay 计算第 attempt 次失败后的等待时间：base * 2^attempt，上限 10s，附加抖动。
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
