package workerpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed   = errors.New("worker pool is closed")
	ErrPoolOverload = errors.New("worker pool is overloaded")
)

// Config 控制并发任务数量
type Config struct {
	Size int `mapstructure:"size"` // 同时运行的任务上限
	// MaxWaiting 为排队等待的任务上限，0 表示不排队，满了直接拒绝
	MaxWaiting int `mapstructure:"max_waiting"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Size:       8,
		MaxWaiting: 16,
	}
}

func (c *Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("workerpool: size must be positive, got %d", c.Size)
	}
	if c.MaxWaiting < 0 {
		return fmt.Errorf("workerpool: max_waiting must not be negative, got %d", c.MaxWaiting)
	}
	return nil
}

// Pool bounds how many tasks run at once
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger
}

// New 创建 Worker Pool
func New(config *Config, logger *zap.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []ants.Option{
		ants.WithPanicHandler(func(err interface{}) {
			logger.Error("worker panic", zap.Any("error", err))
		}),
	}
	if config.MaxWaiting == 0 {
		opts = append(opts, ants.WithNonblocking(true))
	} else {
		opts = append(opts, ants.WithMaxBlockingTasks(config.MaxWaiting))
	}

	antsPool, err := ants.NewPool(config.Size, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	return &Pool{pool: antsPool, logger: logger}, nil
}

// SubmitWait runs task on the pool and waits for it. If ctx ends first the
// wait is abandoned with ctx.Err(); task keeps running and is expected to
// observe the same ctx.
func (p *Pool) SubmitWait(ctx context.Context, task func(ctx context.Context) error) error {
	done := make(chan error, 1)

	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("task panic", zap.Any("panic", r))
				done <- fmt.Errorf("task panic: %v", r)
			}
		}()
		done <- task(ctx)
	})
	if err != nil {
		return translate(err)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running 获取运行中的任务数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Waiting 获取排队中的任务数量
func (p *Pool) Waiting() int {
	return p.pool.Waiting()
}

// Cap 获取并发上限
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Shutdown waits up to timeout for running tasks and releases the pool
func (p *Pool) Shutdown(timeout time.Duration) error {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("worker pool did not drain in time", zap.Error(err))
		return err
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return err
	}
}
