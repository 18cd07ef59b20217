package lock

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/config"
)

// Lock 分布式锁接口
type Lock interface {
	// AcquireLock 获取分布式锁
	// 返回值：bool表示是否成功获取锁，error表示获取过程中的错误
	AcquireLock(ctx context.Context, lockName string, ttl time.Duration) (bool, error)

	// RefreshLock 刷新锁的过期时间
	RefreshLock(ctx context.Context, lockName string, ttl time.Duration) (bool, error)

	// ReleaseLock 释放分布式锁
	ReleaseLock(ctx context.Context, lockName string) error

	// ReleaseAllLocks 释放所有持有的锁
	ReleaseAllLocks(ctx context.Context)

	// Close 关闭分布式锁客户端
	Close() error
}

// New 按 lock.backend 创建锁，none 表示单实例部署不加锁
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Lock, error) {
	switch cfg.Lock.Backend {
	case "etcd":
		return NewEtcdLock(cfg.ETCD, logger)
	case "redis":
		return NewRedLock(ctx, cfg.Redis, cfg.Lock, logger)
	case "none", "":
		return NoopLock{}, nil
	default:
		return nil, fmt.Errorf("未知的锁后端: %s", cfg.Lock.Backend)
	}
}

// WithLock 获取锁后执行 fn，获取失败时按 retries 次数重试
func WithLock(ctx context.Context, l Lock, lockName string, cfg config.LockConfig, logger *zap.Logger, fn func(ctx context.Context) error) error {
	ttl := cfg.Timeout
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	attempts := cfg.RetryCount
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		ok, err := l.AcquireLock(ctx, lockName, ttl)
		if err != nil {
			return fmt.Errorf("获取锁 %s 失败: %w", lockName, err)
		}
		if ok {
			defer func() {
				if err := l.ReleaseLock(context.WithoutCancel(ctx), lockName); err != nil {
					logger.Warn("释放锁失败", zap.String("lock", lockName), zap.Error(err))
				}
			}()
			return fn(ctx)
		}

		logger.Info("锁被其他实例持有，等待重试", zap.String("lock", lockName), zap.Int("attempt", i+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ttl / time.Duration(attempts+1)):
		}
	}
	return fmt.Errorf("获取锁 %s 超时", lockName)
}

// NoopLock 总是获取成功
type NoopLock struct{}

func (NoopLock) AcquireLock(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NoopLock) RefreshLock(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NoopLock) ReleaseLock(context.Context, string) error                        { return nil }
func (NoopLock) ReleaseAllLocks(context.Context)                                  {}
func (NoopLock) Close() error                                                     { return nil }
