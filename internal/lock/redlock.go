package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/config"
)

const redLockKeyPrefix = "votely:lock:"

// 只操作自己持有的锁
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// RedLock 在多个独立Redis节点上实现Redlock算法
type RedLock struct {
	clients []*redis.Client
	addrs   []string
	retries int
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]string // key是锁名，value是token值
}

// NewRedLock 连接 redis.lock_addresses 中的所有节点
func NewRedLock(ctx context.Context, cfg config.RedisConfig, lockCfg config.LockConfig, logger *zap.Logger) (*RedLock, error) {
	var clients []*redis.Client
	for _, addr := range cfg.LockAddresses {
		client := redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.Timeout,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			for _, c := range clients {
				c.Close()
			}
			client.Close()
			return nil, fmt.Errorf("Redis锁节点 %s 连接测试失败: %w", addr, err)
		}
		clients = append(clients, client)
	}
	return newRedLock(clients, cfg.LockAddresses, lockCfg.RetryCount, logger), nil
}

func newRedLock(clients []*redis.Client, addrs []string, retries int, logger *zap.Logger) *RedLock {
	if retries <= 0 {
		retries = 1
	}
	return &RedLock{
		clients: clients,
		addrs:   addrs,
		retries: retries,
		logger:  logger,
		locks:   make(map[string]string),
	}
}

func (r *RedLock) quorum() int {
	return len(r.clients)/2 + 1
}

// AcquireLock 获取分布式锁
func (r *RedLock) AcquireLock(ctx context.Context, lockName string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.locks[lockName]; held {
		return false, fmt.Errorf("锁 %s 已被当前实例持有", lockName)
	}

	key := redLockKeyPrefix + lockName
	token := uuid.NewString()

	for attempt := 0; attempt < r.retries; attempt++ {
		success := 0
		start := time.Now()

		for i, client := range r.clients {
			ok, err := client.SetNX(ctx, key, token, ttl).Result()
			if err != nil {
				r.logger.Warn("在节点获取锁失败", zap.String("node", r.addrs[i]), zap.String("lock", lockName), zap.Error(err))
				continue
			}
			if ok {
				success++
			}
		}

		// 多数节点成功且锁仍在有效期内
		if success >= r.quorum() && ttl-time.Since(start) > 0 {
			r.locks[lockName] = token
			r.logger.Info("获取Redis锁成功", zap.String("lock", lockName))
			return true, nil
		}

		r.unlockAll(ctx, key, token)

		if attempt+1 < r.retries {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
	return false, nil
}

// RefreshLock 刷新锁的过期时间
func (r *RedLock) RefreshLock(ctx context.Context, lockName string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, held := r.locks[lockName]
	if !held {
		return false, fmt.Errorf("锁 %s 不存在或未持有", lockName)
	}

	key := redLockKeyPrefix + lockName
	success := 0
	for i, client := range r.clients {
		n, err := refreshScript.Run(ctx, client, []string{key}, token, ttl.Milliseconds()).Int64()
		if err != nil {
			r.logger.Warn("在节点刷新锁失败", zap.String("node", r.addrs[i]), zap.String("lock", lockName), zap.Error(err))
			continue
		}
		if n == 1 {
			success++
		}
	}

	if success >= r.quorum() {
		return true, nil
	}
	delete(r.locks, lockName)
	return false, nil
}

// ReleaseLock 释放分布式锁
func (r *RedLock) ReleaseLock(ctx context.Context, lockName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, held := r.locks[lockName]
	if !held {
		return fmt.Errorf("锁 %s 不存在或未持有", lockName)
	}
	r.unlockAll(ctx, redLockKeyPrefix+lockName, token)
	delete(r.locks, lockName)
	r.logger.Info("释放Redis锁", zap.String("lock", lockName))
	return nil
}

// unlockAll 在所有节点上释放锁
func (r *RedLock) unlockAll(ctx context.Context, key, token string) {
	for i, client := range r.clients {
		if err := unlockScript.Run(ctx, client, []string{key}, token).Err(); err != nil {
			r.logger.Warn("在节点释放锁失败", zap.String("node", r.addrs[i]), zap.String("key", key), zap.Error(err))
		}
	}
}

// ReleaseAllLocks 释放所有持有的锁
func (r *RedLock) ReleaseAllLocks(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, token := range r.locks {
		r.unlockAll(ctx, redLockKeyPrefix+name, token)
	}
	r.locks = make(map[string]string)
}

// Close 关闭分布式锁客户端
func (r *RedLock) Close() error {
	r.ReleaseAllLocks(context.Background())

	for i, client := range r.clients {
		if err := client.Close(); err != nil {
			r.logger.Warn("关闭Redis锁节点失败", zap.String("node", r.addrs[i]), zap.Error(err))
		}
	}
	return nil
}
