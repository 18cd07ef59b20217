package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/model"
)

const (
	// Redis键前缀
	ResultsKey        = "votely:results:"
	ResultsVersionKey = "votely:results:version:"

	// SetResultsScript 只有在版本号未变化时才写入缓存，
	// 避免失效之后又被旧结果覆盖
	SetResultsScript = `
		local current = redis.call('GET', KEYS[2])
		if not current then
			current = '0'
		end
		if current ~= ARGV[1] then
			return 0
		end
		redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
		return 1
	`
)

// RedisRepository 选举结果缓存
type RedisRepository struct {
	client       *redis.Client
	scriptHashes map[string]string // 存储脚本SHA1哈希值
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.DataAddress,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
}

func NewRedisRepository(ctx context.Context, client *redis.Client) (*RedisRepository, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis数据节点连接测试失败: %w", err)
	}

	repo := &RedisRepository{
		client:       client,
		scriptHashes: make(map[string]string),
	}

	if err := repo.preloadScripts(ctx); err != nil {
		return nil, fmt.Errorf("预加载Lua脚本失败: %w", err)
	}
	return repo, nil
}

// preloadScripts 预加载所有Lua脚本
func (r *RedisRepository) preloadScripts(ctx context.Context) error {
	sha1, err := r.client.ScriptLoad(ctx, SetResultsScript).Result()
	if err != nil {
		return fmt.Errorf("加载结果缓存脚本失败: %w", err)
	}
	r.scriptHashes["setResults"] = sha1
	return nil
}

// ResultsVersion 读取结果缓存的版本号，写缓存前先取版本
func (r *RedisRepository) ResultsVersion(ctx context.Context, electionID string) (string, error) {
	version, err := r.client.Get(ctx, ResultsVersionKey+electionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "0", nil
		}
		return "", fmt.Errorf("获取结果缓存版本失败: %w", err)
	}
	return version, nil
}

// GetResults 从缓存获取选举结果
func (r *RedisRepository) GetResults(ctx context.Context, electionID string) (*model.Results, bool, error) {
	data, err := r.client.Get(ctx, ResultsKey+electionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // 缓存未命中
		}
		return nil, false, fmt.Errorf("获取结果缓存失败: %w", err)
	}

	var results model.Results
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		return nil, false, fmt.Errorf("解析结果缓存失败: %w", err)
	}
	return &results, true, nil
}

// SetResults 写入结果缓存。版本号已被失效操作推进时放弃写入，返回 false
func (r *RedisRepository) SetResults(ctx context.Context, version string, results *model.Results, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return false, fmt.Errorf("序列化选举结果失败: %w", err)
	}

	electionID := results.Election.ID
	keys := []string{ResultsKey + electionID, ResultsVersionKey + electionID}
	args := []any{version, data, ttl.Milliseconds()}

	sha1, ok := r.scriptHashes["setResults"]
	if !ok {
		return false, errors.New("脚本未预加载")
	}

	result, err := r.client.EvalSha(ctx, sha1, keys, args...).Int64()
	if err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT") {
		// 脚本缓存被清空，重新加载后再试一次
		if err := r.preloadScripts(ctx); err != nil {
			return false, err
		}
		result, err = r.client.EvalSha(ctx, r.scriptHashes["setResults"], keys, args...).Int64()
	}
	if err != nil {
		return false, fmt.Errorf("执行结果缓存脚本失败: %w", err)
	}
	return result == 1, nil
}

// DeleteResults 删除结果缓存并推进版本号
func (r *RedisRepository) DeleteResults(ctx context.Context, electionID string) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, ResultsVersionKey+electionID)
	pipe.Del(ctx, ResultsKey+electionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("删除结果缓存失败: %w", err)
	}
	return nil
}

// Client 供跨实例广播复用同一个连接池
func (r *RedisRepository) Client() *redis.Client {
	return r.client
}

// Close 关闭Redis连接
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
