package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/apperr"
	"github.com/lvdashuaibi/votely/internal/lifecycle"
	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/repository"
)

// ResultsCache 已结束选举的结果缓存
type ResultsCache interface {
	ResultsVersion(ctx context.Context, electionID string) (string, error)
	GetResults(ctx context.Context, electionID string) (*model.Results, bool, error)
	SetResults(ctx context.Context, version string, results *model.Results, ttl time.Duration) (bool, error)
	DeleteResults(ctx context.Context, electionID string) error
}

// NoopResultsCache 未配置Redis时使用
type NoopResultsCache struct{}

func (NoopResultsCache) ResultsVersion(context.Context, string) (string, error) { return "0", nil }

func (NoopResultsCache) GetResults(context.Context, string) (*model.Results, bool, error) {
	return nil, false, nil
}

func (NoopResultsCache) SetResults(context.Context, string, *model.Results, time.Duration) (bool, error) {
	return false, nil
}

func (NoopResultsCache) DeleteResults(context.Context, string) error { return nil }

// TallyEngine 维护候选人票数并提供选举结果
type TallyEngine struct {
	store  repository.Store
	cache  ResultsCache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewTallyEngine(store repository.Store, cache ResultsCache, ttl time.Duration, logger *zap.Logger) *TallyEngine {
	if cache == nil {
		cache = NoopResultsCache{}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TallyEngine{store: store, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

func (t *TallyEngine) WithClock(now func() time.Time) *TallyEngine {
	t.now = now
	return t
}

// Increment 在账本事务内原子加一，返回新票数
func (t *TallyEngine) Increment(ctx context.Context, tx repository.LedgerTx, candidateID string) (int64, error) {
	return tx.IncrementVotes(ctx, candidateID)
}

// Decrement 在账本事务内原子减一，最低为0
func (t *TallyEngine) Decrement(ctx context.Context, tx repository.LedgerTx, candidateID string) (int64, error) {
	return tx.DecrementVotes(ctx, candidateID)
}

// Invalidate 清除结果缓存，失败只记录日志
func (t *TallyEngine) Invalidate(ctx context.Context, electionID string) {
	if err := t.cache.DeleteResults(ctx, electionID); err != nil {
		t.logger.Warn("清除结果缓存失败", zap.String("election", electionID), zap.Error(err))
	}
}

// Results 选举结束后对所有人可见，管理员任何时候都可以查看
func (t *TallyEngine) Results(ctx context.Context, electionID string, principal *model.User) (*model.Results, error) {
	e, err := t.store.GetElection(ctx, electionID)
	if err != nil {
		return nil, wrapErr("Failed to load election", err)
	}
	e.Status = lifecycle.Effective(e, t.now())

	ended := e.Status == model.StatusEnded
	if !ended && !principal.IsAdmin() {
		return nil, model.ErrResultsNotAvailable
	}

	var version string
	if ended {
		cached, found, err := t.cache.GetResults(ctx, electionID)
		if err != nil {
			t.logger.Warn("读取结果缓存失败", zap.String("election", electionID), zap.Error(err))
		} else if found {
			return cached, nil
		}
		if version, err = t.cache.ResultsVersion(ctx, electionID); err != nil {
			t.logger.Warn("读取结果缓存版本失败", zap.String("election", electionID), zap.Error(err))
			ended = false
		}
	}

	candidates, err := t.store.TallyCandidates(ctx, electionID)
	if err != nil {
		return nil, wrapErr("Failed to load candidates", err)
	}
	results := &model.Results{Election: e, Candidates: candidates}
	for _, c := range candidates {
		results.TotalVotes += c.VotesCount
	}

	if ended {
		if _, err := t.cache.SetResults(ctx, version, results, t.ttl); err != nil {
			t.logger.Warn("写入结果缓存失败", zap.String("election", electionID), zap.Error(err))
		}
	}
	return results, nil
}

// wrapErr 领域错误原样返回，其余包装为内部错误
func wrapErr(message string, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Internal(message, err)
}
