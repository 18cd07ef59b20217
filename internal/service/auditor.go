package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/repository"
)

// TallyAuditor 消费账本变更流，核对候选人票数与投票记录数是否一致。
// 只记录偏差，不做修正
type TallyAuditor struct {
	store  repository.Store
	logger *zap.Logger
}

func NewTallyAuditor(store repository.Store, logger *zap.Logger) *TallyAuditor {
	return &TallyAuditor{store: store, logger: logger}
}

// Audit 返回 true 表示票数一致
func (a *TallyAuditor) Audit(ctx context.Context, event *model.VoteEvent) (bool, error) {
	candidateID := event.Vote.CandidateID
	votesCount, count, err := a.store.CandidateTally(ctx, candidateID)
	if err != nil {
		if errors.Is(err, model.ErrCandidateNotFound) {
			return true, nil
		}
		return false, err
	}

	if count != votesCount {
		a.logger.Warn("候选人票数与投票记录不一致",
			zap.String("event", string(event.Type)),
			zap.String("election", event.Vote.ElectionID),
			zap.String("candidate", candidateID),
			zap.Int64("votesCount", votesCount),
			zap.Int64("ledgerCount", count))
		return false, nil
	}
	return true, nil
}

// ProcessVoteEvent 消费者回调
func (a *TallyAuditor) ProcessVoteEvent(ctx context.Context, event *model.VoteEvent) error {
	_, err := a.Audit(ctx, event)
	return err
}
