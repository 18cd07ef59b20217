package service

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/apperr"
	"github.com/lvdashuaibi/votely/internal/lifecycle"
	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/repository"
)

// Notifier 账本提交后的实时推送
type Notifier interface {
	VoteCast(ctx context.Context, delta model.TallyDelta, record model.VoteRecord)
	VoteDeleted(ctx context.Context, delta model.TallyDelta, record model.VoteRecord)
}

// EventSink 账本变更流，Kafka未启用时为 nil
type EventSink interface {
	SendVoteEvent(ctx context.Context, event *model.VoteEvent) error
}

// VoteService 投票账本。每个 (投票人, 选举) 最多一票，由存储层唯一键保证
type VoteService struct {
	store    repository.Store
	tally    *TallyEngine
	notifier Notifier
	sink     EventSink
	logger   *zap.Logger
	now      func() time.Time
}

func NewVoteService(
	store repository.Store,
	tally *TallyEngine,
	notifier Notifier,
	sink EventSink,
	logger *zap.Logger,
) *VoteService {
	return &VoteService{
		store:    store,
		tally:    tally,
		notifier: notifier,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *VoteService) WithClock(now func() time.Time) *VoteService {
	s.now = now
	return s
}

// CastVote 投票。依次检查：选举存在、选举进行中、候选人属于该选举、未重复投票
func (s *VoteService) CastVote(ctx context.Context, voter *model.User, electionID, candidateID string) (*model.Vote, error) {
	if electionID == "" || candidateID == "" {
		return nil, apperr.Validation("Election ID and candidate ID are required")
	}

	election, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return nil, wrapErr("Failed to load election", err)
	}

	now := s.now()
	if err := lifecycle.CheckVotable(election, now); err != nil {
		return nil, err
	}
	if !slices.Contains(election.Candidates, candidateID) {
		return nil, model.ErrCandidateNotInElection
	}

	vote := &model.Vote{
		ID:          uuid.NewString(),
		UserID:      voter.ID,
		ElectionID:  electionID,
		CandidateID: candidateID,
		VotedAt:     now.UTC(),
	}

	var votesCount int64
	err = s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		if err := tx.InsertVote(ctx, vote); err != nil {
			return err
		}
		if votesCount, err = s.tally.Increment(ctx, tx, candidateID); err != nil {
			return err
		}
		return tx.AddVotedElection(ctx, voter.ID, electionID)
	})
	if err != nil {
		return nil, wrapErr("Failed to cast vote", err)
	}

	s.logger.Info("投票成功",
		zap.String("vote", vote.ID),
		zap.String("election", electionID),
		zap.String("candidate", candidateID),
		zap.Int64("votesCount", votesCount))

	s.afterCommit(ctx, model.VoteEventCast, vote, votesCount)
	return vote, nil
}

// RetractVote 管理员撤销一票，同时回退计票和用户的已投票记录
func (s *VoteService) RetractVote(ctx context.Context, requester *model.User, voteID string) (*model.Vote, error) {
	if !requester.IsAdmin() {
		return nil, model.ErrNotAdmin
	}

	var (
		vote       *model.Vote
		votesCount int64
	)
	err := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		if vote, err = tx.DeleteVote(ctx, voteID); err != nil {
			return err
		}
		if votesCount, err = s.tally.Decrement(ctx, tx, vote.CandidateID); err != nil {
			return err
		}
		return tx.RemoveVotedElection(ctx, vote.UserID, vote.ElectionID)
	})
	if err != nil {
		return nil, wrapErr("Failed to delete vote", err)
	}

	s.logger.Info("撤销投票成功",
		zap.String("vote", vote.ID),
		zap.String("election", vote.ElectionID),
		zap.String("candidate", vote.CandidateID),
		zap.Int64("votesCount", votesCount))

	s.tally.Invalidate(ctx, vote.ElectionID)
	s.afterCommit(ctx, model.VoteEventDeleted, vote, votesCount)
	return vote, nil
}

// afterCommit 先推送再写入变更流，两者失败都不影响已提交的账本
func (s *VoteService) afterCommit(ctx context.Context, kind model.VoteEventType, vote *model.Vote, votesCount int64) {
	ctx = context.WithoutCancel(ctx)
	delta := model.TallyDelta{ElectionID: vote.ElectionID, CandidateID: vote.CandidateID, VotesCount: votesCount}
	record := model.NewVoteRecord(vote)

	if s.notifier != nil {
		switch kind {
		case model.VoteEventCast:
			s.notifier.VoteCast(ctx, delta, record)
		case model.VoteEventDeleted:
			s.notifier.VoteDeleted(ctx, delta, record)
		}
	}

	if s.sink != nil {
		event := &model.VoteEvent{Type: kind, Vote: record, VotesCount: votesCount, OccurredAt: s.now().UTC()}
		if err := s.sink.SendVoteEvent(ctx, event); err != nil {
			s.logger.Error("发送投票事件到Kafka失败", zap.String("vote", vote.ID), zap.Error(err))
		}
	}
}

// GetVote 管理员或投票人本人可查看
func (s *VoteService) GetVote(ctx context.Context, requester *model.User, voteID string) (*model.Vote, error) {
	vote, err := s.store.GetVote(ctx, voteID)
	if err != nil {
		return nil, wrapErr("Failed to load vote", err)
	}
	if !requester.IsAdmin() && vote.UserID != requester.ID {
		return nil, model.ErrNotOwnerOrAdmin
	}
	return vote, nil
}

// ListVotes 所有投票，最新的在前，仅管理员
func (s *VoteService) ListVotes(ctx context.Context, requester *model.User) ([]*model.Vote, error) {
	if !requester.IsAdmin() {
		return nil, model.ErrNotAdmin
	}
	votes, err := s.store.ListVotes(ctx)
	if err != nil {
		return nil, wrapErr("Failed to list votes", err)
	}
	return votes, nil
}

// ListUserVotes 当前用户自己的投票
func (s *VoteService) ListUserVotes(ctx context.Context, user *model.User) ([]*model.Vote, error) {
	votes, err := s.store.ListVotesByUser(ctx, user.ID)
	if err != nil {
		return nil, wrapErr("Failed to list votes", err)
	}
	return votes, nil
}
