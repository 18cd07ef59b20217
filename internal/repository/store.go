package repository

import (
	"context"

	"github.com/lvdashuaibi/votely/internal/model"
)

// Store 记录存储。未找到时返回 model 中对应的 NotFound 哨兵错误
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail 返回的用户包含密码哈希
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// ListUsers 最新注册的在前
	ListUsers(ctx context.Context) ([]*model.User, error)
	// CreateUser 邮箱已被使用时返回 model.ErrEmailTaken
	CreateUser(ctx context.Context, u *model.User) error

	GetElection(ctx context.Context, id string) (*model.Election, error)
	ListElections(ctx context.Context) ([]*model.Election, error)
	CreateElection(ctx context.Context, e *model.Election) error
	UpdateElection(ctx context.Context, e *model.Election) error
	// DeleteElection 同时删除该选举下的候选人。检查投票和删除在同一个事务内，
	// 选举已有投票时返回 model.ErrElectionHasVotes
	DeleteElection(ctx context.Context, id string) error

	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	// ListCandidates byVotes 为 true 时按票数降序，否则按创建顺序
	ListCandidates(ctx context.Context, electionID string, byVotes bool) ([]*model.Candidate, error)
	// TallyCandidates 按票数降序，读主库，用于结果和结果缓存
	TallyCandidates(ctx context.Context, electionID string) ([]*model.Candidate, error)
	// ListAllCandidates 所有选举的候选人，最新创建的在前
	ListAllCandidates(ctx context.Context) ([]*model.Candidate, error)
	CreateCandidate(ctx context.Context, c *model.Candidate) error
	// UpdateCandidate 只更新名称、描述和图片，票数不可写
	UpdateCandidate(ctx context.Context, c *model.Candidate) error
	// DeleteCandidate 候选人已有投票时返回 model.ErrCandidateHasVotes
	DeleteCandidate(ctx context.Context, id string) error

	GetVote(ctx context.Context, id string) (*model.Vote, error)
	// ListVotes 按投票时间倒序
	ListVotes(ctx context.Context) ([]*model.Vote, error)
	ListVotesByUser(ctx context.Context, userID string) ([]*model.Vote, error)
	CountVotes(ctx context.Context, electionID string) (int64, error)
	// CandidateTally 在同一次读取中返回候选人票数和投票记录数，读主库
	CandidateTally(ctx context.Context, candidateID string) (votesCount, ledgerCount int64, err error)

	// InTx 在一个事务内执行账本变更，fn 返回错误时回滚。
	// fn 内只能使用 tx，不能再调用 Store 的方法
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx 投票账本事务内可用的操作
type LedgerTx interface {
	// InsertVote 违反 (voter, election) 唯一约束时返回 model.ErrAlreadyVoted
	InsertVote(ctx context.Context, v *model.Vote) error
	// DeleteVote 锁定并删除投票记录，返回被删除的记录
	DeleteVote(ctx context.Context, id string) (*model.Vote, error)
	IncrementVotes(ctx context.Context, candidateID string) (int64, error)
	// DecrementVotes 票数最低为0
	DecrementVotes(ctx context.Context, candidateID string) (int64, error)
	AddVotedElection(ctx context.Context, userID, electionID string) error
	RemoveVotedElection(ctx context.Context, userID, electionID string) error
}
