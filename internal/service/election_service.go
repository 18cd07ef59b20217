package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/apperr"
	"github.com/lvdashuaibi/votely/internal/lifecycle"
	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/repository"
)

type ElectionInput struct {
	Title       string
	Description string
	Image       string
	StartDate   time.Time
	EndDate     time.Time
}

// ElectionPatch 为 nil 的字段保持不变
type ElectionPatch struct {
	Title       *string
	Description *string
	Image       *string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      *model.ElectionStatus
}

type CandidateInput struct {
	ElectionID  string
	FullName    string
	Description string
	Image       string
}

type CandidatePatch struct {
	FullName    *string
	Description *string
	Image       *string
}

// ElectionService 选举和候选人管理，所有状态相关的限制都经过 lifecycle
type ElectionService struct {
	store  repository.Store
	tally  *TallyEngine
	logger *zap.Logger
	now    func() time.Time
}

func NewElectionService(store repository.Store, tally *TallyEngine, logger *zap.Logger) *ElectionService {
	return &ElectionService{store: store, tally: tally, logger: logger, now: time.Now}
}

func (s *ElectionService) WithClock(now func() time.Time) *ElectionService {
	s.now = now
	return s
}

func (s *ElectionService) withStatus(e *model.Election) *model.Election {
	e.Status = lifecycle.Effective(e, s.now())
	return e
}

func (s *ElectionService) ListElections(ctx context.Context) ([]*model.Election, error) {
	elections, err := s.store.ListElections(ctx)
	if err != nil {
		return nil, wrapErr("Failed to list elections", err)
	}
	for _, e := range elections {
		s.withStatus(e)
	}
	return elections, nil
}

// GetElection 选举及其候选人，候选人按创建顺序
func (s *ElectionService) GetElection(ctx context.Context, id string) (*model.ElectionDetail, error) {
	e, err := s.store.GetElection(ctx, id)
	if err != nil {
		return nil, wrapErr("Failed to load election", err)
	}
	candidates, err := s.store.ListCandidates(ctx, id, false)
	if err != nil {
		return nil, wrapErr("Failed to load candidates", err)
	}
	return &model.ElectionDetail{Election: s.withStatus(e), CandidateList: candidates}, nil
}

func (s *ElectionService) CreateElection(ctx context.Context, creator *model.User, in ElectionInput) (*model.Election, error) {
	if !creator.IsAdmin() {
		return nil, model.ErrNotAdmin
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, apperr.Validation("Title, start date and end date are required")
	}
	if err := lifecycle.CheckWindow(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &model.Election{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Image:       in.Image,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		CreatedBy:   creator.ID,
		Candidates:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateElection(ctx, e); err != nil {
		return nil, wrapErr("Failed to create election", err)
	}
	s.logger.Info("创建选举", zap.String("election", e.ID), zap.String("by", creator.ID))
	return s.withStatus(e), nil
}

func canManage(requester *model.User, e *model.Election) bool {
	return requester.IsAdmin() || (requester != nil && e.CreatedBy == requester.ID)
}

// UpdateElection 只有未开始时能改时间，状态变更经过 CheckStatusTransition
func (s *ElectionService) UpdateElection(ctx context.Context, requester *model.User, id string, patch ElectionPatch) (*model.Election, error) {
	e, err := s.store.GetElection(ctx, id)
	if err != nil {
		return nil, wrapErr("Failed to load election", err)
	}
	if !canManage(requester, e) {
		return nil, model.ErrNotOwnerOrAdmin
	}

	now := s.now()
	if patch.StartDate != nil || patch.EndDate != nil {
		if err := lifecycle.CheckDateChange(e, now); err != nil {
			return nil, err
		}
		start, end := e.StartDate, e.EndDate
		if patch.StartDate != nil {
			start = patch.StartDate.UTC()
		}
		if patch.EndDate != nil {
			end = patch.EndDate.UTC()
		}
		if err := lifecycle.CheckWindow(start, end); err != nil {
			return nil, err
		}
		e.StartDate, e.EndDate = start, end
	}

	if patch.Status != nil {
		current := lifecycle.Effective(e, now)
		if err := lifecycle.CheckStatusTransition(current, *patch.Status, requester.IsAdmin()); err != nil {
			return nil, err
		}
		if *patch.Status != current {
			at := now.UTC()
			e.StatusOverride = *patch.Status
			e.OverriddenAt = &at
		}
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.Validation("Title cannot be empty")
		}
		e.Title = title
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Image != nil {
		e.Image = *patch.Image
	}
	e.UpdatedAt = now.UTC()

	if err := s.store.UpdateElection(ctx, e); err != nil {
		return nil, wrapErr("Failed to update election", err)
	}
	s.tally.Invalidate(ctx, id)
	return s.withStatus(e), nil
}

// DeleteElection 有投票的选举不能删除，删除时连同候选人
func (s *ElectionService) DeleteElection(ctx context.Context, requester *model.User, id string) error {
	e, err := s.store.GetElection(ctx, id)
	if err != nil {
		return wrapErr("Failed to load election", err)
	}
	if !canManage(requester, e) {
		return model.ErrNotOwnerOrAdmin
	}

	// 有投票时存储层在同一事务内拒绝删除
	if err := s.store.DeleteElection(ctx, id); err != nil {
		return wrapErr("Failed to delete election", err)
	}
	s.tally.Invalidate(ctx, id)
	s.logger.Info("删除选举", zap.String("election", id), zap.String("by", requester.ID))
	return nil
}

func (s *ElectionService) ListCandidates(ctx context.Context, electionID string) ([]*model.Candidate, error) {
	if _, err := s.store.GetElection(ctx, electionID); err != nil {
		return nil, wrapErr("Failed to load election", err)
	}
	candidates, err := s.store.ListCandidates(ctx, electionID, false)
	if err != nil {
		return nil, wrapErr("Failed to list candidates", err)
	}
	return candidates, nil
}

// ListAllCandidates 所有选举的候选人
func (s *ElectionService) ListAllCandidates(ctx context.Context) ([]*model.Candidate, error) {
	candidates, err := s.store.ListAllCandidates(ctx)
	if err != nil {
		return nil, wrapErr("Failed to list candidates", err)
	}
	return candidates, nil
}

func (s *ElectionService) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, wrapErr("Failed to load candidate", err)
	}
	return c, nil
}

// CreateCandidate 只能向进行中的选举添加候选人，新候选人票数为0
func (s *ElectionService) CreateCandidate(ctx context.Context, requester *model.User, in CandidateInput) (*model.Candidate, error) {
	if !requester.IsAdmin() {
		return nil, model.ErrNotAdmin
	}
	in.FullName = strings.TrimSpace(in.FullName)
	if in.FullName == "" || in.ElectionID == "" {
		return nil, apperr.Validation("Full name and election ID are required")
	}

	e, err := s.store.GetElection(ctx, in.ElectionID)
	if err != nil {
		return nil, wrapErr("Failed to load election", err)
	}
	if err := lifecycle.CheckCandidateCreate(e, s.now()); err != nil {
		return nil, err
	}

	c := &model.Candidate{
		ID:          uuid.NewString(),
		ElectionID:  in.ElectionID,
		FullName:    in.FullName,
		Description: in.Description,
		Image:       in.Image,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateCandidate(ctx, c); err != nil {
		return nil, wrapErr("Failed to create candidate", err)
	}
	return c, nil
}

// UpdateCandidate 票数不可通过这里修改
func (s *ElectionService) UpdateCandidate(ctx context.Context, requester *model.User, id string, patch CandidatePatch) (*model.Candidate, error) {
	if !requester.IsAdmin() {
		return nil, model.ErrNotAdmin
	}
	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, wrapErr("Failed to load candidate", err)
	}

	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return nil, apperr.Validation("Full name cannot be empty")
		}
		c.FullName = name
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Image != nil {
		c.Image = *patch.Image
	}

	if err := s.store.UpdateCandidate(ctx, c); err != nil {
		return nil, wrapErr("Failed to update candidate", err)
	}
	return c, nil
}

// DeleteCandidate 有投票的候选人不能删除
func (s *ElectionService) DeleteCandidate(ctx context.Context, requester *model.User, id string) error {
	if !requester.IsAdmin() {
		return model.ErrNotAdmin
	}
	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return wrapErr("Failed to load candidate", err)
	}

	if err := s.store.DeleteCandidate(ctx, id); err != nil {
		return wrapErr("Failed to delete candidate", err)
	}
	s.tally.Invalidate(ctx, c.ElectionID)
	return nil
}
