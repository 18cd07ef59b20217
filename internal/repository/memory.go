package repository

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/lvdashuaibi/votely/internal/lifecycle"
	"github.com/lvdashuaibi/votely/internal/model"
)

type voteKey struct {
	voterID    string
	electionID string
}

// MemoryRepository 内存实现，用于测试和本地开发。
// 事务期间持有整把锁，失败时按撤销日志回滚
type MemoryRepository struct {
	mu         sync.Mutex
	users      map[string]*model.User
	elections  map[string]*model.Election
	candidates map[string]*model.Candidate
	votes      map[string]*model.Vote
	uniq       map[voteKey]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[string]*model.User),
		elections:  make(map[string]*model.Election),
		candidates: make(map[string]*model.Candidate),
		votes:      make(map[string]*model.Vote),
		uniq:       make(map[voteKey]string),
	}
}

func copyUser(u *model.User) *model.User {
	c := *u
	c.VotedElections = slices.Clone(u.VotedElections)
	return &c
}

func copyElection(e *model.Election) *model.Election {
	c := *e
	c.Candidates = slices.Clone(e.Candidates)
	if e.OverriddenAt != nil {
		t := *e.OverriddenAt
		c.OverriddenAt = &t
	}
	return &c
}

func copyCandidate(c *model.Candidate) *model.Candidate {
	cc := *c
	return &cc
}

func copyVote(v *model.Vote) *model.Vote {
	c := *v
	return &c
}

func (r *MemoryRepository) GetUser(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return copyUser(u), nil
}

// CreateUser 非空邮箱唯一
func (r *MemoryRepository) CreateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.Email != "" {
		for _, other := range r.users {
			if other.Email == u.Email && other.ID != u.ID {
				return model.ErrEmailTaken
			}
		}
	}
	r.users[u.ID] = copyUser(u)
	return nil
}

func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email != "" && u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (r *MemoryRepository) ListUsers(_ context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		list = append(list, copyUser(u))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *MemoryRepository) GetElection(_ context.Context, id string) (*model.Election, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.elections[id]
	if !ok {
		return nil, model.ErrElectionNotFound
	}
	return copyElection(e), nil
}

func (r *MemoryRepository) ListElections(_ context.Context) ([]*model.Election, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]*model.Election, 0, len(r.elections))
	for _, e := range r.elections {
		list = append(list, copyElection(e))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *MemoryRepository) CreateElection(_ context.Context, e *model.Election) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := copyElection(e)
	c.Candidates = nil
	r.elections[e.ID] = c
	return nil
}

func (r *MemoryRepository) UpdateElection(_ context.Context, e *model.Election) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.elections[e.ID]
	if !ok {
		return model.ErrElectionNotFound
	}
	c := copyElection(e)
	c.Candidates = cur.Candidates
	c.CreatedAt = cur.CreatedAt
	c.CreatedBy = cur.CreatedBy
	r.elections[e.ID] = c
	return nil
}

func (r *MemoryRepository) DeleteElection(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.elections[id]
	if !ok {
		return model.ErrElectionNotFound
	}
	if err := lifecycle.CheckElectionDeletable(r.hasVote(func(v *model.Vote) bool { return v.ElectionID == id })); err != nil {
		return err
	}
	for _, cid := range e.Candidates {
		delete(r.candidates, cid)
	}
	delete(r.elections, id)
	return nil
}

// hasVote 调用方需持有锁
func (r *MemoryRepository) hasVote(match func(*model.Vote) bool) bool {
	for _, v := range r.votes {
		if match(v) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) GetCandidate(_ context.Context, id string) (*model.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.candidates[id]
	if !ok {
		return nil, model.ErrCandidateNotFound
	}
	return copyCandidate(c), nil
}

func (r *MemoryRepository) ListCandidates(_ context.Context, electionID string, byVotes bool) ([]*model.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listCandidates(electionID, byVotes)
}

func (r *MemoryRepository) TallyCandidates(_ context.Context, electionID string) ([]*model.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listCandidates(electionID, true)
}

func (r *MemoryRepository) ListAllCandidates(_ context.Context) ([]*model.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]*model.Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		list = append(list, copyCandidate(c))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *MemoryRepository) listCandidates(electionID string, byVotes bool) ([]*model.Candidate, error) {
	e, ok := r.elections[electionID]
	if !ok {
		return nil, model.ErrElectionNotFound
	}
	list := make([]*model.Candidate, 0, len(e.Candidates))
	for _, cid := range e.Candidates {
		if c, ok := r.candidates[cid]; ok {
			list = append(list, copyCandidate(c))
		}
	}
	if byVotes {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].VotesCount > list[j].VotesCount
		})
	}
	return list, nil
}

func (r *MemoryRepository) CreateCandidate(_ context.Context, c *model.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.elections[c.ElectionID]
	if !ok {
		return model.ErrElectionNotFound
	}
	cc := copyCandidate(c)
	cc.VotesCount = 0
	r.candidates[c.ID] = cc
	e.Candidates = append(e.Candidates, c.ID)
	return nil
}

func (r *MemoryRepository) UpdateCandidate(_ context.Context, c *model.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.candidates[c.ID]
	if !ok {
		return model.ErrCandidateNotFound
	}
	cur.FullName = c.FullName
	cur.Description = c.Description
	cur.Image = c.Image
	return nil
}

func (r *MemoryRepository) DeleteCandidate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.candidates[id]
	if !ok {
		return model.ErrCandidateNotFound
	}
	if err := lifecycle.CheckCandidateDeletable(r.hasVote(func(v *model.Vote) bool { return v.CandidateID == id })); err != nil {
		return err
	}
	if e, ok := r.elections[c.ElectionID]; ok {
		e.Candidates = slices.DeleteFunc(e.Candidates, func(cid string) bool { return cid == id })
	}
	delete(r.candidates, id)
	return nil
}

func (r *MemoryRepository) GetVote(_ context.Context, id string) (*model.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.votes[id]
	if !ok {
		return nil, model.ErrVoteNotFound
	}
	return copyVote(v), nil
}

func (r *MemoryRepository) listVotes(keep func(*model.Vote) bool) []*model.Vote {
	list := make([]*model.Vote, 0)
	for _, v := range r.votes {
		if keep(v) {
			list = append(list, copyVote(v))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].VotedAt.Equal(list[j].VotedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].VotedAt.After(list[j].VotedAt)
	})
	return list
}

func (r *MemoryRepository) ListVotes(_ context.Context) ([]*model.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listVotes(func(*model.Vote) bool { return true }), nil
}

func (r *MemoryRepository) ListVotesByUser(_ context.Context, userID string) ([]*model.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listVotes(func(v *model.Vote) bool { return v.UserID == userID }), nil
}

func (r *MemoryRepository) CountVotes(_ context.Context, electionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, v := range r.votes {
		if v.ElectionID == electionID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CandidateTally(_ context.Context, candidateID string) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.candidates[candidateID]
	if !ok {
		return 0, 0, model.ErrCandidateNotFound
	}
	var n int64
	for _, v := range r.votes {
		if v.CandidateID == candidateID {
			n++
		}
	}
	return c.VotesCount, n, nil
}

func (r *MemoryRepository) InTx(_ context.Context, fn func(tx LedgerTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryTx{repo: r}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

// memoryTx 在持有 MemoryRepository 锁的情况下运行
type memoryTx struct {
	repo *MemoryRepository
	undo []func()
}

func (t *memoryTx) InsertVote(_ context.Context, v *model.Vote) error {
	r := t.repo
	key := voteKey{voterID: v.UserID, electionID: v.ElectionID}
	if _, ok := r.uniq[key]; ok {
		return model.ErrAlreadyVoted
	}
	r.votes[v.ID] = copyVote(v)
	r.uniq[key] = v.ID
	t.undo = append(t.undo, func() {
		delete(r.votes, v.ID)
		delete(r.uniq, key)
	})
	return nil
}

func (t *memoryTx) DeleteVote(_ context.Context, id string) (*model.Vote, error) {
	r := t.repo
	v, ok := r.votes[id]
	if !ok {
		return nil, model.ErrVoteNotFound
	}
	key := voteKey{voterID: v.UserID, electionID: v.ElectionID}
	delete(r.votes, id)
	delete(r.uniq, key)
	t.undo = append(t.undo, func() {
		r.votes[id] = v
		r.uniq[key] = id
	})
	return copyVote(v), nil
}

func (t *memoryTx) IncrementVotes(_ context.Context, candidateID string) (int64, error) {
	c, ok := t.repo.candidates[candidateID]
	if !ok {
		return 0, model.ErrCandidateNotFound
	}
	c.VotesCount++
	t.undo = append(t.undo, func() { c.VotesCount-- })
	return c.VotesCount, nil
}

func (t *memoryTx) DecrementVotes(_ context.Context, candidateID string) (int64, error) {
	c, ok := t.repo.candidates[candidateID]
	if !ok {
		return 0, model.ErrCandidateNotFound
	}
	if c.VotesCount > 0 {
		c.VotesCount--
		t.undo = append(t.undo, func() { c.VotesCount++ })
	}
	return c.VotesCount, nil
}

func (t *memoryTx) AddVotedElection(_ context.Context, userID, electionID string) error {
	u, ok := t.repo.users[userID]
	if !ok || slices.Contains(u.VotedElections, electionID) {
		return nil
	}
	prev := u.VotedElections
	u.VotedElections = append(slices.Clone(prev), electionID)
	t.undo = append(t.undo, func() { u.VotedElections = prev })
	return nil
}

func (t *memoryTx) RemoveVotedElection(_ context.Context, userID, electionID string) error {
	u, ok := t.repo.users[userID]
	if !ok {
		return nil
	}
	prev := u.VotedElections
	u.VotedElections = slices.DeleteFunc(slices.Clone(prev), func(id string) bool { return id == electionID })
	t.undo = append(t.undo, func() { u.VotedElections = prev })
	return nil
}
