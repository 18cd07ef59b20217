package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/repository"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type broadcast struct {
	kind   model.VoteEventType
	delta  model.TallyDelta
	record model.VoteRecord
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []broadcast
}

func (n *recordingNotifier) VoteCast(_ context.Context, delta model.TallyDelta, record model.VoteRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, broadcast{kind: model.VoteEventCast, delta: delta, record: record})
}

func (n *recordingNotifier) VoteDeleted(_ context.Context, delta model.TallyDelta, record model.VoteRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, broadcast{kind: model.VoteEventDeleted, delta: delta, record: record})
}

func (n *recordingNotifier) all() []broadcast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]broadcast(nil), n.calls...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []*model.VoteEvent
	fail   bool
}

func (s *recordingSink) SendVoteEvent(_ context.Context, event *model.VoteEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("kafka: leader not available")
	}
	s.events = append(s.events, event)
	return nil
}

type fixture struct {
	store     *repository.MemoryRepository
	clock     *testClock
	notifier  *recordingNotifier
	sink      *recordingSink
	tally     *TallyEngine
	votes     *VoteService
	elections *ElectionService

	admin  *model.User
	voters []*model.User
}

// newFixture 选举 e1 (候选人 c1, c2) 和 e2 (候选人 c3)，窗口都是 [t0, t0+1h)，
// 时钟停在 t0+1min
func newFixture(t *testing.T, cache ResultsCache) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	f := &fixture{
		store:    repository.NewMemoryRepository(),
		clock:    &testClock{now: t0.Add(time.Minute)},
		notifier: &recordingNotifier{},
		sink:     &recordingSink{},
		admin:    &model.User{ID: "admin", Role: model.RoleAdmin, Status: model.UserActive},
	}
	f.tally = NewTallyEngine(f.store, cache, time.Hour, logger).WithClock(f.clock.Now)
	f.votes = NewVoteService(f.store, f.tally, f.notifier, f.sink, logger).WithClock(f.clock.Now)
	f.elections = NewElectionService(f.store, f.tally, logger).WithClock(f.clock.Now)

	require.NoError(t, f.store.CreateUser(ctx, f.admin))
	for _, id := range []string{"u1", "u2", "u3"} {
		u := &model.User{ID: id, Role: model.RoleVoter, Status: model.UserActive}
		require.NoError(t, f.store.CreateUser(ctx, u))
		f.voters = append(f.voters, u)
	}

	for _, e := range []struct {
		id         string
		candidates []string
	}{{"e1", []string{"c1", "c2"}}, {"e2", []string{"c3"}}} {
		require.NoError(t, f.store.CreateElection(ctx, &model.Election{
			ID: e.id, Title: "Election " + e.id, StartDate: t0, EndDate: t0.Add(time.Hour),
			CreatedBy: "admin", CreatedAt: t0.Add(-time.Hour),
		}))
		for _, cid := range e.candidates {
			require.NoError(t, f.store.CreateCandidate(ctx, &model.Candidate{ID: cid, ElectionID: e.id, FullName: cid}))
		}
	}
	return f
}

func (f *fixture) votesCount(t *testing.T, candidateID string) int64 {
	t.Helper()
	c, err := f.store.GetCandidate(context.Background(), candidateID)
	require.NoError(t, err)
	return c.VotesCount
}
