package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisRelayFansOutAcrossInstances(t *testing.T) {
	require := require.New(t)
	mr := miniredis.RunT(t)
	const channel = "votely:realtime"

	newInstance := func() (*Registry, *RedisRelay) {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		registry := NewRegistry(nil)
		return registry, NewRedisRelay(client, channel, NewHub(registry, zap.NewNop()), zap.NewNop())
	}

	regA, relayA := newInstance()
	regB, relayB := newInstance()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relayA.Run(ctx)
	go relayB.Run(ctx)
	require.Eventually(func() bool {
		return mr.PubSubNumSub(channel)[channel] == 2
	}, time.Second, 10*time.Millisecond)

	onA := newFakeSub("on-a", 4)
	onB := newFakeSub("on-b", 4)
	require.NoError(regA.Join(onA, nil, ElectionRoom("e1")))
	require.NoError(regB.Join(onB, admin, AdminRoom))

	// 实例A上的投票，实例B上的管理员也能收到
	b := NewBroadcaster(relayA, zap.NewNop())
	delta, record := castFixture()
	b.VoteCast(ctx, delta, record)

	require.Equal(EventVoteCast, readFrame(t, onA).Event)
	require.Equal(EventNewVote, readFrame(t, onB).Event)
}
