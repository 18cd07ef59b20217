package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/model"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// chanReader 从 channel 读消息，channel 为空时阻塞到 ctx 取消
type chanReader struct {
	msgs   chan kafka.Message
	closed bool
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) Close() error {
	r.closed = true
	return nil
}

func sampleEvent() *model.VoteEvent {
	return &model.VoteEvent{
		Type: model.VoteEventCast,
		Vote: model.VoteRecord{
			VoteID: "v1", ElectionID: "e1", CandidateID: "c1", VoterID: "u1",
			VotedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		},
		VotesCount: 3,
		OccurredAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSendVoteEventKeyedByElection(t *testing.T) {
	require := require.New(t)
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: zap.NewNop()}

	require.NoError(p.SendVoteEvent(context.Background(), sampleEvent()))
	require.Len(w.msgs, 1)
	require.Equal("e1", string(w.msgs[0].Key))

	var decoded model.VoteEvent
	require.NoError(json.Unmarshal(w.msgs[0].Value, &decoded))
	require.Equal(*sampleEvent(), decoded)

	w.err = errors.New("leader not available")
	require.ErrorIs(p.SendVoteEvent(context.Background(), sampleEvent()), w.err)
}

func TestConsumerDeliversAndStops(t *testing.T) {
	require := require.New(t)

	reader := &chanReader{msgs: make(chan kafka.Message, 3)}
	value, err := json.Marshal(sampleEvent())
	require.NoError(err)
	reader.msgs <- kafka.Message{Value: []byte("not json")}
	reader.msgs <- kafka.Message{Value: value}
	reader.msgs <- kafka.Message{Value: value}

	var (
		mu       sync.Mutex
		received []*model.VoteEvent
		done     = make(chan struct{})
	)
	c := newConsumer([]messageReader{reader}, zap.NewNop())
	c.Start(func(_ context.Context, event *model.VoteEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		if len(received) == 2 {
			close(done)
		}
		// 处理失败只记录日志，不影响后续消息
		return errors.New("audit failed")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("消息未被消费")
	}
	require.NoError(c.Stop())
	require.True(reader.closed)

	mu.Lock()
	defer mu.Unlock()
	require.Equal("v1", received[0].Vote.VoteID)
}
