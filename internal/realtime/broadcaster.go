package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/model"
)

const (
	EventVoteCast    = "vote-cast"
	EventNewVote     = "new-vote"
	EventVoteDeleted = "vote-deleted"
)

// Broadcaster 在账本提交之后推送计票变化。推送尽力而为，失败只记录日志
type Broadcaster struct {
	pub    Publisher
	logger *zap.Logger
}

func NewBroadcaster(pub Publisher, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{pub: pub, logger: logger}
}

// VoteCast 选举房间收到计票变化，管理员房间收到完整投票记录
func (b *Broadcaster) VoteCast(ctx context.Context, delta model.TallyDelta, record model.VoteRecord) {
	b.publish(ctx, ElectionRoom(delta.ElectionID), EventVoteCast, delta)
	b.publish(ctx, AdminRoom, EventNewVote, record)
}

// VoteDeleted 两个房间都收到 vote-deleted，计票为扣减之后的值
func (b *Broadcaster) VoteDeleted(ctx context.Context, delta model.TallyDelta, record model.VoteRecord) {
	b.publish(ctx, ElectionRoom(delta.ElectionID), EventVoteDeleted, delta)
	b.publish(ctx, AdminRoom, EventVoteDeleted, record)
}

func (b *Broadcaster) publish(ctx context.Context, room, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("序列化推送内容失败", zap.String("event", name), zap.Error(err))
		return
	}
	if err := b.pub.Publish(ctx, Event{Room: room, Name: name, Data: data}); err != nil {
		b.logger.Error("推送事件失败",
			zap.String("room", room), zap.String("event", name), zap.Error(err))
	}
}
