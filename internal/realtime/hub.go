package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Event 发往某个房间的一条消息
type Event struct {
	Room string          `json:"room"`
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Frame WebSocket 上收发的帧
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Publisher 把事件送到房间，本地 Hub 和跨实例的 RedisRelay 都实现它
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Hub 把事件投递给本实例上的房间成员
type Hub struct {
	registry *Registry
	logger   *zap.Logger
}

func NewHub(registry *Registry, logger *zap.Logger) *Hub {
	return &Hub{registry: registry, logger: logger}
}

func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.Deliver(ev)
	return nil
}

// Deliver 每个成员最多收到一次，发送缓冲区满的慢消费者会被断开
func (h *Hub) Deliver(ev Event) {
	frame, err := json.Marshal(Frame{Event: ev.Name, Data: ev.Data})
	if err != nil {
		h.logger.Error("序列化推送消息失败", zap.String("event", ev.Name), zap.Error(err))
		return
	}

	for _, sub := range h.registry.Members(ev.Room) {
		if sub.Send(frame) {
			continue
		}
		h.logger.Warn("订阅者发送缓冲区已满，断开连接",
			zap.String("subscriber", sub.ID()), zap.String("room", ev.Room))
		h.registry.RemoveAll(sub.ID())
		sub.Close()
	}
}
