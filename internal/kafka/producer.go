package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把账本变更事件写入Kafka
type Producer struct {
	writer messageWriter
	logger *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	// 使用Hash分区器，同一选举的事件进入同一分区，保证顺序
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	logger.Info("Kafka生产者已创建", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return &Producer{writer: writer, logger: logger}
}

func newMessage(event *model.VoteEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("序列化投票事件失败: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.Vote.ElectionID),
		Value: data,
		Time:  event.OccurredAt,
	}, nil
}

// SendVoteEvent 发送投票事件，以选举ID作为分区key
func (p *Producer) SendVoteEvent(ctx context.Context, event *model.VoteEvent) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("发送投票事件失败: %w", err)
	}
	p.logger.Debug("已发送投票事件",
		zap.String("type", string(event.Type)),
		zap.String("election", event.Vote.ElectionID),
		zap.String("vote", event.Vote.VoteID),
	)
	return nil
}

// Close 关闭Kafka生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}
