package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/model"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// MessageHandler 处理一条账本变更事件
type MessageHandler func(ctx context.Context, event *model.VoteEvent) error

// Consumer 消费者组，每个 worker 持有一个 reader，分区由组协调器分配
type Consumer struct {
	readers []messageReader
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConsumer(cfg config.KafkaConfig, logger *zap.Logger) *Consumer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	readers := make([]messageReader, 0, workers)
	for i := 0; i < workers; i++ {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
			MaxWait:  500 * time.Millisecond,
		}))
	}
	logger.Info("创建Kafka消费者组",
		zap.String("topic", cfg.Topic),
		zap.String("group", cfg.GroupID),
		zap.Int("workers", workers),
	)
	return newConsumer(readers, logger)
}

func newConsumer(readers []messageReader, logger *zap.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{readers: readers, logger: logger, ctx: ctx, cancel: cancel}
}

// Start 为每个 reader 启动一个消费 goroutine
func (c *Consumer) Start(handler MessageHandler) {
	for i, reader := range c.readers {
		c.wg.Add(1)
		go func(workerID int, r messageReader) {
			defer c.wg.Done()
			c.consume(workerID, r, handler)
		}(i, reader)
	}
	c.logger.Info("Kafka消费者已启动", zap.Int("workers", len(c.readers)))
}

func (c *Consumer) consume(workerID int, reader messageReader, handler MessageHandler) {
	logger := c.logger.With(zap.Int("worker", workerID))
	for {
		m, err := reader.ReadMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("读取消息失败", zap.Error(err))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var event model.VoteEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			logger.Warn("解析消息失败", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}
		if err := handler(c.ctx, &event); err != nil {
			logger.Warn("处理消息失败",
				zap.String("vote", event.Vote.VoteID),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}

// Stop 停止消费并关闭所有 reader
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()

	var errs []error
	for _, reader := range c.readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.logger.Info("Kafka消费者已停止")
	return errors.Join(errs...)
}
