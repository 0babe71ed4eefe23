// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"tutorverse-go/internal/config"
	"tutorverse-go/pkg/log"
	"tutorverse-go/pkg/tasks"
)

const (
	defaultGroupID = "tutorverse-go-consumer"
	// 同一条消息最多处理的次数，之后提交 offset 放弃。
	maxAttempts = 3
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.TurnRecordTask) error
}

var producer *kafka.Writer

func brokerList(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:         kafka.TCP(brokerList(cfg.Brokers)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceTurnTask 发送一条问答记录到 Kafka，同一会话的记录落在同一分区。
func ProduceTurnTask(ctx context.Context, task tasks.TurnRecordTask) error {
	if producer == nil {
		return errors.New("kafka producer not initialized")
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	key := task.SessionID
	if key == "" {
		key = task.EventID
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: taskBytes,
	})
}

// Publisher 把问答记录投递到 Kafka，实现 service.TurnRecorder。
type Publisher struct{}

// RecordTurn 满足 service.TurnRecorder 接口。
func (Publisher) RecordTurn(ctx context.Context, task tasks.TurnRecordTask) error {
	return ProduceTurnTask(ctx, task)
}

// Close 关闭生产者，刷新尚未发送的消息。
func Close() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理问答记录，ctx 取消后退出。
// 失败的记录原地重试，最多 maxAttempts 次后提交 offset 并放弃。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) {
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = defaultGroupID
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokerList(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
	attempts := newAttemptStore(rdb)

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.TurnRecordTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		if err := processWithRetry(ctx, processor, attempts, task); err != nil {
			if ctx.Err() != nil {
				// 停机中断的消息不提交，重启后重新投递
				break
			}
			log.Errorf("问答记录多次失败(>=%d)，提交 offset 终止重试: EventID=%s, Error: %v", maxAttempts, task.EventID, err)
		}
		commit(ctx, r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
	log.Info("Kafka 消费者已退出")
}

// 两次重试之间的基础等待时间，第 n 次失败后等待 n 倍。
var retryBackoff = 500 * time.Millisecond

// processWithRetry 处理一条记录，失败时按线性退避重试。
// 失败次数记在 attemptStore 中，进程重启后重新投递的消息会接着计数。
func processWithRetry(ctx context.Context, processor TaskProcessor, attempts attemptStore, task tasks.TurnRecordTask) error {
	local := int64(0)
	for {
		err := processor.Process(ctx, task)
		if err == nil {
			attempts.Clear(ctx, task.EventID)
			return nil
		}
		local++
		n, incErr := attempts.Incr(ctx, task.EventID)
		if incErr != nil || n < local {
			n = local
		}
		log.Warnw("处理问答记录失败", "event_id", task.EventID, "attempt", n, "error", err)
		if n >= maxAttempts {
			attempts.Clear(ctx, task.EventID)
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(n)):
		}
	}
}

// attemptStore 记录每条消息的失败次数。
type attemptStore interface {
	Incr(ctx context.Context, eventID string) (int64, error)
	Clear(ctx context.Context, eventID string)
}

type redisAttempts struct {
	rdb *redis.Client
}

// noAttempts 在没有 Redis 时使用，只依赖本次进程内的计数。
type noAttempts struct{}

func (noAttempts) Incr(context.Context, string) (int64, error) { return 0, nil }
func (noAttempts) Clear(context.Context, string)               {}

func newAttemptStore(rdb *redis.Client) attemptStore {
	if rdb == nil {
		return noAttempts{}
	}
	return redisAttempts{rdb: rdb}
}

func attemptsKey(eventID string) string {
	return fmt.Sprintf("kafka:attempts:%s", eventID)
}

func (a redisAttempts) Incr(ctx context.Context, eventID string) (int64, error) {
	key := attemptsKey(eventID)
	n, err := a.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = a.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (a redisAttempts) Clear(ctx context.Context, eventID string) {
	_ = a.rdb.Del(ctx, attemptsKey(eventID)).Err()
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
