// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"tutorverse-go/internal/model"
)

// ErrConversationNotFound 表示会话不存在或已过期。
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository 定义了会话记录的操作接口。会话只是带 TTL 的缓存，不做持久化。
type ConversationRepository interface {
	GetTranscript(ctx context.Context, sessionID string) (*model.Transcript, error)
	SaveTranscript(ctx context.Context, transcript *model.Transcript) error
	DeleteTranscript(ctx context.Context, sessionID string) error
	// AcquireTurnLock 保证同一会话同一时间只有一轮问答在进行。
	// 成功时返回本次加锁的 token，释放时必须带上它。
	AcquireTurnLock(ctx context.Context, sessionID string, ttl time.Duration) (token string, ok bool, err error)
	// ReleaseTurnLock 只在锁仍属于 token 时删除，过期后被别人拿到的锁不受影响。
	ReleaseTurnLock(ctx context.Context, sessionID, token string) error
}

// 比较 token 后再删除，保证只释放自己的锁。
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client, ttl time.Duration) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient, ttl: ttl}
}

func transcriptKey(sessionID string) string {
	return fmt.Sprintf("tutor:conversation:%s", sessionID)
}

func turnLockKey(sessionID string) string {
	return fmt.Sprintf("tutor:conversation:%s:inflight", sessionID)
}

// GetTranscript 从 Redis 获取会话记录。
func (r *redisConversationRepository) GetTranscript(ctx context.Context, sessionID string) (*model.Transcript, error) {
	jsonData, err := r.redisClient.Get(ctx, transcriptKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	var transcript model.Transcript
	if err := json.Unmarshal([]byte(jsonData), &transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return &transcript, nil
}

// SaveTranscript 写入会话记录并刷新 TTL。
func (r *redisConversationRepository) SaveTranscript(ctx context.Context, transcript *model.Transcript) error {
	jsonData, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := r.redisClient.Set(ctx, transcriptKey(transcript.SessionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set transcript: %w", err)
	}
	return nil
}

func (r *redisConversationRepository) DeleteTranscript(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, transcriptKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

func (r *redisConversationRepository) AcquireTurnLock(ctx context.Context, sessionID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.redisClient.SetNX(ctx, turnLockKey(sessionID), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire turn lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *redisConversationRepository) ReleaseTurnLock(ctx context.Context, sessionID, token string) error {
	if err := releaseLockScript.Run(ctx, r.redisClient, []string{turnLockKey(sessionID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release turn lock: %w", err)
	}
	return nil
}
