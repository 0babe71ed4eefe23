package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorverse-go/internal/model"
)

func newRedisRepo(t *testing.T, ttl time.Duration) (ConversationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewConversationRepository(rdb, ttl), mr
}

func TestConversationRepository_SaveAndGet(t *testing.T) {
	repo, mr := newRedisRepo(t, time.Hour)
	ctx := context.Background()

	tr := model.NewTranscript("s1", "hello", time.Now())
	_, _, err := tr.BeginTurn("2+2", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.SaveTranscript(ctx, tr))

	got, err := repo.GetTranscript(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, tr.SessionID, got.SessionID)
	assert.Equal(t, tr.Generation, got.Generation)
	assert.Equal(t, tr.NextSeq, got.NextSeq)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "2+2", got.Messages[1].Content)
	assert.True(t, got.Messages[2].IsLoading)

	assert.Equal(t, time.Hour, mr.TTL(transcriptKey("s1")))
}

func TestConversationRepository_NotFound(t *testing.T) {
	repo, _ := newRedisRepo(t, time.Hour)
	_, err := repo.GetTranscript(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationRepository_TranscriptExpires(t *testing.T) {
	repo, mr := newRedisRepo(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.SaveTranscript(ctx, model.NewTranscript("s1", "hello", time.Now())))
	mr.FastForward(2 * time.Minute)

	_, err := repo.GetTranscript(ctx, "s1")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationRepository_CorruptTranscript(t *testing.T) {
	repo, mr := newRedisRepo(t, time.Hour)
	require.NoError(t, mr.Set(transcriptKey("s1"), "{not json"))

	_, err := repo.GetTranscript(context.Background(), "s1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationRepository_TurnLock(t *testing.T) {
	repo, mr := newRedisRepo(t, time.Hour)
	ctx := context.Background()

	token, ok, err := repo.AcquireTurnLock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.Equal(t, time.Minute, mr.TTL(turnLockKey("s1")))

	_, ok, err = repo.AcquireTurnLock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 其他会话不受影响
	_, ok, err = repo.AcquireTurnLock(ctx, "s2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.ReleaseTurnLock(ctx, "s1", token))
	assert.False(t, mr.Exists(turnLockKey("s1")))

	_, ok, err = repo.AcquireTurnLock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConversationRepository_ReleaseOnlyOwnLock(t *testing.T) {
	repo, mr := newRedisRepo(t, time.Hour)
	ctx := context.Background()

	stale, ok, err := repo.AcquireTurnLock(ctx, "s1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// 锁过期后被另一个请求拿到
	mr.FastForward(2 * time.Second)
	current, ok, err := repo.AcquireTurnLock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, stale, current)

	require.NoError(t, repo.ReleaseTurnLock(ctx, "s1", stale))
	assert.True(t, mr.Exists(turnLockKey("s1")))

	require.NoError(t, repo.ReleaseTurnLock(ctx, "s1", current))
	assert.False(t, mr.Exists(turnLockKey("s1")))
}

func TestConversationRepository_DeleteKeepsTurnLock(t *testing.T) {
	repo, mr := newRedisRepo(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.SaveTranscript(ctx, model.NewTranscript("s1", "hello", time.Now())))
	_, ok, err := repo.AcquireTurnLock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.DeleteTranscript(ctx, "s1"))
	assert.False(t, mr.Exists(transcriptKey("s1")))
	assert.True(t, mr.Exists(turnLockKey("s1")))
}
