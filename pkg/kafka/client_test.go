package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorverse-go/pkg/tasks"
)

// flakyProcessor 前 failures 次调用返回错误。
type flakyProcessor struct {
	failures int
	calls    int
}

func (p *flakyProcessor) Process(ctx context.Context, task tasks.TurnRecordTask) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("db unavailable")
	}
	return nil
}

func fastRetry(t *testing.T) {
	t.Helper()
	old := retryBackoff
	retryBackoff = time.Millisecond
	t.Cleanup(func() { retryBackoff = old })
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestBrokerList(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, brokerList(" k1:9092, ,k2:9092 "))
	assert.Nil(t, brokerList(""))
}

func TestProduceWithoutProducer(t *testing.T) {
	producer = nil
	err := Publisher{}.RecordTurn(context.Background(), tasks.TurnRecordTask{EventID: "e1"})
	assert.Error(t, err)
	assert.NoError(t, Close())
}

func TestProcessWithRetry_SucceedsAfterTwoFailures(t *testing.T) {
	fastRetry(t)
	rdb, mr := newTestRedis(t)
	p := &flakyProcessor{failures: 2}

	err := processWithRetry(context.Background(), p, newAttemptStore(rdb), tasks.TurnRecordTask{EventID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
	assert.False(t, mr.Exists(attemptsKey("e1")))
}

func TestProcessWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	fastRetry(t)
	p := &flakyProcessor{failures: 10}

	err := processWithRetry(context.Background(), p, newAttemptStore(nil), tasks.TurnRecordTask{EventID: "e1"})
	assert.Error(t, err)
	assert.Equal(t, maxAttempts, p.calls)
}

func TestProcessWithRetry_ResumesCountAfterRedelivery(t *testing.T) {
	fastRetry(t)
	rdb, mr := newTestRedis(t)
	// 上一个进程已经失败了两次
	_, err := mr.Incr(attemptsKey("e1"), 2)
	require.NoError(t, err)
	p := &flakyProcessor{failures: 10}

	err = processWithRetry(context.Background(), p, newAttemptStore(rdb), tasks.TurnRecordTask{EventID: "e1"})
	assert.Error(t, err)
	assert.Equal(t, 1, p.calls)
	assert.False(t, mr.Exists(attemptsKey("e1")))
}

func TestProcessWithRetry_RedisDownFallsBackToLocalCount(t *testing.T) {
	fastRetry(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()
	p := &flakyProcessor{failures: 2}

	err := processWithRetry(context.Background(), p, newAttemptStore(rdb), tasks.TurnRecordTask{EventID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestProcessWithRetry_StopsOnCancel(t *testing.T) {
	old := retryBackoff
	retryBackoff = time.Hour
	t.Cleanup(func() { retryBackoff = old })

	ctx, cancel := context.WithCancel(context.Background())
	p := &flakyProcessor{failures: 10}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := processWithRetry(ctx, p, newAttemptStore(nil), tasks.TurnRecordTask{EventID: "e1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}
