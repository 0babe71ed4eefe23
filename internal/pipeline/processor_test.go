package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorverse-go/internal/model"
	"tutorverse-go/pkg/tasks"
)

type fakeTurnRepo struct {
	created []*model.TurnRecord
	err     error
}

func (f *fakeTurnRepo) Create(ctx context.Context, r *model.TurnRecord) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, r)
	return nil
}

func (f *fakeTurnRepo) FindRecent(ctx context.Context, limit int) ([]model.TurnRecord, error) {
	return nil, nil
}

func (f *fakeTurnRepo) CountByIntent(ctx context.Context) ([]model.IntentCount, error) {
	return nil, nil
}

func TestProcessor_Process(t *testing.T) {
	repo := &fakeTurnRepo{}
	p := NewProcessor(repo)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	task := tasks.NewTurnRecordTask("s1", "What is 25 into 11?", at)
	task.Intent = "math"
	task.ToolsUsed = []string{"calculator", "calculator"}
	task.LatencyMs = 900

	require.NoError(t, p.Process(context.Background(), task))
	require.Len(t, repo.created, 1)
	rec := repo.created[0]
	assert.Equal(t, task.EventID, rec.EventID)
	assert.Equal(t, "calculator,calculator", rec.ToolsUsed)
	assert.Equal(t, at, rec.CreatedAt)
	assert.Equal(t, int64(900), rec.LatencyMs)
}

func TestProcessor_RejectsInvalidTask(t *testing.T) {
	p := NewProcessor(&fakeTurnRepo{})
	err := p.RecordTurn(context.Background(), tasks.TurnRecordTask{Query: "q"})
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestProcessor_WrapsRepositoryError(t *testing.T) {
	dbErr := errors.New("deadlock")
	p := NewProcessor(&fakeTurnRepo{err: dbErr})
	task := tasks.NewTurnRecordTask("", "q", time.Now())
	task.Intent = "other"
	assert.ErrorIs(t, p.Process(context.Background(), task), dbErr)
}

func TestProcessor_TruncatesLongQueries(t *testing.T) {
	repo := &fakeTurnRepo{}
	task := tasks.NewTurnRecordTask("", strings.Repeat("x", 3000), time.Now())
	task.Intent = "error"
	require.NoError(t, NewProcessor(repo).Process(context.Background(), task))
	assert.Equal(t, maxStoredQueryRunes+1, len([]rune(repo.created[0].Query)))
}
