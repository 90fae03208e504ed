package crontab

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/domain/workflow"
	workflowrepo "line-dify-bridge/internal/infrastructure/repository/workflow"
)

func TestCrontab_RecoverAndPurge(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	repo := workflowrepo.NewInMemoryRepository()
	repo.SetClock(clock)
	ctx := context.Background()

	for _, id := range []string{"stale", "done"} {
		require.NoError(t, repo.Create(ctx, &workflow.Instance{ID: id, Workflow: workflow.LineMessageWorkflowName, Status: workflow.StatusPending}))
		_, err := repo.Claim(ctx, id, time.Minute)
		require.NoError(t, err)
	}
	require.NoError(t, repo.Complete(ctx, "done"))

	now = now.Add(10 * 24 * time.Hour)
	c := NewCrontab(repo, Config{MaxAttempts: 5, Retention: 7 * 24 * time.Hour}, zerolog.Nop())
	c.now = clock

	c.RecoverStale(ctx)
	inst, err := repo.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, inst.Status)

	c.PurgeFinished(ctx)
	_, err = repo.Get(ctx, "done")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	_, err = repo.Get(ctx, "stale")
	assert.NoError(t, err)
}

func TestCrontab_RunStopsWithContext(t *testing.T) {
	c := NewCrontab(workflowrepo.NewInMemoryRepository(), Config{MaxAttempts: 5, Retention: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("crontab did not stop")
	}
}
