package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/domain/workflow"
	workflowrepo "line-dify-bridge/internal/infrastructure/repository/workflow"
)

type completingExecutor struct {
	repo workflow.Repository
	mu   sync.Mutex
	ids  []string
}

func (e *completingExecutor) Execute(ctx context.Context, inst *workflow.Instance) workflow.Status {
	e.mu.Lock()
	e.ids = append(e.ids, inst.ID)
	e.mu.Unlock()
	if err := e.repo.Complete(ctx, inst.ID); err != nil {
		return workflow.StatusRunning
	}
	return workflow.StatusCompleted
}

func (e *completingExecutor) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ids...)
}

func TestPool_ResumesPendingInstances(t *testing.T) {
	repo := workflowrepo.NewInMemoryRepository()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &workflow.Instance{
			ID:       id,
			Workflow: workflow.LineMessageWorkflowName,
			Status:   workflow.StatusPending,
		}))
	}

	exec := &completingExecutor{repo: repo}
	pool := NewPool(repo, exec, Config{WorkerCount: 2, PollInterval: 10 * time.Millisecond, Lease: time.Minute}, zerolog.Nop())
	pool.Start(ctx)
	t.Cleanup(pool.Stop)

	require.Eventually(t, func() bool { return len(exec.IDs()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, exec.IDs())

	for _, id := range []string{"a", "b", "c"} {
		inst, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusCompleted, inst.Status)
		assert.Equal(t, 1, inst.Attempts, "each instance is claimed once")
	}
}

func TestPool_StopEndsWorkers(t *testing.T) {
	repo := workflowrepo.NewInMemoryRepository()
	pool := NewPool(repo, &completingExecutor{repo: repo}, Config{WorkerCount: 3, PollInterval: 5 * time.Millisecond}, zerolog.Nop())
	pool.Start(context.Background())

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop")
	}
}
