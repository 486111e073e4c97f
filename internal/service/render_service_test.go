package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelcut/api/internal/model"
	"github.com/reelcut/api/internal/render"
)

// testRenderService talks to a local redis on DB 15 and skips when none runs.
func testRenderService(t *testing.T) *RenderService {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: redis not reachable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewRenderService(client, nil, nil, nil, RenderServiceOptions{Backend: "local"})
}

func queuedJob(t *testing.T, s *RenderService) *model.Job {
	t.Helper()
	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      model.JobTypeRender,
		ProjectID: uuid.New().String(),
		Status:    model.JobStatusQueued,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.saveJob(context.Background(), job))
	t.Cleanup(func() { s.redis.Del(context.Background(), jobKey(job.ID)) })
	return job
}

func TestRenderService_CompleteAfterCancelKeepsCancel(t *testing.T) {
	s := testRenderService(t)
	ctx := context.Background()
	job := queuedJob(t, s)

	require.NoError(t, s.MarkCanceled(ctx, job.ID))
	err := s.CompleteJob(ctx, job.ID, map[string]string{"outputUrl": "file:///tmp/out.mp4"})
	assert.ErrorIs(t, err, ErrJobCompleted)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, got.Status)
	assert.Empty(t, got.Result)
}

func TestRenderService_FailedResultCarriesMessage(t *testing.T) {
	s := testRenderService(t)
	ctx := context.Background()
	job := queuedJob(t, s)

	require.NoError(t, s.FailJob(ctx, job.ID, render.KindFatalRender, "render timed out"))
	_, err := s.GetResult(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "render timed out")
}
