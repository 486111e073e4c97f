package e2e

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/reelcut/api/internal/model"
	"github.com/reelcut/api/internal/render"
)

// stubBackend renders instantly, reporting one progress step.
type stubBackend struct{}

func (stubBackend) Name() string { return "stub" }

func (stubBackend) Render(ctx context.Context, job render.Job, update render.UpdateFunc) (*render.Result, error) {
	update(render.JobState{Step: "rendering", Progress: 0.5})
	return &render.Result{
		Backend:          "stub",
		OutputURL:        "https://cdn.example.com/renders/" + job.ID + ".mp4",
		Codec:            job.Profile.Codec,
		Width:            job.Profile.Width,
		Height:           job.Profile.Height,
		FPS:              job.Composition.FPS,
		DurationInFrames: job.Composition.DurationInFrames,
	}, nil
}

// fatalBackend fails every render with a non-retryable error.
type fatalBackend struct{}

func (fatalBackend) Name() string { return "stub" }

func (fatalBackend) Render(ctx context.Context, job render.Job, update render.UpdateFunc) (*render.Result, error) {
	return nil, &render.Error{Kind: render.KindFatalRender, Op: "render", Messages: []string{"out of memory"}, Err: errors.New("fatal")}
}

// waitTerminal polls the status endpoint until the job settles.
func waitTerminal(t *testing.T, ta *testApp, jobID string) model.RenderStatusResponse {
	t.Helper()
	var status model.RenderStatusResponse
	deadline := time.Now().Add(15 * time.Second)
	for {
		resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/render/status/"+jobID, "")
		assertStatus(t, resp, http.StatusOK)
		decodeJSON(t, resp, &status)
		if status.Status.Terminal() {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, last status %s (%d%%)", status.Status, status.Progress)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func TestRenderWorker_EndToEnd(t *testing.T) {
	ta := setupWorkerApp(t, stubBackend{})
	projectID, jobID := startRender(t, ta)

	status := waitTerminal(t, ta, jobID)
	if status.Status != model.JobStatusSucceeded || status.Progress != 100 {
		t.Fatalf("expected succeeded at 100%%, got %s at %d%% (error %v)", status.Status, status.Progress, status.Error)
	}

	resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/render/result/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)
	var result model.RenderResultResponse
	decodeJSON(t, resp, &result)
	if result.ProjectID != projectID || result.OutputURL != "https://cdn.example.com/renders/"+jobID+".mp4" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Width != 1280 || result.Height != 720 || result.DurationInFrames != 60 {
		t.Errorf("expected 720p, 60 frames, got %dx%d, %d frames", result.Width, result.Height, result.DurationInFrames)
	}

	// The project is free for another render
	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/start", renderStartBody(projectID))
	assertStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()
}

func TestRenderWorker_FatalFailure(t *testing.T) {
	ta := setupWorkerApp(t, fatalBackend{})
	projectID, jobID := startRender(t, ta)

	status := waitTerminal(t, ta, jobID)
	if status.Status != model.JobStatusFailed || status.ErrorKind != string(render.KindFatalRender) {
		t.Fatalf("expected failed fatal_render, got %s %q", status.Status, status.ErrorKind)
	}
	if status.Error == nil || *status.Error != "render: out of memory" {
		t.Errorf("unexpected error message %v", status.Error)
	}

	resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/render/result/"+jobID, "")
	assertStatus(t, resp, http.StatusUnprocessableEntity)
	if code := errorCode(t, resp); code != "RENDER_FAILED" {
		t.Errorf("expected RENDER_FAILED, got %s", code)
	}

	// A failed render leaves the project untouched and free
	resp = mustAuthRequest(t, ta.app, http.MethodGet, "/api/projects/"+projectID, "")
	assertStatus(t, resp, http.StatusOK)
	if p := parseJSON(t, resp); p["duration"] != float64(2) {
		t.Errorf("expected project duration 2, got %v", p["duration"])
	}
	resp = mustAuthRequest(t, ta.app, http.MethodGet, "/api/render/active/"+projectID, "")
	assertStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
