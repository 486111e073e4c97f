package e2e

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func renderStartBody(projectID string) string {
	return fmt.Sprintf(`{
		"projectId": "%s",
		"settings": {"resolution": "720p", "quality": "medium", "speed": "fast"}
	}`, projectID)
}

// startRender queues a render for a fresh one-clip project and returns the job id.
func startRender(t *testing.T, ta *testApp) (projectID, jobID string) {
	t.Helper()
	projectID = createProject(t, ta.app)
	addVideo(t, ta.app, projectID, 0, 2)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/start", renderStartBody(projectID))
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	jobID, _ = result["jobId"].(string)
	if jobID == "" {
		t.Fatalf("expected 'jobId' in response, got %v", result)
	}
	return projectID, jobID
}

func TestRenderStart_Success(t *testing.T) {
	ta := setupApp(t)
	projectID := createProject(t, ta.app)
	addVideo(t, ta.app, projectID, 0, 2)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/start", renderStartBody(projectID))
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
	if loc := resp.Header.Get("Location"); loc != "/api/render/status/"+fmt.Sprint(result["jobId"]) {
		t.Errorf("unexpected Location header %q", loc)
	}
	if result["projectId"] != projectID {
		t.Errorf("expected projectId %s, got %v", projectID, result["projectId"])
	}
	// 2s of timeline plus fixed setup
	if result["estimatedDuration"] != float64(12) {
		t.Errorf("expected estimatedDuration 12, got %v", result["estimatedDuration"])
	}
}

func TestRenderStart_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/render/start", renderStartBody(uuid.New().String()), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestRenderStart_InvalidBody(t *testing.T) {
	ta := setupApp(t)

	// Missing projectId, unknown resolution
	body := `{"settings": {"resolution": "8k"}}`

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/start", body)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestRenderStart_EmptyProject(t *testing.T) {
	ta := setupApp(t)
	projectID := createProject(t, ta.app)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/start", renderStartBody(projectID))
	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestRenderStart_UnknownProject(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/start", renderStartBody(uuid.New().String()))
	assertStatus(t, resp, http.StatusNotFound)
}

func TestRenderStart_OnePerProject(t *testing.T) {
	ta := setupApp(t)
	projectID, jobID := startRender(t, ta)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/start", renderStartBody(projectID))
	assertStatus(t, resp, http.StatusConflict)
	if code := errorCode(t, resp); code != "CONFLICT" {
		t.Errorf("expected CONFLICT, got %s", code)
	}

	// Canceling frees the project
	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/cancel/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/start", renderStartBody(projectID))
	assertStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()
}

func TestRenderStatus_Success(t *testing.T) {
	ta := setupApp(t)
	_, jobID := startRender(t, ta)

	resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/render/status/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)

	statusResult := parseJSON(t, resp)
	if statusResult["jobId"] != jobID {
		t.Errorf("expected jobId %s, got %v", jobID, statusResult["jobId"])
	}
	if statusResult["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", statusResult["status"])
	}
}

func TestRenderStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/render/status/"+uuid.New().String(), "")
	assertStatus(t, resp, http.StatusNotFound)
	if code := errorCode(t, resp); code != "NOT_FOUND" {
		t.Errorf("expected error code NOT_FOUND, got %s", code)
	}
}

func TestRenderResult_NotCompleted(t *testing.T) {
	ta := setupApp(t)
	_, jobID := startRender(t, ta)

	resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/render/result/"+jobID, "")
	assertStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestRenderCancel_Success(t *testing.T) {
	ta := setupApp(t)
	_, jobID := startRender(t, ta)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/cancel/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)

	cancelResult := parseJSON(t, resp)
	if cancelResult["success"] != true {
		t.Errorf("expected success true, got %v", cancelResult["success"])
	}
	if cancelResult["status"] != "canceled" {
		t.Errorf("expected status 'canceled', got %v", cancelResult["status"])
	}

	// A second cancel finds a terminal job
	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/cancel/"+jobID, "")
	assertStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestRenderActive(t *testing.T) {
	ta := setupApp(t)
	projectID, jobID := startRender(t, ta)

	resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/render/active/"+projectID, "")
	assertStatus(t, resp, http.StatusOK)
	if result := parseJSON(t, resp); result["jobId"] != jobID {
		t.Errorf("expected active job %s, got %v", jobID, result["jobId"])
	}

	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/render/cancel/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = mustAuthRequest(t, ta.app, http.MethodGet, "/api/render/active/"+projectID, "")
	assertStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
