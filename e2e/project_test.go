package e2e

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/reelcut/api/internal/composition"
	"github.com/reelcut/api/internal/timeline"
)

func TestProjectCreate_Success(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/projects", `{"name": "trailer", "fps": 24}`)
	assertStatus(t, resp, http.StatusCreated)

	var p timeline.Project
	decodeJSON(t, resp, &p)
	if p.ID == "" {
		t.Error("expected project id")
	}
	if p.FPS != 24 || p.Width != timeline.DefaultWidth || p.Zoom != timeline.DefaultZoom {
		t.Errorf("unexpected defaults: fps=%d width=%d zoom=%v", p.FPS, p.Width, p.Zoom)
	}
}

func TestProjectCreate_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/projects", `{}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestProjectCreate_InvalidBody(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/projects", `{"fps": 500}`)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestProjectGet_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/projects/"+uuid.New().String(), "")
	assertStatus(t, resp, http.StatusNotFound)
	if code := errorCode(t, resp); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestProject_PersistsAcrossServices(t *testing.T) {
	ta := setupApp(t)
	projectID := createProject(t, ta.app)
	addVideo(t, ta.app, projectID, 0, 4)

	// A second app shares only redis with the first
	other := reopenApp(t)
	resp := mustAuthRequest(t, other.app, http.MethodGet, "/api/projects/"+projectID, "")
	assertStatus(t, resp, http.StatusOK)

	var p timeline.Project
	decodeJSON(t, resp, &p)
	if len(p.Media) != 1 || p.Duration != 4 {
		t.Errorf("expected one 4s clip after reload, got %d media, duration %v", len(p.Media), p.Duration)
	}
}

func TestProjectEdits_SplitDuplicateDragResize(t *testing.T) {
	ta := setupApp(t)
	projectID := createProject(t, ta.app)
	base := "/api/projects/" + projectID

	addVideo(t, ta.app, projectID, 0, 4)

	// Split at the playhead
	resp := mustAuthRequest(t, ta.app, http.MethodPatch, base, `{"currentTime": 1.5}`)
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = mustAuthRequest(t, ta.app, http.MethodPost, base+"/split", `{"kind": "media", "index": 0}`)
	assertStatus(t, resp, http.StatusOK)
	var p timeline.Project
	decodeJSON(t, resp, &p)
	if len(p.Media) != 2 {
		t.Fatalf("expected 2 media after split, got %d", len(p.Media))
	}
	if p.Media[0].PositionEnd != 1.5 || p.Media[1].PositionStart != 1.5 || p.Media[1].StartTime != 1.5 {
		t.Errorf("unexpected split halves: %+v", p.Media)
	}

	resp = mustAuthRequest(t, ta.app, http.MethodPost, base+"/duplicate", `{"kind": "media", "index": 1}`)
	assertStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &p)
	if len(p.Media) != 3 || p.Media[2].ID == p.Media[1].ID {
		t.Fatalf("expected a fresh copy after index 1, got %+v", p.Media)
	}

	// zoom 100 px/s: 600px is 6s
	resp = mustAuthRequest(t, ta.app, http.MethodPost, base+"/drag", `{"kind": "media", "index": 2, "left": 600}`)
	assertStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &p)
	if p.Media[2].PositionStart != 6 || p.Media[2].PositionEnd != 8.5 || p.Duration != 8.5 {
		t.Errorf("unexpected drag result: %+v duration %v", p.Media[2], p.Duration)
	}

	resp = mustAuthRequest(t, ta.app, http.MethodPost, base+"/resize", `{"kind": "media", "index": 2, "width": 100}`)
	assertStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &p)
	if p.Media[2].PositionEnd != 7 || p.Duration != 7 {
		t.Errorf("unexpected resize result: %+v duration %v", p.Media[2], p.Duration)
	}

	resp = mustAuthRequest(t, ta.app, http.MethodGet, base+"/composition", "")
	assertStatus(t, resp, http.StatusOK)
	var comp composition.Composition
	decodeJSON(t, resp, &comp)
	if comp.DurationInFrames != 210 || len(comp.Instructions) != 3 {
		t.Errorf("expected 210 frames and 3 instructions, got %d and %d", comp.DurationInFrames, len(comp.Instructions))
	}
}

func TestProjectEdits_Rejected(t *testing.T) {
	ta := setupApp(t)
	projectID := createProject(t, ta.app)
	base := "/api/projects/" + projectID
	addVideo(t, ta.app, projectID, 0, 4)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, base+"/split", `{"kind": "text", "index": 0}`)
	assertStatus(t, resp, http.StatusUnprocessableEntity)
	if code := errorCode(t, resp); code != timeline.CodeNoSelection {
		t.Errorf("expected %s, got %s", timeline.CodeNoSelection, code)
	}

	resp = mustAuthRequest(t, ta.app, http.MethodPost, base+"/split", `{"kind": "media", "index": 0, "time": 9}`)
	assertStatus(t, resp, http.StatusUnprocessableEntity)
	if code := errorCode(t, resp); code != timeline.CodeSplitOutOfRange {
		t.Errorf("expected %s, got %s", timeline.CodeSplitOutOfRange, code)
	}

	// Struct validation happens before the edit
	resp = mustAuthRequest(t, ta.app, http.MethodPost, base+"/drag", `{"kind": "layer", "index": 0}`)
	assertStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = mustAuthRequest(t, ta.app, http.MethodGet, base, "")
	var p timeline.Project
	decodeJSON(t, resp, &p)
	if len(p.Media) != 1 || p.Media[0].PositionEnd != 4 {
		t.Errorf("rejected edits must leave the project unchanged, got %+v", p.Media)
	}
}

func TestProjectElements_AddUpdateDelete(t *testing.T) {
	ta := setupApp(t)
	projectID := createProject(t, ta.app)
	base := "/api/projects/" + projectID

	resp := mustAuthRequest(t, ta.app, http.MethodPost, base+"/texts", `{
		"text": "Title",
		"positionStart": 0,
		"positionEnd": 2,
		"fontSize": 48
	}`)
	assertStatus(t, resp, http.StatusCreated)
	var added struct {
		Element timeline.TextElement `json:"element"`
		Project timeline.Project     `json:"project"`
	}
	decodeJSON(t, resp, &added)
	if added.Element.ID == "" || added.Project.Duration != 2 {
		t.Fatalf("unexpected add result: %+v", added)
	}
	if added.Element.Opacity != 100 {
		t.Errorf("expected default opacity 100, got %v", added.Element.Opacity)
	}

	resp = mustAuthRequest(t, ta.app, http.MethodPatch, base+"/texts/"+added.Element.ID, `{"text": "Renamed", "positionEnd": 3}`)
	assertStatus(t, resp, http.StatusOK)
	var p timeline.Project
	decodeJSON(t, resp, &p)
	if p.Texts[0].Text != "Renamed" || p.Duration != 3 {
		t.Errorf("unexpected update result: %+v", p.Texts[0])
	}

	resp = mustAuthRequest(t, ta.app, http.MethodPatch, base+"/texts/missing", `{"text": "x"}`)
	assertStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	// Unknown ids are ignored
	resp = mustAuthRequest(t, ta.app, http.MethodDelete, base+"/elements/missing", "")
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = mustAuthRequest(t, ta.app, http.MethodDelete, base+"/elements/"+added.Element.ID, "")
	assertStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &p)
	if len(p.Texts) != 0 || p.Duration != 0 {
		t.Errorf("expected empty project after delete, got %+v", p)
	}
}

func TestProjectMedia_InvalidBody(t *testing.T) {
	ta := setupApp(t)
	projectID := createProject(t, ta.app)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/projects/"+projectID+"/media", `{
		"type": "video",
		"src": "a.mp4",
		"positionStart": 3,
		"positionEnd": 1
	}`)
	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestProjectImport(t *testing.T) {
	ta := setupApp(t)
	projectID := createProject(t, ta.app)
	addVideo(t, ta.app, projectID, 0, 2)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/projects/"+projectID+"/export/snapshot", "")
	assertStatus(t, resp, http.StatusOK)
	snapshot := readBody(t, resp)

	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/projects/import", snapshot)
	assertStatus(t, resp, http.StatusCreated)
	var p timeline.Project
	decodeJSON(t, resp, &p)
	if p.ID == "" || p.ID == projectID {
		t.Errorf("expected a fresh project id, got %q", p.ID)
	}
	if len(p.Media) != 1 || p.Duration != 2 {
		t.Errorf("expected imported clip, got %+v", p.Media)
	}

	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/projects/import", `{"version": 99, "project": {}}`)
	assertStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()
}
