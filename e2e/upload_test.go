package e2e

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
)

// createMultipartMediaRequest builds a multipart/form-data request with a fake media file.
// An empty projectID or contentType leaves that part out.
func createMultipartMediaRequest(t *testing.T, token, projectID, contentType string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if projectID != "" {
		_ = writer.WriteField("projectId", projectID)
	}

	if contentType != "" {
		partHeader := make(textproto.MIMEHeader)
		partHeader.Set("Content-Disposition", `form-data; name="file"; filename="clip.bin"`)
		partHeader.Set("Content-Type", contentType)
		part, err := writer.CreatePart(partHeader)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		_, _ = part.Write(make([]byte, 1024))
	}

	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/upload/media", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

func TestUploadMedia_StorageNotConfigured(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartMediaRequest(t, generateToken(t), uuid.New().String(), "video/mp4")
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusServiceUnavailable)
	if code := errorCode(t, resp); code != "SERVICE_UNAVAILABLE" {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %s", code)
	}
}

func TestUploadMedia_UnsupportedType(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartMediaRequest(t, generateToken(t), uuid.New().String(), "application/pdf")
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	result := parseJSON(t, resp)
	errObj, _ := result["error"].(map[string]interface{})
	details, _ := errObj["details"].(map[string]interface{})
	if details["contentType"] != "application/pdf" {
		t.Errorf("expected rejected content type in details, got %v", details)
	}
}

func TestUploadMedia_TypeParametersIgnored(t *testing.T) {
	ta := setupApp(t)

	// Accepted after stripping parameters, then fails on missing storage
	req := createMultipartMediaRequest(t, generateToken(t), uuid.New().String(), `Video/WebM; codecs="vp9"`)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusServiceUnavailable)
	resp.Body.Close()
}

func TestUploadMedia_MissingProjectID(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartMediaRequest(t, generateToken(t), "", "video/mp4")
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestUploadMedia_MissingFile(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartMediaRequest(t, generateToken(t), uuid.New().String(), "")
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestUploadMedia_NoAuth(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartMediaRequest(t, "", uuid.New().String(), "video/mp4")
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestDeleteMedia_InvalidName(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodDelete, "/api/upload/media/"+uuid.New().String()+"/clip..mp4", "")
	assertStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestDeleteMedia_StorageNotConfigured(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodDelete, "/api/upload/media/"+uuid.New().String()+"/clip.mp4", "")
	assertStatus(t, resp, http.StatusServiceUnavailable)
	resp.Body.Close()
}
