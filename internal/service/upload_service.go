package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/google/uuid"

	"github.com/reelcut/api/internal/client"
	"github.com/reelcut/api/internal/model"
)

// MediaTypes maps accepted upload content types to element kinds
var MediaTypes = map[string]string{
	"video/mp4":       "video",
	"video/webm":      "video",
	"video/quicktime": "video",
	"audio/mpeg":      "audio",
	"audio/mp3":       "audio",
	"audio/wav":       "audio",
	"audio/x-wav":     "audio",
	"audio/aac":       "audio",
	"audio/mp4":       "audio",
	"audio/ogg":       "audio",
	"image/png":       "image",
	"image/jpeg":      "image",
	"image/webp":      "image",
	"image/gif":       "image",
}

// UploadService handles media uploads to R2 storage
type UploadService struct {
	r2Client client.StorageClient
}

// NewUploadService creates a new upload service with R2 client
func NewUploadService(r2Client client.StorageClient) *UploadService {
	return &UploadService{
		r2Client: r2Client,
	}
}

// UploadMedia stores a source asset under the project's prefix
func (s *UploadService) UploadMedia(ctx context.Context, projectID, contentType string, file io.Reader, fileSize int64) (*model.UploadMediaResponse, error) {
	kind, ok := MediaTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
	if !client.Configured(s.r2Client) {
		return nil, ErrStorageNotConfigured
	}

	mediaID := uuid.New().String()
	key := client.ProjectKey(projectID, "media", mediaID+extensionFor(contentType))

	fileURL, err := s.r2Client.Upload(ctx, key, file, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload media: %w", err)
	}

	return &model.UploadMediaResponse{
		ID:          mediaID,
		ProjectID:   projectID,
		Type:        kind,
		FileURL:     fileURL,
		ContentType: contentType,
		Size:        fileSize,
		CreatedAt:   time.Now(),
	}, nil
}

// DeleteMedia removes a stored asset by its key under the project prefix
func (s *UploadService) DeleteMedia(ctx context.Context, projectID, fileName string) error {
	if !client.Configured(s.r2Client) {
		return ErrStorageNotConfigured
	}
	return s.r2Client.Delete(ctx, client.ProjectKey(projectID, "media", fileName))
}

func extensionFor(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
