package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/reelcut/api/internal/client"
	"github.com/reelcut/api/internal/export"
	"github.com/reelcut/api/internal/model"
)

const snapshotURLExpiry = 24 * time.Hour

// ErrStorageNotConfigured is returned by exports that need object storage
var ErrStorageNotConfigured = fmt.Errorf("object storage not configured")

// ExportService produces interchange files from project state
type ExportService struct {
	projects *ProjectService
	r2Client client.StorageClient
	now      func() time.Time
}

// NewExportService creates a new export service
func NewExportService(projects *ProjectService, r2Client client.StorageClient) *ExportService {
	return &ExportService{
		projects: projects,
		r2Client: r2Client,
		now:      time.Now,
	}
}

// EDL renders a CMX3600 edit decision list of the project
func (s *ExportService) EDL(ctx context.Context, projectID string, q *model.ExportEDLQuery) (string, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return "", err
	}
	return export.GenerateEDL(p, q.FrameRate), nil
}

// Snapshot stores a replayable JSON snapshot of the project and returns a
// time-limited link to it.
func (s *ExportService) Snapshot(ctx context.Context, projectID string) (*model.ExportSnapshotResponse, []byte, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	data, err := export.NewSnapshot(p, now).Marshal()
	if err != nil {
		return nil, nil, err
	}

	resp := &model.ExportSnapshotResponse{
		ProjectID: projectID,
		Version:   export.SnapshotVersion,
		Size:      int64(len(data)),
	}
	if !client.Configured(s.r2Client) {
		return resp, data, nil
	}

	key := client.ProjectKey(projectID, "snapshots", fmt.Sprintf("%d.json", now.Unix()))
	if _, err := s.r2Client.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return nil, nil, fmt.Errorf("failed to upload snapshot: %w", err)
	}
	url, err := s.r2Client.GetSignedURL(ctx, key, snapshotURLExpiry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign snapshot url: %w", err)
	}
	resp.FileURL = url
	resp.ExpiresAt = now.Add(snapshotURLExpiry)
	return resp, nil, nil
}
