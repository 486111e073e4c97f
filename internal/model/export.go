package model

import "time"

// ExportEDLQuery holds the query parameters of an EDL export
type ExportEDLQuery struct {
	FrameRate float64 `query:"frameRate" validate:"omitempty,gt=0,max=120"`
}

// ExportSnapshotResponse represents a stored project snapshot
type ExportSnapshotResponse struct {
	ProjectID string    `json:"projectId"`
	Version   int       `json:"version"`
	FileURL   string    `json:"fileUrl"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expiresAt"`
}
