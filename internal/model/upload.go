package model

import "time"

// UploadMediaResponse represents the response for a media upload
type UploadMediaResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Type        string    `json:"type"`
	FileURL     string    `json:"fileUrl"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}
