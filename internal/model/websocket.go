package model

import "github.com/reelcut/api/internal/timeline"

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"

	// Editor session, client to server
	WSMessageTypePlay   = "play"
	WSMessageTypePause  = "pause"
	WSMessageTypePlayed = "played"
	WSMessageTypePaused = "paused"
	WSMessageTypeFrame  = "frame"
	WSMessageTypeScrub  = "scrub"
	WSMessageTypeMute   = "mute"
	WSMessageTypeDrag   = "drag"
	WSMessageTypeResize = "resize"

	// Editor session, server to client
	WSMessageTypeSeek    = "seek"
	WSMessageTypeCursor  = "cursor"
	WSMessageTypeProject = "project"
	WSMessageTypeNotice  = "notice"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a progress update
type WSProgressMessage struct {
	Type        string    `json:"type"`
	JobID       string    `json:"jobId"`
	Progress    int       `json:"progress"`
	Status      JobStatus `json:"status"`
	CurrentStep string    `json:"currentStep,omitempty"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSSessionCommand is any client message on an editor session. Only the
// fields relevant to Type are read.
type WSSessionCommand struct {
	Type  string              `json:"type"`
	Frame float64             `json:"frame"`
	Muted bool                `json:"muted"`
	Kind  timeline.Collection `json:"kind"`
	Index int                 `json:"index"`
	Left  float64             `json:"left"`
	Width float64             `json:"width"`
}

// WSFrameMessage carries a frame number (seek)
type WSFrameMessage struct {
	Type  string `json:"type"`
	Frame int    `json:"frame"`
}

// WSMuteMessage mirrors the mute flag to the surface
type WSMuteMessage struct {
	Type  string `json:"type"`
	Muted bool   `json:"muted"`
}

// WSCursorMessage moves the timeline cursor
type WSCursorMessage struct {
	Type    string  `json:"type"`
	Seconds float64 `json:"seconds"`
}

// WSProjectMessage carries the committed project state. Changed lists the
// element ids whose render instructions differ from the previous message.
type WSProjectMessage struct {
	Type    string           `json:"type"`
	Project timeline.Project `json:"project"`
	Changed []string         `json:"changed,omitempty"`
}

// WSNoticeMessage reports a rejected session command
type WSNoticeMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
