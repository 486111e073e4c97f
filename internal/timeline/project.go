// Package timeline holds the project timing state and the edit operations
// that mutate it.
package timeline

import (
	"time"
)

const (
	DefaultFPS    = 30
	DefaultWidth  = 1920
	DefaultHeight = 1080
	DefaultZoom   = 100 // pixels per timeline second
)

// Project is the timing state of one editor session. Media and Texts are in
// display order, not time order.
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	FPS    int    `json:"fps"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	Media []MediaElement `json:"media"`
	Texts []TextElement  `json:"texts"`

	// Duration is derived: max(PositionEnd) over both collections.
	Duration float64 `json:"duration"`

	CurrentTime float64   `json:"currentTime"`
	Zoom        float64   `json:"zoom"`
	Muted       bool      `json:"muted"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewProject returns an empty project with defaults applied.
func NewProject(id, name string, fps, width, height int) Project {
	p := Project{
		ID:     id,
		Name:   name,
		FPS:    fps,
		Width:  width,
		Height: height,
		Media:  []MediaElement{},
		Texts:  []TextElement{},
		Zoom:   DefaultZoom,
	}
	p.applyDefaults()
	return p
}

func (p *Project) applyDefaults() {
	if p.FPS <= 0 {
		p.FPS = DefaultFPS
	}
	if p.Width <= 0 {
		p.Width = DefaultWidth
	}
	if p.Height <= 0 {
		p.Height = DefaultHeight
	}
	if p.Zoom <= 0 {
		p.Zoom = DefaultZoom
	}
	if p.Media == nil {
		p.Media = []MediaElement{}
	}
	if p.Texts == nil {
		p.Texts = []TextElement{}
	}
}

// ComputeDuration returns max(PositionEnd) across both collections, or 0.
func ComputeDuration(media []MediaElement, texts []TextElement) float64 {
	var d float64
	for _, m := range media {
		if m.PositionEnd > d {
			d = m.PositionEnd
		}
	}
	for _, t := range texts {
		if t.PositionEnd > d {
			d = t.PositionEnd
		}
	}
	return d
}

// Recompute refreshes derived fields.
func (p *Project) Recompute() {
	p.applyDefaults()
	p.Duration = ComputeDuration(p.Media, p.Texts)
}

// Clone returns a deep copy safe to hand to readers.
func (p Project) Clone() Project {
	cp := p
	cp.Media = make([]MediaElement, len(p.Media))
	for i, m := range p.Media {
		cp.Media[i] = m.clone()
	}
	cp.Texts = make([]TextElement, len(p.Texts))
	for i, t := range p.Texts {
		cp.Texts[i] = t.clone()
	}
	return cp
}

// FindMedia returns the index of the media element with id, or -1.
func (p Project) FindMedia(id string) int {
	for i, m := range p.Media {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// FindText returns the index of the text element with id, or -1.
func (p Project) FindText(id string) int {
	for i, t := range p.Texts {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ElementCount is the number of elements across both collections.
func (p Project) ElementCount() int {
	return len(p.Media) + len(p.Texts)
}
