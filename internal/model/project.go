package model

import (
	"github.com/reelcut/api/internal/timeline"
)

// CreateProjectRequest represents the request to create a project
type CreateProjectRequest struct {
	Name   string `json:"name" validate:"omitempty,max=200"`
	FPS    int    `json:"fps" validate:"omitempty,min=1,max=120"`
	Width  int    `json:"width" validate:"omitempty,min=16,max=7680"`
	Height int    `json:"height" validate:"omitempty,min=16,max=4320"`
}

// UpdateProjectRequest patches project-level settings
type UpdateProjectRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=200"`
	CurrentTime *float64 `json:"currentTime" validate:"omitempty,min=0"`
	Zoom        *float64 `json:"zoom" validate:"omitempty,gt=0"`
	Muted       *bool    `json:"muted"`
}

// GeometryInput carries placement fields shared by every element kind
type GeometryInput struct {
	X        *float64       `json:"x"`
	Y        *float64       `json:"y"`
	Width    *float64       `json:"width" validate:"omitempty,min=0"`
	Height   *float64       `json:"height" validate:"omitempty,min=0"`
	Rotation *float64       `json:"rotation"`
	Opacity  *float64       `json:"opacity" validate:"omitempty,min=0,max=100"`
	ZIndex   *int           `json:"zIndex"`
	Crop     *timeline.Crop `json:"crop"`
}

// AddMediaRequest represents the request to add a media element
type AddMediaRequest struct {
	ID             string  `json:"id" validate:"omitempty,max=64"`
	Type           string  `json:"type" validate:"required,oneof=video audio image"`
	Name           string  `json:"name" validate:"omitempty,max=200"`
	Src            string  `json:"src" validate:"required"`
	PositionStart  float64 `json:"positionStart" validate:"min=0"`
	PositionEnd    float64 `json:"positionEnd" validate:"gtfield=PositionStart"`
	StartTime      float64 `json:"startTime" validate:"min=0"`
	EndTime        float64 `json:"endTime" validate:"omitempty,min=0"`
	PlaybackSpeed  float64 `json:"playbackSpeed" validate:"omitempty,gt=0,max=16"`
	SourceDuration float64 `json:"sourceDuration" validate:"omitempty,min=0"`
	Volume         float64 `json:"volume" validate:"omitempty,min=0,max=100"`
	GeometryInput
}

// ToElement converts the request into a timeline media element
func (r *AddMediaRequest) ToElement() timeline.MediaElement {
	m := timeline.MediaElement{
		ID:             r.ID,
		Type:           timeline.Kind(r.Type),
		Name:           r.Name,
		Src:            r.Src,
		PositionStart:  r.PositionStart,
		PositionEnd:    r.PositionEnd,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		PlaybackSpeed:  r.PlaybackSpeed,
		SourceDuration: r.SourceDuration,
		Volume:         r.Volume,
		Geometry:       timeline.Geometry{Opacity: 100},
	}
	r.GeometryInput.Apply(&m.Geometry)
	return m
}

// AddTextRequest represents the request to add a text element
type AddTextRequest struct {
	ID              string  `json:"id" validate:"omitempty,max=64"`
	Text            string  `json:"text" validate:"required,max=2000"`
	PositionStart   float64 `json:"positionStart" validate:"min=0"`
	PositionEnd     float64 `json:"positionEnd" validate:"gtfield=PositionStart"`
	FontSize        int     `json:"fontSize" validate:"omitempty,min=1,max=1000"`
	FontFamily      string  `json:"fontFamily" validate:"omitempty,max=100"`
	FontWeight      string  `json:"fontWeight" validate:"omitempty,max=20"`
	Color           string  `json:"color" validate:"omitempty,max=32"`
	BackgroundColor string  `json:"backgroundColor" validate:"omitempty,max=32"`
	Align           string  `json:"align" validate:"omitempty,oneof=left center right"`
	GeometryInput
}

// ToElement converts the request into a timeline text element
func (r *AddTextRequest) ToElement() timeline.TextElement {
	t := timeline.TextElement{
		ID:              r.ID,
		Text:            r.Text,
		PositionStart:   r.PositionStart,
		PositionEnd:     r.PositionEnd,
		FontSize:        r.FontSize,
		FontFamily:      r.FontFamily,
		FontWeight:      r.FontWeight,
		Color:           r.Color,
		BackgroundColor: r.BackgroundColor,
		Align:           r.Align,
		Geometry:        timeline.Geometry{Opacity: 100},
	}
	r.GeometryInput.Apply(&t.Geometry)
	return t
}

// UpdateMediaRequest patches a media element; nil fields are left alone
type UpdateMediaRequest struct {
	Name           *string  `json:"name" validate:"omitempty,max=200"`
	Src            *string  `json:"src" validate:"omitempty,min=1"`
	PositionStart  *float64 `json:"positionStart" validate:"omitempty,min=0"`
	PositionEnd    *float64 `json:"positionEnd" validate:"omitempty,min=0"`
	StartTime      *float64 `json:"startTime" validate:"omitempty,min=0"`
	EndTime        *float64 `json:"endTime" validate:"omitempty,min=0"`
	PlaybackSpeed  *float64 `json:"playbackSpeed" validate:"omitempty,gt=0,max=16"`
	SourceDuration *float64 `json:"sourceDuration" validate:"omitempty,min=0"`
	Volume         *float64 `json:"volume" validate:"omitempty,min=0,max=100"`
	GeometryInput
}

// Apply copies the set fields onto m
func (r *UpdateMediaRequest) Apply(m *timeline.MediaElement) {
	setString(&m.Name, r.Name)
	setString(&m.Src, r.Src)
	setFloat(&m.PositionStart, r.PositionStart)
	setFloat(&m.PositionEnd, r.PositionEnd)
	setFloat(&m.StartTime, r.StartTime)
	setFloat(&m.EndTime, r.EndTime)
	setFloat(&m.PlaybackSpeed, r.PlaybackSpeed)
	setFloat(&m.SourceDuration, r.SourceDuration)
	setFloat(&m.Volume, r.Volume)
	r.GeometryInput.Apply(&m.Geometry)
}

// UpdateTextRequest patches a text element
type UpdateTextRequest struct {
	Text            *string  `json:"text" validate:"omitempty,min=1,max=2000"`
	PositionStart   *float64 `json:"positionStart" validate:"omitempty,min=0"`
	PositionEnd     *float64 `json:"positionEnd" validate:"omitempty,min=0"`
	FontSize        *int     `json:"fontSize" validate:"omitempty,min=1,max=1000"`
	FontFamily      *string  `json:"fontFamily" validate:"omitempty,max=100"`
	FontWeight      *string  `json:"fontWeight" validate:"omitempty,max=20"`
	Color           *string  `json:"color" validate:"omitempty,max=32"`
	BackgroundColor *string  `json:"backgroundColor" validate:"omitempty,max=32"`
	Align           *string  `json:"align" validate:"omitempty,oneof=left center right"`
	GeometryInput
}

// Apply copies the set fields onto t
func (r *UpdateTextRequest) Apply(t *timeline.TextElement) {
	setString(&t.Text, r.Text)
	setFloat(&t.PositionStart, r.PositionStart)
	setFloat(&t.PositionEnd, r.PositionEnd)
	if r.FontSize != nil {
		t.FontSize = *r.FontSize
	}
	setString(&t.FontFamily, r.FontFamily)
	setString(&t.FontWeight, r.FontWeight)
	setString(&t.Color, r.Color)
	setString(&t.BackgroundColor, r.BackgroundColor)
	setString(&t.Align, r.Align)
	r.GeometryInput.Apply(&t.Geometry)
}

// Apply copies the set fields onto g
func (in *GeometryInput) Apply(g *timeline.Geometry) {
	setFloat(&g.X, in.X)
	setFloat(&g.Y, in.Y)
	setFloat(&g.Width, in.Width)
	setFloat(&g.Height, in.Height)
	setFloat(&g.Rotation, in.Rotation)
	setFloat(&g.Opacity, in.Opacity)
	if in.ZIndex != nil {
		g.ZIndex = *in.ZIndex
	}
	if in.Crop != nil {
		c := *in.Crop
		g.Crop = &c
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// SplitRequest cuts the selected element. Time defaults to the project's
// current time.
type SplitRequest struct {
	timeline.Selection
	Time *float64 `json:"time" validate:"omitempty,min=0"`
}

// DuplicateRequest copies the selected element
type DuplicateRequest struct {
	timeline.Selection
}

// DragRequest moves the selected element to a new left edge in pixels
type DragRequest struct {
	timeline.Selection
	Left float64 `json:"left"`
}

// ResizeRequest moves the selected element's right edge; width in pixels
type ResizeRequest struct {
	timeline.Selection
	Width float64 `json:"width"`
}

// ElementResponse is returned after adding an element
type ElementResponse struct {
	Element interface{}      `json:"element"`
	Project timeline.Project `json:"project"`
}
