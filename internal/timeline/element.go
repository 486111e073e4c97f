package timeline

// Kind tags an element for rendering strategy selection.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// Collection identifies which ordered collection an element lives in.
type Collection string

const (
	CollectionMedia Collection = "media"
	CollectionText  Collection = "text"
)

// Crop is a sub-region of the source asset in asset pixels.
type Crop struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Geometry is the placement shared by every element kind.
type Geometry struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	Opacity  float64 `json:"opacity"` // 0-100
	ZIndex   int     `json:"zIndex"`
	Crop     *Crop   `json:"crop,omitempty"` // nil means the full asset
}

// MediaElement is a video, audio or image clip placed on the timeline.
type MediaElement struct {
	ID   string `json:"id"`
	Type Kind   `json:"type"`
	Name string `json:"name,omitempty"`
	Src  string `json:"src"`

	// Timeline-space interval, seconds.
	PositionStart float64 `json:"positionStart"`
	PositionEnd   float64 `json:"positionEnd"`

	// Source-space trim window, seconds.
	StartTime     float64 `json:"startTime"`
	EndTime       float64 `json:"endTime"`
	PlaybackSpeed float64 `json:"playbackSpeed"`

	// SourceDuration is the native asset length; 0 when unknown.
	SourceDuration float64 `json:"sourceDuration,omitempty"`

	Volume float64 `json:"volume"` // 0-100

	Geometry
}

// TextElement is an overlay text placed on the timeline.
type TextElement struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	PositionStart float64 `json:"positionStart"`
	PositionEnd   float64 `json:"positionEnd"`

	FontSize        int    `json:"fontSize"`
	FontFamily      string `json:"fontFamily,omitempty"`
	FontWeight      string `json:"fontWeight,omitempty"`
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Align           string `json:"align,omitempty"`

	Geometry
}

// Speed returns the playback multiplier, treating unset values as 1x.
func (m MediaElement) Speed() float64 {
	if m.PlaybackSpeed <= 0 {
		return 1
	}
	return m.PlaybackSpeed
}

// Duration is the element's timeline-space length.
func (m MediaElement) Duration() float64 {
	return m.PositionEnd - m.PositionStart
}

// Duration is the element's timeline-space length.
func (t TextElement) Duration() float64 {
	return t.PositionEnd - t.PositionStart
}

// HasAudio reports whether the element contributes an audio track.
func (m MediaElement) HasAudio() bool {
	return m.Type == KindVideo || m.Type == KindAudio
}

func cloneCrop(c *Crop) *Crop {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (m MediaElement) clone() MediaElement {
	m.Crop = cloneCrop(m.Crop)
	return m
}

func (t TextElement) clone() TextElement {
	t.Crop = cloneCrop(t.Crop)
	return t
}
