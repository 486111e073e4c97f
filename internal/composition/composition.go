// Package composition projects a project's elements into frame-windowed
// render instructions for the play surface and the render backends.
package composition

import (
	"reflect"
	"sort"

	"github.com/reelcut/api/internal/frames"
	"github.com/reelcut/api/internal/timeline"
)

// TextStyle carries the text-specific fields of an instruction.
type TextStyle struct {
	Text            string `json:"text"`
	FontSize        int    `json:"fontSize"`
	FontFamily      string `json:"fontFamily,omitempty"`
	FontWeight      string `json:"fontWeight,omitempty"`
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Align           string `json:"align,omitempty"`
}

// Instruction is one element placed in frame space.
type Instruction struct {
	ElementID string        `json:"elementId"`
	Kind      timeline.Kind `json:"kind"`
	Src       string        `json:"src,omitempty"`

	frames.Window

	// Trim is set for media only.
	Trim         *frames.TrimWindow `json:"trim,omitempty"`
	PlaybackRate float64            `json:"playbackRate,omitempty"`
	Volume       float64            `json:"volume"`

	Geometry timeline.Geometry `json:"geometry"`
	Text     *TextStyle        `json:"textStyle,omitempty"`

	// Order is the insertion order across both collections, media first.
	Order int `json:"order"`
}

// Composition is the complete projection of a project.
type Composition struct {
	ProjectID        string        `json:"projectId"`
	FPS              int           `json:"fps"`
	Width            int           `json:"width"`
	Height           int           `json:"height"`
	DurationInFrames int           `json:"durationInFrames"`
	Muted            bool          `json:"muted"`
	Instructions     []Instruction `json:"instructions"`
}

// Sequence projects p. It reads p only and returns a fresh value every call.
func Sequence(p timeline.Project) Composition {
	fps := p.FPS
	if fps <= 0 {
		fps = timeline.DefaultFPS
	}
	duration := timeline.ComputeDuration(p.Media, p.Texts)

	c := Composition{
		ProjectID:        p.ID,
		FPS:              fps,
		Width:            p.Width,
		Height:           p.Height,
		DurationInFrames: max(1, frames.ToFrames(duration, fps)),
		Muted:            p.Muted,
		Instructions:     make([]Instruction, 0, p.ElementCount()),
	}

	order := 0
	for _, m := range p.Media {
		trim := frames.Trim(m.StartTime, m.EndTime, fps, m.Speed())
		c.Instructions = append(c.Instructions, Instruction{
			ElementID:    m.ID,
			Kind:         m.Type,
			Src:          m.Src,
			Window:       frames.WindowToFrames(m.PositionStart, m.PositionEnd, fps),
			Trim:         &trim,
			PlaybackRate: m.Speed(),
			Volume:       mediaVolume(m),
			Geometry:     cloneGeometry(m.Geometry),
			Order:        order,
		})
		order++
	}
	for _, t := range p.Texts {
		c.Instructions = append(c.Instructions, Instruction{
			ElementID: t.ID,
			Kind:      timeline.KindText,
			Window:    frames.WindowToFrames(t.PositionStart, t.PositionEnd, fps),
			Geometry:  cloneGeometry(t.Geometry),
			Text: &TextStyle{
				Text:            t.Text,
				FontSize:        t.FontSize,
				FontFamily:      t.FontFamily,
				FontWeight:      t.FontWeight,
				Color:           t.Color,
				BackgroundColor: t.BackgroundColor,
				Align:           t.Align,
			},
			Order: order,
		})
		order++
	}
	return c
}

func mediaVolume(m timeline.MediaElement) float64 {
	if !m.HasAudio() {
		return 0
	}
	return m.Volume
}

func cloneGeometry(g timeline.Geometry) timeline.Geometry {
	if g.Crop != nil {
		crop := *g.Crop
		g.Crop = &crop
	}
	return g
}

// Stacked returns the instructions bottom to top: ascending zIndex, ties
// broken by insertion order.
func (c Composition) Stacked() []Instruction {
	out := append([]Instruction(nil), c.Instructions...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Geometry.ZIndex != out[j].Geometry.ZIndex {
			return out[i].Geometry.ZIndex < out[j].Geometry.ZIndex
		}
		return out[i].Order < out[j].Order
	})
	return out
}

// ActiveAt returns the stacked instructions visible or audible at frame.
func (c Composition) ActiveAt(frame int) []Instruction {
	var out []Instruction
	for _, in := range c.Stacked() {
		if frame >= in.From && frame < in.From+in.DurationInFrames {
			out = append(out, in)
		}
	}
	return out
}

// Equal reports whether two compositions match field by field.
func Equal(a, b Composition) bool {
	return reflect.DeepEqual(a, b)
}

// Changed returns the ids of instructions in next that are new or differ
// from prev, ignoring insertion order. Consumers use it to avoid restarting
// unchanged media.
func Changed(prev, next Composition) []string {
	old := make(map[string]Instruction, len(prev.Instructions))
	for _, in := range prev.Instructions {
		in.Order = 0
		old[in.ElementID] = in
	}
	var ids []string
	for _, in := range next.Instructions {
		in.Order = 0
		if o, ok := old[in.ElementID]; !ok || !reflect.DeepEqual(o, in) {
			ids = append(ids, in.ElementID)
		}
	}
	return ids
}
