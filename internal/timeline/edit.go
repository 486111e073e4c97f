package timeline

import (
	"math"

	"github.com/google/uuid"

	"github.com/reelcut/api/internal/frames"
)

// Selection addresses one element by collection and index.
type Selection struct {
	Kind  Collection `json:"kind" validate:"required,oneof=media text"`
	Index int        `json:"index" validate:"min=0"`
}

// IDFunc produces fresh element ids.
type IDFunc func() string

// NewID is the default IDFunc.
func NewID() string {
	return uuid.NewString()
}

// Select resolves an element id to a Selection.
func (p Project) Select(id string) (Selection, error) {
	if i := p.FindMedia(id); i >= 0 {
		return Selection{Kind: CollectionMedia, Index: i}, nil
	}
	if i := p.FindText(id); i >= 0 {
		return Selection{Kind: CollectionText, Index: i}, nil
	}
	return Selection{}, validationf(CodeNoSelection, "element %q not found", id)
}

func (p Project) checkSelection(sel Selection) error {
	switch sel.Kind {
	case CollectionMedia:
		if sel.Index >= 0 && sel.Index < len(p.Media) {
			return nil
		}
	case CollectionText:
		if sel.Index >= 0 && sel.Index < len(p.Texts) {
			return nil
		}
	}
	return validationf(CodeNoSelection, "no %s element at index %d", sel.Kind, sel.Index)
}

// Split cuts the selected element at timeline time t into two elements with
// fresh ids that replace the original at the same index. Media source trims
// are divided proportionally.
func Split(p Project, sel Selection, t float64, newID IDFunc) (Project, error) {
	if err := p.checkSelection(sel); err != nil {
		return p, err
	}
	if newID == nil {
		newID = NewID
	}
	next := p.Clone()

	switch sel.Kind {
	case CollectionMedia:
		m := next.Media[sel.Index]
		if t <= m.PositionStart || t >= m.PositionEnd {
			return p, validationf(CodeSplitOutOfRange, "cursor %.3fs is outside [%.3f, %.3f)", t, m.PositionStart, m.PositionEnd)
		}
		ratio := (t - m.PositionStart) / (m.PositionEnd - m.PositionStart)
		offset := m.StartTime + ratio*(m.EndTime-m.StartTime)

		first, second := m.clone(), m.clone()
		first.ID, second.ID = newID(), newID()
		first.PositionEnd, first.EndTime = t, offset
		second.PositionStart, second.StartTime = t, offset

		next.Media = replaceWithPair(next.Media, sel.Index, first, second)

	case CollectionText:
		tx := next.Texts[sel.Index]
		if t <= tx.PositionStart || t >= tx.PositionEnd {
			return p, validationf(CodeSplitOutOfRange, "cursor %.3fs is outside [%.3f, %.3f)", t, tx.PositionStart, tx.PositionEnd)
		}
		first, second := tx.clone(), tx.clone()
		first.ID, second.ID = newID(), newID()
		first.PositionEnd = t
		second.PositionStart = t

		next.Texts = replaceWithPair(next.Texts, sel.Index, first, second)
	}

	next.Recompute()
	return next, nil
}

// Duplicate inserts a copy of the selected element right after it.
func Duplicate(p Project, sel Selection, newID IDFunc) (Project, error) {
	if err := p.checkSelection(sel); err != nil {
		return p, err
	}
	if newID == nil {
		newID = NewID
	}
	next := p.Clone()

	switch sel.Kind {
	case CollectionMedia:
		dup := next.Media[sel.Index].clone()
		dup.ID = newID()
		next.Media = insertAt(next.Media, sel.Index+1, dup)
	case CollectionText:
		dup := next.Texts[sel.Index].clone()
		dup.ID = newID()
		next.Texts = insertAt(next.Texts, sel.Index+1, dup)
	}

	next.Recompute()
	return next, nil
}

// Delete removes the element with id from whichever collection holds it.
// Unknown ids are ignored.
func Delete(p Project, id string) Project {
	next := p.Clone()
	if i := next.FindMedia(id); i >= 0 {
		next.Media = append(next.Media[:i], next.Media[i+1:]...)
	} else if i := next.FindText(id); i >= 0 {
		next.Texts = append(next.Texts[:i], next.Texts[i+1:]...)
	} else {
		return p
	}
	next.Recompute()
	return next
}

// Drag moves the selected element so it starts at newLeftPixels, keeping its
// timeline duration. Media StartTime and EndTime are left untouched: the
// source window stays fixed, so a drag never re-trims the clip.
func Drag(p Project, sel Selection, newLeftPixels float64) (Project, error) {
	if err := p.checkSelection(sel); err != nil {
		return p, err
	}
	if math.IsNaN(newLeftPixels) || math.IsInf(newLeftPixels, 0) {
		return p, validationf(CodeInvalidValue, "drag position %v is not a number", newLeftPixels)
	}
	start := frames.PixelsToSeconds(math.Max(0, newLeftPixels), p.Zoom)
	next := p.Clone()

	switch sel.Kind {
	case CollectionMedia:
		m := &next.Media[sel.Index]
		d := m.Duration()
		m.PositionStart = start
		m.PositionEnd = start + d
	case CollectionText:
		tx := &next.Texts[sel.Index]
		d := tx.Duration()
		tx.PositionStart = start
		tx.PositionEnd = start + d
	}

	next.Recompute()
	return next, nil
}

// ResizeRight moves the right edge of the selected element so it is
// newWidthPixels wide. Media end trims follow the new duration and never
// cross the start trim or the known source length.
func ResizeRight(p Project, sel Selection, newWidthPixels float64) (Project, error) {
	if err := p.checkSelection(sel); err != nil {
		return p, err
	}
	if math.IsNaN(newWidthPixels) || math.IsInf(newWidthPixels, 0) {
		return p, validationf(CodeInvalidValue, "resize width %v is not a number", newWidthPixels)
	}
	// One frame is the shortest representable element.
	minDur := 1 / float64(p.FPS)
	dur := math.Max(minDur, frames.PixelsToSeconds(newWidthPixels, p.Zoom))
	next := p.Clone()

	switch sel.Kind {
	case CollectionMedia:
		m := &next.Media[sel.Index]
		m.PositionEnd = m.PositionStart + dur
		end := m.StartTime + dur*m.Speed()
		if m.HasAudio() && m.SourceDuration > 0 && end > m.SourceDuration {
			end = m.SourceDuration
		}
		m.EndTime = math.Max(m.StartTime, end)
	case CollectionText:
		tx := &next.Texts[sel.Index]
		tx.PositionEnd = tx.PositionStart + dur
	}

	next.Recompute()
	return next, nil
}

// ValidateMedia checks a media element before it joins a project and fills in
// defaults for unset fields.
func ValidateMedia(m *MediaElement) error {
	switch m.Type {
	case KindVideo, KindAudio, KindImage:
	default:
		return validationf(CodeInvalidElement, "unsupported media type %q", m.Type)
	}
	if m.PositionStart < 0 || m.PositionEnd <= m.PositionStart {
		return validationf(CodeInvalidElement, "invalid interval [%.3f, %.3f)", m.PositionStart, m.PositionEnd)
	}
	if m.PlaybackSpeed <= 0 {
		m.PlaybackSpeed = 1
	}
	if m.StartTime < 0 {
		return validationf(CodeInvalidElement, "negative start trim %.3f", m.StartTime)
	}
	if m.EndTime <= m.StartTime {
		m.EndTime = m.StartTime + m.Duration()*m.PlaybackSpeed
	}
	if m.Opacity < 0 || m.Opacity > 100 || m.Volume < 0 || m.Volume > 100 {
		return validationf(CodeInvalidValue, "opacity and volume must be within 0-100")
	}
	return nil
}

// ValidateText checks a text element before it joins a project.
func ValidateText(t *TextElement) error {
	if t.PositionStart < 0 || t.PositionEnd <= t.PositionStart {
		return validationf(CodeInvalidElement, "invalid interval [%.3f, %.3f)", t.PositionStart, t.PositionEnd)
	}
	if t.Opacity < 0 || t.Opacity > 100 {
		return validationf(CodeInvalidValue, "opacity must be within 0-100")
	}
	return nil
}

func replaceWithPair[T any](s []T, i int, a, b T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, a, b)
	return append(out, s[i+1:]...)
}

func insertAt[T any](s []T, i int, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	return append(out, s[i:]...)
}
