// Package frames converts between seconds, frames and timeline pixels.
//
// Every frame value handed out by this package is an integer. Downstream
// consumers key re-render decisions on exact frame equality, so float frame
// boundaries never leave here.
package frames

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonIntegerFrame is returned when a frame value is not a whole number.
var ErrNonIntegerFrame = errors.New("non-integer frame value")

// exactTolerance absorbs float noise from JSON numbers like 120.00000000001.
const exactTolerance = 1e-6

// Window is an (entry frame, frame count) pair.
type Window struct {
	From             int `json:"from"`
	DurationInFrames int `json:"durationInFrames"`
}

// TrimWindow is a source trim expressed in composition frames.
type TrimWindow struct {
	Before int `json:"trimBefore"`
	After  int `json:"trimAfter"`
}

// ToFrames rounds seconds*fps to the nearest frame.
func ToFrames(seconds float64, fps int) int {
	return int(math.Round(seconds * float64(fps)))
}

// ToSeconds converts a frame number back to seconds.
func ToSeconds(frame int, fps int) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frame) / float64(fps)
}

// WindowToFrames maps a timeline interval to a frame window. The duration is
// floored at one frame so degenerate intervals stay representable.
func WindowToFrames(from, to float64, fps int) Window {
	start := ToFrames(from, fps)
	duration := int(math.Round((to - from) * float64(fps)))
	if duration < 1 {
		duration = 1
	}
	return Window{From: start, DurationInFrames: duration}
}

// Trim maps a source-space window to frames, scaled by 1/speed.
func Trim(startTime, endTime float64, fps int, speed float64) TrimWindow {
	if speed <= 0 {
		speed = 1
	}
	return TrimWindow{
		Before: int(math.Round(startTime * float64(fps) / speed)),
		After:  int(math.Round(endTime * float64(fps) / speed)),
	}
}

// SecondsToPixels maps timeline seconds to timeline pixels at the given zoom.
func SecondsToPixels(seconds, zoom float64) float64 {
	return seconds * normalizeZoom(zoom)
}

// PixelsToSeconds is the exact inverse of SecondsToPixels.
func PixelsToSeconds(pixels, zoom float64) float64 {
	return pixels / normalizeZoom(zoom)
}

// Exact returns v as an int, or ErrNonIntegerFrame if v has a fractional part.
func Exact(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNonIntegerFrame, v)
	}
	r := math.Round(v)
	if math.Abs(v-r) > exactTolerance {
		return 0, fmt.Errorf("%w: %v", ErrNonIntegerFrame, v)
	}
	return int(r), nil
}

func normalizeZoom(zoom float64) float64 {
	if zoom <= 0 {
		return 1
	}
	return zoom
}
