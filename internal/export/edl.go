package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/reelcut/api/internal/composition"
	"github.com/reelcut/api/internal/timeline"
)

// GenerateEDL writes a CMX3600 edit decision list of the project's media
// elements in timeline order. frameRate may carry a fractional NTSC rate for
// the FCM header; 0 uses the project rate.
func GenerateEDL(p timeline.Project, frameRate float64) string {
	c := composition.Sequence(p)
	if frameRate <= 0 {
		frameRate = float64(c.FPS)
	}
	fps := c.FPS

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	title := p.Name
	if title == "" {
		title = p.ID
	}
	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	names := make(map[string]string, len(p.Media))
	for _, m := range p.Media {
		names[m.ID] = m.Name
	}

	events := make([]composition.Instruction, 0, len(c.Instructions))
	for _, in := range c.Instructions {
		if in.Kind != timeline.KindText && in.Trim != nil {
			events = append(events, in)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].From != events[j].From {
			return events[i].From < events[j].From
		}
		return events[i].Order < events[j].Order
	})

	for i, in := range events {
		rate := in.PlaybackRate
		if rate <= 0 {
			rate = 1
		}
		// Trim frames are in timeline time; the source runs rate times faster.
		srcIn := int(math.Round(float64(in.Trim.Before) * rate))
		srcOut := srcIn + int(math.Round(float64(in.DurationInFrames)*rate))
		recIn := in.From
		recOut := in.From + in.DurationInFrames

		lines = append(lines, fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s",
			i+1, "AX", track(in), framesToTimecode(srcIn, fps), framesToTimecode(srcOut, fps),
			framesToTimecode(recIn, fps), framesToTimecode(recOut, fps)))
		if rate != 1 {
			lines = append(lines, fmt.Sprintf("M2   %-8s %05.1f    %s", "AX", float64(fps)*rate, framesToTimecode(srcIn, fps)))
		}
		name := names[in.ElementID]
		if name == "" {
			name = in.ElementID
		}
		lines = append(lines,
			fmt.Sprintf("* FROM CLIP NAME:  %s", name),
			fmt.Sprintf("* MEDIA PATH:  %s", in.Src),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func track(in composition.Instruction) string {
	switch in.Kind {
	case timeline.KindAudio:
		return "A"
	case timeline.KindVideo:
		if in.Volume > 0 {
			return "B"
		}
	}
	return "V"
}

func framesToTimecode(totalFrames int, fps int) string {
	if fps <= 0 {
		fps = timeline.DefaultFPS
	}
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
