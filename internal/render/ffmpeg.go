package render

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/reelcut/api/internal/composition"
	"github.com/reelcut/api/internal/timeline"
)

// Transcoder turns a job into a media file, reporting its log output line by
// line.
type Transcoder interface {
	Transcode(ctx context.Context, job Job, output string, onLine func(string)) error
}

// FFmpegTranscoder shells out to the ffmpeg binary.
type FFmpegTranscoder struct {
	Path   string
	Logger hclog.Logger
}

func NewFFmpegTranscoder(path string, logger hclog.Logger) *FFmpegTranscoder {
	if path == "" {
		path = "ffmpeg"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FFmpegTranscoder{Path: path, Logger: logger.Named("ffmpeg")}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, job Job, output string, onLine func(string)) error {
	args := BuildFFmpegArgs(job, output)
	t.Logger.Debug("starting ffmpeg", "job_id", job.ID, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, t.Path, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// Keep the tail of the log for error reporting.
	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLogLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if onLine != nil {
			onLine(line)
		}
		tail = append(tail, line)
		if len(tail) > 20 {
			tail = tail[1:]
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg exited: %w: %s", err, strings.Join(tail, " | "))
	}
	return nil
}

// BuildFFmpegArgs produces the ffmpeg command line for job. Input 0 is a
// solid canvas and input 1 a silent track; element inputs follow in stacking
// order. Every timeline value is taken from the frame-exact composition.
func BuildFFmpegArgs(job Job, output string) []string {
	c := job.Composition
	p := job.Profile
	fps := c.FPS
	total := fsec(c.DurationInFrames, fps)

	sx, sy := 1.0, 1.0
	if c.Width > 0 && c.Height > 0 {
		sx = float64(p.Width) / float64(c.Width)
		sy = float64(p.Height) / float64(c.Height)
	}

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-f", "lavfi", "-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%d:d=%s", p.Width, p.Height, fps, num(total)),
		"-f", "lavfi", "-t", num(total), "-i", "anullsrc=channel_layout=stereo:sample_rate=48000",
	}

	var (
		filters []string
		audio   []string
		input   = 2
		base    = "[0:v]"
		step    = 0
	)

	for _, in := range c.Stacked() {
		from := fsec(in.From, fps)
		to := fsec(in.From+in.DurationInFrames, fps)
		enable := fmt.Sprintf("enable='between(t,%s,%s)'", num(from), num(to))

		if in.Kind == timeline.KindText {
			if in.Text == nil {
				continue
			}
			out := fmt.Sprintf("[s%d]", step)
			filters = append(filters, base+drawText(in, sx, sy, enable)+out)
			base = out
			step++
			continue
		}
		if in.Src == "" {
			continue
		}

		idx := input
		input++
		if in.Kind == timeline.KindImage {
			args = append(args, "-loop", "1", "-t", num(to), "-i", in.Src)
		} else {
			args = append(args, "-i", in.Src)
		}

		srcStart, srcEnd := sourceWindow(in, fps)

		if in.Kind == timeline.KindVideo || in.Kind == timeline.KindImage {
			chain := []string{}
			if in.Kind == timeline.KindVideo {
				chain = append(chain,
					fmt.Sprintf("trim=start=%s:end=%s", num(srcStart), num(srcEnd)),
					fmt.Sprintf("setpts=(PTS-STARTPTS)/%s", num(in.PlaybackRate)),
				)
			} else {
				chain = append(chain, "setpts=PTS-STARTPTS")
			}
			chain = append(chain, geometryFilters(in.Geometry, sx, sy, p)...)
			chain = append(chain, fmt.Sprintf("setpts=PTS+%s/TB", num(from)))

			layer := fmt.Sprintf("[l%d]", idx)
			filters = append(filters, fmt.Sprintf("[%d:v]%s%s", idx, strings.Join(chain, ","), layer))

			out := fmt.Sprintf("[s%d]", step)
			filters = append(filters, fmt.Sprintf("%s%soverlay=x=%s:y=%s:%s%s",
				base, layer, num(in.Geometry.X*sx), num(in.Geometry.Y*sy), enable, out))
			base = out
			step++
		}

		if (in.Kind == timeline.KindVideo || in.Kind == timeline.KindAudio) && in.Volume > 0 {
			label := fmt.Sprintf("[a%d]", idx)
			delay := int(math.Round(from * 1000))
			chain := []string{
				fmt.Sprintf("atrim=start=%s:end=%s", num(srcStart), num(srcEnd)),
				"asetpts=PTS-STARTPTS",
			}
			chain = append(chain, atempo(in.PlaybackRate)...)
			chain = append(chain,
				fmt.Sprintf("volume=%s", num(in.Volume/100)),
				fmt.Sprintf("adelay=%d|%d", delay, delay),
			)
			filters = append(filters, fmt.Sprintf("[%d:a]%s%s", idx, strings.Join(chain, ","), label))
			audio = append(audio, label)
		}
	}

	filters = append(filters, base+"format=yuv420p[vout]")
	if len(audio) > 0 {
		filters = append(filters, fmt.Sprintf("[1:a]%samix=inputs=%d:duration=first:normalize=0[aout]",
			strings.Join(audio, ""), len(audio)+1))
	} else {
		filters = append(filters, "[1:a]anull[aout]")
	}

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[vout]", "-map", "[aout]",
		"-c:v", videoEncoder(p.Codec),
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		"-r", strconv.Itoa(fps),
		"-c:a", "aac", "-b:a", "192k",
		"-t", num(total),
		"-movflags", "+faststart",
		output,
	)
	return args
}

// sourceWindow converts the trim frames back to source seconds.
func sourceWindow(in composition.Instruction, fps int) (float64, float64) {
	if in.Trim == nil {
		return 0, fsec(in.DurationInFrames, fps)
	}
	rate := in.PlaybackRate
	if rate <= 0 {
		rate = 1
	}
	return fsec(in.Trim.Before, fps) * rate, fsec(in.Trim.After, fps) * rate
}

func geometryFilters(g timeline.Geometry, sx, sy float64, p Profile) []string {
	var out []string
	if g.Crop != nil && g.Crop.Width > 0 && g.Crop.Height > 0 {
		out = append(out, fmt.Sprintf("crop=%s:%s:%s:%s", num(g.Crop.Width), num(g.Crop.Height), num(g.Crop.X), num(g.Crop.Y)))
	}
	w, h := g.Width*sx, g.Height*sy
	if w <= 0 || h <= 0 {
		w, h = float64(p.Width), float64(p.Height)
	}
	out = append(out, fmt.Sprintf("scale=%d:%d", even(w), even(h)))
	if g.Rotation != 0 {
		rad := g.Rotation * math.Pi / 180
		out = append(out, fmt.Sprintf("rotate=%s:c=none:ow=rotw(%s):oh=roth(%s)", num(rad), num(rad), num(rad)))
	}
	if g.Opacity < 100 {
		out = append(out, "format=rgba", fmt.Sprintf("colorchannelmixer=aa=%s", num(math.Max(0, g.Opacity)/100)))
	}
	return out
}

func drawText(in composition.Instruction, sx, sy float64, enable string) string {
	st := in.Text
	size := st.FontSize
	if size <= 0 {
		size = 48
	}
	color := st.Color
	if color == "" {
		color = "white"
	}
	if in.Geometry.Opacity < 100 {
		color = fmt.Sprintf("%s@%s", color, num(math.Max(0, in.Geometry.Opacity)/100))
	}
	parts := []string{
		"text='" + escapeDrawText(st.Text) + "'",
		fmt.Sprintf("fontsize=%d", int(math.Round(float64(size)*sy))),
		"fontcolor=" + color,
		"x=" + num(in.Geometry.X*sx),
		"y=" + num(in.Geometry.Y*sy),
	}
	if st.BackgroundColor != "" {
		parts = append(parts, "box=1", "boxcolor="+st.BackgroundColor)
	}
	parts = append(parts, enable)
	return "drawtext=" + strings.Join(parts, ":")
}

var drawTextEscaper = strings.NewReplacer(`\`, `\\\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`)

func escapeDrawText(s string) string {
	return drawTextEscaper.Replace(s)
}

// atempo only accepts factors in [0.5, 2], so larger changes are chained.
func atempo(rate float64) []string {
	if rate <= 0 || rate == 1 {
		return nil
	}
	var out []string
	for rate > 2 {
		out = append(out, "atempo=2")
		rate /= 2
	}
	for rate < 0.5 {
		out = append(out, "atempo=0.5")
		rate /= 0.5
	}
	return append(out, "atempo="+num(rate))
}

func videoEncoder(codec string) string {
	switch codec {
	case "h265":
		return "libx265"
	case "vp8":
		return "libvpx"
	case "vp9":
		return "libvpx-vp9"
	default:
		return "libx264"
	}
}

func fsec(frame, fps int) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frame) / float64(fps)
}

func even(v float64) int {
	n := int(math.Round(v))
	if n%2 != 0 {
		n++
	}
	if n < 2 {
		n = 2
	}
	return n
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
