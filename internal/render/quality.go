package render

import (
	"fmt"
)

// Settings is the user-facing render configuration.
type Settings struct {
	Resolution string `json:"resolution" validate:"omitempty,oneof=480p 720p 1080p"`
	Quality    string `json:"quality" validate:"omitempty,oneof=low medium high ultra"`
	Speed      string `json:"speed" validate:"omitempty,oneof=fastest fast medium slow slowest"`
}

// Profile is the concrete encoder configuration derived from Settings.
type Profile struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Codec           string `json:"codec"`
	ImageFormat     string `json:"imageFormat"`
	JpegQuality     int    `json:"jpegQuality,omitempty"`
	CRF             int    `json:"crf"`
	Preset          string `json:"preset"`
	FramesPerLambda int    `json:"framesPerLambda"`
	MaxRetries      int    `json:"maxRetries"`
}

const (
	DefaultResolution = "1080p"
	DefaultQuality    = "high"
	DefaultSpeed      = "medium"
)

type dims struct{ w, h int }

var resolutions = map[string]dims{
	"480p":  {854, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
}

type qualityRow struct {
	codec       string
	imageFormat string
	jpegQuality int
	crf         int
}

var qualities = map[string]qualityRow{
	"low":    {codec: "h264", imageFormat: "jpeg", jpegQuality: 50, crf: 30},
	"medium": {codec: "h264", imageFormat: "jpeg", jpegQuality: 70, crf: 26},
	"high":   {codec: "h264", imageFormat: "jpeg", jpegQuality: 85, crf: 21},
	"ultra":  {codec: "h265", imageFormat: "png", crf: 17},
}

type speedRow struct {
	preset          string
	framesPerLambda int
	maxRetries      int
}

// Smaller chunks fan out across more functions and finish sooner.
var speeds = map[string]speedRow{
	"fastest": {preset: "ultrafast", framesPerLambda: 8, maxRetries: 1},
	"fast":    {preset: "veryfast", framesPerLambda: 16, maxRetries: 1},
	"medium":  {preset: "medium", framesPerLambda: 24, maxRetries: 2},
	"slow":    {preset: "slow", framesPerLambda: 48, maxRetries: 2},
	"slowest": {preset: "veryslow", framesPerLambda: 80, maxRetries: 3},
}

// Normalize fills empty fields with defaults.
func (s Settings) Normalize() Settings {
	if s.Resolution == "" {
		s.Resolution = DefaultResolution
	}
	if s.Quality == "" {
		s.Quality = DefaultQuality
	}
	if s.Speed == "" {
		s.Speed = DefaultSpeed
	}
	return s
}

// ResolveProfile maps settings to encoder parameters.
func ResolveProfile(s Settings) (Profile, error) {
	s = s.Normalize()

	res, ok := resolutions[s.Resolution]
	if !ok {
		return Profile{}, newError(KindValidation, "resolve profile", fmt.Errorf("unknown resolution %q", s.Resolution))
	}
	q, ok := qualities[s.Quality]
	if !ok {
		return Profile{}, newError(KindValidation, "resolve profile", fmt.Errorf("unknown quality %q", s.Quality))
	}
	sp, ok := speeds[s.Speed]
	if !ok {
		return Profile{}, newError(KindValidation, "resolve profile", fmt.Errorf("unknown speed %q", s.Speed))
	}

	return Profile{
		Width:           res.w,
		Height:          res.h,
		Codec:           q.codec,
		ImageFormat:     q.imageFormat,
		JpegQuality:     q.jpegQuality,
		CRF:             q.crf,
		Preset:          sp.preset,
		FramesPerLambda: sp.framesPerLambda,
		MaxRetries:      sp.maxRetries,
	}, nil
}
