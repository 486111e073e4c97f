package render

import (
	"github.com/reelcut/api/internal/client"
)

// progressCeiling keeps in-flight progress below 100% until the service
// reports done.
const progressCeiling = 0.95

// JobState is the locally observed state of one render job.
type JobState struct {
	RenderID              string   `json:"renderId,omitempty"`
	BucketName            string   `json:"bucketName,omitempty"`
	FunctionRef           string   `json:"functionRef,omitempty"`
	ServeRef              string   `json:"serveRef,omitempty"`
	Progress              float64  `json:"progress"`
	Done                  bool     `json:"done"`
	FatalErrorEncountered bool     `json:"fatalErrorEncountered"`
	Errors                []string `json:"errors,omitempty"`
	OutputRef             string   `json:"outputRef,omitempty"`
	Canceled              bool     `json:"canceled,omitempty"`
	Step                  string   `json:"step,omitempty"`
}

// Terminal reports whether the job will not change any more.
func (s JobState) Terminal() bool {
	return s.Done || s.FatalErrorEncountered || s.Canceled
}

// Succeeded is true only for a done job that never saw a fatal error.
func (s JobState) Succeeded() bool {
	return s.Done && !s.FatalErrorEncountered && !s.Canceled
}

// Observe folds one progress response into the state. targetSeconds is the
// composition length used to estimate progress from timeToFinish. Once the
// state is terminal further observations are ignored, so a fatal job can
// never turn into a success.
func (s *JobState) Observe(p client.RenderProgress, targetSeconds float64) {
	if s.Terminal() {
		return
	}
	s.addErrors(p.Errors)

	if p.FatalErrorEncountered {
		s.FatalErrorEncountered = true
		return
	}
	if p.Done {
		s.Done = true
		s.Progress = 1
		s.OutputRef = p.OutputFile
		return
	}

	var (
		v  float64
		ok bool
	)
	switch {
	case p.OverallProgress != nil:
		v, ok = *p.OverallProgress, true
	case p.TimeToFinish != nil && targetSeconds > 0:
		v, ok = 1-(*p.TimeToFinish/1000)/targetSeconds, true
	}
	if !ok {
		return
	}
	s.advance(v)
}

// advance raises Progress to v, clamped to [0, progressCeiling].
func (s *JobState) advance(v float64) {
	if v < 0 {
		v = 0
	}
	if v > progressCeiling {
		v = progressCeiling
	}
	if v > s.Progress {
		s.Progress = v
	}
}

func (s *JobState) addErrors(msgs []string) {
	for _, m := range msgs {
		if m == "" || contains(s.Errors, m) {
			continue
		}
		s.Errors = append(s.Errors, m)
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Percent is Progress as an integer percentage.
func (s JobState) Percent() int {
	return int(s.Progress*100 + 0.5)
}
