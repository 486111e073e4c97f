package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/reelcut/api/internal/client"
)

// LocalBackend renders in-process with a single transcode pass. Progress
// comes from the transcoder's log lines; there is no polling.
type LocalBackend struct {
	transcoder Transcoder
	storage    client.StorageClient
	outputDir  string
	logger     hclog.Logger
}

// NewLocalBackend builds a local backend. storage may be nil, in which case
// the artifact stays on local disk.
func NewLocalBackend(transcoder Transcoder, storage client.StorageClient, outputDir string, logger hclog.Logger) *LocalBackend {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &LocalBackend{
		transcoder: transcoder,
		storage:    storage,
		outputDir:  outputDir,
		logger:     logger.Named("local"),
	}
}

func (b *LocalBackend) Name() string { return BackendLocal }

func (b *LocalBackend) Render(ctx context.Context, job Job, update UpdateFunc) (*Result, error) {
	if update == nil {
		update = func(JobState) {}
	}
	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return nil, wrapf(KindFatalRender, err, "prepare output dir")
	}
	output := filepath.Join(b.outputDir, job.ID+".mp4")
	target := job.TargetSeconds()

	state := JobState{Step: "transcoding"}
	update(state)

	err := b.transcoder.Transcode(ctx, job, output, func(line string) {
		b.logger.Trace("transcoder", "job_id", job.ID, "line", line)
		sec, ok := ParseProgressTime(line)
		if !ok || target <= 0 {
			return
		}
		before := state.Progress
		state.advance(sec / target)
		if state.Progress != before {
			if speed, ok := ParseSpeed(line); ok {
				b.logger.Debug("transcode progress", "job_id", job.ID, "progress", state.Progress, "speed", speed)
			}
			update(state)
		}
	})
	if err != nil {
		_ = os.Remove(output)
		if ctx.Err() != nil {
			return nil, interrupted(ctx, "transcode")
		}
		if errors.Is(err, context.Canceled) {
			return nil, newError(KindCanceled, "transcode", ErrCanceled)
		}
		return nil, newError(KindFatalRender, "transcode", err, err.Error())
	}

	result := newResult(BackendLocal, job)
	result.LocalPath = output
	result.OutputURL = "file://" + output

	if client.Configured(b.storage) {
		state.Step = "uploading"
		update(state)

		key := client.ProjectKey(job.Project.ID, "renders", job.ID+".mp4")
		url, err := client.UploadFile(ctx, b.storage, key, output, "video/mp4")
		if err != nil {
			return nil, newError(KindFatalRender, "upload artifact", err, fmt.Sprintf("upload failed: %v", err))
		}
		result.OutputURL = url
	}

	state.Done = true
	state.Progress = 1
	state.OutputRef = result.OutputURL
	state.Step = "done"
	update(state)

	b.logger.Info("render finished", "job_id", job.ID, "output", result.OutputURL)
	return result, nil
}
