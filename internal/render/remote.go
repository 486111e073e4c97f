package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/reelcut/api/internal/client"
)

// RemoteConfig holds the fixed deployment and submission parameters.
type RemoteConfig struct {
	Region          string
	FunctionTimeout time.Duration
	MemoryMB        int
	SiteName        string
	EntryPoint      string
	CompositionID   string
	Privacy         string
	FramesPerLambda int // overrides the speed preset when > 0
	PollInterval    time.Duration
	// BucketPublicURL prefixes bare output paths. When empty the S3 regional
	// endpoint of the returned bucket is used.
	BucketPublicURL string
}

// RemoteBackend renders on the render farm: ensure function, ensure site,
// submit, poll. Deployments are cached for the backend's lifetime.
type RemoteBackend struct {
	farm   client.RenderFarm
	cfg    RemoteConfig
	logger hclog.Logger

	mu           sync.Mutex
	functionName string
	serveURL     string
}

func NewRemoteBackend(farm client.RenderFarm, cfg RemoteConfig, logger hclog.Logger) *RemoteBackend {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Privacy == "" {
		cfg.Privacy = "public"
	}
	return &RemoteBackend{farm: farm, cfg: cfg, logger: logger.Named("remote")}
}

func (b *RemoteBackend) Name() string { return BackendRemote }

// ensureDeployed resolves the render function and the serve URL, deploying
// whichever is missing. Both steps run concurrently; either failure aborts.
func (b *RemoteBackend) ensureDeployed(ctx context.Context) (string, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.functionName != "" && b.serveURL != "" {
		return b.functionName, b.serveURL, nil
	}

	fn, serve := b.functionName, b.serveURL
	g, gctx := errgroup.WithContext(ctx)

	if fn == "" {
		g.Go(func() error {
			name, err := b.ensureFunction(gctx)
			if err != nil {
				return newError(KindDeployment, "deploy function", err, err.Error())
			}
			fn = name
			return nil
		})
	}
	if serve == "" {
		g.Go(func() error {
			site, err := b.farm.DeploySite(gctx, &client.DeploySiteRequest{
				EntryPoint: b.cfg.EntryPoint,
				SiteName:   b.cfg.SiteName,
				Region:     b.cfg.Region,
			})
			if err != nil {
				return newError(KindDeployment, "deploy site", err, err.Error())
			}
			if site.ServeURL == "" {
				return newError(KindDeployment, "deploy site", nil, "render service returned no serve URL")
			}
			serve = site.ServeURL
			return nil
		})
	}

	err := g.Wait()
	// Keep whichever half succeeded so a retry only redeploys the other.
	b.functionName, b.serveURL = fn, serve
	if err != nil {
		return "", "", err
	}

	b.logger.Info("render farm ready", "function", fn, "serve_url", serve)
	return fn, serve, nil
}

func (b *RemoteBackend) ensureFunction(ctx context.Context) (string, error) {
	fns, err := b.farm.ListFunctions(ctx, b.cfg.Region)
	if err != nil {
		return "", fmt.Errorf("list functions: %w", err)
	}
	for _, f := range fns {
		if f.FunctionName != "" {
			return f.FunctionName, nil
		}
	}

	b.logger.Info("no render function found, deploying", "region", b.cfg.Region, "memory_mb", b.cfg.MemoryMB)
	info, err := b.farm.DeployFunction(ctx, &client.DeployFunctionRequest{
		Region:           b.cfg.Region,
		TimeoutInSeconds: int(b.cfg.FunctionTimeout / time.Second),
		MemorySizeInMb:   b.cfg.MemoryMB,
	})
	if err != nil {
		return "", err
	}
	if info.FunctionName == "" {
		return "", fmt.Errorf("render service returned no function name")
	}
	return info.FunctionName, nil
}

// inputProps is what the deployed composition receives.
type inputProps struct {
	ProjectID        string      `json:"projectId"`
	FPS              int         `json:"fps"`
	Width            int         `json:"width"`
	Height           int         `json:"height"`
	DurationInFrames int         `json:"durationInFrames"`
	Composition      interface{} `json:"composition"`
}

func (b *RemoteBackend) Render(ctx context.Context, job Job, update UpdateFunc) (*Result, error) {
	if update == nil {
		update = func(JobState) {}
	}

	update(JobState{Step: "deploying"})
	fn, serve, err := b.ensureDeployed(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, interrupted(ctx, "deploy")
		}
		return nil, err
	}

	props, err := json.Marshal(inputProps{
		ProjectID:        job.Project.ID,
		FPS:              job.Composition.FPS,
		Width:            job.Profile.Width,
		Height:           job.Profile.Height,
		DurationInFrames: job.Composition.DurationInFrames,
		Composition:      job.Composition,
	})
	if err != nil {
		return nil, wrapf(KindFatalRender, err, "encode input props")
	}

	framesPerLambda := job.Profile.FramesPerLambda
	if b.cfg.FramesPerLambda > 0 {
		framesPerLambda = b.cfg.FramesPerLambda
	}

	state := JobState{FunctionRef: fn, ServeRef: serve, Step: "submitting"}
	update(state)

	started, err := b.farm.RenderVideo(ctx, &client.RenderVideoRequest{
		ServeURL:        serve,
		CompositionID:   b.cfg.CompositionID,
		InputProps:      props,
		Codec:           job.Profile.Codec,
		ImageFormat:     job.Profile.ImageFormat,
		JpegQuality:     job.Profile.JpegQuality,
		CRF:             job.Profile.CRF,
		MaxRetries:      job.Profile.MaxRetries,
		FramesPerLambda: framesPerLambda,
		Privacy:         b.cfg.Privacy,
		Region:          b.cfg.Region,
		FunctionName:    fn,
		OutName:         job.ID + ".mp4",
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, interrupted(ctx, "start render")
		}
		return nil, newError(KindFatalRender, "start render", err, err.Error())
	}

	state.RenderID = started.RenderID
	state.BucketName = started.BucketName
	state.Step = "rendering"
	update(state)
	b.logger.Info("render submitted", "job_id", job.ID, "render_id", started.RenderID, "bucket", started.BucketName)

	progressReq := &client.RenderProgressRequest{
		RenderID:     started.RenderID,
		BucketName:   started.BucketName,
		FunctionName: fn,
		Region:       b.cfg.Region,
	}

	handle := StartPolling(ctx, PollConfig{
		Interval:      b.cfg.PollInterval,
		TargetSeconds: job.TargetSeconds(),
		Initial:       state,
		ResolveOutput: func(out string) string { return b.resolveOutput(started.BucketName, out) },
		OnUpdate:      update,
		Logger:        b.logger.With("render_id", started.RenderID),
	}, func(ctx context.Context) (*client.RenderProgress, error) {
		return b.farm.GetRenderProgress(ctx, progressReq)
	})
	defer handle.Dispose()

	final, err := handle.Wait()
	if err != nil {
		if IsCanceled(err) || errors.Is(err, ErrTimedOut) {
			b.cancelRemote(progressReq)
		}
		return nil, err
	}

	result := newResult(BackendRemote, job)
	result.OutputURL = final.OutputRef
	result.RenderID = final.RenderID
	result.BucketName = final.BucketName
	return result, nil
}

// cancelRemote asks the farm to stop the render when it supports that. It is
// best effort: failures are logged and the job is still treated as canceled.
func (b *RemoteBackend) cancelRemote(req *client.RenderProgressRequest) {
	canceler, ok := b.farm.(client.RenderCanceler)
	if !ok {
		b.logger.Info("render farm cannot cancel, job may finish server-side", "render_id", req.RenderID)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := canceler.CancelRender(ctx, req); err != nil {
		b.logger.Warn("server-side cancel failed", "render_id", req.RenderID, "error", err)
	}
}

// resolveOutput turns a bare bucket path into an absolute URL.
func (b *RemoteBackend) resolveOutput(bucket, out string) string {
	if out == "" {
		return ""
	}
	if u, err := url.Parse(out); err == nil && u.IsAbs() {
		return out
	}
	key := strings.TrimLeft(out, "/")
	if b.cfg.BucketPublicURL != "" {
		return strings.TrimRight(b.cfg.BucketPublicURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", b.cfg.Region, bucket, key)
}
