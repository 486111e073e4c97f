package render

import (
	"github.com/hashicorp/go-hclog"

	"github.com/reelcut/api/internal/client"
	"github.com/reelcut/api/internal/config"
)

// NewBackend builds the backend selected by cfg.Render.Backend. storage may
// be nil, in which case local renders stay on disk.
func NewBackend(cfg *config.Config, storage client.StorageClient, logger hclog.Logger) Backend {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.Render.IsRemote() {
		farm := client.NewRenderFarmClient(&cfg.Farm, logger.Named("farm"))
		return NewRemoteBackend(farm, RemoteConfig{
			Region:          cfg.Farm.Region,
			FunctionTimeout: cfg.Farm.FunctionTimeout,
			MemoryMB:        cfg.Farm.MemoryMB,
			SiteName:        cfg.Farm.SiteName,
			EntryPoint:      cfg.Farm.EntryPoint,
			CompositionID:   cfg.Farm.CompositionID,
			Privacy:         cfg.Farm.Privacy,
			FramesPerLambda: cfg.Farm.FramesPerLambda,
			PollInterval:    cfg.Render.PollInterval,
			BucketPublicURL: cfg.Farm.BucketPublicURL,
		}, logger)
	}
	transcoder := NewFFmpegTranscoder(cfg.Render.FFmpegPath, logger.Named("ffmpeg"))
	return NewLocalBackend(transcoder, storage, cfg.Render.OutputDir, logger)
}
