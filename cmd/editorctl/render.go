package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/reelcut/api/internal/client"
	"github.com/reelcut/api/internal/config"
	"github.com/reelcut/api/internal/render"
)

var renderFlags struct {
	backend    string
	resolution string
	quality    string
	speed      string
	outputDir  string
}

var renderCmd = &cobra.Command{
	Use:   "render <project.json>",
	Short: "Render a project snapshot to video",
	Long: `Render a project snapshot through the render orchestrator. Backend settings
come from the server configuration (config.yaml and environment); flags override
the backend choice and output directory. Interrupting cancels the render.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(args[0])
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if renderFlags.backend != "" {
			cfg.Render.Backend = renderFlags.backend
		}
		if renderFlags.outputDir != "" {
			cfg.Render.OutputDir = renderFlags.outputDir
		}

		logger := newLogger()
		var storage client.StorageClient
		if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
			r2, err := client.NewR2Client(&cfg.R2)
			if err != nil {
				return fmt.Errorf("failed to create storage client: %w", err)
			}
			storage = r2
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orchestrator := render.NewOrchestrator(render.NewBackend(cfg, storage, logger), logger)
		return runRender(ctx, orchestrator, render.Request{
			JobID:   uuid.New().String(),
			Project: p,
			Settings: render.Settings{
				Resolution: renderFlags.resolution,
				Quality:    renderFlags.quality,
				Speed:      renderFlags.speed,
			},
		})
	},
}

func runRender(ctx context.Context, o *render.Orchestrator, req render.Request) error {
	last := -1
	run, err := o.Start(ctx, req, func(s render.JobState) {
		if pct := s.Percent(); pct != last {
			last = pct
			fmt.Fprintf(os.Stderr, "\r%-12s %3d%%", s.Step, pct)
		}
	})
	if err != nil {
		return err
	}

	result, err := run.Wait()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	fmt.Printf("Rendered %d frames at %dx%d (%s) on %s backend\n",
		result.DurationInFrames, result.Width, result.Height, result.Codec, result.Backend)
	fmt.Println(result.OutputURL)
	return nil
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderFlags.backend, "backend", "", "Render backend: local or remote (default from config)")
	f.StringVar(&renderFlags.resolution, "resolution", "1080p", "Output resolution: 480p, 720p or 1080p")
	f.StringVar(&renderFlags.quality, "quality", "high", "Quality preset: low, medium, high or ultra")
	f.StringVar(&renderFlags.speed, "speed", "medium", "Speed preset: fastest, fast, medium, slow or slowest")
	f.StringVar(&renderFlags.outputDir, "output-dir", "", "Directory for local renders (default from config)")
}
