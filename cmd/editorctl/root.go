package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/reelcut/api/internal/export"
	"github.com/reelcut/api/internal/timeline"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "editorctl",
	Short: "Inspect, export and render Reelcut project snapshots",
	Long: `editorctl works on project snapshot files as written by the snapshot export.
It can print the frame-based composition a renderer sees, write a CMX3600 EDL,
or render the project locally with ffmpeg or on the remote render farm.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log render backend activity to stderr")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(edlCmd)
	rootCmd.AddCommand(renderCmd)
}

func loadProject(path string) (timeline.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return timeline.Project{}, err
	}
	p, err := export.ParseProject(data)
	if err != nil {
		return timeline.Project{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func newLogger() hclog.Logger {
	level := hclog.Warn
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "editorctl",
		Level:  level,
		Output: os.Stderr,
	})
}
