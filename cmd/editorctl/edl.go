package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reelcut/api/internal/export"
)

var (
	edlFrameRate float64
	edlOutput    string
)

var edlCmd = &cobra.Command{
	Use:   "edl <project.json>",
	Short: "Write a CMX3600 EDL of a project's video and audio clips",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(args[0])
		if err != nil {
			return err
		}

		edl := export.GenerateEDL(p, edlFrameRate)
		if edlOutput == "" {
			_, err = fmt.Fprint(os.Stdout, edl)
			return err
		}
		return os.WriteFile(edlOutput, []byte(edl), 0o644)
	},
}

func init() {
	edlCmd.Flags().Float64Var(&edlFrameRate, "frame-rate", 0, "Timecode rate (defaults to the project fps; 29.97 and 59.94 use drop-frame)")
	edlCmd.Flags().StringVarP(&edlOutput, "output", "o", "", "Write to a file instead of stdout")
}
