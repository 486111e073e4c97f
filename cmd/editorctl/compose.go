package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reelcut/api/internal/composition"
)

var composeCmd = &cobra.Command{
	Use:   "compose <project.json>",
	Short: "Print the frame-based composition of a project",
	Long: `Print the composition derived from a project snapshot as JSON: total frames,
canvas size and one placement per element in render order. With --at, print
only the instructions visible or audible at that frame, bottom layer first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		c := composition.Sequence(p)
		if cmd.Flags().Changed("at") {
			if composeAt < 0 {
				return fmt.Errorf("--at must not be negative")
			}
			active := c.ActiveAt(composeAt)
			if active == nil {
				active = []composition.Instruction{}
			}
			return enc.Encode(active)
		}
		return enc.Encode(c)
	},
}

var composeAt int

func init() {
	composeCmd.Flags().IntVar(&composeAt, "at", 0, "Print only the instructions active at this frame")
}
