package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pathfinder-ai/pathfinder/pipeline"
)

// newPlanCmd runs one planning request from the command line, printing
// progress per node and the final shortlist as JSON. Useful for smoke
// testing credentials without the server.
func newPlanCmd() *cobra.Command {
	var showState bool

	cmd := &cobra.Command{
		Use:   "plan <prompt>",
		Short: "Run one planning request and print the shortlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			prompt := strings.Join(args, " ")
			ctx, cancel := context.WithTimeout(cmd.Context(), app.cfg.PipelineTimeout)
			defer cancel()

			events := app.engine.Stream(ctx, uuid.NewString(), pipeline.NewState(prompt, nil))
			for ev := range events {
				if !ev.Done {
					label, ok := pipeline.NodeLabels[ev.NodeID]
					if !ok {
						label = ev.NodeID
					}
					fmt.Fprintf(os.Stderr, "%s\n", label)
					continue
				}

				if ev.Err != nil {
					return fmt.Errorf("pipeline failed: %w", ev.Err)
				}

				out := any(ev.State.RankedResults)
				if showState {
					out = ev.State
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
				if ev.State.ExecutionSummary != "" {
					fmt.Fprintf(os.Stderr, "\n%s\n", ev.State.ExecutionSummary)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showState, "state", false, "print the full final state instead of the shortlist")
	return cmd
}
