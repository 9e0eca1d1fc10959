package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"travelmap/internal/config"
	"travelmap/internal/itinerary"
	"travelmap/internal/pipeline"
	"travelmap/internal/render"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline on a YAML trip file",
		Example: `  planner run -f coast.yaml
  planner run -f coast.yaml --level routing --out coast.out.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			file, _ := cmd.Flags().GetString("file")
			level, _ := cmd.Flags().GetString("level")
			priority, _ := cmd.Flags().GetString("priority")
			offline, _ := cmd.Flags().GetBool("offline")
			out, _ := cmd.Flags().GetString("out")

			if level != "" {
				if cfg.Level, err = pipeline.ParseLevel(level); err != nil {
					return err
				}
			}
			if priority != "" {
				if cfg.Priority, err = pipeline.ParsePriority(priority); err != nil {
					return err
				}
			}
			return runFile(cmd.Context(), cmd.OutOrStdout(), cfg, file, offline, out)
		},
	}
	cmd.Flags().StringP("file", "f", "", "trip YAML file")
	cmd.Flags().String("level", "", "routing, timing or conflictresolution (default from PIPELINE_LEVEL)")
	cmd.Flags().String("priority", "", "forward-first or backward-first (default from PIPELINE_PRIORITY)")
	cmd.Flags().Bool("offline", false, "skip route lookups")
	cmd.Flags().String("out", "", "write the resulting trip to this YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runFile(ctx context.Context, w io.Writer, cfg *config.Config, path string, offline bool, out string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	trip, err := itinerary.LoadFile(path)
	if err != nil {
		return err
	}
	res := newRunner(cfg, offline, nil).Run(ctx, itinerary.EnsureAnchors(trip.Segments), cfg.Level)
	trip.Segments = res.Segments

	render.Timeline(w, trip.Name, res.Segments, res.Report)

	if out != "" {
		if err := itinerary.SaveFile(out, trip); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", out)
	}
	return nil
}
