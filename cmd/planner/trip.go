package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"travelmap/internal/config"
	"travelmap/internal/itinerary"
	"travelmap/internal/pipeline"
	"travelmap/internal/planner"
	"travelmap/internal/render"
)

func tripCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trip",
		Short: "Inspect and run stored trips",
	}

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print the stored timeline of a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStoredTrips(cmd, func(ctx context.Context, mgr *planner.Manager) error {
				t, err := mgr.Get(ctx, args[0])
				if err != nil {
					return err
				}
				render.Timeline(cmd.OutOrStdout(), t.Name, t.Segments, pipeline.ComputeSlackAndOverlap(t.Segments))
				if len(t.Queue) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%d queued stop(s)\n", len(t.Queue))
				}
				return nil
			})
		},
	}

	tripRunCmd := &cobra.Command{
		Use:   "run [id]",
		Short: "Run the pipeline on a stored trip and save the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lv, _ := cmd.Flags().GetString("level")
			level, err := pipeline.ParseLevel(lv)
			if err != nil {
				return err
			}
			return withStoredTrips(cmd, func(ctx context.Context, mgr *planner.Manager) error {
				res, err := mgr.Run(ctx, args[0], level)
				if err != nil {
					return err
				}
				render.Timeline(cmd.OutOrStdout(), args[0], res.Segments, res.Report)
				return nil
			})
		},
	}
	tripRunCmd.Flags().String("level", "", "routing, timing or conflictresolution")

	clearCmd := &cobra.Command{
		Use:   "clear [id]",
		Short: "Clear endpoint times and durations of a stored trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			onlyUnlocked, _ := cmd.Flags().GetBool("only-unlocked")
			return withStoredTrips(cmd, func(ctx context.Context, mgr *planner.Manager) error {
				_, err := mgr.Update(ctx, args[0], func(t *itinerary.Trip) error {
					t.Segments = itinerary.ClearTimes(t.Segments, onlyUnlocked)
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared times of %s\n", args[0])
				return nil
			})
		},
	}
	clearCmd.Flags().Bool("only-unlocked", false, "keep locked and manually edited values")

	cmd.AddCommand(showCmd, tripRunCmd, clearCmd)
	return cmd
}

// withStoredTrips opens the configured store for the duration of fn.
func withStoredTrips(cmd *cobra.Command, fn func(ctx context.Context, mgr *planner.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sqlDB, store, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	mgr := newManager(store, newRunner(cfg, false, nil), nil, cfg, nil)
	return fn(ctx, mgr)
}
