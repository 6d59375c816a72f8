package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/elevfleet/app/plugins"
	"github.com/kilianp07/elevfleet/core/eventlog"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the cars of the configured store",
	RunE:  runFleetLs,
}

var (
	logCar   int64
	logSince time.Duration
)

var fleetLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Print the audit trail",
	RunE:  runFleetLog,
}

func init() {
	fleetLogCmd.Flags().Int64Var(&logCar, "car", 0, "only events of this car")
	fleetLogCmd.Flags().DurationVar(&logSince, "since", 0, "only events newer than this")
	fleetCmd.AddCommand(fleetLsCmd, fleetLogCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := plugins.NewStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeQuietly(cmd, st.Close)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	cars, err := st.Cars.FindAll(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFLOOR\tSTATUS\tLOAD\tOPERATIONAL\tECO")
	for _, c := range cars {
		fmt.Fprintf(w, "%d\t%d\t%s\t%d/%d\t%t\t%t\n", c.ID, c.CurrentFloor, c.Status, c.CurrentLoad, c.Capacity, c.Operational, c.EcoMode)
	}
	return w.Flush()
}

func runFleetLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := plugins.NewLogStore(cfg.Logging)
	if err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	defer closeQuietly(cmd, store.Close)

	q := eventlog.Query{ElevatorID: logCar}
	if logSince > 0 {
		q.Start = time.Now().Add(-logSince)
	}
	events, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tcar %d\t%s\n", ev.Timestamp.Format(time.RFC3339), ev.ElevatorID, ev.Message)
	}
	return nil
}

func closeQuietly(cmd *cobra.Command, closeFn func() error) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error while closing: %v\n", err)
	}
}
