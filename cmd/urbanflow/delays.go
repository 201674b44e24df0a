package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"urbanflow/internal/delays"
	"urbanflow/internal/export"
	"urbanflow/internal/validate"
)

var delaysCmd = &cobra.Command{
	Use:   "delays <stopId>",
	Short: "Shows live delays for a stop",
	Args:  cobra.ExactArgs(1),
	RunE:  showDelays,
}

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports data as CSV",
}

var exportStopsCmd = &cobra.Command{
	Use:   "stops",
	Short: "Exports today's passenger stops as CSV",
	Args:  cobra.NoArgs,
	RunE:  exportStops,
}

var exportDelaysCmd = &cobra.Command{
	Use:   "delays <stopId>",
	Short: "Exports live delays for a stop as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  exportDelays,
}

func init() {
	exportCmd.PersistentFlags().StringVarP(&exportOutput, "output", "o", "-", "output file, - for stdout")
	exportCmd.AddCommand(exportStopsCmd, exportDelaysCmd)
	rootCmd.AddCommand(delaysCmd, exportCmd)
}

func showDelays(cmd *cobra.Command, args []string) error {
	stopID, err := validate.StopID(args[0])
	if err != nil {
		return err
	}
	ds, err := newDelays(newClient()).DelaysForStop(cmd.Context(), stopID)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		fmt.Printf("no live departures for stop %d\n", stopID)
		return nil
	}

	for _, d := range ds {
		fmt.Printf("%-4s %-30s %-8s %-14s %s\n", d.RouteShortName, d.Headsign, d.Status, d.DelayFormatted, d.Severity)
	}
	sum := delays.Summarize(ds)
	fmt.Printf("\n%d departures, %.1f%% on time, avg delay %.1f s, max %d s", sum.Total, sum.OnTimePercent, sum.AvgDelaySeconds, sum.MaxDelaySeconds)
	if sum.WorstRoute != "" {
		fmt.Printf(" (route %s)", sum.WorstRoute)
	}
	fmt.Println()
	return nil
}

func exportStops(cmd *cobra.Command, args []string) error {
	all, err := newCache(newClient()).Stops(cmd.Context())
	if err != nil {
		return err
	}
	return withOutput(func(w io.Writer) error {
		return export.WriteStops(w, all)
	})
}

func exportDelays(cmd *cobra.Command, args []string) error {
	stopID, err := validate.StopID(args[0])
	if err != nil {
		return err
	}
	ds, err := newDelays(newClient()).DelaysForStop(cmd.Context(), stopID)
	if err != nil {
		return err
	}
	return withOutput(func(w io.Writer) error {
		return export.WriteDelays(w, stopID, ds)
	})
}

func withOutput(write func(io.Writer) error) error {
	if exportOutput == "" || exportOutput == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("creating %s: %w", exportOutput, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
