package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"urbanflow/internal/validate"
	"urbanflow/internal/ztm"
)

var stopsCmd = &cobra.Command{
	Use:   "stops",
	Short: "Lists passenger stops from today's catalog",
	Args:  cobra.NoArgs,
	RunE:  listStops,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Searches stops by name, code or description",
	Args:  cobra.ExactArgs(1),
	RunE:  searchStops,
}

var stopCmd = &cobra.Command{
	Use:   "stop <stopId>",
	Short: "Shows a single stop",
	Args:  cobra.ExactArgs(1),
	RunE:  showStop,
}

var nearbyCmd = &cobra.Command{
	Use:   "nearby <lat> <lon> [radius] [limit]",
	Short: "Lists stops near a geographical location",
	Args:  cobra.RangeArgs(2, 4),
	RunE:  nearbyStops,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "cache-stats",
	Short: "Loads the catalog once and prints cache diagnostics",
	Args:  cobra.NoArgs,
	RunE:  cacheStats,
}

func init() {
	rootCmd.AddCommand(stopsCmd, searchCmd, stopCmd, nearbyCmd, cacheStatsCmd)
}

func printStops(list []ztm.Stop) {
	for _, s := range list {
		fmt.Printf("%d: %s %s\n", s.StopID, s.StopName, s.StopCode)
	}
	fmt.Printf("(%d stops)\n", len(list))
}

func listStops(cmd *cobra.Command, args []string) error {
	all, err := newCache(newClient()).Stops(cmd.Context())
	if err != nil {
		return err
	}
	printStops(all)
	return nil
}

func searchStops(cmd *cobra.Command, args []string) error {
	found, err := newCache(newClient()).Search(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printStops(found)
	return nil
}

func showStop(cmd *cobra.Command, args []string) error {
	stopID, err := validate.StopID(args[0])
	if err != nil {
		return err
	}
	stop, ok, err := newCache(newClient()).StopByID(cmd.Context(), stopID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stop %d not found", stopID)
	}
	return printJSON(stop)
}

func nearbyStops(cmd *cobra.Command, args []string) error {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid lat: %w", err)
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid lon: %w", err)
	}
	radius := 500.0
	if len(args) >= 3 {
		radius, err = strconv.ParseFloat(args[2], 64)
		if err != nil || radius <= 0 {
			return fmt.Errorf("invalid radius %q", args[2])
		}
	}
	limit := 0
	if len(args) == 4 {
		limit, err = strconv.Atoi(args[3])
		if err != nil || limit < 0 {
			return fmt.Errorf("limit must be >= 0")
		}
	}

	found, err := newCache(newClient()).Nearby(cmd.Context(), lat, lon, radius, limit)
	if err != nil {
		return err
	}
	for _, ns := range found {
		fmt.Printf("%d: %s (%.0f m)\n", ns.Stop.StopID, ns.Stop.StopName, ns.DistanceMeters)
	}
	return nil
}

func cacheStats(cmd *cobra.Command, args []string) error {
	cache := newCache(newClient())
	if _, err := cache.Snapshot(cmd.Context()); err != nil {
		return err
	}
	return printJSON(cache.Stats())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
