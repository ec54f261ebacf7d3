// README: estimate subcommand; one-shot route estimate against configured hazard zones.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"saferide/internal/config"
	"saferide/internal/logging"
	"saferide/internal/modules/hazard"
	"saferide/internal/modules/pricing"
	"saferide/internal/modules/routing"
	"saferide/internal/types"
)

var estimateFlags struct {
	fromLat, fromLng float64
	toLat, toLng     float64
	urgency          string
	planner          string
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate a route offline using hazards.zones from the config",
	RunE:  estimate,
}

func init() {
	f := estimateCmd.Flags()
	f.Float64Var(&estimateFlags.fromLat, "from-lat", 0, "pickup latitude")
	f.Float64Var(&estimateFlags.fromLng, "from-lng", 0, "pickup longitude")
	f.Float64Var(&estimateFlags.toLat, "to-lat", 0, "destination latitude")
	f.Float64Var(&estimateFlags.toLng, "to-lng", 0, "destination longitude")
	f.StringVar(&estimateFlags.urgency, "urgency", "normal", "normal or emergency")
	f.StringVar(&estimateFlags.planner, "planner", "", "override routing.planner (naive or grid)")
	for _, name := range []string{"from-lat", "from-lng", "to-lat", "to-lng"} {
		_ = estimateCmd.MarkFlagRequired(name)
	}
}

func estimate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	urgency, err := types.ParseUrgency(estimateFlags.urgency)
	if err != nil {
		return err
	}
	req := types.TripRequest{
		Pickup:      types.Point{Lat: estimateFlags.fromLat, Lng: estimateFlags.fromLng},
		Destination: types.Point{Lat: estimateFlags.toLat, Lng: estimateFlags.toLng},
		Urgency:     urgency,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	name := cfg.Routing.Planner
	if estimateFlags.planner != "" {
		name = estimateFlags.planner
	}
	planner, err := routing.NewPlanner(name, cfg.Routing.PlannerOptions())
	if err != nil {
		return err
	}
	estimator := routing.NewEstimator(planner, pricing.NewService(nil, cfg.Pricing.Rate()), cfg.Routing.Estimator(), logging.New("estimate"), nil)

	est := estimator.Estimate(req, hazard.NewSnapshot(cfg.Hazards.Zones, time.Now()))
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(est)
}
