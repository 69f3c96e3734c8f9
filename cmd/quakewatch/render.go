package main

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/quakewatch/internal/config"
	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	renderCoords string
	renderTitle  string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render an event map locally without publishing",
	Long: `Fetches the static map for the given point, draws the title and watermark,
and writes new_map.png under STATE_DIR. Telegram credentials are not required.`,
	Example: `  quakewatch render --coords -117.8987,38.1577 --title "M 4.2 - 24 km SE of Mina, Nevada"`,
	RunE:    runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderCoords, "coords", "", "epicenter as lon,lat")
	renderCmd.Flags().StringVar(&renderTitle, "title", "Map test", "text drawn across the map")
	_ = renderCmd.MarkFlagRequired("coords")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	coords, err := domain.ParseCoordinates(renderCoords)
	if err != nil {
		return err
	}
	if !coords.Valid() {
		return fmt.Errorf("coordinates %q are not finite", renderCoords)
	}

	cfg, err := config.LoadLocal()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	renderer := newRenderer(cfg, logger, observability.NewMetricsWith(prometheus.NewRegistry()))
	art, err := renderer.Render(cmd.Context(), coords, renderTitle)
	if errors.Is(err, domain.ErrMapUnavailable) {
		return fmt.Errorf("no map scale accepted for %s: %w", coords, err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (span %s, %d bytes)\n", art.Path, art.Span, len(art.Image))
	return nil
}
