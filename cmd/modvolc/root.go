package main

import (
	"fmt"
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/couchcryptid/modvolc-etl/internal/config"
	"github.com/couchcryptid/modvolc-etl/internal/observability"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "modvolc",
		Short:         "MODVOLC thermal anomaly report for a volcano",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	setupFlags(root, a.v)

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := a.load(cmd); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	}

	root.AddCommand(
		runCommand(a),
		serveCommand(a),
	)
	return root
}

// setupFlags defines the global flags and binds each to its configuration key,
// so flags take precedence over the environment and the config file.
func setupFlags(root *cobra.Command, v *viper.Viper) {
	f := root.PersistentFlags()
	f.String("config", "", "YAML configuration file")
	f.String("site-name", "", "volcano name, used in titles and file names")
	f.Float64("site-lat", 0, "site latitude in decimal degrees")
	f.Float64("site-lon", 0, "site longitude in decimal degrees")
	f.Float64("radius-km", 1.0, "search radius around the site in km")
	f.String("start", "", "first day of the period (YYYY-MM-DD)")
	f.String("end", "", "last day of the period (YYYY-MM-DD), defaults to today")
	f.String("output-root", ".", "directory that receives the site folder")
	f.String("gap-policy", "continuous", "period rows to emit: continuous or observed")
	f.String("marker-policy", "first-n", "which map markers are highlighted: first-n or recent-n")
	f.Bool("map-cluster", false, "cluster map markers")
	f.String("log-level", "info", "debug, info, warn or error")
	f.String("log-format", "json", "json or text")

	bindings := map[string]string{
		"site-name":     config.KeySiteName,
		"site-lat":      config.KeySiteLat,
		"site-lon":      config.KeySiteLon,
		"radius-km":     config.KeySiteRadiusKm,
		"start":         config.KeyStartDate,
		"end":           config.KeyEndDate,
		"output-root":   config.KeyOutputRoot,
		"gap-policy":    config.KeyGapPolicy,
		"marker-policy": config.KeyMarkerPolicy,
		"map-cluster":   config.KeyMapCluster,
		"log-level":     config.KeyLogLevel,
		"log-format":    config.KeyLogFormat,
	}
	for flag, key := range bindings {
		// BindPFlag only fails for a nil flag, which would be a typo above.
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func (a *app) load(cmd *cobra.Command) error {
	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	a.metrics = observability.NewMetrics()
	return nil
}
