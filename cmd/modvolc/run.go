package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/modvolc-etl/internal/pipeline"
)

func runCommand(a *app) *cobra.Command {
	var rawOut, payloadFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, aggregate and render the report once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := pipeline.OptionsFromConfig(a.cfg)
			opts.RawOut = rawOut
			opts.PayloadFile = payloadFile

			p, cleanup := a.newPipeline(opts)
			defer cleanup()

			_, err := p.Run(cmd.Context())
			a.writeTextfile()
			return err
		},
	}
	cmd.Flags().StringVar(&rawOut, "raw-out", "", "save the fetched payload to this file")
	cmd.Flags().StringVar(&payloadFile, "payload", "", "parse this saved payload instead of querying the archive")
	return cmd
}

// writeTextfile dumps the metrics for the node-exporter textfile collector
// when METRICS_TEXTFILE is set.
func (a *app) writeTextfile() {
	path := a.cfg.MetricsTextfile
	if path == "" {
		return
	}
	if err := a.metrics.WriteTextfile(path); err != nil {
		a.logger.Error("failed to write metrics textfile", "path", path, "error", err)
		return
	}
	a.logger.Debug("metrics textfile written", "path", path)
}
