package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/malbeclabs/aquabot/internal/chart"
	"github.com/malbeclabs/aquabot/internal/config"
	"github.com/malbeclabs/aquabot/internal/router"
	"github.com/malbeclabs/aquabot/internal/store"
	"github.com/malbeclabs/aquabot/internal/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gonum.org/v1/plot/vg"
)

func addDataFlags(fs *pflag.FlagSet) {
	fs.String("districts", store.DefaultDistrictsPath, "path to the district summary table")
	fs.String("blocks", store.DefaultBlocksPath, "path to the block condition table")
	fs.String("recharge", store.DefaultRechargePath, "path to the yearly recharge table")
	fs.String("availability", store.DefaultAvailabilityPath, "path to the yearly availability table")
	fs.String("loader", table.LoaderCSV, "table loader (csv, duckdb)")
	fs.String("delimiter", ",", "field delimiter of the source tables")
}

func addChartFlags(fs *pflag.FlagSet) {
	fs.String("chart-sink", config.SinkLocal, "where rendered charts are stored (local, s3)")
	fs.String("chart-dir", chart.DefaultDir, "directory for locally stored charts")
	fs.Duration("chart-cache-ttl", 0, "reuse a rendered chart for identical requests within this window (zero disables)")
}

// loadConfig reads the config file and environment, then applies any flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, cmd.Flags()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, fs *pflag.FlagSet) error {
	strs := map[string]*string{
		"districts":    &cfg.Data.DistrictsPath,
		"blocks":       &cfg.Data.BlocksPath,
		"recharge":     &cfg.Data.RechargePath,
		"availability": &cfg.Data.AvailabilityPath,
		"loader":       &cfg.Data.Loader,
		"delimiter":    &cfg.Data.Delimiter,
		"chart-sink":   &cfg.Chart.Sink,
		"chart-dir":    &cfg.Chart.Dir,
		"listen":       &cfg.Server.ListenAddr,
		"metrics-addr": &cfg.Server.MetricsAddr,
	}
	for name, dst := range strs {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
	}
	if fs.Lookup("chart-cache-ttl") != nil && fs.Changed("chart-cache-ttl") {
		v, err := fs.GetDuration("chart-cache-ttl")
		if err != nil {
			return fmt.Errorf("failed to get chart-cache-ttl flag: %w", err)
		}
		cfg.Chart.CacheTTL = v
	}
	return nil
}

func loadStore(ctx context.Context, log *slog.Logger, cfg *config.Config) (*store.Store, error) {
	loader, err := table.NewLoader(cfg.Data.Loader, cfg.Comma())
	if err != nil {
		return nil, err
	}
	return store.Load(ctx, &store.Config{
		Logger:           log,
		Loader:           loader,
		DistrictsPath:    cfg.Data.DistrictsPath,
		BlocksPath:       cfg.Data.BlocksPath,
		RechargePath:     cfg.Data.RechargePath,
		AvailabilityPath: cfg.Data.AvailabilityPath,
	})
}

func newSink(ctx context.Context, log *slog.Logger, cfg *config.Config) (chart.Sink, error) {
	switch cfg.Chart.Sink {
	case config.SinkS3:
		return chart.NewS3Sink(ctx, &chart.S3Config{
			Logger:          log,
			Bucket:          cfg.Chart.S3.Bucket,
			Region:          cfg.Chart.S3.Region,
			Prefix:          cfg.Chart.S3.Prefix,
			EndpointURL:     cfg.Chart.S3.EndpointURL,
			PublicURL:       cfg.Chart.S3.PublicURL,
			AccessKeyID:     cfg.Chart.S3.AccessKeyID,
			SecretAccessKey: cfg.Chart.S3.SecretAccessKey,
		})
	default:
		return chart.NewLocalSink(cfg.Chart.Dir, cfg.Chart.URLPrefix), nil
	}
}

func newRouter(ctx context.Context, log *slog.Logger, cfg *config.Config, s *store.Store) (*router.Router, error) {
	sink, err := newSink(ctx, log, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart sink: %w", err)
	}
	renderer, err := chart.NewRenderer(&chart.Config{
		Logger:   log,
		Sink:     sink,
		Width:    vg.Length(cfg.Chart.WidthInches) * vg.Inch,
		Height:   vg.Length(cfg.Chart.HeightInches) * vg.Inch,
		CacheTTL: cfg.Chart.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chart renderer: %w", err)
	}
	return router.New(&router.Config{
		Logger:   log,
		Store:    s,
		Renderer: renderer,
	})
}
