package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alitto/pond/v2"
	"github.com/malbeclabs/aquabot/internal/metrics"
	"github.com/malbeclabs/aquabot/internal/table"
)

const (
	DefaultDistrictsPath    = "up.csv"
	DefaultBlocksPath       = "up2.csv"
	DefaultRechargePath     = "rechargefinal.csv"
	DefaultAvailabilityPath = "availablefinal.csv"

	defaultLoadConcurrency = 4
)

type Config struct {
	Logger *slog.Logger
	Loader table.Loader

	DistrictsPath    string
	BlocksPath       string
	RechargePath     string
	AvailabilityPath string

	LoadConcurrency int
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Loader == nil {
		c.Loader = &table.CSVLoader{}
	}
	if c.DistrictsPath == "" {
		c.DistrictsPath = DefaultDistrictsPath
	}
	if c.BlocksPath == "" {
		c.BlocksPath = DefaultBlocksPath
	}
	if c.RechargePath == "" {
		c.RechargePath = DefaultRechargePath
	}
	if c.AvailabilityPath == "" {
		c.AvailabilityPath = DefaultAvailabilityPath
	}
	if c.LoadConcurrency <= 0 {
		c.LoadConcurrency = defaultLoadConcurrency
	}
	return nil
}

type loadResult struct {
	name  string
	table *table.Table
	err   error
}

// Load reads the four source tables and builds a store. Every failed source is
// logged and counted; if any source fails the store is absent and the joined
// errors are returned.
func Load(ctx context.Context, cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sources := []struct{ name, path string }{
		{"districts", cfg.DistrictsPath},
		{"blocks", cfg.BlocksPath},
		{"recharge", cfg.RechargePath},
		{"availability", cfg.AvailabilityPath},
	}

	pool := pond.NewResultPool[loadResult](cfg.LoadConcurrency)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for _, src := range sources {
		group.Submit(func() loadResult {
			tbl, err := cfg.Loader.Load(ctx, src.path)
			observeLoad(cfg.Logger, src.name, src.path, tbl, err)
			return loadResult{name: src.name, table: tbl, err: err}
		})
	}

	results, err := group.Wait()
	if err != nil {
		metrics.DataLoaded.Set(0)
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
		}
	}
	if len(errs) > 0 {
		metrics.DataLoaded.Set(0)
		return nil, errors.Join(errs...)
	}

	s, err := New(Tables{
		Districts:    results[0].table,
		Blocks:       results[1].table,
		Recharge:     results[2].table,
		Availability: results[3].table,
	})
	if err != nil {
		cfg.Logger.Error("Source tables are missing required columns", "error", err)
		metrics.DataLoaded.Set(0)
		return nil, err
	}

	metrics.DataLoaded.Set(1)
	cfg.Logger.Info("Loaded source tables",
		"districts", len(s.districts),
		"blocks", len(s.blocks),
	)
	return s, nil
}

func observeLoad(log *slog.Logger, name, path string, tbl *table.Table, err error) {
	switch {
	case err == nil:
		metrics.TableLoads.WithLabelValues(name, "ok").Inc()
		metrics.TableRows.WithLabelValues(name).Set(float64(tbl.Len()))
		log.Debug("Loaded table", "table", name, "path", path, "rows", tbl.Len())
	case errors.Is(err, table.ErrEmpty):
		metrics.TableLoads.WithLabelValues(name, "empty").Inc()
		log.Warn("Table source is empty", "table", name, "path", path)
	case errors.Is(err, table.ErrNotFound):
		metrics.TableLoads.WithLabelValues(name, "missing").Inc()
		log.Error("Table source not found", "table", name, "path", path)
	default:
		metrics.TableLoads.WithLabelValues(name, "error").Inc()
		log.Error("Failed to load table", "table", name, "path", path, "error", err)
	}
}
