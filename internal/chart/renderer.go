package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/aquabot/internal/metrics"
	"gonum.org/v1/plot/vg"
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Sink   Sink

	Width  vg.Length
	Height vg.Length

	// CacheTTL is how long a rendered chart URL is reused for identical
	// requests. Zero or negative disables the cache, so every request gets
	// its own file.
	CacheTTL time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Sink == nil {
		return errors.New("sink is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	return nil
}

// Renderer encodes chart requests and stores them through a Sink.
type Renderer struct {
	cfg   *Config
	cache *ttlcache.Cache[string, string]
}

func NewRenderer(cfg *Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{cfg: cfg}
	if cfg.CacheTTL > 0 {
		r.cache = ttlcache.New(
			ttlcache.WithTTL[string, string](cfg.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		)
	}
	return r, nil
}

// Render draws req and returns the URL of the stored image.
func (r *Renderer) Render(ctx context.Context, req Request) (string, error) {
	key := cacheKey(req)
	if r.cache != nil {
		if item := r.cache.Get(key); item != nil {
			metrics.ChartCacheHits.Inc()
			metrics.ChartRenders.WithLabelValues(req.Metric, "cached").Inc()
			return item.Value(), nil
		}
	}

	start := r.cfg.Clock.Now()
	url, err := r.render(ctx, req, start)
	metrics.ChartRenderDuration.WithLabelValues(req.Metric).Observe(r.cfg.Clock.Since(start).Seconds())
	if err != nil {
		metrics.ChartRenders.WithLabelValues(req.Metric, "error").Inc()
		return "", err
	}
	metrics.ChartRenders.WithLabelValues(req.Metric, "ok").Inc()

	if r.cache != nil {
		r.cache.Set(key, url, ttlcache.DefaultTTL)
	}
	r.cfg.Logger.Debug("Rendered chart", "metric", req.Metric, "district", req.District, "url", url)
	return url, nil
}

func (r *Renderer) render(ctx context.Context, req Request, now time.Time) (string, error) {
	data, err := Encode(req, r.cfg.Width, r.cfg.Height)
	if err != nil {
		return "", err
	}
	name := FileName(req.Metric, req.District, now, uuid.NewString()[:8])
	url, err := r.cfg.Sink.Put(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("failed to store chart: %w", err)
	}
	return url, nil
}

// FileName returns <metric>_<district>_<unix seconds>_<suffix>.png with the
// district lower-cased and spaces replaced by underscores.
func FileName(metric, district string, now time.Time, suffix string) string {
	d := strings.ReplaceAll(strings.ToLower(district), " ", "_")
	return fmt.Sprintf("%s_%s_%d_%s.png", metric, d, now.Unix(), suffix)
}

func cacheKey(req Request) string {
	return req.Metric + ":" + strings.ToLower(req.District)
}
