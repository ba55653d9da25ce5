package server

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/malbeclabs/aquabot/internal/chart"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultMaxBodyBytes    = 64 << 10
)

type Config struct {
	Logger   *slog.Logger
	Listener net.Listener

	// Answerer is nil when the source tables failed to load; every question
	// is then answered with a fixed unavailable message.
	Answerer Answerer

	// Optional.
	MetricsListener net.Listener
	// ChartDir is served under ChartURLPrefix when set.
	ChartDir       string
	ChartURLPrefix string
	CORSOrigins    []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Listener == nil {
		return errors.New("listener is required")
	}
	c.ChartURLPrefix = chart.NormalizeURLPrefix(c.ChartURLPrefix)
	if c.ChartURLPrefix == "/" {
		return errors.New("chart url prefix must not be the root path")
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}

	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.ReadTimeout < 0 {
		return errors.New("read timeout must be > 0")
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.WriteTimeout < 0 {
		return errors.New("write timeout must be > 0")
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout must be > 0")
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.MaxBodyBytes < 0 {
		return errors.New("max body bytes must be > 0")
	}
	return nil
}
