package chart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultDir       = "static/plots"
	DefaultURLPrefix = "/static/plots"
)

// Sink stores an encoded chart and returns the URL it can be fetched from.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// LocalSink writes charts into a directory served by the HTTP server.
type LocalSink struct {
	Dir       string
	URLPrefix string
}

func NewLocalSink(dir, urlPrefix string) *LocalSink {
	if dir == "" {
		dir = DefaultDir
	}
	return &LocalSink{Dir: dir, URLPrefix: NormalizeURLPrefix(urlPrefix)}
}

// NormalizeURLPrefix returns prefix with exactly one leading slash and no
// trailing slash. An empty prefix becomes DefaultURLPrefix.
func NormalizeURLPrefix(prefix string) string {
	if prefix == "" {
		return DefaultURLPrefix
	}
	return "/" + strings.Trim(prefix, "/")
}

func (s *LocalSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid chart name %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create chart directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write chart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close chart: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("failed to chmod chart: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return "", fmt.Errorf("failed to rename chart: %w", err)
	}

	return strings.TrimSuffix(s.URLPrefix, "/") + "/" + name, nil
}
