package chart_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/aquabot/internal/chart"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

type mockSink struct {
	mu      sync.Mutex
	names   []string
	PutFunc func(ctx context.Context, name string, data []byte) (string, error)
}

func (m *mockSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	m.names = append(m.names, name)
	m.mu.Unlock()
	if m.PutFunc != nil {
		return m.PutFunc(ctx, name, data)
	}
	return "/static/plots/" + name, nil
}

func newTestRenderer(t *testing.T, sink chart.Sink, ttl time.Duration) *chart.Renderer {
	t.Helper()
	r, err := chart.NewRenderer(&chart.Config{
		Logger:   logger,
		Clock:    clockwork.NewFakeClockAt(time.Unix(1718000000, 0)),
		Sink:     sink,
		Width:    3 * vg.Inch,
		Height:   2 * vg.Inch,
		CacheTTL: ttl,
	})
	require.NoError(t, err)
	return r
}

func TestAquabot_Chart_Renderer_Render(t *testing.T) {
	t.Parallel()

	sink := &mockSink{}
	r := newTestRenderer(t, sink, -1)

	req := testRequest()
	req.District = "sant kabir nagar"
	url, err := r.Render(context.Background(), req)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^/static/plots/recharge_sant_kabir_nagar_1718000000_[0-9a-f]{8}\.png$`), url)
}

func TestAquabot_Chart_Renderer_UniqueNames(t *testing.T) {
	t.Parallel()

	sink := &mockSink{}
	r := newTestRenderer(t, sink, 0)

	first, err := r.Render(context.Background(), testRequest())
	require.NoError(t, err)
	second, err := r.Render(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Len(t, sink.names, 2)
}

func TestAquabot_Chart_Renderer_Cache(t *testing.T) {
	t.Parallel()

	sink := &mockSink{}
	r := newTestRenderer(t, sink, time.Minute)

	first, err := r.Render(context.Background(), testRequest())
	require.NoError(t, err)
	second, err := r.Render(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, sink.names, 1)

	other := testRequest()
	other.Metric = "availability"
	third, err := r.Render(context.Background(), other)
	require.NoError(t, err)
	require.NotEqual(t, first, third)
	require.Len(t, sink.names, 2)
}

func TestAquabot_Chart_Renderer_Errors(t *testing.T) {
	t.Parallel()

	t.Run("sink failure", func(t *testing.T) {
		t.Parallel()
		sink := &mockSink{PutFunc: func(context.Context, string, []byte) (string, error) {
			return "", errors.New("disk full")
		}}
		r := newTestRenderer(t, sink, time.Minute)
		_, err := r.Render(context.Background(), testRequest())
		require.ErrorContains(t, err, "disk full")

		// Failures are not cached.
		_, err = r.Render(context.Background(), testRequest())
		require.Error(t, err)
		require.Len(t, sink.names, 2)
	})

	t.Run("encode failure", func(t *testing.T) {
		t.Parallel()
		sink := &mockSink{}
		r := newTestRenderer(t, sink, -1)
		req := testRequest()
		req.Values = nil
		_, err := r.Render(context.Background(), req)
		require.Error(t, err)
		require.Empty(t, sink.names)
	})
}

func TestAquabot_Chart_Config_Validate(t *testing.T) {
	t.Parallel()

	require.EqualError(t, (&chart.Config{}).Validate(), "logger is required")
	require.EqualError(t, (&chart.Config{Logger: logger}).Validate(), "sink is required")

	cfg := &chart.Config{Logger: logger, Sink: &mockSink{}}
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Clock)
	require.Equal(t, chart.DefaultWidth, cfg.Width)
	require.Zero(t, cfg.CacheTTL)
}

func TestAquabot_Chart_FileName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "availability_agra_1718000000_deadbeef.png",
		chart.FileName("availability", "Agra", time.Unix(1718000000, 0), "deadbeef"))
	require.Equal(t, "recharge_sant_kabir_nagar_5_abc.png",
		chart.FileName("recharge", "Sant Kabir Nagar", time.Unix(5, 0), "abc"))
}
