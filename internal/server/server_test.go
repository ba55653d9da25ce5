package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/malbeclabs/aquabot/internal/chart"
	"github.com/malbeclabs/aquabot/internal/router"
	"github.com/malbeclabs/aquabot/internal/server"
	"github.com/stretchr/testify/require"
)

type mockAnswerer struct {
	AnswerFunc func(ctx context.Context, question string) router.Response
}

func (m *mockAnswerer) Answer(ctx context.Context, question string) router.Response {
	return m.AnswerFunc(ctx, question)
}

func echoAnswerer() *mockAnswerer {
	return &mockAnswerer{AnswerFunc: func(_ context.Context, q string) router.Response {
		if strings.HasPrefix(q, "plot") {
			return router.Response{GraphURL: "/static/plots/recharge_agra_1.png", Intent: router.IntentChart}
		}
		return router.Response{Answer: "you asked: " + q, Intent: router.IntentReport}
	}}
}

func newTestServer(t *testing.T, cfg *server.Config) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	cfg.Logger = logger
	cfg.Listener = ln
	srv, err := server.New(cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postAsk(t *testing.T, url, body string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Post(url+"/ask", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, map[string]string{"body": strings.TrimSpace(string(raw))}
	}
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var out map[string]string
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestAquabot_Server_Ask(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &server.Config{Answerer: echoAnswerer()})

	t.Run("answer", func(t *testing.T) {
		t.Parallel()
		status, body := postAsk(t, ts.URL, `{"message":"status of Agra"}`)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, map[string]string{"answer": "you asked: status of Agra"}, body)
	})

	t.Run("graph url", func(t *testing.T) {
		t.Parallel()
		status, body := postAsk(t, ts.URL, `{"message":"plot recharge for agra"}`)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, map[string]string{"graph_url": "/static/plots/recharge_agra_1.png"}, body)
	})

	t.Run("missing message is empty text", func(t *testing.T) {
		t.Parallel()
		status, body := postAsk(t, ts.URL, `{}`)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "you asked: ", body["answer"])
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		status, body := postAsk(t, ts.URL, `{"message":`)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Invalid request body", body["body"])
	})

	t.Run("body too large", func(t *testing.T) {
		t.Parallel()
		big := fmt.Sprintf(`{"message":%q}`, strings.Repeat("a", 128<<10))
		status, _ := postAsk(t, ts.URL, big)
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("get not allowed", func(t *testing.T) {
		t.Parallel()
		resp, err := http.Get(ts.URL + "/ask")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestAquabot_Server_Ask_Unavailable(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &server.Config{})

	status, body := postAsk(t, ts.URL, `{"message":"status of Agra"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]string{"answer": router.UnavailableMessage}, body)

	for _, raw := range []string{"not json", "", `{"message":`} {
		status, body = postAsk(t, ts.URL, raw)
		require.Equal(t, http.StatusOK, status, raw)
		require.Equal(t, map[string]string{"answer": router.UnavailableMessage}, body, raw)
	}

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health server.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, server.HealthResponse{Status: "ok", DataLoaded: false}, health)
}

func TestAquabot_Server_Ask_RecoversPanic(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &server.Config{Answerer: &mockAnswerer{
		AnswerFunc: func(context.Context, string) router.Response { panic("boom") },
	}})

	status, _ := postAsk(t, ts.URL, `{"message":"x"}`)
	require.Equal(t, http.StatusInternalServerError, status)

	// The server keeps serving after a recovered panic.
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAquabot_Server_Index(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &server.Config{Answerer: echoAnswerer()})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(page), "<title>Aquabot</title>")
}

func TestAquabot_Server_Health(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &server.Config{Answerer: echoAnswerer()})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health server.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.True(t, health.DataLoaded)
}

func TestAquabot_Server_Charts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recharge_agra_1.png"), []byte("png-bytes"), 0o644))

	ts := newTestServer(t, &server.Config{Answerer: echoAnswerer(), ChartDir: dir})

	resp, err := http.Get(ts.URL + "/static/plots/recharge_agra_1.png")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "png-bytes", string(body))

	resp, err = http.Get(ts.URL + "/static/plots/missing.png")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/static/plots/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAquabot_Server_Charts_SinkURLsResolve(t *testing.T) {
	t.Parallel()

	for _, prefix := range []string{"plots", "/plots/", ""} {
		t.Run("prefix "+prefix, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			url, err := chart.NewLocalSink(dir, prefix).Put(context.Background(), "availability_agra_1.png", []byte("png-bytes"))
			require.NoError(t, err)

			ts := newTestServer(t, &server.Config{Answerer: echoAnswerer(), ChartDir: dir, ChartURLPrefix: prefix})
			resp, err := http.Get(ts.URL + url)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode, url)
			require.Equal(t, "png-bytes", string(body))
		})
	}
}

func TestAquabot_Server_Charts_NotServedWithoutDir(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &server.Config{Answerer: echoAnswerer()})

	resp, err := http.Get(ts.URL + "/static/plots/recharge_agra_1.png")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAquabot_Server_CORS(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &server.Config{Answerer: echoAnswerer(), CORSOrigins: []string{"http://localhost:5173"}})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/ask", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAquabot_Server_Run(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	metricsLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv, err := server.New(&server.Config{
		Logger:          logger,
		Listener:        ln,
		MetricsListener: metricsLn,
		Answerer:        echoAnswerer(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := srv.Start(ctx, cancel)

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://" + metricsLn.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "aquabot_http_requests_total")

	cancel()
	select {
	case err, ok := <-errCh:
		if ok {
			require.NoError(t, err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestAquabot_Server_Config_Validate(t *testing.T) {
	t.Parallel()

	require.EqualError(t, (&server.Config{}).Validate(), "logger is required")
	require.EqualError(t, (&server.Config{Logger: logger}).Validate(), "listener is required")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := &server.Config{Logger: logger, Listener: ln, ChartURLPrefix: "charts/"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, "/charts", cfg.ChartURLPrefix)
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)

	cfg = &server.Config{Logger: logger, Listener: ln, ReadTimeout: -1}
	require.EqualError(t, cfg.Validate(), "read timeout must be > 0")
}
