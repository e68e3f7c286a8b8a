package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kodbox/internal/config"
)

// startServer builds the serve handler for the config at cfgPath and serves
// it with httptest. The returned func stops the server and closes the env.
func startServer(t *testing.T, cfgPath string, so serveOptions) (*server, *httptest.Server, func()) {
	t.Helper()
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetErr(io.Discard)

	srv, err := newServer(cmd, cfg, so)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	ts := httptest.NewServer(srv.handler)

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		ts.Close()
		srv.Close()
	}
	t.Cleanup(stop)
	return srv, ts, stop
}

func request(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(data))
}

func TestServeRecoversAfterRestart(t *testing.T) {
	cfgPath := sqliteConfig(t)

	_, first, stop := startServer(t, cfgPath, serveOptions{})
	if code, body := request(t, http.MethodPut, first.URL+"/state/a?persist", `{"n":1}`); code != http.StatusNoContent {
		t.Fatalf("PUT = %d %s", code, body)
	}
	stop()

	_, second, _ := startServer(t, cfgPath, serveOptions{})
	if code, body := request(t, http.MethodGet, second.URL+"/state/a", ""); code != http.StatusOK || body != `{"n":1}` {
		t.Errorf("GET after restart = %d %s, want 200 {\"n\":1}", code, body)
	}
}

func TestServeSeesCLIState(t *testing.T) {
	cfgPath := sqliteConfig(t)
	mustRun(t, "--config", cfgPath, "set", "greeting", `"hello"`)

	srv, ts, _ := startServer(t, cfgPath, serveOptions{})
	if got := srv.slot.Key(); got != config.DefaultSlot {
		t.Errorf("slot = %q, want %q", got, config.DefaultSlot)
	}
	if code, body := request(t, http.MethodGet, ts.URL+"/state/greeting", ""); code != http.StatusOK || body != `"hello"` {
		t.Errorf("GET greeting = %d %s", code, body)
	}
}

func TestServeNewSession(t *testing.T) {
	cfgPath := sqliteConfig(t)
	mustRun(t, "--config", cfgPath, "set", "k", "1")

	srv, ts, _ := startServer(t, cfgPath, serveOptions{newSession: true})
	key := srv.slot.Key()
	if key == config.DefaultSlot || !strings.HasSuffix(key, ":"+config.DefaultSlot) {
		t.Errorf("slot = %q, want <session>:%s", key, config.DefaultSlot)
	}
	if code, _ := request(t, http.MethodGet, ts.URL+"/state/k", ""); code != http.StatusNotFound {
		t.Errorf("GET k in a new session = %d, want 404", code)
	}
}

func TestServeMetrics(t *testing.T) {
	cfgPath := sqliteConfig(t)

	_, ts, _ := startServer(t, cfgPath, serveOptions{metrics: true})
	request(t, http.MethodPut, ts.URL+"/state/a?persist", `1`)

	code, body := request(t, http.MethodGet, ts.URL+"/metrics", "")
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", code)
	}
	for _, name := range []string{
		"kodbox_store_broadcasts_total",
		"kodbox_store_persist_writes_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("/metrics is missing %s", name)
		}
	}
}

func TestServeWithoutMetrics(t *testing.T) {
	cfgPath := sqliteConfig(t)

	_, ts, _ := startServer(t, cfgPath, serveOptions{})
	if code, _ := request(t, http.MethodGet, ts.URL+"/metrics", ""); code != http.StatusNotFound {
		t.Errorf("GET /metrics without --metrics = %d, want 404", code)
	}
}

func TestServeUntilDoneShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	hs := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveUntilDone(ctx, hs, ln, newLogger(io.Discard, "error"))
	}()

	url := "http://" + ln.Addr().String()
	if code, _ := request(t, http.MethodGet, url, ""); code != http.StatusNoContent {
		t.Fatalf("GET = %d, want 204", code)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serveUntilDone = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	if _, err := http.Get(url); err == nil {
		t.Error("server still accepts requests after shutdown")
	}
}
