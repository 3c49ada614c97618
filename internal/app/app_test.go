package app

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ayusman/facelab/internal/config"
	"github.com/ayusman/facelab/internal/detector"
	"github.com/ayusman/facelab/testdata"
)

func testConfig(t *testing.T, variant config.Variant) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg, err := config.Load([]string{"-data", dir, "-variant", string(variant), "-addr", "127.0.0.1:0"}, func(string) string { return "" })
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func post(t *testing.T, h http.Handler, route string, body any) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, route, &buf))

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s: response is not JSON: %q", route, rec.Body.String())
	}
	return resp
}

func TestApp_RecordsRuns(t *testing.T) {
	cfg := testConfig(t, config.VariantFull)

	loader := detector.NewMockLoader()
	loader.Register(detector.DefaultModel, detector.NewMockEngine(detector.Box{X: 1, Y: 1, Width: 8, Height: 8}))

	a, err := New(cfg, nil, Options{Engines: loader})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	img, err := testdata.WriteSolid(t.TempDir(), "in.png", 40, 40, color.RGBA{R: 255, A: 255})
	if err != nil {
		t.Fatal(err)
	}

	resp := post(t, a.Handler(), "/api/face/detect", map[string]any{"value": img})
	if resp["status"] != "success" {
		t.Fatalf("pipeline failed: %v", resp["msg"])
	}

	runs, err := a.Store().Runs().List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Faces != 1 {
		t.Errorf("recorded runs = %+v", runs)
	}
}

func TestApp_MissingCascade(t *testing.T) {
	cfg := testConfig(t, config.VariantBasic)
	cfg.CascadeDirs = []string{t.TempDir()}

	a, err := New(cfg, nil, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	resp := post(t, a.Handler(), "/api/step1_init", map[string]any{"model": "missing_cascade.xml"})
	if resp["status"] != "error" || resp["kind"] != "ResourceLoadError" {
		t.Errorf("init with a missing cascade = %v", resp)
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, config.VariantBasic)

	// Pick a free port up front so the test can reach the server.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Addr = l.Addr().String()
	l.Close()

	a, err := New(cfg, nil, Options{Engines: detector.NewMockLoader()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := "http://" + cfg.Addr + "/api/health"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if _, err := os.Stat(cfg.DBPath); err != nil {
		t.Errorf("database missing after shutdown: %v", err)
	}
}
