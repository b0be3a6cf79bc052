package internal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func localConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	for name, body := range map[string]string{"cat.png": "cat-bytes", "Dog.jpg": "dog-bytes"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := NewDefaultConfig()
	cfg.Source.Kind = SourceLocal
	cfg.Source.URLForm = ""
	cfg.Local.Root = root
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "history.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, cfg *Config) (*Components, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	comps, err := Build(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = comps.Close() })

	handler, err := NewHTTPHandler(cfg, comps)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return comps, srv
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestBuild_LocalSource(t *testing.T) {
	cfg := localConfig(t)
	comps, _ := newTestServer(t, cfg)

	if comps.Cards == nil {
		t.Fatal("local source should expose the card store")
	}
	if comps.History == nil {
		t.Fatal("history should be open when a path is set")
	}
	images, err := comps.Resolver.ListImages(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("images = %d, want 2", len(images))
	}
}

func TestBuild_HistoryDisabled(t *testing.T) {
	cfg := localConfig(t)
	cfg.SQLite.Path = ""
	comps, _ := newTestServer(t, cfg)

	if comps.History != nil {
		t.Error("history should be nil without a path")
	}
	recs, err := comps.Service.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("records = %d, want 0", len(recs))
	}
}

func TestHTTPHandler_Health(t *testing.T) {
	_, srv := newTestServer(t, localConfig(t))

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		var body map[string]string
		decode(t, resp, &body)
		if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
			t.Errorf("%s: status %d body %v", path, resp.StatusCode, body)
		}
	}
}

func TestHTTPHandler_PageAndFlow(t *testing.T) {
	cfg := localConfig(t)
	cfg.Gallery.Title = "Test Deck"
	_, srv := newTestServer(t, cfg)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(page), "Test Deck") {
		t.Fatalf("page: status %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var created struct {
		ID     string `json:"id"`
		Screen string `json:"screen"`
	}
	decode(t, resp, &created)
	if resp.StatusCode != http.StatusCreated || created.ID == "" {
		t.Fatalf("create: status %d id %q", resp.StatusCode, created.ID)
	}

	resp, err = http.Post(srv.URL+"/api/sessions/"+created.ID+"/words", "application/json",
		strings.NewReader(`{"words":"dog, cat, fish"}`))
	if err != nil {
		t.Fatal(err)
	}
	var state struct {
		Screen string   `json:"screen"`
		Deck   []string `json:"deck"`
	}
	decode(t, resp, &state)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("words: status %d", resp.StatusCode)
	}
	want := []string{"/cards/Dog.jpg", "/cards/cat.png"}
	if len(state.Deck) != len(want) || state.Deck[0] != want[0] || state.Deck[1] != want[1] {
		t.Errorf("deck = %v, want %v", state.Deck, want)
	}

	resp, err = http.Get(srv.URL + state.Deck[1])
	if err != nil {
		t.Fatal(err)
	}
	img, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(img) != "cat-bytes" {
		t.Errorf("card: status %d body %q", resp.StatusCode, img)
	}
}

func TestHTTPHandler_AuthGuardsAPI(t *testing.T) {
	cfg := localConfig(t)
	cfg.Auth = AuthConfig{Mode: AuthModeToken, Token: "secret"}
	_, srv := newTestServer(t, cfg)

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/health/live")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health should stay public, got %d", resp.StatusCode)
	}
}

func TestComponents_SweepAndClose(t *testing.T) {
	cfg := localConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	comps, err := Build(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	comps.sweep(context.Background(), cfg, logger)

	if err := comps.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := comps.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
