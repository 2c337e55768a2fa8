package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type cliTestEnv struct {
	server        *httptest.Server
	configPath    string
	watchlistPath string
	stateDir      string
	cacheDir      string
}

const testWatchlist = `
audiobooks:
  author:
    Yuu Tanaka:
      - title: Reincarnated as a Sword
        series: Reincarnated as a Sword
        narrator: Josh Hurley
`

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(base, "xdg-cache"))
	for _, key := range []string{"AUDIOSTACKER_WATCHLIST", "AUDIBLE_MARKETPLACE", "AUDIOSTACKER_LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}

	server := httptest.NewServer(fakeCatalog(t))
	t.Cleanup(server.Close)

	env := &cliTestEnv{
		server:        server,
		configPath:    filepath.Join(homeDir, ".config", "audiostacker", "config.toml"),
		watchlistPath: filepath.Join(base, "audiobooks.yaml"),
		stateDir:      filepath.Join(base, "state"),
		cacheDir:      filepath.Join(base, "cache"),
	}
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, env)
	if err := os.WriteFile(env.watchlistPath, []byte(testWatchlist), 0o644); err != nil {
		t.Fatalf("write watchlist: %v", err)
	}
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
cache_dir = %q
watchlist = %q

[audible]
base_url = %q

[rate_limits]
audible_api_per_minute = 60000

[retry]
base_delay_ms = 1
max_delay_seconds = 1

[logging]
level = "error"
`, env.stateDir, env.cacheDir, env.watchlistPath, env.server.URL)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func releaseIn(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func swordProduct(asin string, volume int, release string) map[string]any {
	return map[string]any{
		"asin":              asin,
		"title":             fmt.Sprintf("Reincarnated as a Sword, Vol. %d", volume),
		"authors":           []map[string]any{{"name": "Yuu Tanaka"}},
		"narrators":         []map[string]any{{"name": "Josh Hurley"}},
		"publisher_name":    "Seven Seas Siren",
		"publisher_summary": "<p>Fran and <b>her sword</b> head north.</p>",
		"series":            []map[string]any{{"title": "Reincarnated as a Sword", "sequence": fmt.Sprint(volume)}},
		"release_date":      release,
		"language":          "english",
	}
}

// fakeCatalog answers author, series and title searches for one series plus product lookups.
func fakeCatalog(t *testing.T) http.Handler {
	volumes := map[string]map[string]any{
		"B0SWORD01": swordProduct("B0SWORD01", 1, "2019-06-18"),
		"B0SWORD09": swordProduct("B0SWORD09", 9, releaseIn(30)),
		"B0SWORD10": swordProduct("B0SWORD10", 10, releaseIn(60)),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/products", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var products []map[string]any
		switch {
		case q.Get("page") != "":
		case q.Get("series") == "Reincarnated as a Sword":
			products = append(products, volumes["B0SWORD10"], volumes["B0SWORD09"], volumes["B0SWORD01"])
		case q.Get("author") == "Yuu Tanaka":
			products = append(products, volumes["B0SWORD09"], volumes["B0SWORD01"])
		case strings.Contains(q.Get("title"), "Reincarnated as a Sword"):
			products = append(products, volumes["B0SWORD10"], volumes["B0SWORD09"])
		}
		if products == nil {
			products = []map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"products": products}); err != nil {
			t.Errorf("encode products: %v", err)
		}
	})
	mux.HandleFunc("/catalog/products/", func(w http.ResponseWriter, r *http.Request) {
		asin := strings.TrimPrefix(r.URL.Path, "/catalog/products/")
		product, ok := volumes[asin]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"product": product}); err != nil {
			t.Errorf("encode product: %v", err)
		}
	})
	return mux
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeJSON(t *testing.T, raw string, target any) {
	t.Helper()
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
