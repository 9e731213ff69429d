package regradar

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen: ":9000"
db_path: "radar.db"
api_key: "k"
sources:
  - name: "EUR-Lex"
    url: "https://eur-lex.europa.eu/feed"
    type: rss
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.DBPath != "radar.db" {
		t.Errorf("explicit fields: %+v", cfg)
	}
	// Unset fields keep defaults.
	if cfg.FetchTimeoutSec != 30 || cfg.Concurrency != 4 || cfg.MaxFailCount != 10 {
		t.Errorf("defaults: %+v", cfg)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "EUR-Lex" {
		t.Errorf("sources: %+v", cfg.Sources)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []SourceSeed{{Name: "bad", URL: ""}}
	if err := cfg.Validate(); err == nil {
		t.Error("empty source url should fail validation")
	}

	cfg.Sources = []SourceSeed{{Name: "bad", URL: "https://x.example", Type: "carrier-pigeon"}}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown source type should fail validation")
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDefaultSourcesAreSeedable(t *testing.T) {
	for i, s := range DefaultSources() {
		if s.Name == "" || s.URL == "" || s.Type != "rss" {
			t.Errorf("sources[%d]: %+v", i, s)
		}
	}
}
