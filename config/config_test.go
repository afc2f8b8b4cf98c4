package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:          "0.0.0.0",
			Port:             8000,
			Threads:          4,
			MaxRequestSize:   10 * 1024 * 1024,
			KeepAliveTimeout: 30 * time.Second,
			IOBufferSize:     16 * 1024,
		},
		Static: StaticConfig{
			RootDirectory:        "./static",
			MaxCacheSizeMB:       512,
			MaxFileSizeMB:        100,
			CacheTTL:             time.Hour,
			EnableCompression:    true,
			EnableRangeRequests:  true,
			EnableETags:          true,
			CompressionThreshold: 1024,
			CompressionTypes:     defaultCompressionTypes,
			ForbiddenExtensions:  defaultForbiddenExtensions,
			HiddenPrefixes:       defaultHiddenPrefixes,
		},
		JSONParser: JSONParserConfig{StrictMode: true, MaxDepth: 100},
		JSONSerial: JSONSerializerConfig{IndentSize: 2},
	}
}

func TestSplitList(t *testing.T) {
	got := splitList("text/html, text/css ,,application/json")
	want := []string{"text/html", "text/css", "application/json"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d pieces, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Piece %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if splitList("") != nil {
		t.Error("Empty input should yield nil")
	}
}

func TestApplyManagerOverrides(t *testing.T) {
	cfg := baseConfig()

	m := NewManager()
	m.Set("server.port", 9090)
	m.Set("server.keep_alive_timeout", "10s")
	m.Set("static.root_directory", "/srv/www")
	m.Set("static.enable_compression", false)
	m.Set("static.compression_types", []any{"text/html", "image/svg+xml"})
	m.Set("static.forbidden_extensions", ".tmp,.swp")
	m.Set("static.hidden_prefixes", []any{"."})
	m.Set("json_parser.allow_comments", true)
	m.Set("json_serializer.sort_keys", true)

	ApplyManager(cfg, m)

	if cfg.Server.Port != 9090 {
		t.Errorf("Port not overridden: %d", cfg.Server.Port)
	}
	if cfg.Server.KeepAliveTimeout != 10*time.Second {
		t.Errorf("Keep-alive not overridden: %v", cfg.Server.KeepAliveTimeout)
	}
	if cfg.Static.RootDirectory != "/srv/www" {
		t.Errorf("Root not overridden: %q", cfg.Static.RootDirectory)
	}
	if cfg.Static.EnableCompression {
		t.Error("Compression switch not overridden")
	}
	if len(cfg.Static.CompressionTypes) != 2 || cfg.Static.CompressionTypes[1] != "image/svg+xml" {
		t.Errorf("Compression types not overridden: %v", cfg.Static.CompressionTypes)
	}
	if len(cfg.Static.ForbiddenExtensions) != 2 || cfg.Static.ForbiddenExtensions[1] != ".swp" {
		t.Errorf("Forbidden extensions not overridden: %v", cfg.Static.ForbiddenExtensions)
	}
	if len(cfg.Static.HiddenPrefixes) != 1 {
		t.Errorf("Hidden prefixes not overridden: %v", cfg.Static.HiddenPrefixes)
	}
	if !cfg.JSONParser.AllowComments {
		t.Error("Parser knob not overridden")
	}
	if !cfg.JSONSerial.SortKeys {
		t.Error("Serializer knob not overridden")
	}

	// Untouched keys keep their flag values.
	if cfg.Server.Address != "0.0.0.0" {
		t.Errorf("Address should be untouched: %q", cfg.Server.Address)
	}
	if cfg.Static.MaxCacheSizeMB != 512 {
		t.Errorf("Cache size should be untouched: %d", cfg.Static.MaxCacheSizeMB)
	}
	if !cfg.JSONParser.StrictMode {
		t.Error("Strict mode should be untouched")
	}
}

func TestApplyManagerFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyspeed.json")
	data := `{
		"server": {"port": 8088, "threads": 2},
		"static": {
			"max_cache_size_mb": 64,
			"hidden_prefixes": ["~", "."]
		}
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	if err := m.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	cfg := baseConfig()
	ApplyManager(cfg, m)

	if cfg.Server.Port != 8088 || cfg.Server.Threads != 2 {
		t.Errorf("Server section not applied: %+v", cfg.Server)
	}
	if cfg.Static.MaxCacheSizeMB != 64 {
		t.Errorf("Cache bound not applied: %d", cfg.Static.MaxCacheSizeMB)
	}
	if len(cfg.Static.HiddenPrefixes) != 2 || cfg.Static.HiddenPrefixes[0] != "~" {
		t.Errorf("Hidden prefixes not applied: %v", cfg.Static.HiddenPrefixes)
	}
	// Flag-level values without file keys survive the merge.
	if cfg.Static.MaxFileSizeMB != 100 {
		t.Errorf("Max file size should be untouched: %d", cfg.Static.MaxFileSizeMB)
	}
}
