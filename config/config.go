// Package config loads the server configuration from flags and environment
// variables, with an optional JSON file layered through Manager.
package config

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration, captured once at startup.
// Changing it requires a restart; the engine treats it as a value type.
type Config struct {
	Server     ServerConfig
	Static     StaticConfig
	JSONParser JSONParserConfig
	JSONSerial JSONSerializerConfig

	Env string
}

// ServerConfig covers the connection engine.
type ServerConfig struct {
	Address          string
	Port             int
	Threads          int
	MaxRequestSize   int
	KeepAliveTimeout time.Duration
	IOBufferSize     int
}

// StaticConfig covers the static file cache.
type StaticConfig struct {
	RootDirectory        string
	MaxCacheSizeMB       int64
	MaxFileSizeMB        int64
	CacheTTL             time.Duration
	EnableCompression    bool
	EnableRangeRequests  bool
	EnableETags          bool
	CompressionThreshold int64
	CompressionTypes     []string
	ForbiddenExtensions  []string
	HiddenPrefixes       []string
}

// JSONParserConfig covers the JSON parser knobs.
type JSONParserConfig struct {
	AllowComments       bool
	AllowTrailingCommas bool
	StrictMode          bool
	MaxDepth            int
	MaxStringLength     int
}

// JSONSerializerConfig covers the JSON serializer knobs.
type JSONSerializerConfig struct {
	PrettyPrint   bool
	IndentSize    int
	EscapeUnicode bool
	SortKeys      bool
	EnsureASCII   bool
}

// defaultCompressionTypes and friends mirror the cache's built-in lists;
// the flag layer only overrides them when the user says so.
var (
	defaultCompressionTypes = []string{
		"text/html", "text/css", "text/javascript",
		"application/javascript", "application/json", "text/xml",
	}
	defaultForbiddenExtensions = []string{".tmp", ".bak", ".log"}
	defaultHiddenPrefixes      = []string{".", "_"}
)

// splitList turns a comma-separated flag value into a trimmed slice; empty
// pieces are dropped.
func splitList(s string) []string {
	var out []string
	for _, piece := range strings.Split(s, ",") {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// New loads configuration from flags, layers an optional JSON config file
// (-config / PYSPEED_CONFIG) over the flag values through a Manager, and
// finally applies PYSPEED_* environment overrides.
func New() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Server.Address, "address", "0.0.0.0", "listen address")
	flag.IntVar(&cfg.Server.Port, "port", 8000, "listen port")
	flag.IntVar(&cfg.Server.Threads, "threads", runtime.NumCPU(), "worker threads")
	flag.IntVar(&cfg.Server.MaxRequestSize, "max-request-size", 10*1024*1024, "max request body size (bytes)")
	flag.DurationVar(&cfg.Server.KeepAliveTimeout, "keep-alive-timeout", 30*time.Second, "idle connection timeout")
	flag.IntVar(&cfg.Server.IOBufferSize, "io-buffer-size", 16*1024, "per-connection read buffer size")

	flag.StringVar(&cfg.Static.RootDirectory, "static-root", "./static", "static file root directory")
	flag.Int64Var(&cfg.Static.MaxCacheSizeMB, "cache-size-mb", 512, "static cache bound (MB)")
	flag.Int64Var(&cfg.Static.MaxFileSizeMB, "max-file-size-mb", 100, "largest cacheable file (MB)")
	flag.DurationVar(&cfg.Static.CacheTTL, "cache-ttl", 60*time.Minute, "cached entry lifetime")
	flag.BoolVar(&cfg.Static.EnableCompression, "compression", true, "gzip static responses")
	flag.BoolVar(&cfg.Static.EnableRangeRequests, "range-requests", true, "serve byte ranges")
	flag.BoolVar(&cfg.Static.EnableETags, "etags", true, "emit and validate ETags")
	flag.Int64Var(&cfg.Static.CompressionThreshold, "compression-threshold", 1024, "smallest file worth compressing (bytes)")

	var compressionTypes, forbiddenExts, hiddenPrefixes string
	flag.StringVar(&compressionTypes, "compression-types",
		strings.Join(defaultCompressionTypes, ","), "content-type prefixes eligible for gzip (comma-separated)")
	flag.StringVar(&forbiddenExts, "forbidden-extensions",
		strings.Join(defaultForbiddenExtensions, ","), "file extensions never served (comma-separated)")
	flag.StringVar(&hiddenPrefixes, "hidden-prefixes",
		strings.Join(defaultHiddenPrefixes, ","), "filename prefixes never served (comma-separated)")

	flag.BoolVar(&cfg.JSONParser.AllowComments, "json-comments", false, "accept // and /* */ comments")
	flag.BoolVar(&cfg.JSONParser.AllowTrailingCommas, "json-trailing-commas", false, "accept trailing commas")
	flag.BoolVar(&cfg.JSONParser.StrictMode, "json-strict", true, "reject trailing data after the root value")
	flag.IntVar(&cfg.JSONParser.MaxDepth, "json-max-depth", 100, "nesting depth cap")
	flag.IntVar(&cfg.JSONParser.MaxStringLength, "json-max-string", 0, "string length cap (0 = unlimited)")

	flag.BoolVar(&cfg.JSONSerial.PrettyPrint, "json-pretty", false, "indent serialized JSON")
	flag.IntVar(&cfg.JSONSerial.IndentSize, "json-indent", 2, "spaces per indent level")
	flag.BoolVar(&cfg.JSONSerial.EscapeUnicode, "json-escape-unicode", false, "escape non-ASCII as \\uXXXX")
	flag.BoolVar(&cfg.JSONSerial.SortKeys, "json-sort-keys", false, "emit object keys sorted")
	flag.BoolVar(&cfg.JSONSerial.EnsureASCII, "json-ensure-ascii", false, "alias for escape-unicode")

	flag.StringVar(&cfg.Env, "env", "development", "environment (development/production)")

	var configFile string
	flag.StringVar(&configFile, "config", "", "JSON config file layered over flag values")

	flag.Parse()

	cfg.Static.CompressionTypes = splitList(compressionTypes)
	cfg.Static.ForbiddenExtensions = splitList(forbiddenExts)
	cfg.Static.HiddenPrefixes = splitList(hiddenPrefixes)

	if configFile == "" {
		configFile = os.Getenv("PYSPEED_CONFIG")
	}
	if configFile != "" {
		m := NewManager()
		if err := m.LoadFromFile(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "config: cannot load %s: %v\n", configFile, err)
			os.Exit(1)
		}
		ApplyManager(cfg, m)
	}

	if addr := os.Getenv("PYSPEED_ADDRESS"); addr != "" {
		cfg.Server.Address = addr
	}
	if port := os.Getenv("PYSPEED_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if root := os.Getenv("PYSPEED_STATIC_ROOT"); root != "" {
		cfg.Static.RootDirectory = root
	}

	return cfg
}

// ApplyManager layers Manager values (dotted keys, as produced by
// LoadFromFile) over cfg. Missing keys keep their current values.
func ApplyManager(cfg *Config, m *Manager) {
	cfg.Server.Address = m.GetString("server.address", cfg.Server.Address)
	cfg.Server.Port = m.GetInt("server.port", cfg.Server.Port)
	cfg.Server.Threads = m.GetInt("server.threads", cfg.Server.Threads)
	cfg.Server.MaxRequestSize = m.GetInt("server.max_request_size", cfg.Server.MaxRequestSize)
	cfg.Server.KeepAliveTimeout = m.GetDuration("server.keep_alive_timeout", cfg.Server.KeepAliveTimeout)
	cfg.Server.IOBufferSize = m.GetInt("server.io_buffer_size", cfg.Server.IOBufferSize)

	cfg.Static.RootDirectory = m.GetString("static.root_directory", cfg.Static.RootDirectory)
	cfg.Static.MaxCacheSizeMB = int64(m.GetInt("static.max_cache_size_mb", int(cfg.Static.MaxCacheSizeMB)))
	cfg.Static.MaxFileSizeMB = int64(m.GetInt("static.max_file_size_mb", int(cfg.Static.MaxFileSizeMB)))
	cfg.Static.CacheTTL = m.GetDuration("static.cache_ttl", cfg.Static.CacheTTL)
	cfg.Static.EnableCompression = m.GetBool("static.enable_compression", cfg.Static.EnableCompression)
	cfg.Static.EnableRangeRequests = m.GetBool("static.enable_range_requests", cfg.Static.EnableRangeRequests)
	cfg.Static.EnableETags = m.GetBool("static.enable_etags", cfg.Static.EnableETags)
	cfg.Static.CompressionThreshold = int64(m.GetInt("static.compression_threshold", int(cfg.Static.CompressionThreshold)))
	cfg.Static.CompressionTypes = m.GetStringSlice("static.compression_types", cfg.Static.CompressionTypes)
	cfg.Static.ForbiddenExtensions = m.GetStringSlice("static.forbidden_extensions", cfg.Static.ForbiddenExtensions)
	cfg.Static.HiddenPrefixes = m.GetStringSlice("static.hidden_prefixes", cfg.Static.HiddenPrefixes)

	cfg.JSONParser.AllowComments = m.GetBool("json_parser.allow_comments", cfg.JSONParser.AllowComments)
	cfg.JSONParser.AllowTrailingCommas = m.GetBool("json_parser.allow_trailing_commas", cfg.JSONParser.AllowTrailingCommas)
	cfg.JSONParser.StrictMode = m.GetBool("json_parser.strict_mode", cfg.JSONParser.StrictMode)
	cfg.JSONParser.MaxDepth = m.GetInt("json_parser.max_depth", cfg.JSONParser.MaxDepth)
	cfg.JSONParser.MaxStringLength = m.GetInt("json_parser.max_string_length", cfg.JSONParser.MaxStringLength)

	cfg.JSONSerial.PrettyPrint = m.GetBool("json_serializer.pretty_print", cfg.JSONSerial.PrettyPrint)
	cfg.JSONSerial.IndentSize = m.GetInt("json_serializer.indent_size", cfg.JSONSerial.IndentSize)
	cfg.JSONSerial.EscapeUnicode = m.GetBool("json_serializer.escape_unicode", cfg.JSONSerial.EscapeUnicode)
	cfg.JSONSerial.SortKeys = m.GetBool("json_serializer.sort_keys", cfg.JSONSerial.SortKeys)
	cfg.JSONSerial.EnsureASCII = m.GetBool("json_serializer.ensure_ascii", cfg.JSONSerial.EnsureASCII)
}
