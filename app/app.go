// Package app wires configuration, logging, the static cache and the
// connection engine into a runnable server.
package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pyspeedhq/pyspeed/config"
	"github.com/pyspeedhq/pyspeed/core"
	"github.com/pyspeedhq/pyspeed/core/static"
)

// App is the application instance: one engine, one static cache, one
// embedded handler.
type App struct {
	cfg    *config.Config
	engine *core.Engine
}

// New creates an application instance from configuration.
func New(cfg *config.Config) *App {
	setupLogging(cfg.Env)

	staticHandler := static.NewHandler(staticConfig(cfg))
	engine := core.NewEngine(core.Config{
		Address:          cfg.Server.Address,
		Port:             cfg.Server.Port,
		Threads:          cfg.Server.Threads,
		MaxRequestSize:   cfg.Server.MaxRequestSize,
		KeepAliveTimeout: cfg.Server.KeepAliveTimeout,
		IOBufferSize:     cfg.Server.IOBufferSize,
	}, staticHandler)

	return &App{cfg: cfg, engine: engine}
}

// Engine returns the engine for route and handler registration.
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Handle registers the application bridge callback.
func (a *App) Handle(h core.Handler) {
	a.engine.SetHandler(h)
}

// StaticRoute maps a URL prefix to a local directory.
func (a *App) StaticRoute(urlPrefix, localRoot string) {
	a.engine.Static().AddRoute(urlPrefix, localRoot)
}

// Run starts the server and blocks until a termination signal.
func (a *App) Run() {
	go a.awaitSignal()

	log.Info().
		Str("address", a.cfg.Server.Address).
		Int("port", a.cfg.Server.Port).
		Str("env", a.cfg.Env).
		Msg("pyspeed starting")

	if err := a.engine.Run(); err != nil {
		log.Fatal().Err(err).Msg("server startup failed")
	}
}

func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")
	a.engine.Shutdown()
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func staticConfig(cfg *config.Config) static.Config {
	sc := static.DefaultConfig()
	sc.RootDirectory = cfg.Static.RootDirectory
	sc.MaxCacheSizeMB = cfg.Static.MaxCacheSizeMB
	sc.MaxFileSizeMB = cfg.Static.MaxFileSizeMB
	sc.CacheTTL = cfg.Static.CacheTTL
	sc.EnableCompression = cfg.Static.EnableCompression
	sc.EnableRangeRequests = cfg.Static.EnableRangeRequests
	sc.EnableETags = cfg.Static.EnableETags
	sc.CompressionThreshold = cfg.Static.CompressionThreshold
	if len(cfg.Static.CompressionTypes) > 0 {
		sc.CompressionTypes = cfg.Static.CompressionTypes
	}
	if len(cfg.Static.ForbiddenExtensions) > 0 {
		sc.ForbiddenExtensions = cfg.Static.ForbiddenExtensions
	}
	if len(cfg.Static.HiddenPrefixes) > 0 {
		sc.HiddenPrefixes = cfg.Static.HiddenPrefixes
	}
	return sc
}
