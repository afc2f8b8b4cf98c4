/*
Package pyspeed is a high-throughput HTTP/1.1 front-end for request
ingestion, static asset delivery and JSON processing.

Every request runs through the same triad: a non-blocking connection engine
fanned out across a fixed worker pool, a memory-mapped LRU cache for static
files, and a hand-rolled JSON parser/serializer used for body pre-validation
and as a standalone API.

Quick start:

	package main

	import (
	    "github.com/pyspeedhq/pyspeed/app"
	    "github.com/pyspeedhq/pyspeed/config"
	    chttp "github.com/pyspeedhq/pyspeed/core/http"
	)

	func main() {
	    cfg := config.New()
	    application := app.New(cfg)

	    application.StaticRoute("/static", "./static")
	    application.Handle(func(req *chttp.ParsedRequest) *chttp.ResponseData {
	        return chttp.JSONResponse(200, []byte(`{"status":"ok"}`))
	    })

	    application.Run()
	}

Modules:

  - app: application lifecycle (logging, signals, engine wiring)
  - config: flag/env/JSON-file configuration
  - core: connection engine, session state machine, application bridge
  - core/http: request parsing and response building
  - core/router: ordered {name}-pattern route matching
  - core/json: JSON value tree, parser, stream parser, serializer
  - core/static: mmap-backed static file cache (LRU, ETag, Range, gzip)
  - core/poller: epoll/kqueue readiness notification
  - core/pools: byte buffers and the fd-keyed worker pool

Static responses carry ETag and Last-Modified validators, honor
If-None-Match / If-Modified-Since revalidation, serve single byte ranges,
and gzip-compress eligible content types once per cached entry. Dynamic
requests go to a single embedder-registered callback; panics there become
500 responses at the bridge boundary.
*/
package pyspeed
