// Package core implements the connection engine: the listener, the poller
// loop, the per-session state machine, and dispatch into the static path or
// the application bridge.
package core

import (
	"github.com/rs/zerolog/log"

	chttp "github.com/pyspeedhq/pyspeed/core/http"
)

// Handler is the application bridge callback. It runs synchronously on the
// worker driving the session; long-running work must manage its own
// deadlines because the engine never cancels it.
type Handler func(req *chttp.ParsedRequest) *chttp.ResponseData

// invokeHandler calls the bridge with panic containment: a panicking handler
// produces a 500 instead of taking the worker down. A nil handler means no
// application is embedded, which maps to 501.
func invokeHandler(h Handler, req *chttp.ParsedRequest) (resp *chttp.ResponseData) {
	if h == nil {
		return chttp.ErrorResponse(501, "Not Implemented")
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("method", req.Method).
				Str("path", req.Path).
				Interface("panic", r).
				Msg("application handler panicked")
			resp = chttp.ErrorResponse(500, "Internal Server Error")
		}
	}()

	resp = h(req)
	if resp == nil {
		resp = chttp.ErrorResponse(500, "Internal Server Error")
	}
	return resp
}
