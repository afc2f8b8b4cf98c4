package core

import "github.com/puzpuzpuz/xsync/v3"

// EngineStats aggregates the hot engine counters. xsync counters stripe
// across cores so every worker can bump them without contention.
type EngineStats struct {
	ConnectionsAccepted *xsync.Counter
	RequestsServed      *xsync.Counter
	StaticRequests      *xsync.Counter
	AppRequests         *xsync.Counter
	BytesWritten        *xsync.Counter
	Errors              *xsync.Counter
}

// NewEngineStats creates zeroed counters.
func NewEngineStats() *EngineStats {
	return &EngineStats{
		ConnectionsAccepted: xsync.NewCounter(),
		RequestsServed:      xsync.NewCounter(),
		StaticRequests:      xsync.NewCounter(),
		AppRequests:         xsync.NewCounter(),
		BytesWritten:        xsync.NewCounter(),
		Errors:              xsync.NewCounter(),
	}
}

// StatsSnapshot is a point-in-time copy of the counters. Values are read
// one at a time; there is no cross-counter consistency guarantee.
type StatsSnapshot struct {
	ConnectionsAccepted int64 `json:"connections_accepted"`
	RequestsServed      int64 `json:"requests_served"`
	StaticRequests      int64 `json:"static_requests"`
	AppRequests         int64 `json:"app_requests"`
	BytesWritten        int64 `json:"bytes_written"`
	Errors              int64 `json:"errors"`
}

// Snapshot reads every counter once.
func (s *EngineStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ConnectionsAccepted: s.ConnectionsAccepted.Value(),
		RequestsServed:      s.RequestsServed.Value(),
		StaticRequests:      s.StaticRequests.Value(),
		AppRequests:         s.AppRequests.Value(),
		BytesWritten:        s.BytesWritten.Value(),
		Errors:              s.Errors.Value(),
	}
}
