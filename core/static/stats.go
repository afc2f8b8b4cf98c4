package static

import "sync/atomic"

// Stats holds the advisory serve counters. Readers see eventual consistency;
// no snapshot is taken across fields.
type Stats struct {
	FilesServed          atomic.Uint64
	BytesServed          atomic.Uint64
	CacheHits            atomic.Uint64
	CacheMisses          atomic.Uint64
	FilesCompressed      atomic.Uint64
	RangeRequests        atomic.Uint64
	NotModifiedResponses atomic.Uint64
	TotalServeTimeUs     atomic.Uint64
}

// CacheHitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s *Stats) CacheHitRatio() float64 {
	hits := s.CacheHits.Load()
	total := hits + s.CacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// AverageServeTimeUs returns the mean serve time in microseconds.
func (s *Stats) AverageServeTimeUs() float64 {
	served := s.FilesServed.Load()
	if served == 0 {
		return 0
	}
	return float64(s.TotalServeTimeUs.Load()) / float64(served)
}
