package arcgis

import "sync/atomic"

// Stats tracks client activity with atomic counters. Snapshot gives a
// point-in-time view for the status command and the HTTP API.
type Stats struct {
	requests        atomic.Int64
	pages           atomic.Int64
	fetchRetries    atomic.Int64
	truncations     atomic.Int64
	transportErrors atomic.Int64
	serviceErrors   atomic.Int64
	decodeErrors    atomic.Int64
}

// StatsSnapshot is a point-in-time view of client activity.
type StatsSnapshot struct {
	Requests        int64 `json:"requests"`
	Pages           int64 `json:"pages"`
	FetchRetries    int64 `json:"fetch_retries"`
	Truncations     int64 `json:"truncations"`
	TransportErrors int64 `json:"transport_errors"`
	ServiceErrors   int64 `json:"service_errors"`
	DecodeErrors    int64 `json:"decode_errors"`
}

// StatsSnapshot returns current counter values.
func (c *Client) StatsSnapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:        c.stats.requests.Load(),
		Pages:           c.stats.pages.Load(),
		FetchRetries:    c.stats.fetchRetries.Load(),
		Truncations:     c.stats.truncations.Load(),
		TransportErrors: c.stats.transportErrors.Load(),
		ServiceErrors:   c.stats.serviceErrors.Load(),
		DecodeErrors:    c.stats.decodeErrors.Load(),
	}
}
