package server

import "github.com/VictoriaMetrics/metrics"

// Counters shared by all server instances in the process. The active
// connection gauge is registered by the serve command, where exactly one
// server exists to observe.
var (
	metricAccepted    = metrics.NewCounter("dmbn_connections_accepted_total")
	metricAuthFailed  = metrics.NewCounter("dmbn_auth_failures_total")
	metricNetRequests = metrics.NewCounter("dmbn_net_requests_total")
	metricBroadcasts  = metrics.NewCounter("dmbn_broadcast_envelopes_total")
)
