package httptransport

import "expvar"

var (
	metricAdminUnauthorized = expvar.NewInt("admin_unauthorized_total")
	metricGrantsTotal       = expvar.NewInt("admin_grants_total")
	metricBroadcastsTotal   = expvar.NewInt("admin_broadcasts_total")
	metricPotsEndedTotal    = expvar.NewInt("admin_pots_ended_total")
)
