package relay

import "expvar"

var (
	connectionsTotal   = expvar.NewInt("relay_connections_total")
	connectionsActive  = expvar.NewInt("relay_connections_active")
	loginsTotal        = expvar.NewInt("relay_logins_total")
	loginFailuresTotal = expvar.NewInt("relay_login_failures_total")
	commandsTotal      = expvar.NewMap("relay_commands_total")
	commandErrorsTotal = expvar.NewInt("relay_command_errors_total")
	panicsTotal        = expvar.NewInt("relay_command_panics_total")
	droppedLinesTotal  = expvar.NewInt("relay_dropped_lines_total")
)
