// Package telemetry exposes the bot's prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mechbot_irc_lines_parsed_total",
		Help: "Number of IRC lines parsed",
	})
	UnknownEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mechbot_irc_unknown_events_total",
		Help: "Number of IRC lines with an unhandled verb",
	})
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mechbot_irc_reconnects_total",
		Help: "Number of IRC reconnect attempts",
	})
	PongsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mechbot_irc_pongs_sent_total",
		Help: "Number of pong replies sent to server pings",
	})
	CommandsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mechbot_commands_dispatched_total",
		Help: "Number of command callbacks invoked",
	})
	GateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mechbot_command_gate_failures_total",
		Help: "Number of command dispatches stopped by a gate",
	}, []string{"gate"})
	RepostsFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mechbot_reposts_flagged_total",
		Help: "Number of link reposts flagged",
	})
)
