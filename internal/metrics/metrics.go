package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_messages_received_total",
			Help: "Total inbound messages processed",
		},
		[]string{"platform"},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_messages_sent_total",
			Help: "Total outbound messages delivered",
		},
		[]string{"platform"},
	)

	ClientsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_clients_created_total",
			Help: "Total new clients resolved from first contact",
		},
		[]string{"platform"},
	)

	ClientsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_clients_rejected_total",
			Help: "Total clients that opted out",
		},
		[]string{"platform"},
	)

	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_rate_limit_denials_total",
			Help: "Total sends suppressed by the rate gate",
		},
		[]string{"platform"},
	)

	GenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_generation_failures_total",
			Help: "Total failed or empty generator responses",
		},
		[]string{"platform"},
	)

	SendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_send_failures_total",
			Help: "Total failed outbound sends",
		},
		[]string{"platform"},
	)

	PollCycleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_poll_cycle_errors_total",
			Help: "Total poll cycles aborted by an error",
		},
		[]string{"platform"},
	)
)
