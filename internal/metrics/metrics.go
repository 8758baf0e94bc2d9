package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_polls_total",
			Help: "Long-poll fetches by result (count)",
		},
		[]string{"result"},
	)

	PollFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_poll_failures_total",
			Help: "Long-poll protocol failure responses by code (count)",
		},
		[]string{"code"},
	)

	UpdatesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupbot_updates_received_total",
			Help: "Raw updates received across all batches (count)",
		},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_events_total",
			Help: "Dispatched events by outcome (count)",
		},
		[]string{"status"},
	)

	HandlerErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupbot_handler_errors_total",
			Help: "Handler callbacks that returned an error or panicked (count)",
		},
	)

	SessionsAcquiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupbot_sessions_acquired_total",
			Help: "Long-poll sessions acquired, including renewals (count)",
		},
	)

	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groupbot_dispatch_duration_ms",
			Help:    "Duration of one dispatch pass in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	RegisteredHandlers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupbot_registered_handlers",
			Help: "Handlers currently registered (count)",
		},
	)
)

// Register registers all collectors with the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		PollsTotal,
		PollFailuresTotal,
		UpdatesReceivedTotal,
		EventsTotal,
		HandlerErrorsTotal,
		SessionsAcquiredTotal,
		DispatchDuration,
		RegisteredHandlers,
	)
}

func IncPoll(result string) {
	PollsTotal.WithLabelValues(result).Inc()
}

func IncPollFailure(code int) {
	PollFailuresTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

func AddUpdates(n int) {
	UpdatesReceivedTotal.Add(float64(n))
}

func IncEvent(status string) {
	EventsTotal.WithLabelValues(status).Inc()
}

func IncHandlerError() {
	HandlerErrorsTotal.Inc()
}

func IncSessionAcquired() {
	SessionsAcquiredTotal.Inc()
}

func ObserveDispatchDuration(d time.Duration) {
	DispatchDuration.Observe(float64(d.Milliseconds()))
}

func SetRegisteredHandlers(n int) {
	RegisteredHandlers.Set(float64(n))
}
