// Package telemetry registers the bot's Prometheus counters.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	deliveryAttempts    prometheus.Counter
	deliveriesSucceeded prometheus.Counter
	deliveriesExhausted prometheus.Counter
	pollsStarted        prometheus.Counter
	pollsCompleted      prometheus.Counter
	pollsAbandoned      prometheus.Counter
)

// Init registers the metrics (idempotent). Callers that never Init, such as
// tests, get no-op counters.
func Init() {
	once.Do(func() {
		deliveryAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "ranmsg_delivery_attempts_total", Help: "Sampling attempts made by the delivery engine"})
		deliveriesSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "ranmsg_deliveries_succeeded_total", Help: "Random messages delivered"})
		deliveriesExhausted = promauto.NewCounter(prometheus.CounterOpts{Name: "ranmsg_deliveries_exhausted_total", Help: "Delivery invocations that spent their retry budget"})
		pollsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "ranmsg_polls_started_total", Help: "Who-sent-it polls started"})
		pollsCompleted = promauto.NewCounter(prometheus.CounterOpts{Name: "ranmsg_polls_completed_total", Help: "Polls that reached the reveal"})
		pollsAbandoned = promauto.NewCounter(prometheus.CounterOpts{Name: "ranmsg_polls_abandoned_total", Help: "Polls abandoned before posting"})
	})
}

func IncDeliveryAttempt()   { inc(deliveryAttempts) }
func IncDeliverySucceeded() { inc(deliveriesSucceeded) }
func IncDeliveryExhausted() { inc(deliveriesExhausted) }
func IncPollStarted()       { inc(pollsStarted) }
func IncPollCompleted()     { inc(pollsCompleted) }
func IncPollAbandoned()     { inc(pollsAbandoned) }

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}
