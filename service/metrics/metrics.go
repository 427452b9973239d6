// Package metrics holds the gateway's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tjoy"

var (
	// Registry is private to the gateway so tests can build hubs repeatedly
	// without colliding with the global default registerer.
	Registry = prometheus.NewRegistry()

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "SendMessage outcomes by status.",
	}, []string{"status"})

	FanoutWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_writes_total",
		Help:      "Per-connection fan-out writes by result.",
	}, []string{"result"})

	ConnectionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_open",
		Help:      "Registered live connections.",
	})

	MembershipCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "membership_cache_entries",
		Help:      "Conversations currently held in the membership cache.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		MessagesTotal,
		FanoutWritesTotal,
		ConnectionsOpen,
		MembershipCacheEntries,
	)
}

// Handler serves Registry in the text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveMessage(status string) { MessagesTotal.WithLabelValues(status).Inc() }

func ObserveWrite(ok bool) {
	if ok {
		FanoutWritesTotal.WithLabelValues("ok").Inc()
		return
	}
	FanoutWritesTotal.WithLabelValues("failed").Inc()
}
