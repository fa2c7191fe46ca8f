package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// RegisterProcessedCommands exposes the service's applied-command counter as
// a prometheus gauge without the service knowing about metrics.
func RegisterProcessedCommands(fn func() uint64) error {
	return prometheus.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "traderboard",
		Name:      "processed_commands_total",
		Help:      "Commands applied by the dispatch loop since start.",
	}, func() float64 {
		return float64(fn())
	}))
}
