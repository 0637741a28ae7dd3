// Package metrics holds the prometheus collectors of a node process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rgnb"

// Registry is the process-wide registry every collector below is registered on.
var Registry = prometheus.NewRegistry()

var (
	// TaskMessages counts messages (including timer expirations) processed per task.
	TaskMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_messages_total",
		Help:      "Messages processed by each task.",
	}, []string{"task"})

	// UnhandledMessages counts message variants a task had no handler for.
	UnhandledMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unhandled_messages_total",
		Help:      "Messages that reached a task without a matching handler.",
	}, []string{"task", "family"})

	PauseTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pause_timeouts_total",
		Help:      "Quiesce operations aborted because a task did not confirm pause in time.",
	})

	RelayForwards = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_forwards_total",
		Help:      "NAS payloads forwarded across the relay.",
	}, []string{"direction"})

	RelayRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_rejects_total",
		Help:      "NAS payloads the relay refused to forward.",
	}, []string{"reason"})

	RelayCorrelations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relay_correlations",
		Help:      "Live entries in the correlation table.",
	})

	ContextReleaseTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "context_release_timeouts_total",
		Help:      "UE context releases force-completed locally after the core did not answer.",
	})

	NgSetupTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ng_setup_timeouts_total",
		Help:      "NG setup procedures that were not answered in time.",
	})

	AmfAssociations = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "amf_associations",
		Help:      "AMF contexts per association state.",
	}, []string{"state"})

	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Operator commands by node side and result.",
	}, []string{"side", "command", "result"})

	GtpPackets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gtp_packets_total",
		Help:      "User-plane packets handled by the tunnel task.",
	}, []string{"direction", "result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		TaskMessages,
		UnhandledMessages,
		PauseTimeouts,
		RelayForwards,
		RelayRejects,
		RelayCorrelations,
		ContextReleaseTimeouts,
		NgSetupTimeouts,
		AmfAssociations,
		GtpPackets,
		Commands,
	)
}

// Handler exposes Registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
