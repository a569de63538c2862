// Package metrics exposes Prometheus metrics for the link indicator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sweeney/link-indicator/internal/logic"
)

const namespace = "link_indicator"

var (
	indicatorState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "indicator",
		Name:      "state",
		Help:      "1 for the connection state currently rendered, 0 otherwise",
	}, []string{"state"})

	indicatorTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indicator",
		Name:      "transitions_total",
		Help:      "Pattern switches performed by the indicator controller",
	})

	indicatorSubUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indicator",
		Name:      "subunits_total",
		Help:      "Completed pattern sub-units per state",
	}, []string{"state"})

	ledOn = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "led",
		Name:      "on",
		Help:      "Current logical LED level (1 = lit)",
	})

	sourcePublications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "publications_total",
		Help:      "States published into the state cell per producer",
	}, []string{"source", "state"})

	sourceIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "ignored_total",
		Help:      "Events dropped because they map to no state in this deployment",
	}, []string{"source", "event"})

	storagePages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "erased_pages_total",
		Help:      "Flash pages erased by the storage-clear routine",
	}, []string{"result"})
)

// SetIndicatorState marks s as the rendered state.
func SetIndicatorState(s logic.State) {
	for _, st := range logic.States() {
		v := 0.0
		if st == s {
			v = 1
		}
		indicatorState.WithLabelValues(st.String()).Set(v)
	}
}

// IncTransitions counts one pattern switch.
func IncTransitions() {
	indicatorTransitions.Inc()
}

// IncSubUnit counts one completed sub-unit of s.
func IncSubUnit(s logic.State) {
	indicatorSubUnits.WithLabelValues(s.String()).Inc()
}

// SetLED records the LED level.
func SetLED(on bool) {
	if on {
		ledOn.Set(1)
	} else {
		ledOn.Set(0)
	}
}

// IncPublication counts a state published by source.
func IncPublication(source string, s logic.State) {
	sourcePublications.WithLabelValues(source, s.String()).Inc()
}

// IncIgnored counts an event that source could not map to a state.
func IncIgnored(source string, kind logic.EventKind) {
	sourceIgnored.WithLabelValues(source, string(kind)).Inc()
}

// IncErasedPage counts one page erase attempt with result "ok" or "error".
func IncErasedPage(ok bool) {
	if ok {
		storagePages.WithLabelValues("ok").Inc()
	} else {
		storagePages.WithLabelValues("error").Inc()
	}
}
