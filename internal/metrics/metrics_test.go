package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/link-indicator/internal/logic"
)

func TestSetIndicatorStateIsOneHot(t *testing.T) {
	SetIndicatorState(logic.StateAdvertising)

	for _, s := range logic.States() {
		want := 0.0
		if s == logic.StateAdvertising {
			want = 1
		}
		if got := testutil.ToFloat64(indicatorState.WithLabelValues(s.String())); got != want {
			t.Errorf("%s: got %v, want %v", s, got, want)
		}
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(indicatorTransitions)
	IncTransitions()
	if got := testutil.ToFloat64(indicatorTransitions); got != before+1 {
		t.Errorf("transitions: got %v, want %v", got, before+1)
	}

	sub := indicatorSubUnits.WithLabelValues("CONNECTED")
	before = testutil.ToFloat64(sub)
	IncSubUnit(logic.StateConnected)
	if got := testutil.ToFloat64(sub); got != before+1 {
		t.Errorf("subunits: got %v, want %v", got, before+1)
	}

	pub := sourcePublications.WithLabelValues("mqtt", "LOW_BATTERY")
	before = testutil.ToFloat64(pub)
	IncPublication("mqtt", logic.StateLowBattery)
	if got := testutil.ToFloat64(pub); got != before+1 {
		t.Errorf("publications: got %v, want %v", got, before+1)
	}

	failed := storagePages.WithLabelValues("error")
	before = testutil.ToFloat64(failed)
	IncErasedPage(false)
	if got := testutil.ToFloat64(failed); got != before+1 {
		t.Errorf("erase errors: got %v, want %v", got, before+1)
	}
}

func TestSetLED(t *testing.T) {
	SetLED(true)
	if got := testutil.ToFloat64(ledOn); got != 1 {
		t.Errorf("led on: got %v, want 1", got)
	}
	SetLED(false)
	if got := testutil.ToFloat64(ledOn); got != 0 {
		t.Errorf("led off: got %v, want 0", got)
	}
}
