package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/link-indicator/internal/events"
	"github.com/sweeney/link-indicator/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Source: "simulator", LEDPin: 17, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.Source != "simulator" {
		t.Errorf("Config.Source: got %q, want simulator", snap.Config.Source)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Rendering {
		t.Error("expected Rendering=false initially")
	}
	if snap.Published {
		t.Error("expected Published=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordPublication(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordPublication(logic.StateAdvertising)
	tr.RecordPublication(logic.StateConnected)

	snap := tr.Snapshot()
	if !snap.Published {
		t.Fatal("expected Published=true")
	}
	if snap.LastPublished != logic.StateConnected {
		t.Errorf("LastPublished: got %s, want CONNECTED", snap.LastPublished)
	}
	if snap.Publications != 2 {
		t.Errorf("Publications: got %d, want 2", snap.Publications)
	}
}

func TestRecordPatternCountsTransitions(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordPattern(logic.StateAdvertising)
	if got := tr.Snapshot().Transitions; got != 0 {
		t.Errorf("first pattern is not a transition, got %d", got)
	}

	tr.RecordPattern(logic.StateConnected)
	tr.RecordPattern(logic.StateDisconnected)

	snap := tr.Snapshot()
	if snap.Rendered != logic.StateDisconnected {
		t.Errorf("Rendered: got %s, want DISCONNECTED", snap.Rendered)
	}
	if snap.Transitions != 2 {
		t.Errorf("Transitions: got %d, want 2", snap.Transitions)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetMQTTQueued(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	if tr.Snapshot().MQTTQueued != 0 {
		t.Error("expected MQTTQueued=0 initially")
	}
	tr.SetMQTTQueued(12)
	if got := tr.Snapshot().MQTTQueued; got != 12 {
		t.Errorf("MQTTQueued: got %d, want 12", got)
	}
}

func TestAttachFollowsBus(t *testing.T) {
	bus := events.New()
	tr := NewTracker(time.Now(), Config{})
	detach := tr.Attach(bus)
	defer detach()

	bus.Publish(events.StatePublished{Source: "mqtt", State: logic.StateConnected})
	bus.Publish(events.PatternStarted{State: logic.StateConnected, First: true})
	bus.Publish(events.StorageCleared{Outcome: "SKIPPED"})

	deadline := time.Now().Add(time.Second)
	for {
		snap := tr.Snapshot()
		if snap.Published && snap.Rendering && snap.Storage == "SKIPPED" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tracker did not catch up: %+v", snap)
		}
		time.Sleep(time.Millisecond)
	}

	snap := tr.Snapshot()
	if snap.LastPublished != logic.StateConnected || snap.Rendered != logic.StateConnected {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.RecordPattern(logic.StateAdvertising)

	snap1 := tr.Snapshot()
	tr.RecordPattern(logic.StateConnected)

	if snap1.Rendered != logic.StateAdvertising {
		t.Error("snapshot should be a copy; Rendered was modified")
	}
	if snap1.Transitions != 0 {
		t.Error("snapshot should be a copy; Transitions was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Rendered:      logic.StateAdvertising,
		Rendering:     true,
		LastPublished: logic.StateConnected,
		Published:     true,
		Publications:  7,
		Transitions:   3,
		Storage:       "SKIPPED",
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		MQTTQueued:    4,
		Config:        Config{Source: "mqtt", LowBattery: true, LEDPin: 17, ButtonPin: 27, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.State != "ADVERTISING" {
		t.Errorf("State: got %q, want ADVERTISING", s.State)
	}
	if s.LastPublished != "CONNECTED" {
		t.Errorf("LastPublished: got %q, want CONNECTED", s.LastPublished)
	}
	if s.Publications != 7 || s.Transitions != 3 {
		t.Errorf("counts: got %d/%d, want 7/3", s.Publications, s.Transitions)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected || s.MQTT.Queued != 4 || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Config.Source != "mqtt" || !s.Config.LowBattery || s.Config.LEDPin != 17 {
		t.Errorf("Config: got %+v", s.Config)
	}
	if s.Storage != "SKIPPED" {
		t.Errorf("Storage: got %q, want SKIPPED", s.Storage)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected no event/reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.State != "UNKNOWN" {
		t.Errorf("State: got %q, want UNKNOWN", parsed.Status.State)
	}
	if parsed.Status.LastPublished != "UNKNOWN" {
		t.Errorf("LastPublished: got %q, want UNKNOWN", parsed.Status.LastPublished)
	}
}

func TestFormatJSONDisconnectedIsNotUnknown(t *testing.T) {
	// Disconnected is the zero State; Rendering tells it apart from "nothing yet".
	snap := Snapshot{Rendering: true, Published: true}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.State != "DISCONNECTED" {
		t.Errorf("State: got %q, want DISCONNECTED", parsed.Status.State)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Rendered:  logic.StateConnected,
		Rendering: true,
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "HEARTBEAT", ""), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.State != "CONNECTED" {
		t.Errorf("State: got %q, want CONNECTED", parsed.Status.State)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsEmptyFields(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]interface{}
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if _, exists := status["storage"]; exists {
		t.Error("storage should be omitted before the clear routine ran")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.RecordPublication(logic.State(i % 4))
			tr.RecordPattern(logic.State(i % 4))
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()
}
