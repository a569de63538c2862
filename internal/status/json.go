package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	State         string     `json:"state"`
	LastPublished string     `json:"last_published"`
	Publications  uint64     `json:"publications"`
	Transitions   uint64     `json:"transitions"`
	Storage       string     `json:"storage,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Queued    int    `json:"queued"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Source      string `json:"source"`
	LowBattery  bool   `json:"low_battery"`
	LEDPin      int    `json:"led_pin"`
	ButtonPin   int    `json:"button_pin"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

const unknown = "UNKNOWN"

func buildInner(snap Snapshot) StatusInner {
	state := unknown
	if snap.Rendering {
		state = snap.Rendered.String()
	}
	published := unknown
	if snap.Published {
		published = snap.LastPublished.String()
	}

	return StatusInner{
		State:         state,
		LastPublished: published,
		Publications:  snap.Publications,
		Transitions:   snap.Transitions,
		Storage:       snap.Storage,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Queued: snap.MQTTQueued, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Source:      snap.Config.Source,
			LowBattery:  snap.Config.LowBattery,
			LEDPin:      snap.Config.LEDPin,
			ButtonPin:   snap.Config.ButtonPin,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
