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
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Buttons       []ButtonJSON `json:"buttons"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Config        ConfigJSON   `json:"config"`
}

// ButtonJSON is the JSON representation of one button.
type ButtonJSON struct {
	Name        string `json:"name"`
	Pin         int    `json:"pin"`
	Initialized bool   `json:"initialized"`
	Error       string `json:"error,omitempty"`
	Pressed     bool   `json:"pressed"`
	Presses     int    `json:"presses"`
	Holds       int    `json:"holds"`
	Releases    int    `json:"releases"`
	LastEvent   string `json:"last_event,omitempty"`
	LastEventAt string `json:"last_event_at,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip           string `json:"chip"`
	Pins           string `json:"pins"`
	HoldIntervalMs int64  `json:"hold_interval_ms"`
	Broker         string `json:"broker,omitempty"`
	HTTPAddr       string `json:"http_addr,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	buttons := make([]ButtonJSON, len(snap.Buttons))
	for i, b := range snap.Buttons {
		bj := ButtonJSON{
			Name:        b.Name,
			Pin:         b.Pin,
			Initialized: b.Initialized,
			Error:       b.Error,
			Pressed:     b.Pressed,
			Presses:     b.Presses,
			Holds:       b.Holds,
			Releases:    b.Releases,
			LastEvent:   string(b.LastEvent),
		}
		if !b.LastEventAt.IsZero() {
			bj.LastEventAt = b.LastEventAt.UTC().Format(time.RFC3339Nano)
		}
		buttons[i] = bj
	}

	return StatusInner{
		Buttons:       buttons,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Chip:           snap.Config.Chip,
			Pins:           snap.Config.Pins,
			HoldIntervalMs: snap.Config.HoldIntervalMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
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
