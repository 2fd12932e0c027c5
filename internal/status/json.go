package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/schedule"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string     `json:"event,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Lamp           string     `json:"lamp"`
	ManualOverride bool       `json:"manual_override"`
	NextSwitch     string     `json:"next_switch"`
	Date           string     `json:"date"`
	Day            string     `json:"day"`
	Time           string     `json:"time"`
	DST            bool       `json:"dst"`
	Sunrise        *string    `json:"sunrise"`
	Sunset         *string    `json:"sunset"`
	Timers         TimersJSON `json:"timers"`
	UptimeSeconds  int64      `json:"uptime_seconds"`
	StartTime      string     `json:"start_time"`
	Timestamp      string     `json:"timestamp"`
	MQTT           MQTTStatus `json:"mqtt"`
	Counts         CountsJSON `json:"switch_counts"`
	Config         ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of switch counts.
type CountsJSON struct {
	On        int `json:"on"`
	Off       int `json:"off"`
	Overrides int `json:"overrides"`
}

// TimersJSON is the JSON representation of the configured rules.
type TimersJSON struct {
	Week    RuleJSON `json:"week"`
	Weekend RuleJSON `json:"weekend"`
}

// RuleJSON is the JSON representation of one on/off rule pair.
type RuleJSON struct {
	On  SwitchJSON `json:"on"`
	Off SwitchJSON `json:"off"`
}

// SwitchJSON is the JSON representation of a single switch event.
type SwitchJSON struct {
	Kind    string `json:"kind"`
	Minutes int    `json:"minutes"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs           int64   `json:"poll_ms"`
	HeartbeatMs      int64   `json:"heartbeat_ms"`
	Broker           string  `json:"broker"`
	HTTPPort         string  `json:"http_port"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	UTCOffsetMinutes int     `json:"utc_offset_minutes"`
}

func switchJSON(s schedule.Switch) SwitchJSON {
	return SwitchJSON{Kind: s.Kind.String(), Minutes: int(s.Minutes)}
}

func ruleJSON(r schedule.Rule) RuleJSON {
	return RuleJSON{On: switchJSON(r.On), Off: switchJSON(r.Off)}
}

func solarString(minutes int) *string {
	if minutes < 0 {
		return nil
	}
	s := calendar.MinuteString(minutes)
	return &s
}

func buildInner(snap Snapshot) StatusInner {
	lamp := "OFF"
	if snap.LampOn {
		lamp = "ON"
	}

	return StatusInner{
		Lamp:           lamp,
		ManualOverride: snap.ManualOverride,
		NextSwitch:     calendar.MinuteString(snap.NextSwitch),
		Date:           snap.Date.String(),
		Day:            calendar.DayName(snap.Date.DayOfWeek()),
		Time:           calendar.MinuteString(snap.Minutes),
		DST:            snap.DST,
		Sunrise:        solarString(snap.Sun.Sunrise),
		Sunset:         solarString(snap.Sun.Sunset),
		Timers: TimersJSON{
			Week:    ruleJSON(snap.Weekday),
			Weekend: ruleJSON(snap.Weekend),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			On:        snap.Counts.SwitchOn,
			Off:       snap.Counts.SwitchOff,
			Overrides: snap.Counts.Overrides,
		},
		Config: ConfigJSON{
			PollMs:           snap.Config.PollMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPPort:         snap.Config.HTTPPort,
			Latitude:         snap.Config.Latitude,
			Longitude:        snap.Config.Longitude,
			UTCOffsetMinutes: snap.Config.UTCOffsetMinutes,
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
