package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/schedule"
	"github.com/sweeney/lamp-timer/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"minute": calendar.MinuteString,
	"dayName": func(d calendar.Date) string {
		return calendar.DayName(d.DayOfWeek())
	},
	"solarMinute": func(m int) string {
		if m < 0 {
			return "none"
		}
		return calendar.MinuteString(m)
	},
	"describeSwitch": func(s schedule.Switch) string {
		switch s.Kind {
		case schedule.KindFixed:
			return calendar.MinuteString(int(s.Minutes))
		case schedule.KindSunrise:
			return fmt.Sprintf("sunrise%+d min", s.Minutes)
		case schedule.KindSunset:
			return fmt.Sprintf("sunset%+d min", s.Minutes)
		}
		return "invalid"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Lamp Timer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
button { font-family: monospace; padding: 4px 12px; }
</style>
</head>
<body>
<h1>Lamp Timer</h1>

<h2>State</h2>
<table>
<tr><th>Lamp</th><td class="{{if .LampOn}}on{{else}}off{{end}}">{{if .LampOn}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Manual override</th><td>{{if .ManualOverride}}armed until {{minute .NextSwitch}}{{else}}no{{end}}</td></tr>
<tr><th>Next switch</th><td>{{minute .NextSwitch}}</td></tr>
</table>
<form method="post" action="/api/manual"><button type="submit">Toggle lamp</button></form>

<h2>Clock</h2>
<table>
<tr><th>Date</th><td>{{dayName .Date}} {{.Date}}</td></tr>
<tr><th>Time</th><td>{{minute .Minutes}} {{if .DST}}(DST){{end}}</td></tr>
<tr><th>Sunrise</th><td>{{solarMinute .Sun.Sunrise}}</td></tr>
<tr><th>Sunset</th><td>{{solarMinute .Sun.Sunset}}</td></tr>
</table>

<h2>Programme</h2>
<table>
<tr><th>Week on</th><td>{{describeSwitch .Weekday.On}}</td></tr>
<tr><th>Week off</th><td>{{describeSwitch .Weekday.Off}}</td></tr>
<tr><th>Weekend on</th><td>{{describeSwitch .Weekend.On}}</td></tr>
<tr><th>Weekend off</th><td>{{describeSwitch .Weekend.Off}}</td></tr>
</table>

<h2>Switch Counts</h2>
<table>
<tr><th>ON</th><td>{{.Counts.SwitchOn}}</td></tr>
<tr><th>OFF</th><td>{{.Counts.SwitchOff}}</td></tr>
<tr><th>Overrides</th><td>{{.Counts.Overrides}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Position</th><td>{{printf "%.4f" .Config.Latitude}}, {{printf "%.4f" .Config.Longitude}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
