package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/home-bridge/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"degrees": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Home Bridge</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.reconnecting { color: orange; }
</style>
</head>
<body>
<h1>Home Bridge</h1>

<h2>Devices</h2>
<table>
<tr><th>Light</th><td class="{{if eq (stateOrUnknown (printf "%s" .Light)) "ON"}}on{{else if eq (stateOrUnknown (printf "%s" .Light)) "OFF"}}off{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Light)}}</td></tr>
{{if .LastReading}}<tr><th>Temperature</th><td>{{if .LastReading.Valid}}{{degrees .LastReading.Celsius}} &deg;C{{else}}fault{{end}}</td></tr>
<tr><th>Humidity</th><td>{{if .LastReading.Valid}}{{degrees .LastReading.Humidity}} %{{else}}fault{{end}}</td></tr>
<tr><th>Sampled</th><td>{{.LastReading.SampledAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Session</th><td class="{{if eq .Session.State "connected"}}connected{{else if eq .Session.State "reconnecting"}}reconnecting{{else}}disconnected{{end}}">{{.Session.State}}{{if .Session.Attempt}} (attempt {{.Session.Attempt}}){{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>TLS</th><td>{{if .Config.TLS}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Base Topic</th><td>{{.Config.BaseTopic}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Commands Applied</th><td>{{.Counts.CommandsApplied}}</td></tr>
<tr><th>Commands Rejected</th><td>{{.Counts.CommandsRejected}}</td></tr>
<tr><th>Hardware Faults</th><td>{{.Counts.HardwareFaults}}</td></tr>
<tr><th>Sensor Faults</th><td>{{.Counts.SensorFaults}}</td></tr>
<tr><th>State Publishes</th><td>{{.Counts.StatePublishes}}</td></tr>
<tr><th>Reading Publishes</th><td>{{.Counts.ReadingPublishes}}</td></tr>
<tr><th>Reconnects</th><td>{{.Counts.Reconnects}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Engine</th><td>{{stateOrUnknown .Engine}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollSeconds}}s</td></tr>
<tr><th>Pins</th><td>light {{.Config.LightPin}}, sensor {{.Config.SensorPin}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
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
