package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/link-indicator/internal/logic"
	"github.com/sweeney/link-indicator/internal/status"
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
	"lower": strings.ToLower,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Link Indicator</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; font-weight: bold; }
.advertising { color: #06c; }
.disconnected { color: red; }
.low_battery { color: orange; font-weight: bold; }
.unknown { color: #888; }
</style>
</head>
<body>
<h1>Link Indicator</h1>

<h2>Indicator</h2>
<table>
<tr><th>Pattern</th><td class="{{lower .State}}">{{.State}}</td></tr>
<tr><th>Blink</th><td>{{.Blink}}</td></tr>
<tr><th>Last published</th><td>{{.Published}}</td></tr>
<tr><th>Publications</th><td>{{.Publications}}</td></tr>
<tr><th>Transitions</th><td>{{.Transitions}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Source</th><td>{{.Config.Source}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Queued</th><td>{{.MQTTQueued}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Storage clear</th><td>{{if .Storage}}{{.Storage}}{{else}}not run{{end}}</td></tr>
<tr><th>Low battery</th><td>{{if .Config.LowBattery}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>LED pin</th><td>{{.Config.LEDPin}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	state, published, blink := "UNKNOWN", "UNKNOWN", "-"
	if snap.Rendering {
		state = snap.Rendered.String()
		blink = logic.PatternFor(snap.Rendered).Describe()
	}
	if snap.Published {
		published = snap.LastPublished.String()
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		State     string
		Published string
		Blink     string
		Uptime    time.Duration
	}{
		Snapshot:  snap,
		State:     state,
		Published: published,
		Blink:     blink,
		Uptime:    snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
