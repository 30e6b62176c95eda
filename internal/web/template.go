package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/alarm-monitor/alarm-sensor/internal/status"
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
	"reports": func(reports []int, i int) int {
		if i < len(reports) {
			return reports[i]
		}
		return 0
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Alarm Sensor</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.steady { color: red; font-weight: bold; }
.blinking { color: orange; font-weight: bold; }
.off { color: #888; }
.unknown { color: #aaa; font-style: italic; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Alarm Sensor</h1>

<h2>Channels</h2>
<table id="channels">
<thead>
<tr><th>#</th><th>Name</th><th>Status</th><th>Level</th><th>Threshold</th><th>Signal</th><th>Edges</th><th>Reports</th></tr>
</thead>
<tbody>
{{range $i, $c := .Channels}}<tr><td>{{$c.ID}}</td><td>{{$c.Name}}</td><td class="{{lower $c.Reported.String}}">{{$c.Reported}}</td><td>{{$c.Level}}</td><td>{{$c.Threshold}}</td><td>{{$c.Signal}}</td><td>{{$c.Edges}}</td><td>{{reports $.Reports $i}}</td></tr>
{{end}}</tbody>
</table>

<h2>Connectivity</h2>
<table id="connectivity">
<tbody>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</tbody>
</table>

<h2>System</h2>
<table id="system">
<tbody>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Last window</th><td>{{if .LastWindow.IsZero}}none{{else}}{{.LastWindow.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Blink edges</th><td>{{.Config.BlinkEdges}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Analog</th><td>{{.Config.AnalogDriver}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</tbody>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
