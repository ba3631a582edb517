package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/gpio-buttons/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>GPIO Buttons</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.pressed { color: green; font-weight: bold; }
.idle { color: #888; }
.failed { color: red; }
.connected { color: green; }
.disconnected { color: red; }
#log { height: 12em; overflow-y: auto; background: #f6f6f6; padding: 4px; }
</style>
</head>
<body>
<h1>GPIO Buttons</h1>

<h2>Buttons</h2>
<table>
<tr><th>Name</th><th>GPIO</th><th>State</th><th>Presses</th><th>Holds</th></tr>
{{range .Buttons}}<tr>
<td>{{.Name}}</td><td>{{.Pin}}</td>
{{if not .Initialized}}<td class="failed">{{.Error}}</td>{{else}}<td id="state-{{.Name}}" class="{{if .Pressed}}pressed{{else}}idle{{end}}">{{if .Pressed}}pressed{{else}}idle{{end}}</td>{{end}}
<td id="presses-{{.Name}}">{{.Presses}}</td><td id="holds-{{.Name}}">{{.Holds}}</td>
</tr>
{{end}}</table>

<h2>Live</h2>
<pre id="log"></pre>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Chip</th><td>{{.Config.Chip}}</td></tr>
<tr><th>Hold interval</th><td>{{.Config.HoldIntervalMs}}ms</td></tr>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{.Config.Broker}} ({{if .MQTTConnected}}connected{{else}}disconnected{{end}})</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var log = document.getElementById("log");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/events");

  function bump(id) {
    var el = document.getElementById(id);
    if (el) el.textContent = String(parseInt(el.textContent, 10) + 1);
  }

  ws.onmessage = function(ev) {
    try {
      var msg = JSON.parse(ev.data);
      var st = document.getElementById("state-" + msg.name);
      if (msg.event === "PRESSED") {
        bump("presses-" + msg.name);
        if (st) { st.textContent = "pressed"; st.className = "pressed"; }
        log.textContent += "Button " + msg.name + " pressed!\n";
      } else if (msg.event === "HELD") {
        bump("holds-" + msg.name);
        log.textContent += "Button " + msg.name + " held!\n";
      } else if (msg.event === "RELEASED") {
        if (st) { st.textContent = "idle"; st.className = "idle"; }
      }
      log.scrollTop = log.scrollHeight;
    } catch (e) {}
  };
})();
</script>
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
