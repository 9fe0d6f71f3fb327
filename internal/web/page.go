package web

import "github.com/gofiber/fiber/v2"

// handlePage serves the embedded results page.
func (s *Server) handlePage(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(resultsPage)
}

const resultsPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>vapixprobe</title>
<style>
body { font-family: monospace; background: #0d0d0d; color: #e0e0e0; margin: 20px; }
h1 { color: #00ffff; font-size: 18px; }
#status { margin-bottom: 12px; color: #aaa; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 4px 10px; border-bottom: 1px solid #222; }
th { color: #00ffff; }
.ok { color: #00ff00; }
.warn { color: #ffff00; }
.err { color: #ff0055; }
.skip { color: #666; }
</style>
</head>
<body>
<h1>vapixprobe &mdash; live results</h1>
<div id="status">waiting for a batch...</div>
<table>
<thead><tr><th>Time</th><th>Preset</th><th>Tag</th><th>Status</th><th>Duration</th></tr></thead>
<tbody id="rows"></tbody>
</table>
<script>
function addRow(o) {
  var tag = o.skipped ? 'skip' : o.tag;
  var row = document.createElement('tr');
  row.innerHTML =
    '<td>' + new Date(o.timestamp).toLocaleTimeString() + '</td>' +
    '<td>' + o.preset + '</td>' +
    '<td class="' + tag + '">' + (o.skipped ? 'skipped' : o.tag) + '</td>' +
    '<td>' + (o.skipped ? (o.note || '-') : o.statusCode) + '</td>' +
    '<td>' + (o.skipped ? '-' : o.duration + 'ms') + '</td>';
  var rows = document.getElementById('rows');
  rows.insertBefore(row, rows.firstChild);
  while (rows.childNodes.length > 200) rows.removeChild(rows.lastChild);
}

function showStatus(st) {
  var text = (st.running ? 'running' : 'idle') +
    ' | ' + (st.batchName || '-') + ' @ ' + (st.targetIp || '-') +
    ' | ' + st.completed + '/' + st.total +
    ' | ok ' + st.okCount + ' warn ' + st.warnCount + ' err ' + st.errCount +
    ' skip ' + st.skipped + ' | ' + (st.elapsed || '');
  if (st.cancelled) text += ' (cancelled)';
  document.getElementById('status').textContent = text;
}

fetch('/api/outcomes').then(function (r) { return r.json(); }).then(function (list) {
  list.forEach(addRow);
});
fetch('/api/status').then(function (r) { return r.json(); }).then(showStatus);

var ws = new WebSocket('ws://' + location.host + '/ws');
ws.onmessage = function (ev) {
  var msg = JSON.parse(ev.data);
  if (msg.type === 'outcome') addRow(msg.data);
  if (msg.type === 'status') showStatus(msg.data);
};
</script>
</body>
</html>`
