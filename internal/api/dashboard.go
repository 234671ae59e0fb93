package api

import "net/http"

// handleDashboard serves the embedded read-only dashboard: a single page that
// polls the leaderboard and tails the SSE event stream. It renders engine
// state only; every mutation goes through the JSON API.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>TrustMesh Dashboard</title>
<style>
  body { font-family: ui-monospace, monospace; background: #0d1117; color: #c9d1d9; margin: 2rem; }
  h1 { color: #58a6ff; font-size: 1.3rem; }
  h2 { color: #8b949e; font-size: 1rem; margin-top: 2rem; }
  table { border-collapse: collapse; width: 100%; }
  th, td { text-align: left; padding: 0.4rem 0.8rem; border-bottom: 1px solid #21262d; }
  th { color: #8b949e; font-weight: normal; }
  .score { color: #3fb950; }
  #stats span { margin-right: 2rem; }
  #events div { padding: 0.2rem 0; border-bottom: 1px solid #161b22; font-size: 0.85rem; }
  .etype { color: #d29922; }
</style>
</head>
<body>
<h1>TrustMesh &mdash; agent staking &amp; escrow network</h1>
<div id="stats"></div>
<h2>Leaderboard</h2>
<table>
  <thead><tr><th>#</th><th>Agent</th><th>Identity</th><th>Reputation</th>
  <th>Staked</th><th>Completed</th><th>Failed</th><th>Volume</th></tr></thead>
  <tbody id="board"></tbody>
</table>
<h2>Live events</h2>
<div id="events"></div>
<script>
async function refresh() {
  const stats = await (await fetch('/api/stats')).json();
  document.getElementById('stats').innerHTML =
    '<span>agents: ' + stats.agents + '</span>' +
    '<span>deals: ' + stats.deals + '</span>' +
    '<span>vault held: ' + stats.vault_held + '</span>' +
    '<span>conserved: ' + stats.conserved + '</span>';
  const board = await (await fetch('/api/leaderboard')).json();
  document.getElementById('board').innerHTML = board.map((a, i) =>
    '<tr><td>' + (i + 1) + '</td><td>' + a.name + '</td><td>' + a.identity +
    '</td><td class="score">' + a.reputation + '</td><td>' + a.staked +
    '</td><td>' + a.deals_completed + '</td><td>' + a.deals_failed +
    '</td><td>' + a.total_volume + '</td></tr>').join('');
}
refresh();
setInterval(refresh, 5000);

const log = document.getElementById('events');
const es = new EventSource('/api/events');
es.onmessage = es.onerror = null;
['trustmesh.agent.registered','trustmesh.stake.deposited',
 'trustmesh.stake.unstake_requested','trustmesh.stake.withdrawn',
 'trustmesh.stake.slashed','trustmesh.deal.created','trustmesh.deal.completed',
 'trustmesh.deal.disputed','trustmesh.deal.expired'].forEach(t => {
  es.addEventListener(t, e => {
    const row = document.createElement('div');
    row.innerHTML = '<span class="etype">' + t + '</span> ' + e.data;
    log.prepend(row);
    while (log.childElementCount > 50) log.removeChild(log.lastChild);
    refresh();
  });
});
</script>
</body>
</html>
`
