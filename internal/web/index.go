package web

import (
	"fmt"
	"net/http"
)

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Papertrade</title>
  <link href="https://fonts.googleapis.com/css2?family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root { --bg:#ffffff; --ink:#111111; --ink-soft:#9c9c9c; --panel:#f6f6f6; --up:#1a7f37; --down:#cf222e; }
    * { box-sizing:border-box; }
    body { margin:0; padding:2rem; background:var(--bg); color:var(--ink); font-family:'Space Mono',monospace; }
    h1 { font-size:1.2rem; letter-spacing:.1em; }
    section { background:var(--panel); padding:1rem; margin-bottom:1rem; }
    table { width:100%; border-collapse:collapse; }
    th, td { text-align:left; padding:.25rem .5rem; }
    th { color:var(--ink-soft); font-weight:400; }
    .buy { color:var(--up); }
    .sell { color:var(--down); }
    #status { color:var(--ink-soft); }
    form { display:flex; gap:.5rem; flex-wrap:wrap; }
    input, select, button { font-family:inherit; padding:.25rem .5rem; }
  </style>
</head>
<body>
  <h1>PAPERTRADE</h1>
  <section>
    <form id="user-form">
      <input id="user" placeholder="username" required />
      <button type="submit">Load</button>
    </form>
  </section>
  <section>
    <div>Wallet: <b id="wallet">-</b> | Equity: <b id="equity">-</b> | Realized: <b id="realized">-</b></div>
    <table>
      <thead><tr><th>Asset</th><th>Quantity</th><th>Avg price</th><th>Price</th><th>Unrealized</th></tr></thead>
      <tbody id="holdings"></tbody>
    </table>
  </section>
  <section>
    <form id="trade-form">
      <select id="action"><option value="buy">Buy</option><option value="sell">Sell</option></select>
      <input id="asset" placeholder="BTC" required />
      <input id="qty" placeholder="0.0100" required />
      <button type="submit">Submit</button>
    </form>
    <div id="trade-msg"></div>
  </section>
  <section>
    <div id="status">connecting...</div>
    <table>
      <thead><tr><th>Time</th><th>User</th><th>Side</th><th>Asset</th><th>Qty</th><th>Price</th><th>Profit</th></tr></thead>
      <tbody id="trades"></tbody>
    </table>
  </section>
  <script>
    const fmt = v => v === undefined || v === null ? '-' : Number(v).toFixed(2);
    let user = localStorage.getItem('papertrade-user') || '';
    document.getElementById('user').value = user;

    async function loadLedger() {
      if (!user) return;
      const res = await fetch('/api/users/' + encodeURIComponent(user) + '/ledger');
      const body = await res.json();
      if (!res.ok) { document.getElementById('trade-msg').textContent = body.error; return; }
      document.getElementById('wallet').textContent = fmt(body.wallet);
      document.getElementById('equity').textContent = fmt(body.equity);
      document.getElementById('realized').textContent = fmt(body.realized_profit);
      document.getElementById('holdings').innerHTML = body.holdings.map(h =>
        '<tr><td>' + h.asset_id + '</td><td>' + Number(h.quantity).toFixed(4) + '</td><td>' + fmt(h.avg_price) +
        '</td><td>' + fmt(h.price) + '</td><td>' + fmt(h.unrealized_pnl) + '</td></tr>').join('');
    }

    document.getElementById('user-form').addEventListener('submit', e => {
      e.preventDefault();
      user = document.getElementById('user').value.trim();
      localStorage.setItem('papertrade-user', user);
      loadLedger();
    });

    document.getElementById('trade-form').addEventListener('submit', async e => {
      e.preventDefault();
      if (!user) return;
      const res = await fetch('/api/users/' + encodeURIComponent(user) + '/trades', {
        method: 'POST',
        headers: {'Content-Type': 'application/json'},
        body: JSON.stringify({
          action: document.getElementById('action').value,
          asset_id: document.getElementById('asset').value,
          quantity: document.getElementById('qty').value,
        }),
      });
      const body = await res.json();
      document.getElementById('trade-msg').textContent = res.ok ? 'Done.' : body.error;
      loadLedger();
    });

    const source = new EventSource('/trades/stream');
    source.addEventListener('no_data', () => { document.getElementById('status').textContent = 'no trades yet'; });
    source.addEventListener('trade', ev => {
      const t = JSON.parse(ev.data);
      document.getElementById('status').textContent = 'live';
      const row = document.createElement('tr');
      row.className = t.action === 'BUY' ? 'buy' : 'sell';
      row.innerHTML = '<td>' + new Date(t.ts).toLocaleString() + '</td><td>' + t.user + '</td><td>' + t.action +
        '</td><td>' + t.asset_id + '</td><td>' + Number(t.quantity).toFixed(4) + '</td><td>' + fmt(t.price) +
        '</td><td>' + fmt(t.profit) + '</td>';
      const body = document.getElementById('trades');
      body.insertBefore(row, body.firstChild);
    });
    source.onerror = () => { document.getElementById('status').textContent = 'reconnecting...'; };

    loadLedger();
  </script>
</body>
</html>
`
