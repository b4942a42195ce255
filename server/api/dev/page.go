package dev

// devPageHTML 內嵌的 Dev Panel UI。
//
//   - 桌台由 /dev/meta 載入，地雷數預設帶入桌台的預設等級。
//   - Seed/Snap 互斥：Snap 非空時 Seed 停用（後端也以 Snap 為準）。
//   - Rounds 前端上限 5,000，Sim 上限 3,000,000。
//   - Audit 用結束後公開的 seed 重建地雷位置，picks 以逗號分隔。
const devPageHTML = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <title>Minelab Dev</title>
  <style>
    body { font-family: -apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif; background:#0f172a; color:#e2e8f0; margin:0; }
    .wrap { max-width: 980px; margin: 24px auto; padding: 16px 20px; background:#111827; border:1px solid #1f2937; border-radius:12px; }
    h1 { margin: 0 0 16px; font-size: 22px; }
    .grid { display:grid; grid-template-columns: repeat(auto-fit, minmax(150px,1fr)); gap:12px; margin-bottom:12px; }
    label { display:flex; flex-direction:column; gap:6px; font-size: 13px; color:#cbd5e1; }
    input, select { background:#0b1224; color:#e2e8f0; border:1px solid #1f2738; border-radius:8px; padding:10px 12px; font-size:14px; }
    input:disabled { opacity: 0.55; }
    .actions { display:flex; gap:10px; justify-content:flex-end; margin: 8px 0 14px; }
    button { cursor:pointer; border:none; border-radius:10px; padding:10px 14px; font-weight:600; }
    #btn-rounds { background:#38bdf8; color:#0b1224; }
    #btn-sim { background:#22c55e; color:#0b1224; }
    #btn-audit { background:#f59e0b; color:#0b1224; }
    button:disabled { opacity:0.6; cursor:not-allowed; }
    pre { background:#0b1224; border:1px solid #1f2738; border-radius:12px; padding:14px; min-height:120px; overflow:auto; white-space:pre-wrap; font-family: ui-monospace, Menlo, Consolas, monospace; }
    .board { display:grid; gap:4px; margin:8px 0; }
    .cell { width:28px; height:28px; border-radius:6px; background:#1f2937; display:flex; align-items:center; justify-content:center; font-size:12px; }
    .cell.pick { background:#22c55e; color:#0b1224; }
    .cell.bomb { background:#ef4444; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>Minelab Dev Panel</h1>
    <div class="grid">
      <label>Game <select id="game"></select></label>
      <label>Hazards <input id="hazards" type="number" min="1" value="3" /></label>
      <label>Picks <input id="picks" type="number" min="1" value="1" /></label>
      <label>Rounds <input id="rounds" type="number" min="1" max="3000000" value="1" /></label>
      <label>Seed (int64) <input id="seed" type="text" placeholder="Empty = auto" /></label>
      <label>Snap (base64url) <input id="snap" type="text" placeholder="Paste snap" /></label>
      <label>Audit picks <input id="audit" type="text" placeholder="0,5,7" /></label>
    </div>
    <div class="actions">
      <button id="btn-rounds">Rounds</button>
      <button id="btn-sim">Sim</button>
      <button id="btn-audit">Audit</button>
    </div>
    <div id="board" class="board"></div>
    <pre id="out"></pre>
  </div>
<script>
const $ = (id) => document.getElementById(id);
let games = [];

function current() { return games.find((g) => String(g.gid) === $('game').value); }

function syncLocks() {
  const snap = $('snap').value.trim() !== '';
  $('seed').disabled = snap;
  if (snap) $('seed').value = '';
}

async function loadMeta() {
  const res = await fetch('/dev/meta');
  games = await res.json();
  $('game').innerHTML = '';
  games.forEach((g) => {
    const opt = document.createElement('option');
    opt.value = String(g.gid);
    opt.textContent = g.name + ' (' + g.rows + 'x' + g.columns + ')';
    $('game').appendChild(opt);
  });
  pickDefault();
}

function pickDefault() {
  const g = current();
  if (!g) return;
  const lv = (g.levels || []).find((l) => l.name === g.default_level);
  if (lv) $('hazards').value = lv.hazards;
}

function payload(capRounds) {
  const body = {
    gid: Number($('game').value),
    hazards: Number($('hazards').value),
    picks: Number($('picks').value),
    rounds: Math.min(Number($('rounds').value) || 1, capRounds),
  };
  const snap = $('snap').value.trim();
  const seed = $('seed').value.trim();
  if (snap) body.snap = snap; else if (seed) body.seed = seed;
  return body;
}

async function post(path, body) {
  $('out').textContent = 'Running…';
  document.querySelectorAll('button').forEach((b) => b.disabled = true);
  try {
    const res = await fetch(path, { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(body) });
    if (!res.ok) throw new Error(await res.text());
    return await res.json();
  } catch (err) {
    $('out').textContent = 'Error: ' + err.message;
    return null;
  } finally {
    document.querySelectorAll('button').forEach((b) => b.disabled = false);
  }
}

function drawBoard(hazards, picks) {
  const g = current();
  const el = $('board');
  el.innerHTML = '';
  if (!g) return;
  el.style.gridTemplateColumns = 'repeat(' + g.columns + ', 28px)';
  for (let i = 0; i < g.rows * g.columns; i++) {
    const c = document.createElement('div');
    c.className = 'cell' + (hazards.includes(i) ? ' bomb' : '') + (picks.includes(i) ? ' pick' : '');
    c.textContent = String(i);
    el.appendChild(c);
  }
}

$('btn-rounds').onclick = async () => {
  const data = await post('/dev/rounds', payload(5000));
  if (!data) return;
  const last = data.results[data.results.length - 1];
  if (last) drawBoard(last.hazards || [], last.picks || []);
  $('out').textContent = JSON.stringify(data, null, 2);
};
$('btn-sim').onclick = async () => {
  const data = await post('/dev/sim', payload(3000000));
  if (data) $('out').textContent = JSON.stringify(data, null, 2);
};
$('btn-audit').onclick = async () => {
  const picks = $('audit').value.split(',').map((s) => s.trim()).filter((s) => s !== '').map(Number);
  const data = await post('/dev/audit', { gid: Number($('game').value), seed: $('seed').value.trim(), hazards: Number($('hazards').value), picks });
  if (!data) return;
  drawBoard(data.hazards || [], picks);
  $('out').textContent = JSON.stringify(data, null, 2);
};
$('snap').addEventListener('input', syncLocks);
$('game').addEventListener('change', pickDefault);
loadMeta();
</script>
</body>
</html>
`
