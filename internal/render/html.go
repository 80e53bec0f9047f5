package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/codebaseqa/cqa/internal/layout"
)

// compiledTemplate is parsed at init time to fail fast on template errors.
var (
	compiledTemplate *template.Template
	emptyTemplate    *template.Template
)

func init() {
	compiledTemplate = template.Must(template.New("graph").Parse(htmlTemplate))
	emptyTemplate = template.Must(template.New("empty").Parse(emptyHTMLTemplate))
}

// HTMLOptions configures HTML generation.
type HTMLOptions struct {
	// APIBase is the viewer server's view endpoint for this repository, e.g.
	// "/api/view/42". When set, layout switching and Regenerate call it; when
	// empty the page is a static export.
	APIBase string

	// GenerateHint is shown on the empty page when there is no server to call.
	GenerateHint string

	ExportName string
}

// DefaultOptions returns default HTML generation options.
func DefaultOptions() HTMLOptions {
	return HTMLOptions{ExportName: DefaultExportName}
}

// HTML generates a self-contained page for the scene.
func HTML(scene *Scene, opts HTMLOptions) (string, error) {
	if scene == nil {
		return "", fmt.Errorf("scene cannot be nil")
	}
	if opts.ExportName == "" {
		opts.ExportName = DefaultExportName
	}

	if scene.IsEmpty() {
		return emptyHTML(scene, opts)
	}

	graphJSON, err := scene.ToCytoscapeJSON()
	if err != nil {
		return "", err
	}

	data := templateData{
		Title:      pageTitle(scene),
		GraphJSON:  template.JS(graphJSON),
		Legend:     scene.Legend,
		Stats:      scene.Stats,
		Caveats:    scene.Caveats,
		Mode:       string(scene.Mode),
		Modes:      modeNames(),
		Strategy:   scene.Strategy,
		FromCache:  scene.FromCache,
		Served:     opts.APIBase != "",
		APIBase:    strings.TrimRight(opts.APIBase, "/"),
		ExportName: opts.ExportName,
		Background: cssRGBA(bgDark),
		Query:      scene.Query,
		Selected:   scene.Selected,
		Vertical:   scene.Mode == layout.ModeVertical,
	}

	var buf bytes.Buffer
	if err := compiledTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing graph template: %w", err)
	}
	return buf.String(), nil
}

// templateData holds data for the HTML template.
type templateData struct {
	Title      string
	GraphJSON  template.JS
	Legend     []LegendEntry
	Stats      Stats
	Caveats    []string
	Mode       string
	Modes      []string
	Strategy   string
	FromCache  bool
	Served     bool
	APIBase    string
	ExportName string
	Background string
	Query      string
	Selected   string
	Vertical   bool
}

type emptyData struct {
	Title   string
	Error   string
	Hint    string
	Served  bool
	APIBase string
}

func emptyHTML(scene *Scene, opts HTMLOptions) (string, error) {
	hint := opts.GenerateHint
	if hint == "" {
		hint = "Generate the graph from the command line with --regenerate."
	}
	data := emptyData{
		Title:   pageTitle(scene),
		Error:   scene.Error,
		Hint:    hint,
		Served:  opts.APIBase != "",
		APIBase: strings.TrimRight(opts.APIBase, "/"),
	}
	var buf bytes.Buffer
	if err := emptyTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing empty template: %w", err)
	}
	return buf.String(), nil
}

func pageTitle(scene *Scene) string {
	if scene.Title != "" {
		return scene.Title
	}
	return "Dependency Graph"
}

func modeNames() []string {
	out := make([]string, 0, len(layout.Modes))
	for _, m := range layout.Modes {
		out = append(out, string(m))
	}
	return out
}

const emptyHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}} - Empty</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      display: flex;
      justify-content: center;
      align-items: center;
      height: 100vh;
      margin: 0;
      background: #0f172a;
      color: #cbd5e1;
    }
    .empty-state { text-align: center; max-width: 460px; }
    .empty-state h2 { margin-bottom: 0.5em; color: #f1f5f9; }
    .empty-state p { margin: 0.5em 0; }
    .empty-state .error { color: #fca5a5; }
    button {
      margin-top: 1em;
      background: #3b82f6;
      color: white;
      border: 0;
      border-radius: 6px;
      padding: 8px 16px;
      font-size: 14px;
      cursor: pointer;
    }
  </style>
</head>
<body>
  <div class="empty-state">
    <h2>No graph yet</h2>
    {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
    <p>The dependency graph for this repository has not been generated or is empty.</p>
    {{if .Served}}
    <button id="generate">Generate graph</button>
    <script>
      document.getElementById('generate').addEventListener('click', function(evt) {
        evt.target.disabled = true;
        evt.target.textContent = 'Generating...';
        fetch({{.APIBase}} + '/regenerate', {method: 'POST'})
          .then(function() { window.location.reload(); })
          .catch(function() { evt.target.disabled = false; evt.target.textContent = 'Generate graph'; });
      });
    </script>
    {{else}}
    <p>{{.Hint}}</p>
    {{end}}
  </div>
</body>
</html>`

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <script src="https://unpkg.com/cytoscape@3/dist/cytoscape.min.js"></script>
  <style>
    * { box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      margin: 0;
      padding: 0;
      background: #0f172a;
      color: #e2e8f0;
      overflow: hidden;
    }
    #cy { position: absolute; top: 48px; left: 0; right: 0; bottom: 28px; }
    #toolbar {
      position: absolute; top: 0; left: 0; right: 0; height: 48px;
      display: flex; align-items: center; gap: 8px; padding: 0 12px;
      background: #1e293b; border-bottom: 1px solid #334155;
    }
    #toolbar h1 { font-size: 15px; margin: 0 12px 0 0; white-space: nowrap; }
    #toolbar input, #toolbar select, #toolbar button {
      background: #0f172a; color: #e2e8f0; border: 1px solid #334155;
      border-radius: 6px; padding: 5px 10px; font-size: 13px;
    }
    #toolbar button { cursor: pointer; }
    #toolbar button:hover { border-color: #60a5fa; }
    #toolbar .spacer { flex: 1; }
    #statusbar {
      position: absolute; bottom: 0; left: 0; right: 0; height: 28px;
      display: flex; align-items: center; gap: 16px; padding: 0 12px;
      background: #1e293b; border-top: 1px solid #334155; font-size: 12px; color: #94a3b8;
    }
    #statusbar .caveat { color: #fbbf24; }
    #legend {
      position: absolute; top: 60px; left: 12px; width: 190px;
      background: rgba(30,41,59,0.92); border: 1px solid #334155; border-radius: 8px;
      padding: 8px 10px; font-size: 12px;
    }
    #legend h3, #detail h3 { margin: 0 0 6px; font-size: 12px; text-transform: uppercase; color: #94a3b8; }
    #legend label { display: flex; align-items: center; gap: 6px; padding: 2px 0; cursor: pointer; }
    #legend .swatch { width: 10px; height: 10px; border-radius: 2px; display: inline-block; }
    #legend .count { margin-left: auto; color: #64748b; }
    #legend .actions { margin-top: 6px; display: flex; gap: 6px; }
    #legend .actions a { color: #60a5fa; cursor: pointer; }
    #detail {
      position: absolute; top: 60px; right: 12px; width: 300px; max-height: calc(100% - 260px);
      overflow-y: auto; display: none;
      background: rgba(30,41,59,0.95); border: 1px solid #334155; border-radius: 8px;
      padding: 10px 12px; font-size: 12px;
    }
    #detail .title { font-size: 14px; font-weight: 600; color: #f1f5f9; word-break: break-all; }
    #detail .path { color: #94a3b8; margin: 2px 0 8px; word-break: break-all; }
    #detail .row { margin: 2px 0; }
    #detail ul { list-style: none; padding: 0; margin: 4px 0 8px; }
    #detail li { padding: 2px 4px; border-radius: 4px; cursor: pointer; word-break: break-all; }
    #detail li:hover { background: #334155; }
    #detail li .rel { color: #64748b; margin-left: 4px; }
    #minimap {
      position: absolute; right: 12px; bottom: 40px; width: 200px; height: 140px;
      background: rgba(15,23,42,0.9); border: 1px solid #334155; border-radius: 6px; cursor: crosshair;
    }
  </style>
</head>
<body>
  <div id="toolbar">
    <h1>{{.Title}}</h1>
    <input id="search" type="search" placeholder="Search files..." value="{{.Query}}">
    <select id="mode" {{if not .Served}}disabled title="Layout switching needs cqa serve"{{end}}>
      {{range .Modes}}<option value="{{.}}" {{if eq . $.Mode}}selected{{end}}>{{.}}</option>{{end}}
    </select>
    <div class="spacer"></div>
    <button id="fit">Fit</button>
    <button id="center">Center</button>
    <button id="fullscreen">Fullscreen</button>
    <button id="export">Export PNG</button>
    {{if .Served}}<button id="regenerate">Regenerate</button>{{end}}
  </div>

  <div id="cy"></div>

  <div id="legend">
    <h3>Types</h3>
    {{range .Legend}}
    <label>
      <input type="checkbox" data-type="{{.Type}}" {{if .Active}}checked{{end}}>
      <span class="swatch" style="background: {{.Color}}"></span>
      {{.Label}}
      <span class="count">{{.Count}}</span>
    </label>
    {{end}}
    <div class="actions"><a id="show-all">Show all</a></div>
  </div>

  <div id="detail"></div>
  <canvas id="minimap" width="200" height="140"></canvas>

  <div id="statusbar">
    <span>{{.Stats.Nodes}} nodes · {{.Stats.Edges}} edges · {{printf "%.2f" .Stats.Ratio}} edges/node ({{.Stats.Band}})</span>
    <span>layout: {{.Mode}} via {{.Strategy}}{{if .FromCache}} (cached){{end}}</span>
    {{range .Caveats}}<span class="caveat">⚠ {{.}}</span>{{end}}
  </div>

  <script>
    (function() {
      const graphData = {{.GraphJSON}};
      const served = {{.Served}};
      const apiBase = {{.APIBase}};
      const exportName = {{.ExportName}};
      const background = {{.Background}};
      const initialSelected = {{.Selected}};
      const vertical = {{.Vertical}};
      const labelZoom = 0.9;

      const cy = cytoscape({
        container: document.getElementById('cy'),
        elements: graphData,
        minZoom: 0.05,
        maxZoom: 3,
        wheelSensitivity: 0.2,
        style: [
          {
            selector: 'node',
            style: {
              'shape': 'round-rectangle',
              'width': 'data(w)',
              'height': 'data(h)',
              'background-color': 'data(color)',
              'background-opacity': 0.18,
              'border-width': 1.5,
              'border-color': 'data(color)',
              'label': 'data(display)',
              'color': '#f1f5f9',
              'font-size': '11px',
              'text-wrap': 'wrap',
              'text-max-width': 'data(w)',
              'text-valign': 'center',
              'text-halign': 'center'
            }
          },
          {
            selector: 'node.compact',
            style: { 'font-size': '10px' }
          },
          {
            selector: 'node.module',
            style: { 'border-width': 2.5, 'border-style': 'double', 'font-size': '12px' }
          },
          {
            selector: 'node.selected',
            style: { 'border-width': 3, 'border-color': '#fbbf24', 'background-opacity': 0.35 }
          },
          {
            selector: 'node.match',
            style: { 'border-color': '#fbbf24' }
          },
          {
            selector: 'edge',
            style: {
              'width': 'data(width)',
              'line-color': 'data(color)',
              'target-arrow-color': 'data(color)',
              'target-arrow-shape': 'triangle',
              'arrow-scale': 0.8,
              'curve-style': 'taxi',
              'taxi-direction': vertical ? 'vertical' : 'horizontal',
              'opacity': 0.35,
              'font-size': '9px',
              'color': '#cbd5e1',
              'text-background-color': '#0f172a',
              'text-background-opacity': 0.8,
              'text-background-padding': '2px'
            }
          },
          {
            selector: 'edge.dashed',
            style: { 'line-style': 'dashed' }
          },
          {
            selector: 'edge.highlighted, edge.hover',
            style: { 'opacity': 1, 'z-index': 10 }
          },
          {
            selector: 'edge.show-label',
            style: { 'label': 'data(label)' }
          },
          {
            selector: '.dimmed',
            style: { 'opacity': 0.12 }
          },
          {
            selector: '.hidden',
            style: { 'display': 'none' }
          }
        ],
        layout: { name: 'preset', fit: true, padding: 40 }
      });

      // Visibility: type toggles and search. Positions never change here.
      const activeTypes = new Set();
      document.querySelectorAll('#legend input[type=checkbox]').forEach(function(box) {
        if (box.checked) activeTypes.add(box.dataset.type);
        box.addEventListener('change', function() {
          if (box.checked) activeTypes.add(box.dataset.type);
          else activeTypes.delete(box.dataset.type);
          applyFilters();
        });
      });
      document.getElementById('show-all').addEventListener('click', function() {
        document.querySelectorAll('#legend input[type=checkbox]').forEach(function(box) {
          box.checked = true;
          activeTypes.add(box.dataset.type);
        });
        applyFilters();
      });

      const search = document.getElementById('search');
      search.addEventListener('input', applyFilters);

      function nodeVisible(node) {
        if (!activeTypes.has(node.data('type'))) return false;
        const q = search.value.trim().toLowerCase();
        if (!q) return true;
        return node.data('label').toLowerCase().includes(q) || node.data('path').toLowerCase().includes(q);
      }

      function applyFilters() {
        const q = search.value.trim();
        cy.batch(function() {
          cy.nodes().forEach(function(node) {
            const visible = nodeVisible(node);
            node.toggleClass('hidden', !visible);
            node.toggleClass('match', visible && q !== '');
          });
          cy.edges().forEach(function(edge) {
            const visible = !edge.source().hasClass('hidden') && !edge.target().hasClass('hidden');
            edge.toggleClass('hidden', !visible);
          });
        });
        const sel = cy.nodes('.selected');
        if (sel.nonempty() && sel.hasClass('hidden')) clearSelection();
        updateLabels();
        drawMinimap();
      }

      // Selection and detail panel.
      const detail = document.getElementById('detail');

      function escapeHtml(str) {
        if (str === undefined || str === null) return '';
        return String(str).replace(/&/g, '&amp;')
                  .replace(/</g, '&lt;')
                  .replace(/>/g, '&gt;')
                  .replace(/"/g, '&quot;');
      }

      function select(id) {
        const node = cy.getElementById(id);
        if (node.empty() || node.hasClass('hidden')) return;
        cy.batch(function() {
          cy.elements().removeClass('selected highlighted dimmed');
          node.addClass('selected');
          const incident = node.connectedEdges(':visible');
          incident.addClass('highlighted');
          cy.elements(':visible').not(incident).not(incident.connectedNodes()).addClass('dimmed');
        });
        showDetail(node);
        updateLabels();
        if (served) fetch(apiBase + '/select?node=' + encodeURIComponent(id), {method: 'POST'}).catch(function() {});
      }

      function clearSelection() {
        cy.elements().removeClass('selected highlighted dimmed');
        detail.style.display = 'none';
        updateLabels();
      }

      function edgeList(edges, other) {
        if (edges.empty()) return '<div class="row">none</div>';
        let html = '<ul>';
        edges.forEach(function(edge) {
          const n = other(edge);
          html += '<li data-id="' + escapeHtml(n.id()) + '">' + escapeHtml(n.data('label')) +
            '<span class="rel">' + escapeHtml(edge.data('label')) + '</span></li>';
        });
        return html + '</ul>';
      }

      function showDetail(node) {
        const d = node.data();
        const incoming = node.incomers('edge:visible');
        const outgoing = node.outgoers('edge:visible');
        let html = '<h3>' + escapeHtml(d.typeLabel) + '</h3>';
        html += '<div class="title">' + escapeHtml(d.label) + '</div>';
        html += '<div class="path">' + escapeHtml(d.path) + '</div>';
        if (d.description) html += '<div class="row">' + escapeHtml(d.description) + '</div>';
        if (d.entity === 'module') {
          html += '<div class="row">Files: ' + d.size + '</div>';
          if (d.topFiles && d.topFiles.length) html += '<div class="row">Top files: ' + d.topFiles.map(escapeHtml).join(', ') + '</div>';
        } else {
          html += '<div class="row">Lines of code: ' + d.size + '</div>';
        }
        html += '<div class="row">Importance: ' + d.importance + ' · Degree: ' + d.degree + '</div>';
        if (d.exports && d.exports.length) html += '<div class="row">Exports: ' + d.exports.map(escapeHtml).join(', ') + '</div>';
        html += '<h3 style="margin-top:10px">Incoming (' + incoming.length + ')</h3>';
        html += edgeList(incoming, function(e) { return e.source(); });
        html += '<h3>Outgoing (' + outgoing.length + ')</h3>';
        html += edgeList(outgoing, function(e) { return e.target(); });
        detail.innerHTML = html;
        detail.style.display = 'block';
        detail.querySelectorAll('li[data-id]').forEach(function(li) {
          li.addEventListener('click', function() {
            select(li.dataset.id);
            cy.animate({center: {eles: cy.getElementById(li.dataset.id)}, duration: 200});
          });
        });
      }

      cy.on('tap', 'node', function(evt) { select(evt.target.id()); });
      cy.on('tap', function(evt) { if (evt.target === cy) clearSelection(); });

      cy.on('mouseover', 'node', function(evt) { evt.target.connectedEdges().addClass('hover'); updateLabels(); });
      cy.on('mouseout', 'node', function(evt) { evt.target.connectedEdges().removeClass('hover'); updateLabels(); });
      cy.on('mouseover', 'edge', function(evt) { evt.target.addClass('hover'); updateLabels(); });
      cy.on('mouseout', 'edge', function(evt) { evt.target.removeClass('hover'); updateLabels(); });

      // Labels: highlighted edges always; heavy or high-rank edges when zoomed in.
      function updateLabels() {
        const zoom = cy.zoom();
        cy.batch(function() {
          cy.edges().forEach(function(edge) {
            const highlighted = edge.hasClass('highlighted') || edge.hasClass('hover');
            const show = highlighted || (zoom >= labelZoom && edge.data('labelPriority'));
            edge.toggleClass('show-label', show);
          });
        });
      }
      cy.on('zoom', updateLabels);

      // Minimap.
      const minimap = document.getElementById('minimap');
      const mctx = minimap.getContext('2d');
      let mapTransform = null;

      function drawMinimap() {
        const nodes = cy.nodes(':visible');
        mctx.clearRect(0, 0, minimap.width, minimap.height);
        if (nodes.empty()) return;
        const bb = nodes.boundingBox();
        const pad = 8;
        const scale = Math.min((minimap.width - 2 * pad) / Math.max(bb.w, 1), (minimap.height - 2 * pad) / Math.max(bb.h, 1));
        mapTransform = {bb: bb, scale: scale, pad: pad};
        nodes.forEach(function(node) {
          const p = node.position();
          const w = Math.max(node.data('w') * scale, 2);
          const h = Math.max(node.data('h') * scale, 2);
          mctx.fillStyle = node.data('color');
          mctx.fillRect(pad + (p.x - bb.x1) * scale - w / 2, pad + (p.y - bb.y1) * scale - h / 2, w, h);
        });
        const ext = cy.extent();
        mctx.strokeStyle = '#fbbf24';
        mctx.lineWidth = 1;
        mctx.strokeRect(pad + (ext.x1 - bb.x1) * scale, pad + (ext.y1 - bb.y1) * scale, ext.w * scale, ext.h * scale);
      }

      minimap.addEventListener('click', function(evt) {
        if (!mapTransform) return;
        const rect = minimap.getBoundingClientRect();
        const x = (evt.clientX - rect.left - mapTransform.pad) / mapTransform.scale + mapTransform.bb.x1;
        const y = (evt.clientY - rect.top - mapTransform.pad) / mapTransform.scale + mapTransform.bb.y1;
        const zoom = cy.zoom();
        cy.pan({x: cy.width() / 2 - x * zoom, y: cy.height() / 2 - y * zoom});
      });
      cy.on('viewport', drawMinimap);

      // Toolbar.
      document.getElementById('fit').addEventListener('click', function() { cy.fit(cy.elements(':visible'), 40); });
      document.getElementById('center').addEventListener('click', function() {
        const sel = cy.nodes('.selected');
        cy.center(sel.nonempty() ? sel : cy.elements(':visible'));
      });
      document.getElementById('fullscreen').addEventListener('click', function() {
        if (document.fullscreenElement) document.exitFullscreen();
        else document.documentElement.requestFullscreen();
      });
      document.getElementById('export').addEventListener('click', function() {
        const blob = cy.png({output: 'blob', bg: background, full: false, scale: 2});
        const link = document.createElement('a');
        link.href = URL.createObjectURL(blob);
        link.download = exportName;
        document.body.appendChild(link);
        link.click();
        link.remove();
        setTimeout(function() { URL.revokeObjectURL(link.href); }, 1000);
      });

      if (served) {
        document.getElementById('mode').addEventListener('change', function(evt) {
          fetch(apiBase + '/layout?mode=' + encodeURIComponent(evt.target.value), {method: 'POST'})
            .then(function() { window.location.reload(); });
        });
        document.getElementById('regenerate').addEventListener('click', function(evt) {
          evt.target.disabled = true;
          evt.target.textContent = 'Regenerating...';
          fetch(apiBase + '/regenerate', {method: 'POST'})
            .then(function() { window.location.reload(); })
            .catch(function() { evt.target.disabled = false; evt.target.textContent = 'Regenerate'; });
        });
      }

      applyFilters();
      if (initialSelected) select(initialSelected);
      drawMinimap();
    })();
  </script>
</body>
</html>`
