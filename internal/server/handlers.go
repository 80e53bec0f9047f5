package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/codebaseqa/cqa/internal/graph"
	"github.com/codebaseqa/cqa/internal/layout"
	"github.com/codebaseqa/cqa/internal/render"
	"github.com/codebaseqa/cqa/internal/view"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeView answers with the current view. A view carrying a fetch error is
// reported as a bad gateway so scripts can tell it apart from an empty graph.
func writeView(w http.ResponseWriter, v *view.View) {
	status := http.StatusOK
	if v.Error != "" {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, v)
}

func repoID(r *http.Request) string { return mux.Vars(r)["id"] }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>cqa viewer</title>
<style>
  body { background: #0f172a; color: #e2e8f0; font-family: system-ui, sans-serif; margin: 2rem; }
  a { color: #fbbf24; text-decoration: none; }
  li { margin: .4rem 0; }
  .status { color: #94a3b8; font-size: .85em; margin-left: .5rem; }
  .error { color: #f87171; }
</style>
</head>
<body>
<h1>Repositories</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Repos}}
<ul>
{{range .Repos}}  <li><a href="/repos/{{.ID}}/graph">{{.FullName}}</a><span class="status">{{.Status}} · {{.TotalFiles}} files</span></li>
{{end}}</ul>
{{else if not .Error}}<p>No repositories yet. Add one with <code>cqa repos add &lt;github-url&gt;</code>.</p>{{end}}
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Repos any
		Error string
	}{}
	status := http.StatusOK
	list, err := s.backend.ListRepos(r.Context())
	if err != nil {
		s.logger.Warn("listing repositories failed", "error", err)
		data.Error = err.Error()
		status = http.StatusBadGateway
	} else {
		data.Repos = list.Repositories
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleGraphPage(w http.ResponseWriter, r *http.Request) {
	id := repoID(r)
	sess := s.load(r.Context(), id)

	opts := render.DefaultOptions()
	opts.APIBase = "/api/view/" + id
	page, err := render.HTML(sess.ctrl.View().Scene(), opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(page))
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess := s.load(r.Context(), repoID(r))
	writeView(w, sess.ctrl.View())
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	if !s.drop(repoID(r)) {
		writeError(w, http.StatusNotFound, "no view for this repository")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	mode, err := layout.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess := s.load(r.Context(), repoID(r))
	if err := sess.ctrl.SetMode(r.Context(), mode); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeView(w, sess.ctrl.View())
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id := repoID(r)
	sess := s.session(id)
	if err := sess.ctrl.Regenerate(r.Context()); err != nil {
		s.logger.Warn("regenerate failed", "repo", id, "error", err)
	}
	writeView(w, sess.ctrl.View())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess := s.load(r.Context(), repoID(r))
	sess.ctrl.Search(r.URL.Query().Get("q"))
	writeView(w, sess.ctrl.View())
}

func (s *Server) handleToggleType(w http.ResponseWriter, r *http.Request) {
	t, ok := graph.ParseFileType(mux.Vars(r)["type"])
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown node type: "+mux.Vars(r)["type"])
		return
	}
	sess := s.load(r.Context(), repoID(r))
	sess.ctrl.ToggleType(t)
	writeView(w, sess.ctrl.View())
}

func (s *Server) handleShowAll(w http.ResponseWriter, r *http.Request) {
	sess := s.load(r.Context(), repoID(r))
	sess.ctrl.ShowAllTypes()
	writeView(w, sess.ctrl.View())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess := s.load(r.Context(), repoID(r))
	node := strings.TrimSpace(r.URL.Query().Get("node"))
	if node == "" {
		sess.ctrl.ClearSelection()
	} else if !sess.ctrl.Select(node) {
		writeError(w, http.StatusNotFound, "node not visible: "+node)
		return
	}
	writeView(w, sess.ctrl.View())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.load(r.Context(), repoID(r))
	sess.ctrl.Reset()
	writeView(w, sess.ctrl.View())
}

func (s *Server) handleExportPNG(w http.ResponseWriter, r *http.Request) {
	sess := s.load(r.Context(), repoID(r))
	var buf bytes.Buffer
	if err := render.PNG(&buf, sess.ctrl.View().Scene(), render.PNGOptions{Scale: 2}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+render.DefaultExportName+`"`)
	w.Write(buf.Bytes())
}

func (s *Server) handleExportSVG(w http.ResponseWriter, r *http.Request) {
	sess := s.load(r.Context(), repoID(r))
	var buf bytes.Buffer
	if err := render.SVG(&buf, sess.ctrl.View().Scene(), 1); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(buf.Bytes())
}
