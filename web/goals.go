// ABOUTME: Goal conversion handlers: decompose a goal into tasks and render the resulting task graph.
// ABOUTME: Conversions are kept in memory, newest last, so their reports can be fetched afterwards.
package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/switchboard/resource"
	"github.com/2389-research/switchboard/taskgraph"
)

// maxGoalBody bounds the size of a goal request body.
const maxGoalBody = 64 << 10

// goalRecord is one stored conversion.
type goalRecord struct {
	ID         string                  `json:"id"`
	Request    resource.GoalRequest    `json:"request"`
	Conversion resource.GoalConversion `json:"conversion"`
	Issues     []taskgraph.Issue       `json:"issues"`
	Mermaid    string                  `json:"mermaid"`
	CreatedAt  time.Time               `json:"created_at"`
	ReportURL  string                  `json:"report_url"`
}

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Goal report {{.ID}}</title>
<script type="module">
import mermaid from "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.esm.min.mjs";
mermaid.initialize({ startOnLoad: false });
document.querySelectorAll("code.language-mermaid").forEach((el) => {
  const div = document.createElement("div");
  div.className = "mermaid";
  div.textContent = el.textContent;
  el.parentElement.replaceWith(div);
});
await mermaid.run();
</script>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// handleGoalCreate converts a goal and stores the result.
func (s *Server) handleGoalCreate(w http.ResponseWriter, r *http.Request) {
	var req resource.GoalRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGoalBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		writeError(w, http.StatusBadRequest, "goal is required")
		return
	}

	conv, err := s.goals.ConvertGoalToTasks(r.Context(), req)
	if err != nil {
		log.Printf("component=web action=convert_goal_failed err=%v", err)
		writeAPIError(w, err)
		return
	}

	g := taskgraph.Build(conv.Tasks)
	id := ulid.Make().String()
	rec := &goalRecord{
		ID:         id,
		Request:    req,
		Conversion: conv,
		Issues:     g.Issues,
		Mermaid:    g.Mermaid(),
		CreatedAt:  time.Now(),
		ReportURL:  "/api/goals/" + id + "/report",
	}
	if rec.Issues == nil {
		rec.Issues = []taskgraph.Issue{}
	}
	s.storeGoal(rec)

	log.Printf("component=web action=convert_goal id=%s workflow=%s tasks=%d issues=%d",
		id, conv.WorkflowID, len(conv.Tasks), len(rec.Issues))
	writeJSON(w, http.StatusCreated, rec)
}

// handleGoalGet returns a stored conversion.
func (s *Server) handleGoalGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.goal(chi.URLParam(r, "goalID"))
	if !ok {
		writeError(w, http.StatusNotFound, "goal not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleGoalReport renders a stored conversion as HTML, or as Markdown with
// ?format=md.
func (s *Server) handleGoalReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.goal(chi.URLParam(r, "goalID"))
	if !ok {
		writeError(w, http.StatusNotFound, "goal not found")
		return
	}

	md := taskgraph.Report(rec.Request, rec.Conversion)
	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(md))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		ID   string
		Body template.HTML
	}{ID: rec.ID, Body: taskgraph.ToHTML(md)}
	if err := reportPage.Execute(w, data); err != nil {
		log.Printf("component=web action=render_report id=%s err=%v", rec.ID, err)
	}
}

var graphContentTypes = map[string]string{
	"dot": "text/vnd.graphviz; charset=utf-8",
	"svg": "image/svg+xml",
	"png": "image/png",
}

// handleGoalGraph renders a stored conversion's task graph as DOT, or as SVG
// or PNG through graphviz. The format defaults to svg.
func (s *Server) handleGoalGraph(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.goal(chi.URLParam(r, "goalID"))
	if !ok {
		writeError(w, http.StatusNotFound, "goal not found")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "svg"
	}
	contentType, ok := graphContentTypes[format]
	if !ok {
		writeError(w, http.StatusBadRequest, "format must be one of "+strings.Join(taskgraph.Formats, ", "))
		return
	}

	data, err := taskgraph.Render(r.Context(), taskgraph.Build(rec.Conversion.Tasks).DOT(), format)
	if err != nil {
		log.Printf("component=web action=render_graph id=%s format=%s err=%v", rec.ID, format, err)
		status := http.StatusInternalServerError
		if errors.Is(err, taskgraph.ErrGraphvizMissing) {
			status = http.StatusNotImplemented
		}
		writeError(w, status, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// storeGoal keeps rec, evicting the oldest conversion past the limit.
func (s *Server) storeGoal(rec *goalRecord) {
	s.goalsMu.Lock()
	defer s.goalsMu.Unlock()
	s.goalByID[rec.ID] = rec
	s.goalOrder = append(s.goalOrder, rec.ID)
	for len(s.goalOrder) > s.goalsLimit {
		delete(s.goalByID, s.goalOrder[0])
		s.goalOrder = s.goalOrder[1:]
	}
}

func (s *Server) goal(id string) (*goalRecord, bool) {
	s.goalsMu.RLock()
	defer s.goalsMu.RUnlock()
	rec, ok := s.goalByID[id]
	return rec, ok
}
