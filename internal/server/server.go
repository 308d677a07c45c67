package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/jordanlewiz/atlas-xray-sub001/internal/database"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Scanner triggers a synchronous pipeline pass. The pipeline
// orchestrator satisfies this; a nil Scanner disables the scan route.
type Scanner interface {
	TriggerManualScan(ctx context.Context) (*pipeline.RunReport, error)
}

// Server is the HTTP server for the quality dashboard.
type Server struct {
	db      *database.DB
	scanner Scanner
	pages   map[string]*template.Template
	mux     *http.ServeMux
}

// New creates a new Server. scanner may be nil.
func New(db *database.DB, scanner Scanner) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"score": func(f *float64) string {
			if f == nil {
				return "–"
			}
			return fmt.Sprintf("%.0f", *f)
		},
		"shortTime": func(ts string) string {
			t, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return ts
			}
			return t.Format("2006-01-02 15:04")
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "project.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, scanner: scanner, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/project/", s.handleProject)
	s.mux.HandleFunc("/scan", s.handleScan)
	s.mux.HandleFunc("/api/metrics", s.handleMetrics)
	s.mux.HandleFunc("/api/updates/", s.handleUpdateQuality)
}

// projectRow is the per-project line on the index page.
type projectRow struct {
	Project     database.Project
	UpdateCount int
	LatestScore *float64
	LatestLevel *string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	projects, err := s.db.GetAllProjects()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rows := make([]projectRow, 0, len(projects))
	for _, p := range projects {
		row := projectRow{Project: p}
		row.UpdateCount, _ = s.db.CountUpdatesForProject(p.ID)
		updates, _ := s.db.GetUpdatesForProject(p.ID)
		for _, u := range updates {
			if u.Analyzed {
				row.LatestScore = u.QualityScore
				row.LatestLevel = u.QualityLevel
				break
			}
		}
		rows = append(rows, row)
	}

	metrics, _ := s.db.GetQualityMetrics()
	lastScan, _ := s.db.GetLastScanAt()

	s.render(w, "index.html", map[string]any{
		"Projects": rows,
		"Metrics":  metrics,
		"LastScan": lastScan,
		"CanScan":  s.scanner != nil,
	})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimPrefix(r.URL.Path, "/project/")
	if projectID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	project, err := s.db.GetProject(projectID)
	if err != nil || project == nil {
		http.NotFound(w, r)
		return
	}

	updates, _ := s.db.GetUpdatesForProject(projectID)

	s.render(w, "project.html", map[string]any{
		"Project": project,
		"Updates": updates,
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || s.scanner == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if _, err := s.scanner.TriggerManualScan(r.Context()); err != nil {
		log.Printf("Manual scan failed: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.db.GetQualityMetrics()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	lastScan, _ := s.db.GetLastScanAt()

	writeJSON(w, map[string]any{
		"metrics":   metrics,
		"stats":     stats,
		"last_scan": lastScan,
	})
}

func (s *Server) handleUpdateQuality(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/updates/")
	updateID := strings.TrimSuffix(path, "/quality")
	if updateID == "" || updateID == path {
		http.NotFound(w, r)
		return
	}

	update, err := s.db.GetUpdate(updateID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if update == nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, map[string]any{
		"id":           update.ID,
		"project_id":   update.ProjectID,
		"analyzed":     update.Analyzed,
		"score":        update.QualityScore,
		"level":        update.QualityLevel,
		"summary":      update.QualitySummary,
		"missing_info": update.MissingInfo,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, scanner Scanner, port int) error {
	srv, err := New(db, scanner)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
