package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jordanlewiz/atlas-xray-sub001/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func newTestServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertProjectSummary("PROJ-1", "Atlas Rollout", false); err != nil {
		t.Fatalf("UpsertProjectSummary failed: %v", err)
	}
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Atlas Rollout") {
		t.Error("expected project name in response body")
	}
}

func TestProjectRoute(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertProjectSummary("PROJ-1", "Atlas Rollout", false); err != nil {
		t.Fatalf("UpsertProjectSummary failed: %v", err)
	}
	if _, err := db.InsertUpdate("U-1", "PROJ-1", "2026-08-30T10:00:00Z", ptr("on-track"), "Shipped the beta."); err != nil {
		t.Fatalf("InsertUpdate failed: %v", err)
	}
	if err := db.SaveAnalysis("U-1", 75, "good", "Quality: 75/100 (good)", []string{"Provide: confidence level"}); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/project/PROJ-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Shipped the beta.", "on-track", "good", "confidence level"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
}

func TestProjectRouteUnknownID(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/project/NOPE", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsAPI(t *testing.T) {
	db := openTestDB(t)
	if err := db.EnsureProject("PROJ-1"); err != nil {
		t.Fatalf("EnsureProject failed: %v", err)
	}
	if _, err := db.InsertUpdate("U-1", "PROJ-1", "2026-08-30T10:00:00Z", nil, "text"); err != nil {
		t.Fatalf("InsertUpdate failed: %v", err)
	}
	if err := db.SaveAnalysis("U-1", 90, "excellent", "Quality: 90/100 (excellent)", nil); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/api/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Metrics struct {
			TotalUpdates    int
			AnalyzedUpdates int
			AverageScore    float64
		}
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if payload.Metrics.AnalyzedUpdates != 1 || payload.Metrics.AverageScore != 90 {
		t.Errorf("unexpected metrics: %+v", payload.Metrics)
	}
}

func TestUpdateQualityAPI(t *testing.T) {
	db := openTestDB(t)
	if err := db.EnsureProject("PROJ-1"); err != nil {
		t.Fatalf("EnsureProject failed: %v", err)
	}
	if _, err := db.InsertUpdate("U-1", "PROJ-1", "2026-08-30T10:00:00Z", nil, "text"); err != nil {
		t.Fatalf("InsertUpdate failed: %v", err)
	}
	if err := db.SaveAnalysis("U-1", 50, "fair", "Quality: 50/100 (fair)", []string{"Provide: next steps"}); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/api/updates/U-1/quality", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if payload["level"] != "fair" || payload["score"] != float64(50) {
		t.Errorf("unexpected payload: %v", payload)
	}

	req = httptest.NewRequest("GET", "/api/updates/NOPE/quality", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown update, got %d", rec.Code)
	}
}
