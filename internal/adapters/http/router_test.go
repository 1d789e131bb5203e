package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/civicreport/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/civicreport/internal/application"
	"github.com/atvirokodosprendimai/civicreport/internal/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *application.ReportService) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "civicreport_test.db")

	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	service := application.NewReportService(sqliteadapter.NewReportRepository(db))
	if err := service.BootstrapAdmin(ctx, "admin@example.org", "admin", "Admin"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	srv := httptest.NewServer(NewRouter(service))
	t.Cleanup(srv.Close)
	return srv, service
}

func doJSON(t *testing.T, method, url, token string, payload any, out any) int {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func loginToken(t *testing.T, srv *httptest.Server, email, password string) string {
	t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]any{
		"email": email, "password": password, "mode": "token",
	}, &out)
	if status != http.StatusOK {
		t.Fatalf("login status %d", status)
	}
	return out.Token
}

func TestAPIRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	status := doJSON(t, http.MethodGet, srv.URL+"/api/reports", "", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	status = doJSON(t, http.MethodGet, srv.URL+"/api/reports", "bogus-token", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}
}

func TestAPIReportLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	status := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]any{
		"email": "ona@example.org", "password": "secret", "full_name": "Ona",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("register status %d", status)
	}

	citizenToken := loginToken(t, srv, "ona@example.org", "secret")
	adminToken := loginToken(t, srv, "admin@example.org", "admin")

	var report domain.Report
	status = doJSON(t, http.MethodPost, srv.URL+"/api/reports", citizenToken, map[string]any{
		"title":         "Pothole on Main Street",
		"description":   "Deep pothole near the crossing",
		"location_text": "Main St 12",
		"category":      "pothole",
	}, &report)
	if status != http.StatusOK {
		t.Fatalf("create status %d", status)
	}
	if report.Status != domain.StatusOpen || report.ReportNumber == "" {
		t.Fatalf("unexpected created report: %+v", report)
	}

	// Citizens cannot transition, even their own reports.
	status = doJSON(t, http.MethodPost, srv.URL+"/api/reports/"+report.ID+"/transition", citizenToken, map[string]any{"to": "acknowledged"}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}

	// Skipping a state maps to 400.
	status = doJSON(t, http.MethodPost, srv.URL+"/api/reports/"+report.ID+"/transition", adminToken, map[string]any{"to": "resolved"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	for _, to := range []string{"acknowledged", "in_progress", "resolved"} {
		status = doJSON(t, http.MethodPost, srv.URL+"/api/reports/"+report.ID+"/transition", adminToken, map[string]any{"to": to}, &report)
		if status != http.StatusOK {
			t.Fatalf("transition to %s status %d", to, status)
		}
	}

	status = doJSON(t, http.MethodPost, srv.URL+"/api/reports/"+report.ID+"/rate", citizenToken, map[string]any{"rating": 5, "feedback": "fast"}, &report)
	if status != http.StatusOK {
		t.Fatalf("rate status %d", status)
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/api/reports/"+report.ID+"/rate", citizenToken, map[string]any{"rating": 4}, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for second rating, got %d", status)
	}

	var history []domain.ReportUpdate
	status = doJSON(t, http.MethodGet, srv.URL+"/api/reports/"+report.ID+"/history", citizenToken, nil, &history)
	if status != http.StatusOK {
		t.Fatalf("history status %d", status)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(history))
	}

	var byNumber domain.Report
	status = doJSON(t, http.MethodGet, srv.URL+"/api/reports/number/"+report.ReportNumber, citizenToken, nil, &byNumber)
	if status != http.StatusOK || byNumber.ID != report.ID {
		t.Fatalf("lookup by number failed: status %d", status)
	}

	status = doJSON(t, http.MethodGet, srv.URL+"/api/reports/"+report.ID, "", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
}

func TestAPIListFiltersAndStats(t *testing.T) {
	srv, _ := newTestServer(t)
	adminToken := loginToken(t, srv, "admin@example.org", "admin")

	titles := map[string]string{
		"pothole":     "Pothole on Main Street",
		"streetlight": "Broken streetlight",
		"garbage":     "Overflowing bin",
	}
	for category, title := range titles {
		status := doJSON(t, http.MethodPost, srv.URL+"/api/reports", adminToken, map[string]any{
			"title": title, "description": "d", "location_text": "somewhere", "category": category,
		}, nil)
		if status != http.StatusOK {
			t.Fatalf("create %s status %d", category, status)
		}
	}

	var list []domain.Report
	status := doJSON(t, http.MethodGet, srv.URL+"/api/reports?category=streetlight", adminToken, nil, &list)
	if status != http.StatusOK {
		t.Fatalf("list status %d", status)
	}
	if len(list) != 1 || list[0].Category != domain.CategoryStreetlight {
		t.Fatalf("unexpected filter result: %+v", list)
	}

	status = doJSON(t, http.MethodGet, srv.URL+"/api/reports?q=main+st", adminToken, nil, &list)
	if status != http.StatusOK || len(list) != 1 {
		t.Fatalf("search failed: status %d, %d rows", status, len(list))
	}

	var stats domain.ReportStats
	status = doJSON(t, http.MethodGet, srv.URL+"/api/reports/stats", adminToken, nil, &stats)
	if status != http.StatusOK {
		t.Fatalf("stats status %d", status)
	}
	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}

	status = doJSON(t, http.MethodGet, srv.URL+"/api/audit/logs", adminToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("audit status %d", status)
	}
}

func TestAPIErrorPayloadShape(t *testing.T) {
	srv, _ := newTestServer(t)
	adminToken := loginToken(t, srv, "admin@example.org", "admin")

	var out map[string]any
	status := doJSON(t, http.MethodPost, srv.URL+"/api/reports", adminToken, map[string]any{
		"title": "x", "description": "y", "location_text": "z", "category": "volcano",
	}, &out)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	msg, _ := out["error"].(string)
	if msg == "" {
		t.Fatalf("error payload must carry a message: %v", out)
	}

	status = doJSON(t, http.MethodGet, srv.URL+"/api/reports/"+fmt.Sprintf("%d", time.Now().UnixNano()), adminToken, nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}
