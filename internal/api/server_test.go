package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nadavnv/smart-home-core/internal/audit"
	"github.com/nadavnv/smart-home-core/internal/auth"
	"github.com/nadavnv/smart-home-core/internal/device"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/config"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/database"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/logging"
	"github.com/nadavnv/smart-home-core/internal/metrics"
	_ "github.com/nadavnv/smart-home-core/migrations" // registers embedded schema
)

const (
	testSecret = "test-secret-key-at-least-32-characters-long"
	lightJSON  = `{"id":"light01","type":"light","name":"Desk lamp","room":"Office","status":"off",
		"parameters":{"brightness":70,"color":"#FFAA00","is_dimmable":true,"dynamic_color":false}}`
)

type observedDevices struct {
	ids []string
}

func (o *observedDevices) ObserveDevice(_ context.Context, d *device.Device) error {
	o.ids = append(o.ids, d.ID)
	return nil
}

type testEnv struct {
	srv      *Server
	handler  http.Handler
	registry *device.Registry
	users    *auth.SQLiteUserRepository
	observed *observedDevices
	reg      *prometheus.Registry
}

func newTestEnv(t *testing.T, ready map[string]HealthCheck) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "api.db"), WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	users := auth.NewUserRepository(db.DB)
	registry := device.NewRegistry(device.NewMemoryRepository())
	auditRepo := audit.NewSQLiteRepository(db.DB)
	observed := &observedDevices{}
	reg := prometheus.NewRegistry()
	log := logging.Discard()

	srv, err := New(Deps{
		WS:          config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:      log,
		Registry:    registry,
		Auth:        auth.NewService(users, testSecret, time.Hour),
		Observer:    observed,
		Audit:       auditRepo,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    reg,
		Ready:       ready,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	registry.AddObserver(audit.NewRecorder(auditRepo))
	registry.AddObserver(srv.Hub())

	return &testEnv{srv: srv, handler: srv.Handler(), registry: registry, users: users, observed: observed, reg: reg}
}

// token registers (or seeds, for admin) a user and returns a bearer token.
func (e *testEnv) token(t *testing.T, username string, role auth.Role) string {
	t.Helper()
	if role == auth.RoleAdmin {
		hash, _ := auth.HashPassword("pw")
		if err := e.users.Create(context.Background(), &auth.User{Username: username, PasswordHash: hash, Role: role}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		rec := e.do(t, http.MethodPost, "/api/login", "", `{"username":"`+username+`","password":"pw"}`)
		return decodeToken(t, rec)
	}
	rec := e.do(t, http.MethodPost, "/api/register", "", `{"username":"`+username+`","password":"pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body)
	}
	return decodeToken(t, rec)
}

func decodeToken(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var tok auth.Token
	if err := json.NewDecoder(rec.Body).Decode(&tok); err != nil {
		t.Fatalf("decoding token: %v", err)
	}
	return tok.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) Error {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no deps error = nil, want error")
	}
}

func TestLivez(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/livez", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"healthy"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestReadyz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name       string
		ready      map[string]HealthCheck
		wantStatus int
		wantBody   string
	}{
		{"no checks", nil, http.StatusOK, `"ready"`},
		{"all healthy", map[string]HealthCheck{"database": ok, "mqtt": ok}, http.StatusOK, `"ready"`},
		{"one failing", map[string]HealthCheck{"database": ok, "redis": down, "mqtt": down}, http.StatusServiceUnavailable, `"failing":["mqtt","redis"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, tt.ready)
			rec := e.do(t, http.MethodGet, "/readyz", "", "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want to contain %s", rec.Body, tt.wantBody)
			}
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/register", "", `{"username":"alice","password":"pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"role":"user"`) {
		t.Errorf("register body = %s, want role user", rec.Body)
	}

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{"duplicate", "/api/register", `{"username":"alice","password":"x"}`, http.StatusConflict, "Username alice is taken"},
		{"missing password", "/api/register", `{"username":"bob"}`, http.StatusBadRequest, "Username and password required"},
		{"bad json", "/api/register", `{`, http.StatusBadRequest, "invalid JSON body"},
		{"wrong password", "/api/login", `{"username":"alice","password":"nope"}`, http.StatusUnauthorized, "Invalid credentials"},
		{"unknown user", "/api/login", `{"username":"carol","password":"pw"}`, http.StatusUnauthorized, "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, tt.path, "", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := decodeError(t, rec).Message; got != tt.wantMsg {
				t.Errorf("message = %q, want %q", got, tt.wantMsg)
			}
		})
	}

	rec = e.do(t, http.MethodPost, "/api/login", "", `{"username":"alice","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("login status = %d, want 200", rec.Code)
	}
}

func TestDevicesRequireAuth(t *testing.T) {
	e := newTestEnv(t, nil)

	for _, tok := range []string{"", "garbage"} {
		rec := e.do(t, http.MethodGet, "/api/devices", tok, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", tok, rec.Code)
		}
	}
}

func TestDeviceLifecycle(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.token(t, "alice", auth.RoleUser)
	admin := e.token(t, "root", auth.RoleAdmin)

	rec := e.do(t, http.MethodPost, "/api/devices", user, lightJSON)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}

	rec = e.do(t, http.MethodGet, "/api/devices/light01", user, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got device.Device
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding device: %v", err)
	}
	if got.Name != "Desk lamp" || got.Status != device.StatusOff {
		t.Errorf("device = %+v", got)
	}

	rec = e.do(t, http.MethodGet, "/api/ids", user, "")
	if body := strings.TrimSpace(rec.Body.String()); body != `["light01"]` {
		t.Errorf("ids = %s, want [\"light01\"]", body)
	}

	rec = e.do(t, http.MethodGet, "/api/devices", user, "")
	if rec.Code != http.StatusOK {
		t.Errorf("list status = %d", rec.Code)
	}
	if len(e.observed.ids) != 2 {
		t.Errorf("observed = %v, want two reads", e.observed.ids)
	}

	rec = e.do(t, http.MethodPut, "/api/devices/light01", user, `{"status":"on","parameters":{"brightness":"40"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	updated, _ := e.registry.GetDevice(context.Background(), "light01")
	if updated.Status != device.StatusOn {
		t.Errorf("status after update = %q, want on", updated.Status)
	}

	rec = e.do(t, http.MethodDelete, "/api/devices/light01", user, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user delete status = %d, want 403", rec.Code)
	}
	if msg := decodeError(t, rec).Message; msg != "Admins only" {
		t.Errorf("message = %q, want Admins only", msg)
	}

	rec = e.do(t, http.MethodDelete, "/api/devices/light01", admin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin delete status = %d, body %s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodDelete, "/api/devices/light01", admin, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestDeviceErrors(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.token(t, "alice", auth.RoleUser)
	if rec := e.do(t, http.MethodPost, "/api/devices", user, lightJSON); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"duplicate", http.MethodPost, "/api/devices", lightJSON, http.StatusConflict, ErrCodeConflict, "Device ID light01 already exists"},
		{"missing", http.MethodGet, "/api/devices/nope", "", http.StatusNotFound, ErrCodeNotFound, "Device ID nope not found"},
		{"update missing", http.MethodPut, "/api/devices/nope", `{"status":"on"}`, http.StatusNotFound, ErrCodeNotFound, "Device ID nope not found"},
		{
			"out of range", http.MethodPut, "/api/devices/light01", `{"parameters":{"brightness":150}}`,
			http.StatusBadRequest, ErrCodeValidation, "'brightness' must be between 0 and 100, got 150 instead.",
		},
		{
			"wrong variant", http.MethodPut, "/api/devices/light01", `{"parameters":{"position":50}}`,
			http.StatusBadRequest, ErrCodeValidation, "Incorrect parameters for device type light",
		},
		{
			"bad type", http.MethodPost, "/api/devices", `{"id":"x","type":"toaster","name":"t","room":"r","status":"on","parameters":{}}`,
			http.StatusBadRequest, ErrCodeValidation, "Invalid device type 'toaster'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, user, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			got := decodeError(t, rec)
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}

func TestAuditTrail(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.token(t, "alice", auth.RoleUser)
	admin := e.token(t, "root", auth.RoleAdmin)

	if rec := e.do(t, http.MethodPost, "/api/devices", user, lightJSON); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPut, "/api/devices/light01", user, `{"status":"on"}`); rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	if rec := e.do(t, http.MethodGet, "/api/audit", user, ""); rec.Code != http.StatusForbidden {
		t.Errorf("user audit status = %d, want 403", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/audit?limit=x", admin, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	rec := e.do(t, http.MethodGet, "/api/audit?device_id=light01&action=updated", admin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d, body %s", rec.Code, rec.Body)
	}
	var page audit.ListResult
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decoding audit page: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("audit total = %d, want 1", page.Total)
	}
	got := page.Entries[0]
	if got.Actor != "alice" || got.Origin != "local" || got.Details["previous_status"] != "off" {
		t.Errorf("audit entry = %+v", got)
	}
}

func TestRequestMetrics(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.token(t, "alice", auth.RoleUser)
	e.do(t, http.MethodGet, "/api/devices/nope", user, "")

	rec := e.do(t, http.MethodGet, "/metrics", "", "")
	body := rec.Body.String()
	for _, want := range []string{
		`request_count_total{endpoint="/api/devices/{id}",method="GET",status_code="404"} 1`,
		`request_latency_seconds_count{endpoint="/api/register"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %s", want)
		}
	}
}

func TestWebSocketReceivesChanges(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.token(t, "alice", auth.RoleUser)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.srv.Hub().Run(ctx)

	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + user
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for e.srv.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	dev, err := device.DecodeDevice([]byte(lightJSON))
	if err != nil {
		t.Fatalf("DecodeDevice() error = %v", err)
	}
	if _, err := e.registry.ApplyCreate(context.Background(), dev); err != nil {
		t.Fatalf("ApplyCreate() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Type != EventDeviceCreated || ev.Origin != "replicated" || ev.Device == nil || ev.Device.ID != "light01" {
		t.Errorf("event = %+v", ev)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	e := newTestEnv(t, nil)
	for _, path := range []string{"/ws", "/ws?token=bad"} {
		rec := e.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", path, rec.Code)
		}
	}
}
