package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dzpanel/dzpanel/internal/events"
	"github.com/dzpanel/dzpanel/internal/infrastructure/config"
	"github.com/dzpanel/dzpanel/internal/infrastructure/database"
	"github.com/dzpanel/dzpanel/internal/infrastructure/logging"
	"github.com/dzpanel/dzpanel/internal/supervisor"
	_ "github.com/dzpanel/dzpanel/migrations"
)

// testEnv wires a real supervisor over a fake server binary, a migrated
// SQLite database, and the HTTP router behind an httptest server.
type testEnv struct {
	srv *Server
	ts  *httptest.Server
	sup *supervisor.Supervisor
}

func newTestEnv(t *testing.T, script string) *testEnv {
	t.Helper()

	installDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(installDir, "server.sh"), []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("writing fake server: %v", err)
	}

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "panel.db")})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating database: %v", err)
	}

	repo := events.NewSQLiteRepository(db.DB)

	sup := supervisor.New(supervisor.Config{
		InstallDir:      installDir,
		Executable:      "server.sh",
		GracePeriod:     50 * time.Millisecond,
		GracefulTimeout: 2 * time.Second,
		Recorder:        repo,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sup.Shutdown(ctx)
	})

	apiCfg := config.APIConfig{
		WS: config.WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    60,
		},
	}

	srv, err := New(Deps{
		Config:     apiCfg,
		Logger:     logging.Default(),
		Supervisor: sup,
		Events:     repo,
		DB:         db,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("creating API server: %v", err)
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	t.Cleanup(hubCancel)
	srv.hub = NewHub(apiCfg.WS, srv.logger)
	go srv.hub.Run(hubCtx)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, sup: sup}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding response from %s %s: %v", method, path, err)
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	resp, body := env.request(t, http.MethodGet, "/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("health status = %v, want ok", body["status"])
	}
	components, _ := body["components"].(map[string]any)
	if components["database"] != "ok" {
		t.Errorf("database component = %v, want ok", components["database"])
	}
}

func TestStatus_Stopped(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	resp, body := env.request(t, http.MethodGet, "/api/server/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["isRunning"] != false {
		t.Error("expected isRunning false")
	}
	if body["uptime"] != "0:00:00" {
		t.Errorf("uptime = %v, want 0:00:00", body["uptime"])
	}
	if mods, ok := body["mods"].([]any); !ok || mods == nil {
		t.Errorf("mods = %v, want empty array", body["mods"])
	}
	cfg, _ := body["config"].(map[string]any)
	if cfg["port"] != float64(2302) {
		t.Errorf("default port = %v, want 2302", cfg["port"])
	}
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	resp, body := env.request(t, http.MethodPost, "/api/server/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, body %v", resp.StatusCode, body)
	}
	if body["isRunning"] != true {
		t.Error("expected isRunning true after start")
	}
	if body["uptime"] == "" {
		t.Error("expected non-empty uptime after start")
	}

	resp, body = env.request(t, http.MethodPost, "/api/server/start", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double start status = %d, want 409", resp.StatusCode)
	}
	if body["code"] != ErrCodeConflict {
		t.Errorf("double start code = %v, want %q", body["code"], ErrCodeConflict)
	}

	resp, body = env.request(t, http.MethodPost, "/api/server/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d, body %v", resp.StatusCode, body)
	}
	if body["isRunning"] != false {
		t.Error("expected isRunning false after stop")
	}

	resp, _ = env.request(t, http.MethodPost, "/api/server/stop", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double stop status = %d, want 409", resp.StatusCode)
	}
}

func TestStart_SpawnFailure(t *testing.T) {
	env := newTestEnv(t, "exit 1")

	resp, body := env.request(t, http.MethodPost, "/api/server/start", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("start status = %d, want 500", resp.StatusCode)
	}
	if body["code"] != ErrCodeSpawnFailed {
		t.Errorf("code = %v, want %q", body["code"], ErrCodeSpawnFailed)
	}
}

func TestUpdateConfig(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	cfg := map[string]any{
		"port":        2402,
		"cpuCount":    4,
		"configFile":  "serverDZ.cfg",
		"profilesDir": "profiles",
		"bePath":      "battleye",
		"limit":       100,
		"doLogs":      true,
		"adminLog":    true,
		"netLog":      false,
		"freezeCheck": true,
	}
	resp, body := env.request(t, http.MethodPost, "/api/server/config", cfg)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("config status = %d, body %v", resp.StatusCode, body)
	}
	got, _ := body["config"].(map[string]any)
	if got["port"] != float64(2402) || got["limit"] != float64(100) {
		t.Errorf("config not applied: %v", got)
	}

	// Partial body: only port changes, everything else keeps its value.
	resp, body = env.request(t, http.MethodPost, "/api/server/config", map[string]any{"port": 2502})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("partial config status = %d, body %v", resp.StatusCode, body)
	}
	got, _ = body["config"].(map[string]any)
	if got["port"] != float64(2502) || got["limit"] != float64(100) || got["cpuCount"] != float64(4) {
		t.Errorf("partial update lost fields: %v", got)
	}

	bad := map[string]any{"port": 99999}
	resp, body = env.request(t, http.MethodPost, "/api/server/config", bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid config status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != ErrCodeValidation {
		t.Errorf("invalid config code = %v, want %q", body["code"], ErrCodeValidation)
	}

	unknown := map[string]any{"port": 2302, "bogus": true}
	resp, _ = env.request(t, http.MethodPost, "/api/server/config", unknown)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateConfig_RejectedWhileRunning(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	if resp, _ := env.request(t, http.MethodPost, "/api/server/start", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("start failed with %d", resp.StatusCode)
	}

	cfg := map[string]any{"port": 2402}
	resp, body := env.request(t, http.MethodPost, "/api/server/config", cfg)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("config while running = %d, want 409", resp.StatusCode)
	}
	if body["code"] != ErrCodeConflict {
		t.Errorf("code = %v, want %q", body["code"], ErrCodeConflict)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/server/mods", map[string]any{"mods": []string{"@CF"}})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("mods while running = %d, want 409", resp.StatusCode)
	}
}

func TestUpdateMods(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	resp, body := env.request(t, http.MethodPost, "/api/server/mods",
		map[string]any{"mods": []string{"@CF", "@VPPAdminTools"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mods status = %d, body %v", resp.StatusCode, body)
	}
	mods, _ := body["mods"].([]any)
	if len(mods) != 2 || mods[0] != "@CF" {
		t.Errorf("mods = %v", mods)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/server/mods", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing mods status = %d, want 400", resp.StatusCode)
	}

	resp, body = env.request(t, http.MethodPost, "/api/server/mods",
		map[string]any{"mods": []string{"bad;mod"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad mod status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != ErrCodeValidation {
		t.Errorf("bad mod code = %v, want %q", body["code"], ErrCodeValidation)
	}
}

func TestConsole(t *testing.T) {
	env := newTestEnv(t, "echo hello-from-server; sleep 30")

	if resp, _ := env.request(t, http.MethodPost, "/api/server/start", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("start failed with %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	found := false
	for time.Now().Before(deadline) && !found {
		_, body := env.request(t, http.MethodGet, "/api/server/console", nil)
		lines, _ := body["lines"].([]any)
		for _, l := range lines {
			line, _ := l.(map[string]any)
			if line["text"] == "hello-from-server" {
				found = true
			}
		}
		if !found {
			time.Sleep(20 * time.Millisecond)
		}
	}
	if !found {
		t.Error("console output never appeared")
	}

	resp, _ := env.request(t, http.MethodGet, "/api/server/console?lines=-1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative lines status = %d, want 400", resp.StatusCode)
	}
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	if resp, _ := env.request(t, http.MethodPost, "/api/server/start", nil); resp.StatusCode != http.StatusOK {
		t.Fatal("start failed")
	}
	if resp, _ := env.request(t, http.MethodPost, "/api/server/stop", nil); resp.StatusCode != http.StatusOK {
		t.Fatal("stop failed")
	}

	resp, body := env.request(t, http.MethodGet, "/api/server/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events status = %d", resp.StatusCode)
	}
	if body["total"] != float64(2) {
		t.Errorf("total = %v, want 2", body["total"])
	}
	list, _ := body["events"].([]any)
	if len(list) != 2 {
		t.Fatalf("events = %d, want 2", len(list))
	}
	first, _ := list[0].(map[string]any)
	if first["type"] != events.TypeStopped {
		t.Errorf("newest event = %v, want stopped", first["type"])
	}

	resp, body = env.request(t, http.MethodGet, "/api/server/events?type=started", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filtered events status = %d", resp.StatusCode)
	}
	if body["total"] != float64(1) {
		t.Errorf("filtered total = %v, want 1", body["total"])
	}

	resp, _ = env.request(t, http.MethodGet, "/api/server/events?since=yesterday", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", resp.StatusCode)
	}
}

func TestWebSocket_InitialSnapshot(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading initial snapshot: %v", err)
	}
	if msg.Type != WSTypeEvent {
		t.Errorf("message type = %q, want %q", msg.Type, WSTypeEvent)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["isRunning"] != false {
		t.Errorf("snapshot isRunning = %v, want false", payload["isRunning"])
	}
}

func TestWebSocket_StatusBroadcast(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck

	// Drain the initial snapshot.
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading initial snapshot: %v", err)
	}

	env.srv.BroadcastStatus(env.sup.Status())

	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}
	if msg.EventType != ChannelServerStatus {
		t.Errorf("event type = %q, want %q", msg.EventType, ChannelServerStatus)
	}
}
