package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
api:
  host: "127.0.0.1"
  port: 9090
server:
  install_dir: "/srv/dayz"
  grace_period: 2s
  restart_interval: 1h
  launch:
    port: 2402
  mods:
    - "@CF"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
logging:
  level: "debug"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Server.InstallDir != "/srv/dayz" {
		t.Errorf("Server.InstallDir = %q, want %q", cfg.Server.InstallDir, "/srv/dayz")
	}
	if cfg.Server.GracePeriod != 2*time.Second {
		t.Errorf("Server.GracePeriod = %v, want 2s", cfg.Server.GracePeriod)
	}
	if cfg.Server.RestartInterval != time.Hour {
		t.Errorf("Server.RestartInterval = %v, want 1h", cfg.Server.RestartInterval)
	}
	if cfg.Server.Launch.Port != 2402 {
		t.Errorf("Server.Launch.Port = %d, want 2402", cfg.Server.Launch.Port)
	}
	if cfg.Server.Launch.ConfigFile != "serverDZ.cfg" {
		t.Errorf("Server.Launch.ConfigFile = %q, want default retained", cfg.Server.Launch.ConfigFile)
	}
	if len(cfg.Server.Mods) != 1 || cfg.Server.Mods[0] != "@CF" {
		t.Errorf("Server.Mods = %v, want [@CF]", cfg.Server.Mods)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
	if cfg.Server.InstallDir != "/opt/dayz-server" {
		t.Errorf("Server.InstallDir = %q, want default /opt/dayz-server", cfg.Server.InstallDir)
	}
	if cfg.Server.Executable != "DayZServer" {
		t.Errorf("Server.Executable = %q, want default DayZServer", cfg.Server.Executable)
	}
	if cfg.Server.GracePeriod != 10*time.Second {
		t.Errorf("Server.GracePeriod = %v, want default 10s", cfg.Server.GracePeriod)
	}
	if cfg.Server.RestartInterval != 4*time.Hour {
		t.Errorf("Server.RestartInterval = %v, want default 4h", cfg.Server.RestartInterval)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("api: [not a map"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DZPANEL_API_PORT", "3000")
	t.Setenv("DZPANEL_SERVER_DIR", "/mnt/games/dayz")
	t.Setenv("DZPANEL_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want 3000 from DZPANEL_API_PORT", cfg.API.Port)
	}
	if cfg.Server.InstallDir != "/mnt/games/dayz" {
		t.Errorf("Server.InstallDir = %q, want override from DZPANEL_SERVER_DIR", cfg.Server.InstallDir)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
}

func TestEnvOverrides_InvalidPortIgnored(t *testing.T) {
	t.Setenv("DZPANEL_API_PORT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080 when override is not numeric", cfg.API.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "empty install dir",
			mutate:  func(c *Config) { c.Server.InstallDir = "" },
			wantErr: true,
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "negative restart interval",
			mutate:  func(c *Config) { c.Server.RestartInterval = -time.Hour },
			wantErr: true,
		},
		{
			name:    "invalid launch port",
			mutate:  func(c *Config) { c.Server.Launch.Port = 0 },
			wantErr: true,
		},
		{
			name:    "mod name with separator",
			mutate:  func(c *Config) { c.Server.Mods = []string{"@CF", "bad/mod"} },
			wantErr: true,
		},
		{
			name:    "mqtt enabled without host",
			mutate:  func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "metrics enabled without url",
			mutate:  func(c *Config) { c.Metrics.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeoutHelpers(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.API.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 10s", got)
	}
	if got := cfg.API.GetWriteTimeout(); got != 10*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 10s", got)
	}
	if got := cfg.API.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}
