package dayz

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Launch parameter bounds. The game rejects values outside these ranges,
// so the panel refuses them up front rather than spawning a server that
// exits immediately.
const (
	MinPort = 1
	MaxPort = 65535

	MinCPUCount = 1
	MaxCPUCount = 32

	MinPlayerLimit = 1
	MaxPlayerLimit = 127
)

// Config holds the launch parameters for the DayZ dedicated server.
//
// All paths are relative to the server install directory.
type Config struct {
	// Port is the game port the server binds (default 2302).
	// The Steam query port is Port+1.
	Port int `json:"port" yaml:"port"`

	// CPUCount is the number of cores the server may use.
	CPUCount int `json:"cpuCount" yaml:"cpu_count"`

	// ConfigFile is the server configuration file (serverDZ.cfg).
	ConfigFile string `json:"configFile" yaml:"config_file"`

	// ProfilesDir is where the server writes logs and mission state.
	// Created on start if missing.
	ProfilesDir string `json:"profilesDir" yaml:"profiles_dir"`

	// BEPath is the BattlEye anti-cheat directory.
	BEPath string `json:"bePath" yaml:"be_path"`

	// Limit is the maximum player count.
	Limit int `json:"limit" yaml:"limit"`

	// Logging flags.
	DoLogs      bool `json:"doLogs" yaml:"do_logs"`
	AdminLog    bool `json:"adminLog" yaml:"admin_log"`
	NetLog      bool `json:"netLog" yaml:"net_log"`
	FreezeCheck bool `json:"freezeCheck" yaml:"freeze_check"`
}

// DefaultConfig returns the stock launch configuration.
func DefaultConfig() Config {
	return Config{
		Port:        2302,
		CPUCount:    2,
		ConfigFile:  "serverDZ.cfg",
		ProfilesDir: "profiles",
		BEPath:      "battleye",
		Limit:       60,
		DoLogs:      true,
		AdminLog:    true,
		NetLog:      false,
		FreezeCheck: true,
	}
}

// Validate checks the configuration for errors. The returned error names
// the offending field so the API can surface it directly.
func (c *Config) Validate() error {
	if c.Port < MinPort || c.Port > MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", MinPort, MaxPort, c.Port)
	}
	if c.CPUCount < MinCPUCount || c.CPUCount > MaxCPUCount {
		return fmt.Errorf("cpuCount must be between %d and %d, got %d", MinCPUCount, MaxCPUCount, c.CPUCount)
	}
	if c.Limit < MinPlayerLimit || c.Limit > MaxPlayerLimit {
		return fmt.Errorf("limit must be between %d and %d, got %d", MinPlayerLimit, MaxPlayerLimit, c.Limit)
	}
	if err := validateRelPath("configFile", c.ConfigFile); err != nil {
		return err
	}
	if err := validateRelPath("profilesDir", c.ProfilesDir); err != nil {
		return err
	}
	if err := validateRelPath("bePath", c.BEPath); err != nil {
		return err
	}
	return nil
}

// validateRelPath rejects empty, absolute, or parent-escaping paths.
// Everything the server touches must stay inside the install directory.
func validateRelPath(field, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required", field)
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("%s must be relative to the install directory, got %q", field, path)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("%s must not contain \"..\", got %q", field, path)
		}
	}
	return nil
}

// ValidateMods checks a mod list. Mod names are directory names within the
// install directory; the "@" prefix is conventional but not required here
// because BuildArgs adds it when missing.
func ValidateMods(mods []string) error {
	for _, mod := range mods {
		name := strings.TrimPrefix(mod, "@")
		if name == "" {
			return fmt.Errorf("mod name must not be empty")
		}
		if strings.ContainsAny(mod, ";") {
			return fmt.Errorf("mod name %q must not contain \";\"", mod)
		}
		if strings.ContainsAny(mod, `/\`) {
			return fmt.Errorf("mod name %q must not contain path separators", mod)
		}
	}
	return nil
}

// BuildArgs constructs the server command-line arguments in deterministic
// order. Mods are passed as a single -mod= argument with "@" markers and
// ";" separators, matching the game's expected format.
func (c *Config) BuildArgs(mods []string) []string {
	args := []string{
		fmt.Sprintf("-config=%s", c.ConfigFile),
		fmt.Sprintf("-port=%d", c.Port),
		fmt.Sprintf("-cpuCount=%d", c.CPUCount),
		fmt.Sprintf("-profiles=%s", c.ProfilesDir),
		fmt.Sprintf("-BEpath=%s", c.BEPath),
		fmt.Sprintf("-limit=%d", c.Limit),
	}

	if c.DoLogs {
		args = append(args, "-dologs")
	}
	if c.AdminLog {
		args = append(args, "-adminlog")
	}
	if c.NetLog {
		args = append(args, "-netlog")
	}
	if c.FreezeCheck {
		args = append(args, "-freezecheck")
	}

	if len(mods) > 0 {
		marked := make([]string, len(mods))
		for i, mod := range mods {
			if strings.HasPrefix(mod, "@") {
				marked[i] = mod
			} else {
				marked[i] = "@" + mod
			}
		}
		args = append(args, fmt.Sprintf("-mod=%s", strings.Join(marked, ";")))
	}

	return args
}
