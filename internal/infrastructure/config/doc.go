// Package config handles loading and validating dzpanel configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT passwords, metrics tokens) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.InstallDir)
//
// The panel also runs with no config file at all: Load("") applies defaults
// and environment overrides only, which covers the common Docker case of
// DZPANEL_API_PORT plus DZPANEL_SERVER_DIR.
package config
