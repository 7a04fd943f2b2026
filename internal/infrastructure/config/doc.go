// Package config handles loading and validating autoscan configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a .env file, if present, before environment overrides
//   - Overriding with AUTOSCAN_* environment variables
//   - Validation of required fields
//
// Sensitive values (SSH password, MQTT password, InfluxDB token) should be
// set via environment variables rather than committed to config.yaml.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Scanner.Timeout)
package config
