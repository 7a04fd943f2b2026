package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the autoscan service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Inventory InventoryConfig `yaml:"inventory"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ScannerConfig controls pairing behaviour and device setup.
type ScannerConfig struct {
	// Timeout is how long a pending scan waits for its partner.
	Timeout time.Duration `yaml:"timeout"`

	// MultiLocationRetain keeps a multi-item location pending after an
	// identifier is paired with it, so several items can be booked in.
	MultiLocationRetain bool `yaml:"multi_location_retain"`

	// PrefixBase is the first routing prefix handed out on rebuild.
	PrefixBase string `yaml:"prefix_base"`

	// CradleModel is the model number that identifies a cradle.
	CradleModel string `yaml:"cradle_model"`

	// PrefixAttribute is the attribute that carries the prefix value.
	PrefixAttribute int `yaml:"prefix_attribute"`

	// FormatAttribute selects the scan data transmission format;
	// FormatValue must make the device prepend its prefix.
	FormatAttribute int    `yaml:"format_attribute"`
	FormatValue     string `yaml:"format_value"`

	DeviceAttributes []AttributeConfig `yaml:"device_attributes"`
	CradleAttributes []AttributeConfig `yaml:"cradle_attributes"`

	// QueueSize bounds each device's work queue; EventBuffer bounds the
	// shared event channel.
	QueueSize   int `yaml:"queue_size"`
	EventBuffer int `yaml:"event_buffer"`

	// HealthInterval is how often service health is published.
	HealthInterval time.Duration `yaml:"health_interval"`
}

// AttributeConfig is a single device attribute write.
// Type uses the driver's one-letter codes: B (byte), F (flag), W (word),
// D (dword), S (string).
type AttributeConfig struct {
	ID    int    `yaml:"id"`
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// GatewayConfig describes the scanner gateway that owns the vendor driver.
type GatewayConfig struct {
	ID string `yaml:"id"`

	// Managed indicates whether autoscand starts and supervises the gateway
	// process. If false the gateway is expected to run externally.
	Managed bool `yaml:"managed"`

	Binary              string   `yaml:"binary"`
	Args                []string `yaml:"args"`
	RestartOnFailure    bool     `yaml:"restart_on_failure"`
	RestartDelaySeconds int      `yaml:"restart_delay_seconds"`

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`

	// CommandTimeout bounds how long a device list request may take.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InventoryConfig describes how completed pairs reach the inventory database.
type InventoryConfig struct {
	// Mode is "ssh" (run Command on Host) or "local" (update Database
	// in-process, for single-host installs).
	Mode string `yaml:"mode"`

	// Database is the inventory SQLite file used in local mode.
	Database string `yaml:"database"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	KeyFile  string `yaml:"key_file"`

	// KnownHosts is the known_hosts file used to verify the server key.
	KnownHosts string `yaml:"known_hosts"`

	// InsecureIgnoreHostKey skips host key verification. Test rigs only.
	InsecureIgnoreHostKey bool `yaml:"insecure_ignore_host_key"`

	// Command is the remote command; the NID and optional location are
	// appended as shell-quoted arguments.
	Command string `yaml:"command"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// UpdateTimeout bounds one remote update, connection included.
	UpdateTimeout time.Duration `yaml:"update_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. .env file next to the working directory, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: AUTOSCAN_SECTION_KEY
// For example: AUTOSCAN_INVENTORY_HOST, AUTOSCAN_SCANNER_TIMEOUT
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *Config: Validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// godotenv never overwrites variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Autoscan",
		},
		Scanner: ScannerConfig{
			Timeout:             30 * time.Second,
			MultiLocationRetain: true,
			PrefixBase:          "A",
			CradleModel:         "CR0078-SC10007WR",
			PrefixAttribute:     99,
			FormatAttribute:     235,
			FormatValue:         "4",
			QueueSize:           16,
			EventBuffer:         64,
			HealthInterval:      30 * time.Second,
		},
		Gateway: GatewayConfig{
			ID:                  "gw-001",
			Binary:              "/usr/local/bin/scanner-gateway",
			RestartOnFailure:    true,
			RestartDelaySeconds: 5,
			MaxRestartAttempts:  10,
			CommandTimeout:      5 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "autoscand",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Inventory: InventoryConfig{
			Mode:           "ssh",
			Port:           22,
			KnownHosts:     "~/.ssh/known_hosts",
			Command:        "autoscan",
			ConnectTimeout: 10 * time.Second,
			UpdateTimeout:  30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/autoscan.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AUTOSCAN_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("AUTOSCAN_SITE_ID"); v != "" {
		cfg.Site.ID = v
	}

	// Scanner
	if v := os.Getenv("AUTOSCAN_SCANNER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AUTOSCAN_SCANNER_TIMEOUT: %w", err)
		}
		cfg.Scanner.Timeout = d
	}
	if v := os.Getenv("AUTOSCAN_SCANNER_MULTI_LOCATION_RETAIN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTOSCAN_SCANNER_MULTI_LOCATION_RETAIN: %w", err)
		}
		cfg.Scanner.MultiLocationRetain = b
	}

	if v := os.Getenv("AUTOSCAN_GATEWAY_ID"); v != "" {
		cfg.Gateway.ID = v
	}

	// MQTT
	if v := os.Getenv("AUTOSCAN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AUTOSCAN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AUTOSCAN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Inventory
	if v := os.Getenv("AUTOSCAN_INVENTORY_MODE"); v != "" {
		cfg.Inventory.Mode = v
	}
	if v := os.Getenv("AUTOSCAN_INVENTORY_HOST"); v != "" {
		cfg.Inventory.Host = v
	}
	if v := os.Getenv("AUTOSCAN_INVENTORY_USER"); v != "" {
		cfg.Inventory.User = v
	}
	if v := os.Getenv("AUTOSCAN_INVENTORY_PASSWORD"); v != "" {
		cfg.Inventory.Password = v
	}
	if v := os.Getenv("AUTOSCAN_INVENTORY_KEY_FILE"); v != "" {
		cfg.Inventory.KeyFile = v
	}

	if v := os.Getenv("AUTOSCAN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AUTOSCAN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("AUTOSCAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Scanner.Timeout <= 0 {
		errs = append(errs, "scanner.timeout must be positive")
	}
	if len([]rune(c.Scanner.PrefixBase)) != 1 {
		errs = append(errs, "scanner.prefix_base must be a single character")
	}
	if c.Scanner.QueueSize < 1 {
		errs = append(errs, "scanner.queue_size must be at least 1")
	}
	if c.Scanner.EventBuffer < 1 {
		errs = append(errs, "scanner.event_buffer must be at least 1")
	}
	for i, a := range append(append([]AttributeConfig{}, c.Scanner.DeviceAttributes...), c.Scanner.CradleAttributes...) {
		if !validAttributeType(a.Type) {
			errs = append(errs, fmt.Sprintf("scanner attribute %d (id %d): unknown type %q", i, a.ID, a.Type))
		}
	}

	if c.Gateway.ID == "" {
		errs = append(errs, "gateway.id is required")
	}
	if c.Gateway.Managed && c.Gateway.Binary == "" {
		errs = append(errs, "gateway.binary is required when gateway.managed is set")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	switch c.Inventory.Mode {
	case "ssh":
		if c.Inventory.Host == "" {
			errs = append(errs, "inventory.host is required (set AUTOSCAN_INVENTORY_HOST)")
		}
		if c.Inventory.User == "" {
			errs = append(errs, "inventory.user is required")
		}
		if c.Inventory.Password == "" && c.Inventory.KeyFile == "" {
			errs = append(errs, "inventory.password or inventory.key_file is required")
		}
		if c.Inventory.Command == "" {
			errs = append(errs, "inventory.command is required")
		}
		if c.Inventory.Port < 1 || c.Inventory.Port > 65535 {
			errs = append(errs, "inventory.port must be between 1 and 65535")
		}
	case "local":
		if c.Inventory.Database == "" {
			errs = append(errs, "inventory.database is required in local mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("inventory.mode must be ssh or local, got %q", c.Inventory.Mode))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validAttributeType(t string) bool {
	switch t {
	case "B", "F", "W", "D", "S":
		return true
	}
	return false
}

// Prefix returns the configured prefix base as a rune.
func (s ScannerConfig) Prefix() rune {
	for _, r := range s.PrefixBase {
		return r
	}
	return 'A'
}
