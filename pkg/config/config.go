// Package config loads the grill daemon configuration from YAML with
// environment variable overrides.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
)

// DefaultPollSeconds is the status polling period used when none, or an
// invalid one, is configured.
const DefaultPollSeconds = 30

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	Grill       GrillConfig    `yaml:"grill"`
	PollSeconds int            `yaml:"poll_seconds"`
	HomeKit     HomeKitConfig  `yaml:"homekit"`
	MQTT        MQTTConfig     `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig `yaml:"influxdb"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// GrillConfig describes how to reach the grill controller. An empty host
// means the grill is found by broadcast discovery.
type GrillConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	BroadcastAddress string `yaml:"broadcast_address"`
	Tries            int    `yaml:"tries"`
	RetryIntervalMS  int    `yaml:"retry_interval_ms"`
}

type HomeKitConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Name      string `yaml:"name"`
	Pin       string `yaml:"pin"`
	StorePath string `yaml:"store_path"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path on top of the defaults, applies GMG_*
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parsing config file")
		}
	}

	applyEnvOverrides(cfg)

	if cfg.PollSeconds < 1 {
		cfg.PollSeconds = DefaultPollSeconds
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Grill: GrillConfig{
			Port:             gmg.DefaultPort,
			BroadcastAddress: gmg.DefaultBroadcastAddress,
			Tries:            gmg.DefaultTries,
			RetryIntervalMS:  int(gmg.DefaultRetryInterval / time.Millisecond),
		},
		PollSeconds: DefaultPollSeconds,
		HomeKit: HomeKitConfig{
			Enabled:   true,
			Name:      "Smoker",
			StorePath: "./db",
		},
		MQTT: MQTTConfig{
			Host:        "localhost",
			Port:        1883,
			ClientID:    "gmg-smoker",
			TopicPrefix: "gmg",
			QoS:         1,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "gmg",
			BatchSize:     20,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Listen: ":9110",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GMG_GRILL_HOST"); v != "" {
		cfg.Grill.Host = v
	}
	if v := os.Getenv("GMG_GRILL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Grill.Port = port
		}
	}

	if v := os.Getenv("GMG_MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("GMG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("GMG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if v := os.Getenv("GMG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GMG_HOMEKIT_PIN"); v != "" {
		cfg.HomeKit.Pin = v
	}

	if v := os.Getenv("GMG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate reports every problem found, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []string

	if c.Grill.Port < 1 || c.Grill.Port > 65535 {
		errs = append(errs, "grill.port must be between 1 and 65535")
	}
	if c.Grill.Tries < 1 {
		errs = append(errs, "grill.tries must be at least 1")
	}
	if c.Grill.RetryIntervalMS < 1 {
		errs = append(errs, "grill.retry_interval_ms must be positive")
	}

	if c.HomeKit.Enabled {
		if c.HomeKit.Pin != "" && !validPin(c.HomeKit.Pin) {
			errs = append(errs, "homekit.pin must be 8 digits")
		}
		if c.HomeKit.StorePath == "" {
			errs = append(errs, "homekit.store_path is required")
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			errs = append(errs, "mqtt.host is required")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required (set GMG_INFLUXDB_TOKEN)")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, "logging.format must be text or json")
	}

	if len(errs) > 0 {
		return errors.Wrap(ErrInvalid, strings.Join(errs, "; "))
	}

	return nil
}

// ClientConfig converts the grill section for gmg.NewClient.
func (c *Config) ClientConfig() gmg.Config {
	return gmg.Config{
		Host:             c.Grill.Host,
		Port:             c.Grill.Port,
		Tries:            c.Grill.Tries,
		RetryInterval:    time.Duration(c.Grill.RetryIntervalMS) * time.Millisecond,
		BroadcastAddress: c.Grill.BroadcastAddress,
	}
}

// PollInterval is the monitor polling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

func validPin(pin string) bool {
	if len(pin) != 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
