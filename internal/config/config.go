// Package config loads bridge configuration from a YAML file with
// environment variable overrides, then validates it before anything
// touches hardware or the network.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the bridge.
type Config struct {
	MQTT    MQTTConfig    `yaml:"mqtt"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Web     WebConfig     `yaml:"web"`
	Logging LoggingConfig `yaml:"logging"`
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	TLS       MQTTTLSConfig       `yaml:"tls"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTLSConfig contains certificate paths. TLS is enabled by setting
// ca_cert; leaving it empty keeps the connection plaintext. Setting
// both cert and key additionally enables mutual TLS.
type MQTTTLSConfig struct {
	CACert string `yaml:"ca_cert"`
	Cert   string `yaml:"cert"`
	Key    string `yaml:"key"`
}

// MQTTReconnectConfig contains reconnection backoff settings, in
// seconds. MaxAttempts of zero means retry forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// GPIOConfig contains BCM pin assignments.
type GPIOConfig struct {
	LightPin  int `yaml:"light_pin"`
	SensorPin int `yaml:"sensor_pin"`
}

// BridgeConfig contains the synchronization engine settings.
type BridgeConfig struct {
	BaseTopic        string `yaml:"base_topic"`
	DefaultLevel     string `yaml:"default_level"`
	PollInterval     int    `yaml:"poll_interval"`
	RepublishReading bool   `yaml:"republish_reading"`
}

// WebConfig contains the status server settings.
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Fault describes a single rejected configuration field. Faults are
// fatal at startup; the bridge never starts on a bad config.
type Fault struct {
	Field  string
	Reason string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("config: %s %s", f.Field, f.Reason)
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. The broker client ID gets a random suffix so
// two bridges sharing a config file never collide on the broker.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.MQTT.Broker.ClientID = fmt.Sprintf("%s-%s",
		cfg.MQTT.Broker.ClientID, uuid.NewString()[:8])

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Port:     1883,
				ClientID: "home-bridge",
			},
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		GPIO: GPIOConfig{
			LightPin:  17,
			SensorPin: 4,
		},
		Bridge: BridgeConfig{
			BaseTopic:    "home",
			DefaultLevel: "OFF",
			PollInterval: 30,
		},
		Web: WebConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyEnvOverrides applies environment variable overrides. The names
// match the bridge's .env file conventions.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MQTT_IP"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = p
		}
	}
	if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("MQTT_TOPIC"); v != "" {
		cfg.Bridge.BaseTopic = v
	}
	if v := os.Getenv("MQTT_DELAY"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.PollInterval = d
		}
	}
	if v := os.Getenv("CERTIFICATE_AUTHORITY_PATH"); v != "" {
		cfg.MQTT.TLS.CACert = v
	}
	if v := os.Getenv("MTLS_CERT_PATH"); v != "" {
		cfg.MQTT.TLS.Cert = v
	}
	if v := os.Getenv("MTLS_PKEY_PATH"); v != "" {
		cfg.MQTT.TLS.Key = v
	}
	if v := os.Getenv("LIGHT_PIN"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.GPIO.LightPin = p
		}
	}
	if v := os.Getenv("SENSOR_PIN"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.GPIO.SensorPin = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks every field the bridge cannot run without. All
// faults are reported at once so a bad config can be fixed in one
// pass.
func (c *Config) Validate() error {
	var faults []error

	if c.MQTT.Broker.Host == "" {
		faults = append(faults, &Fault{"mqtt.broker.host", "is required"})
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		faults = append(faults, &Fault{"mqtt.broker.port", "must be between 1 and 65535"})
	}
	if c.MQTT.Broker.ClientID == "" {
		faults = append(faults, &Fault{"mqtt.broker.client_id", "is required"})
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		faults = append(faults, &Fault{"mqtt.reconnect.initial_delay", "must be at least 1 second"})
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		faults = append(faults, &Fault{"mqtt.reconnect.max_delay", "must be at least the initial delay"})
	}
	if c.MQTT.Reconnect.MaxAttempts < 0 {
		faults = append(faults, &Fault{"mqtt.reconnect.max_attempts", "must not be negative"})
	}
	if (c.MQTT.TLS.Cert == "") != (c.MQTT.TLS.Key == "") {
		faults = append(faults, &Fault{"mqtt.tls", "cert and key must be set together"})
	}
	if c.GPIO.LightPin < 0 {
		faults = append(faults, &Fault{"gpio.light_pin", "must not be negative"})
	}
	if c.GPIO.SensorPin < 0 {
		faults = append(faults, &Fault{"gpio.sensor_pin", "must not be negative"})
	}
	if c.GPIO.SensorPin == c.GPIO.LightPin {
		faults = append(faults, &Fault{"gpio.sensor_pin", "must differ from the light pin"})
	}
	if c.Bridge.BaseTopic == "" {
		faults = append(faults, &Fault{"bridge.base_topic", "is required"})
	}
	if c.Bridge.DefaultLevel != "ON" && c.Bridge.DefaultLevel != "OFF" {
		faults = append(faults, &Fault{"bridge.default_level", `must be "ON" or "OFF"`})
	}
	if c.Bridge.PollInterval < 1 {
		faults = append(faults, &Fault{"bridge.poll_interval", "must be at least 1 second"})
	}
	if c.Web.Addr == "" {
		faults = append(faults, &Fault{"web.addr", "is required"})
	}

	return errors.Join(faults...)
}

// BrokerURL returns the paho broker URL. Setting a CA certificate
// switches the scheme to ssl, matching the TLS semantics elsewhere.
func (c *Config) BrokerURL() string {
	scheme := "tcp"
	if c.MQTT.TLS.CACert != "" {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// PollInterval returns the sensor poll interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Bridge.PollInterval) * time.Second
}

// BackoffBase returns the initial reconnect delay as a Duration.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.MQTT.Reconnect.InitialDelay) * time.Second
}

// BackoffCap returns the maximum reconnect delay as a Duration.
func (c *Config) BackoffCap() time.Duration {
	return time.Duration(c.MQTT.Reconnect.MaxDelay) * time.Second
}
