package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
hub:
  host: "192.168.1.50"
  timeout: 2
  poll_interval: 30
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
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

	if cfg.Hub.Host != "192.168.1.50" {
		t.Errorf("Hub.Host = %q, want %q", cfg.Hub.Host, "192.168.1.50")
	}

	if cfg.Hub.Username != "api" {
		t.Errorf("Hub.Username = %q, want default %q", cfg.Hub.Username, "api")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if cfg.MQTT.BaseTopic != "eheim_digital" {
		t.Errorf("MQTT.BaseTopic = %q, want default %q", cfg.MQTT.BaseTopic, "eheim_digital")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
hub:
  host: ""
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty hub.host, got nil")
	}
}

// validTestConfig returns a config that passes Validate; individual tests
// mutate single fields to probe each rule.
func validTestConfig() *Config {
	return &Config{
		Hub: HubConfig{
			Host:         "192.168.1.50",
			Username:     "api",
			Password:     "admin",
			Timeout:      2,
			PollInterval: 30,
		},
		MQTT: MQTTConfig{
			QoS:             1,
			DiscoveryPrefix: "homeassistant",
			BaseTopic:       "eheim_digital",
		},
		API: APIConfig{
			Port: 8080,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "missing hub host",
			mutate:  func(c *Config) { c.Hub.Host = "" },
			wantErr: true,
		},
		{
			name:    "zero hub timeout",
			mutate:  func(c *Config) { c.Hub.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Hub.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "empty base topic",
			mutate:  func(c *Config) { c.MQTT.BaseTopic = "" },
			wantErr: true,
		},
		{
			name:    "wildcard in base topic",
			mutate:  func(c *Config) { c.MQTT.BaseTopic = "eheim/#" },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "auth enabled without JWT secret",
			mutate: func(c *Config) {
				c.Security.Auth.Enabled = true
				c.Security.Auth.Password = "hunter2hunter2"
			},
			wantErr: true,
		},
		{
			name: "auth enabled with short JWT secret",
			mutate: func(c *Config) {
				c.Security.Auth.Enabled = true
				c.Security.Auth.Password = "hunter2hunter2"
				c.Security.JWT.Secret = "short"
			},
			wantErr: true,
		},
		{
			name: "auth enabled with valid secret",
			mutate: func(c *Config) {
				c.Security.Auth.Enabled = true
				c.Security.Auth.Password = "hunter2hunter2"
				c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!"
			},
			wantErr: false,
		},
		{
			name:    "auth disabled needs no secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Hub: HubConfig{
			Timeout:      2,
			PollInterval: 30,
		},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetHubTimeout().Seconds(); got != 2 {
		t.Errorf("GetHubTimeout() = %v, want 2", got)
	}

	if got := cfg.GetPollInterval().Seconds(); got != 30 {
		t.Errorf("GetPollInterval() = %v, want 30", got)
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("EHEIM_HUB_HOST", "192.168.1.99")
	t.Setenv("EHEIM_HUB_USERNAME", "hubuser")
	t.Setenv("EHEIM_HUB_PASSWORD", "hubpass")
	t.Setenv("EHEIM_MQTT_HOST", "mqtt.example.com")
	t.Setenv("EHEIM_MQTT_USERNAME", "testuser")
	t.Setenv("EHEIM_MQTT_PASSWORD", "testpass")
	t.Setenv("EHEIM_API_HOST", "192.168.1.1")
	t.Setenv("EHEIM_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("EHEIM_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Hub.Host != "192.168.1.99" {
		t.Errorf("Hub.Host = %q, want %q", cfg.Hub.Host, "192.168.1.99")
	}

	if cfg.Hub.Username != "hubuser" {
		t.Errorf("Hub.Username = %q, want %q", cfg.Hub.Username, "hubuser")
	}

	if cfg.Hub.Password != "hubpass" {
		t.Errorf("Hub.Password = %q, want %q", cfg.Hub.Password, "hubpass")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Hub.Username != "api" || cfg.Hub.Password != "admin" {
		t.Errorf("defaultConfig hub credentials = %q/%q, want api/admin",
			cfg.Hub.Username, cfg.Hub.Password)
	}

	if cfg.Hub.Timeout != 2 {
		t.Errorf("defaultConfig Hub.Timeout = %d, want 2", cfg.Hub.Timeout)
	}

	if cfg.Hub.PollInterval != 30 {
		t.Errorf("defaultConfig Hub.PollInterval = %d, want 30", cfg.Hub.PollInterval)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.MQTT.DiscoveryPrefix != "homeassistant" {
		t.Errorf("defaultConfig MQTT.DiscoveryPrefix = %q, want %q",
			cfg.MQTT.DiscoveryPrefix, "homeassistant")
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
