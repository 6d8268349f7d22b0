// EHEIM Digital Bridge
//
// This is the main entry point for the EHEIM Digital bridge daemon. The
// bridge connects EHEIM Digital aquarium equipment (filters, heaters, pH
// controllers) to Home Assistant:
//   - Polls the EHEIM hub over its local HTTP API
//   - Publishes devices via MQTT discovery so entities appear automatically
//   - Serves a local REST/WebSocket API for dashboards and scripting
//   - Optionally records device status history to InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/madxdev/home-assistant-eheim-digital/internal/api"
	"github.com/madxdev/home-assistant-eheim-digital/internal/bridges/hass"
	"github.com/madxdev/home-assistant-eheim-digital/internal/coordinator"
	"github.com/madxdev/home-assistant-eheim-digital/internal/eheim"
	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/config"
	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/influxdb"
	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/logging"
	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting EHEIM Digital bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Create the hub client and make sure the hub is actually there before
	// bringing up everything else.
	hub := eheim.New(eheim.Config{
		Host:     cfg.Hub.Host,
		Username: cfg.Hub.Username,
		Password: cfg.Hub.Password,
		Timeout:  cfg.GetHubTimeout(),
	}, log)
	defer hub.Close()

	devices, err := hub.ValidateConnection(ctx)
	if err != nil {
		return fmt.Errorf("validating hub connection: %w", err)
	}
	log.Info("hub reachable",
		"host", cfg.Hub.Host,
		"devices", len(devices),
	)

	// Start the poll loop
	coord, err := coordinator.New(hub, log, coordinator.Options{
		Interval: cfg.GetPollInterval(),
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}
	coord.SetDevices(devices)
	coord.Start(ctx)
	defer func() {
		log.Info("stopping coordinator")
		coord.Stop()
	}()
	log.Info("coordinator started", "interval", cfg.GetPollInterval())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		// Record every device's status document after each successful
		// poll cycle. Writes are batched by the client.
		recorder := influxClient
		coord.Subscribe(func(event coordinator.Event) {
			if event.Type != coordinator.EventUpdated {
				return
			}
			for _, dev := range coord.Devices() {
				if doc, ok := coord.DeviceData(dev.MAC); ok {
					recorder.WriteDeviceStatus(dev.MAC, dev.Model, dev.Group, doc)
				}
			}
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the Home Assistant bridge
	bridge, err := startBridge(ctx, cfg, coord, hub, mqttClient, log)
	if err != nil {
		return fmt.Errorf("starting Home Assistant bridge: %w", err)
	}
	defer func() {
		log.Info("stopping Home Assistant bridge")
		bridge.Stop()
	}()

	// Start the local API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Coordinator: coord,
		Hub:         hub,
		MQTT:        mqttClient,
		Bridge:      bridge,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server listening",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Home Assistant bridge (marks entities offline)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Coordinator
	// 6. Hub client

	log.Info("EHEIM Digital bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses EHEIM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("EHEIM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The hub itself was already validated before startup; its ongoing health
// is tracked by the coordinator and reported via the API.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// InfluxDB is optional
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}

// startBridge initialises and starts the Home Assistant MQTT bridge.
func startBridge(ctx context.Context, cfg *config.Config, coord *coordinator.Coordinator, hub *eheim.Client, mqttClient *mqtt.Client, log *logging.Logger) (*hass.Bridge, error) {
	// Adapt the infrastructure MQTT client to the bridge's interface
	adapter := &mqttBridgeAdapter{client: mqttClient}

	bridge, err := hass.NewBridge(hass.Options{
		Coordinator: coord,
		Hub:         hub,
		MQTT:        adapter,
		Topics:      mqttClient.Topics(),
		QoS:         byte(cfg.MQTT.QoS),
		Version:     version,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("Home Assistant bridge started",
		"base_topic", cfg.MQTT.BaseTopic,
		"discovery_prefix", cfg.MQTT.DiscoveryPrefix,
	)

	return bridge, nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic string, payload []byte) error
// - Bridge expects: func(topic string, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements hass.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements hass.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements hass.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
