package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/madxdev/home-assistant-eheim-digital/internal/coordinator"
	"github.com/madxdev/home-assistant-eheim-digital/internal/eheim"
	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/mqtt"
)

// commandTimeout bounds one hub command triggered from an MQTT message.
const commandTimeout = 5 * time.Second

// Bridge exposes coordinator-tracked devices to Home Assistant over MQTT
// discovery. It handles:
//   - Publishing retained discovery configs for every switch entity
//   - Publishing device documents, switch states, and availability on
//     every coordinator event
//   - Receiving ON/OFF commands from Home Assistant and pushing them to
//     the hub, with optimistic state patching
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	coord   *coordinator.Coordinator
	hub     HubClient
	mqtt    MQTTClient
	topics  mqtt.Topics
	qos     byte
	version string

	// Command counters for the metrics endpoint.
	commandsRx     atomic.Uint64
	commandsFailed atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// HubClient is the interface for pushing switch commands to the hub.
// Satisfied by *eheim.Client.
type HubClient interface {
	// SetFilterState starts or stops a filter's pump.
	SetFilterState(ctx context.Context, device eheim.Device, active bool) error

	// SetPHControlState enables or disables pH control.
	SetPHControlState(ctx context.Context, device eheim.Device, active bool) error
}

// Logger is the interface for optional structured logging.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Coordinator supplies devices, status snapshots, and change events.
	Coordinator *coordinator.Coordinator

	// Hub executes switch commands against the EHEIM hub.
	Hub HubClient

	// MQTT is the MQTT client implementation.
	MQTT MQTTClient

	// Topics is the topic builder (base topic + discovery prefix).
	// The zero value uses the default scheme.
	Topics mqtt.Topics

	// QoS is the quality-of-service level for all bridge traffic.
	QoS byte

	// Version is the bridge version advertised in discovery payloads.
	Version string

	// Logger is optional structured logging.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("hub client is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	// Bridge-level context so in-flight hub commands abort on Stop().
	ctx, ctxCancel := context.WithCancel(context.Background())

	return &Bridge{
		coord:     opts.Coordinator,
		hub:       opts.Hub,
		mqtt:      opts.MQTT,
		topics:    opts.Topics,
		qos:       opts.QoS,
		version:   opts.Version,
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}, nil
}

// Start begins bridge operation.
// This subscribes to command topics, publishes discovery configs for every
// switch entity, registers for coordinator events, and publishes the
// current snapshot so Home Assistant has state immediately.
func (b *Bridge) Start(ctx context.Context) error {
	commandTopic := b.topics.AllSwitchCommands()
	if err := b.mqtt.Subscribe(commandTopic, b.qos, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	entities := b.publishDiscovery()

	// Events from here on drive all state publishing.
	b.coord.Subscribe(b.handleEvent)

	// Seed Home Assistant with whatever the coordinator has right now.
	if b.coord.LastUpdateSuccess() {
		b.publishAll()
	} else {
		b.publishAllAvailability(mqtt.PayloadOffline)
	}

	b.logInfo("bridge started",
		"devices", len(b.coord.Devices()),
		"switches", entities)

	return nil
}

// Stop gracefully shuts down the bridge.
// Publishing stops, in-flight hub commands are cancelled, and every
// exposed entity is marked offline so Home Assistant does not show stale
// state as live.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Abort in-flight hub commands
		b.ctxCancel()

		// Wait for pending handlers
		b.wg.Wait()

		b.publishAllAvailability(mqtt.PayloadOffline)

		b.logInfo("bridge stopped")
	})
}

// handleEvent reacts to coordinator snapshot changes. Runs synchronously on
// the coordinator's poll goroutine (or a command handler for patches), so
// it only publishes and never blocks on the hub.
func (b *Bridge) handleEvent(event coordinator.Event) {
	select {
	case <-b.done:
		return
	default:
	}

	switch event.Type {
	case coordinator.EventUpdated:
		b.publishAll()
	case coordinator.EventFailed:
		// Last known good data stays in the snapshot but is no longer
		// advertised as fresh: every entity goes unavailable until the
		// next successful cycle.
		b.publishAllAvailability(mqtt.PayloadOffline)
	case coordinator.EventPatched:
		if device, ok := b.coord.DeviceByMAC(event.MAC); ok {
			b.publishDeviceStates(device)
		}
	}
}

// publishAll publishes every device's document, switch states, and
// availability from the current snapshot.
func (b *Bridge) publishAll() {
	for _, device := range b.coord.Devices() {
		b.publishDeviceStates(device)
	}
}

// publishDeviceStates publishes one device's full document plus ON/OFF and
// "online" availability for each of its switches. Devices not yet polled
// are skipped — there is no state to advertise.
func (b *Bridge) publishDeviceStates(device eheim.Device) {
	doc, ok := b.coord.DeviceData(device.MAC)
	if !ok {
		return
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		b.logError("marshalling device document", err)
		return
	}
	b.publish(b.topics.DeviceState(device.MACSlug()), payload)

	for _, desc := range SwitchesFor(device.Group) {
		b.publishSwitchState(device, desc, doc)
		b.publishSwitchAvailability(device, desc, mqtt.PayloadOnline)
	}
}

// publishSwitchState publishes ON or OFF for one switch from a status
// document, using the truthiness of the descriptor's state key.
func (b *Bridge) publishSwitchState(device eheim.Device, desc SwitchDescription, doc eheim.Document) {
	state := mqtt.PayloadOff
	if Truthy(doc[desc.StateKey]) {
		state = mqtt.PayloadOn
	}
	b.publish(b.topics.SwitchState(device.MACSlug(), desc.Key), []byte(state))
}

// publishSwitchAvailability publishes online/offline for one switch entity.
func (b *Bridge) publishSwitchAvailability(device eheim.Device, desc SwitchDescription, payload string) {
	b.publish(b.topics.SwitchAvailability(device.MACSlug(), desc.Key), []byte(payload))
}

// publishAllAvailability publishes the given availability payload for every
// switch entity of every device.
func (b *Bridge) publishAllAvailability(payload string) {
	for _, device := range b.coord.Devices() {
		for _, desc := range SwitchesFor(device.Group) {
			b.publishSwitchAvailability(device, desc, payload)
		}
	}
}

// publishDiscovery publishes a retained discovery config for every
// device×switch pair and returns the number of entities announced.
func (b *Bridge) publishDiscovery() int {
	entities := 0
	for _, device := range b.coord.Devices() {
		for _, desc := range SwitchesFor(device.Group) {
			cfg := buildSwitchConfig(b.topics, device, desc, int(b.qos), b.version)
			payload, err := json.Marshal(cfg)
			if err != nil {
				b.logError("marshalling discovery config", err)
				continue
			}
			b.publish(b.topics.SwitchConfig(cfg.UniqueID), payload)
			entities++

			b.logDebug("announced switch",
				"unique_id", cfg.UniqueID,
				"mac", device.MAC)
		}
	}
	return entities
}

// publish sends a retained message at the bridge QoS, logging failures.
// All bridge topics are retained: state, availability, and discovery all
// describe current facts a late subscriber needs.
func (b *Bridge) publish(topic string, payload []byte) {
	if err := b.mqtt.Publish(topic, payload, b.qos, true); err != nil {
		b.logError("publish failed", fmt.Errorf("topic %s: %w", topic, err))
	}
}

// handleCommandMessage processes one incoming command topic message.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) {
	select {
	case <-b.done:
		return
	default:
	}
	b.wg.Add(1)
	defer b.wg.Done()

	b.commandsRx.Add(1)

	if err := b.executeCommand(topic, payload); err != nil {
		b.commandsFailed.Add(1)
		b.logError("command failed", err)
	}
}

// executeCommand parses a command topic and payload, optimistically patches
// the snapshot, and pushes the new state to the hub.
//
// Turn-on and turn-off are handled identically: a hub failure in either
// direction marks the entity unavailable until the next successful poll,
// and a success marks it available again.
func (b *Bridge) executeCommand(topic string, payload []byte) error {
	macSlug, key, ok := b.topics.ParseSwitchCommand(topic)
	if !ok {
		return fmt.Errorf("unroutable command topic %q", topic)
	}

	active, err := parseOnOff(payload)
	if err != nil {
		return fmt.Errorf("topic %s: %w", topic, err)
	}

	device, ok := b.coord.DeviceByMAC(macSlug)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, macSlug)
	}

	desc, ok := DescriptionFor(device.Group, key)
	if !ok {
		return fmt.Errorf("%w: %q for %s device %s", ErrUnknownSwitch, key, device.Group, device.MAC)
	}

	b.logInfo("received command",
		"mac", device.MAC,
		"switch", desc.Key,
		"active", active)

	// Optimistic patch: the coordinator fires a patched event, which
	// publishes the new ON/OFF before the hub round trip completes. The
	// next poll cycle replaces it with device truth either way.
	value := float64(0)
	if active {
		value = 1
	}
	b.coord.SetStateKey(device.MAC, desc.StateKey, value)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := desc.SetState(ctx, b.hub, device, active); err != nil {
		b.publishSwitchAvailability(device, desc, mqtt.PayloadOffline)
		return fmt.Errorf("setting %s on %s: %w", desc.Key, device.MAC, err)
	}

	b.publishSwitchAvailability(device, desc, mqtt.PayloadOnline)
	return nil
}

// parseOnOff maps a command payload to the desired switch state.
func parseOnOff(payload []byte) (bool, error) {
	switch string(bytes.TrimSpace(payload)) {
	case mqtt.PayloadOn:
		return true, nil
	case mqtt.PayloadOff:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	Connected        bool
	Devices          int
	Switches         int
	CommandsReceived uint64
	CommandsFailed   uint64
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() BridgeMetrics {
	devices := b.coord.Devices()

	switches := 0
	for _, device := range devices {
		switches += len(SwitchesFor(device.Group))
	}

	return BridgeMetrics{
		Connected:        b.mqtt.IsConnected(),
		Devices:          len(devices),
		Switches:         switches,
		CommandsReceived: b.commandsRx.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
	}
}
