// Package mqtt provides MQTT client connectivity for the EHEIM Digital bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge uses MQTT to expose aquarium devices to Home Assistant via
// MQTT discovery. The broker (typically Mosquitto) decouples the bridge
// from Home Assistant:
//
//	EHEIM Digital bridge ↔ MQTT Broker ↔ Home Assistant
//
// State, availability, and discovery messages are published retained so
// Home Assistant picks up the current picture after a restart. Command
// topics (ON/OFF from Home Assistant) are not retained.
//
// # Security Considerations
//
//   - TLS is recommended when the broker is not on the local segment
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all switch commands from Home Assistant
//	err = client.Subscribe(client.Topics().AllSwitchCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a switch state
//	topic := client.Topics().SwitchState("aa_bb_cc_dd_ee_ff", "filter_is_active")
//	client.Publish(topic, []byte(mqtt.PayloadOn), 1, true)
package mqtt
