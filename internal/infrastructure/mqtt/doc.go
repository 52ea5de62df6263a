// Package mqtt provides MQTT client connectivity for IoT Core.
//
// This package manages:
//   - Connection to the cloud broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions restored across reconnects
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The ESP32 fleet publishes telemetry and command confirmations to a
// shared broker; IoT Core subscribes to those topics and publishes LED
// commands back. The broker decouples the backend from the device fleet:
//
//	ESP32 fleet ↔ MQTT Broker ↔ IoT Core
//
// # Reconnection
//
// The session retries forever with capped exponential backoff
// (configurable, default 1s initial, 120s cap). Subscriptions are
// tracked and restored on every reconnect, so a broker restart needs
// no operator action. TLS handshake and auth failures retry on the
// same schedule as network failures; they are not detected as fatal.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(cfg.MQTT.Topics.Data, 1,
//	    func(topic string, payload []byte) error {
//	        return ingestor.HandleMessage(topic, payload)
//	    })
//
//	client.Publish(cfg.MQTT.Topics.Control, []byte("LED1_ON"), 1, false)
package mqtt
