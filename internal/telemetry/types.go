// Package telemetry handles sensor readings: wire decoding, validation,
// persistence, and the MQTT ingestion path.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultDeviceID is assumed when a telemetry payload omits device_id.
// The firmware fleet predates the field, so most payloads arrive bare.
const DefaultDeviceID = "esp32_001"

// Reading is one validated sensor sample.
// Readings are immutable once stored; there is no update path.
type Reading struct {
	ID          string    `json:"id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Light       float64   `json:"light"`
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// wireReading is the MQTT payload shape. Pointer fields distinguish a
// missing key from a zero value, which validation must treat differently.
type wireReading struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Light       *float64 `json:"light"`
	DeviceID    string   `json:"device_id"`
	Timestamp   *string  `json:"timestamp"`
}

// Decode parses a telemetry payload without validating ranges.
//
// The returned Reading has no ID; the ingestion path assigns it. A
// device-supplied timestamp (RFC3339) is preserved; when absent or
// unparseable the Timestamp is left zero and the ingestion path stamps
// receipt time. Missing sensor fields are an error here since the
// validator cannot distinguish "absent" from 0 after decoding.
func Decode(payload []byte) (*Reading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %w", ErrInvalidReading, err)
	}

	if w.Temperature == nil {
		return nil, fmt.Errorf("%w: missing temperature", ErrInvalidReading)
	}
	if w.Humidity == nil {
		return nil, fmt.Errorf("%w: missing humidity", ErrInvalidReading)
	}
	if w.Light == nil {
		return nil, fmt.Errorf("%w: missing light", ErrInvalidReading)
	}

	deviceID := w.DeviceID
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}

	var ts time.Time
	if w.Timestamp != nil {
		if parsed, err := time.Parse(time.RFC3339, *w.Timestamp); err == nil {
			ts = parsed.UTC()
		}
	}

	return &Reading{
		Temperature: *w.Temperature,
		Humidity:    *w.Humidity,
		Light:       *w.Light,
		DeviceID:    deviceID,
		Timestamp:   ts,
	}, nil
}
