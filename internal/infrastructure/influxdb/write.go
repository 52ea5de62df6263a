package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// sensorMeasurement is the measurement name for mirrored telemetry.
const sensorMeasurement = "sensor_reading"

// WriteReading mirrors a stored sensor reading into InfluxDB.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Write failures surface through the SetOnError callback, never to the
// ingestion path. SQLite remains the system of record either way.
//
// Parameters:
//   - deviceID: Reporting device (tag, low cardinality)
//   - temperature, humidity, light: Sensor values
//   - timestamp: When the reading was taken
func (c *Client) WriteReading(deviceID string, temperature, humidity, light float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		sensorMeasurement,
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"temperature": temperature,
			"humidity":    humidity,
			"light":       light,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit WriteReading, such as
// per-device command counters.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
