// Package influxdb provides an optional time-series mirror for telemetry.
//
// When enabled in config, every stored sensor reading is also written to
// InfluxDB as a point in the sensor_reading measurement, tagged by device.
// Writes are batched and non-blocking; async failures surface through an
// error callback. SQLite remains the system of record, so a dead InfluxDB
// never blocks ingestion.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // influxdb.ErrDisabled when not configured
//	}
//	client.SetOnError(func(err error) { log.Error("influx write", "error", err) })
//	client.WriteReading("esp32_001", 28.5, 55, 42, time.Now())
package influxdb
