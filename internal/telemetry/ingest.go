package telemetry

import (
	"context"
	"time"

	"github.com/PhucHuwu/iot-core/internal/infrastructure/influxdb"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/logging"
	"github.com/PhucHuwu/iot-core/internal/metrics"
	"github.com/PhucHuwu/iot-core/internal/worker"
)

// Clock abstracts time.Now for tests.
type Clock func() time.Time

// Ingestor is the MQTT handler for the telemetry data topic.
//
// The pipeline is decode -> validate -> stamp -> persist. Decoding and
// validation run inline on the MQTT router goroutine; the SQLite insert
// and the optional InfluxDB mirror run on the worker pool so a slow disk
// never stalls message delivery. Invalid payloads are logged and dropped,
// never stored.
type Ingestor struct {
	repo   Repository
	pool   *worker.Pool
	influx *influxdb.Client // optional, nil when disabled
	logger *logging.Logger
	now    Clock
}

// NewIngestor creates an ingestor. influx may be nil.
func NewIngestor(repo Repository, pool *worker.Pool, influx *influxdb.Client, logger *logging.Logger) *Ingestor {
	return &Ingestor{
		repo:   repo,
		pool:   pool,
		influx: influx,
		logger: logger.With("component", "telemetry"),
		now:    time.Now,
	}
}

// SetClock overrides the timestamp source. Tests only.
func (i *Ingestor) SetClock(clock Clock) {
	i.now = clock
}

// HandleMessage processes one telemetry payload from the data topic.
// It satisfies mqtt.MessageHandler.
//
// Returns:
//   - error: nil always; rejects are logged and counted, not propagated,
//     since an error would only be logged again by the session wrapper
func (i *Ingestor) HandleMessage(topic string, payload []byte) error {
	reading, err := Decode(payload)
	if err != nil {
		metrics.IncReadingRejected("decode")
		i.logger.Warn("dropping malformed telemetry",
			"topic", topic,
			"error", err,
		)
		return nil
	}

	if err := Validate(reading); err != nil {
		metrics.IncReadingRejected("range")
		i.logger.Warn("dropping out-of-range telemetry",
			"topic", topic,
			"device_id", reading.DeviceID,
			"error", err,
		)
		return nil
	}

	// A device-supplied timestamp is preserved; stamp at receipt
	// only when the payload carried none.
	if reading.Timestamp.IsZero() {
		reading.Timestamp = i.now().UTC()
	}

	submitted := i.pool.Submit(func(ctx context.Context) {
		if err := i.repo.Create(ctx, reading); err != nil {
			i.logger.Error("storing reading failed",
				"device_id", reading.DeviceID,
				"error", err,
			)
			return
		}

		if i.influx != nil {
			i.influx.WriteReading(reading.DeviceID, reading.Temperature,
				reading.Humidity, reading.Light, reading.Timestamp)
		}
	})
	if !submitted {
		metrics.IncReadingRejected("queue_full")
		return nil
	}

	metrics.IncReadingIngested(reading.DeviceID)
	return nil
}
