package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PhucHuwu/iot-core/internal/infrastructure/config"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/logging"
	"github.com/PhucHuwu/iot-core/internal/metrics"
	"github.com/PhucHuwu/iot-core/internal/worker"
)

// Publisher is the transport surface the controller needs. Satisfied
// by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Clock abstracts time.Now for tests.
type Clock func() time.Time

// pendingCommand tracks a sent command awaiting confirmation.
type pendingCommand struct {
	action string
	sentAt time.Time
}

// deviceState is the last confirmed state of one device.
type deviceState struct {
	state     string
	updatedAt time.Time
}

// DeviceStatus is the externally visible view of one device.
type DeviceStatus struct {
	Device    string     `json:"device"`
	State     string     `json:"state"`
	Pending   bool       `json:"pending"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Controller sends actuator commands and correlates the confirmations
// the fleet publishes on the status topic.
//
// Command flow: an HTTP request becomes a "<DEVICE>_<ACTION>" payload
// on the control topic; the firmware applies it and publishes a JSON
// confirmation on the status topic, which clears the pending entry and
// updates the state cache. Acceptance of a command never implies the
// device acted on it.
type Controller struct {
	publisher Publisher
	history   HistoryRepository
	pool      *worker.Pool
	logger    *logging.Logger

	topic   string
	qos     byte
	devices map[string]struct{}
	ordered []string
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]pendingCommand
	states  map[string]deviceState

	now Clock
}

// NewController creates a controller for the configured device set.
func NewController(pub Publisher, history HistoryRepository, pool *worker.Pool, cfg *config.Config, logger *logging.Logger) *Controller {
	devices := make(map[string]struct{}, len(cfg.Control.Devices))
	ordered := make([]string, 0, len(cfg.Control.Devices))
	for _, d := range cfg.Control.Devices {
		devices[d] = struct{}{}
		ordered = append(ordered, d)
	}

	return &Controller{
		publisher: pub,
		history:   history,
		pool:      pool,
		logger:    logger.With("component", "control"),
		topic:     cfg.MQTT.Topics.Control,
		qos:       byte(cfg.MQTT.QoS),
		devices:   devices,
		ordered:   ordered,
		timeout:   cfg.GetCommandTimeout(),
		pending:   make(map[string]pendingCommand),
		states:    make(map[string]deviceState),
		now:       time.Now,
	}
}

// SetClock overrides the timestamp source. Tests only.
func (c *Controller) SetClock(clock Clock) {
	c.now = clock
}

// SendCommand publishes an ON/OFF command for a device. It returns
// accepted=true when the broker took the message; confirmation arrives
// asynchronously via HandleConfirmation.
//
// Resending while a command is pending replaces the pending entry:
// the last command wins. A transport failure clears the entry so the
// device never appears pending for a command that was never sent.
func (c *Controller) SendCommand(device, action string) (bool, error) {
	if _, ok := c.devices[device]; !ok {
		metrics.IncCommandRejected("unknown_device")
		return false, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}

	action = strings.ToUpper(strings.TrimSpace(action))
	if action != StateOn && action != StateOff {
		metrics.IncCommandRejected("invalid_action")
		return false, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	if !c.publisher.IsConnected() {
		metrics.IncCommandRejected("disconnected")
		return false, nil
	}

	payload := []byte(device + "_" + action)

	// Register before publishing so a fast confirmation cannot race
	// past the pending entry.
	sentAt := c.now()
	c.mu.Lock()
	c.pending[device] = pendingCommand{action: action, sentAt: sentAt}
	c.mu.Unlock()

	if err := c.publisher.Publish(c.topic, payload, c.qos, false); err != nil {
		c.mu.Lock()
		if p, ok := c.pending[device]; ok && p.sentAt.Equal(sentAt) {
			delete(c.pending, device)
		}
		c.mu.Unlock()

		metrics.IncCommandRejected("publish_failed")
		c.logger.Error("command publish failed",
			"device", device,
			"action", action,
			"error", err,
		)
		return false, err
	}

	metrics.IncCommandSent()
	c.logger.Info("command sent",
		"device", device,
		"action", action,
	)
	return true, nil
}

// wireConfirmation is the status-topic payload. Pointer fields
// distinguish absent from empty.
type wireConfirmation struct {
	Type      *string `json:"type"`
	Led       *string `json:"led"`
	State     *string `json:"state"`
	Timestamp *string `json:"timestamp"`
}

// HandleConfirmation processes one confirmation from the status topic.
// It satisfies mqtt.MessageHandler.
//
// Every well-formed record is stored in the action history, whatever
// its type. Only led_status records touch the state cache and pending
// map; the cache is monotonic by timestamp, so a late-arriving older
// confirmation never rolls a newer state back.
func (c *Controller) HandleConfirmation(topic string, payload []byte) error {
	var wire wireConfirmation
	if err := json.Unmarshal(payload, &wire); err != nil {
		c.logger.Warn("dropping malformed confirmation",
			"topic", topic,
			"error", err,
		)
		return nil
	}
	if wire.Led == nil || wire.State == nil {
		c.logger.Warn("dropping confirmation with missing fields",
			"topic", topic,
		)
		return nil
	}

	recordType := RecordTypeLEDStatus
	if wire.Type != nil {
		recordType = *wire.Type
	}
	device := *wire.Led
	state := strings.ToUpper(strings.TrimSpace(*wire.State))

	ts := c.now().UTC()
	if wire.Timestamp != nil {
		if parsed, err := time.Parse(time.RFC3339, *wire.Timestamp); err == nil {
			ts = parsed.UTC()
		}
	}

	metrics.IncConfirmation(recordType)

	entry := &Entry{
		Type:      recordType,
		Device:    device,
		State:     state,
		Timestamp: ts,
	}
	if !c.pool.Submit(func(ctx context.Context) {
		if err := c.history.Create(ctx, entry); err != nil {
			c.logger.Error("storing history entry failed",
				"device", device,
				"error", err,
			)
		}
	}) {
		c.logger.Warn("history write dropped, queue full",
			"device", device,
		)
	}

	if recordType != RecordTypeLEDStatus {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.states[device]; !ok || !ts.Before(existing.updatedAt) {
		c.states[device] = deviceState{state: state, updatedAt: ts}
	}
	delete(c.pending, device)

	return nil
}

// Status returns the view of one device, or of every configured device
// when device is empty. Devices that have never confirmed report OFF.
func (c *Controller) Status(device string) (map[string]DeviceStatus, error) {
	if device != "" {
		if _, ok := c.devices[device]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
		}
		return map[string]DeviceStatus{device: c.statusOf(device)}, nil
	}

	out := make(map[string]DeviceStatus, len(c.ordered))
	for _, d := range c.ordered {
		out[d] = c.statusOf(d)
	}
	return out, nil
}

func (c *Controller) statusOf(device string) DeviceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := DeviceStatus{
		Device:  device,
		State:   StateOff,
		Pending: c.pendingLocked(device),
	}
	if s, ok := c.states[device]; ok {
		status.State = s.state
		t := s.updatedAt
		status.UpdatedAt = &t
	}
	return status
}

// IsPending reports whether a command for the device is awaiting
// confirmation. Entries older than the command timeout are pruned
// here rather than by a background timer.
func (c *Controller) IsPending(device string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked(device)
}

func (c *Controller) pendingLocked(device string) bool {
	p, ok := c.pending[device]
	if !ok {
		return false
	}
	if c.now().Sub(p.sentAt) > c.timeout {
		delete(c.pending, device)
		return false
	}
	return true
}

// Devices returns the configured device identifiers in config order.
func (c *Controller) Devices() []string {
	out := make([]string, len(c.ordered))
	copy(out, c.ordered)
	return out
}
