package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PhucHuwu/iot-core/internal/infrastructure/config"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/logging"
	"github.com/PhucHuwu/iot-core/internal/worker"
)

// fakePublisher records published messages without a broker.
type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	failNext  bool
	published []string
}

func (f *fakePublisher) Publish(_ string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("mqtt: publish failed")
	}
	f.published = append(f.published, string(payload))
	return nil
}

func (f *fakePublisher) IsConnected() bool { return f.connected }

func (f *fakePublisher) payloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	copy(out, f.published)
	return out
}

// fakeHistory records created entries in memory.
type fakeHistory struct {
	mu      sync.Mutex
	entries []Entry
}

func (f *fakeHistory) Create(_ context.Context, e *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeHistory) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

func (f *fakeHistory) CountOn(context.Context, time.Time, time.Time) (map[string]int, error) {
	return map[string]int{}, nil
}

func (f *fakeHistory) stored() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

func testController(t *testing.T) (*Controller, *fakePublisher, *fakeHistory, *worker.Pool) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Control.Devices = []string{"LED1", "LED2", "LED3"}
	cfg.Control.CommandTimeout = 10
	cfg.MQTT.Topics.Control = "esp32/iot/control"
	cfg.MQTT.QoS = 1

	pub := &fakePublisher{connected: true}
	hist := &fakeHistory{}
	pool := worker.New(1, 16, logging.Default())

	return NewController(pub, hist, pool, cfg, logging.Default()), pub, hist, pool
}

func TestSendCommand(t *testing.T) {
	ctrl, pub, _, pool := testController(t)
	defer pool.Close()

	accepted, err := ctrl.SendCommand("LED1", "ON")
	if err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if !accepted {
		t.Fatal("SendCommand() accepted = false, want true")
	}

	payloads := pub.payloads()
	if len(payloads) != 1 || payloads[0] != "LED1_ON" {
		t.Errorf("published = %v, want [LED1_ON]", payloads)
	}
	if !ctrl.IsPending("LED1") {
		t.Error("IsPending(LED1) = false after accepted command")
	}
}

func TestSendCommand_Validation(t *testing.T) {
	ctrl, _, _, pool := testController(t)
	defer pool.Close()

	tests := []struct {
		name    string
		device  string
		action  string
		wantErr error
	}{
		{name: "unknown device", device: "LED9", action: "ON", wantErr: ErrUnknownDevice},
		{name: "invalid action", device: "LED1", action: "BLINK", wantErr: ErrInvalidAction},
		{name: "empty action", device: "LED1", action: "", wantErr: ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, err := ctrl.SendCommand(tt.device, tt.action)
			if accepted {
				t.Error("accepted = true, want false")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendCommand_Disconnected(t *testing.T) {
	ctrl, pub, _, pool := testController(t)
	defer pool.Close()
	pub.connected = false

	accepted, err := ctrl.SendCommand("LED1", "ON")
	if err != nil {
		t.Fatalf("SendCommand() error = %v, want nil when disconnected", err)
	}
	if accepted {
		t.Error("accepted = true while disconnected")
	}
	if ctrl.IsPending("LED1") {
		t.Error("IsPending(LED1) = true, nothing was sent")
	}
}

func TestSendCommand_PublishFailureClearsPending(t *testing.T) {
	ctrl, pub, _, pool := testController(t)
	defer pool.Close()
	pub.failNext = true

	accepted, err := ctrl.SendCommand("LED1", "ON")
	if err == nil {
		t.Fatal("SendCommand() error = nil, want transport error")
	}
	if accepted {
		t.Error("accepted = true after publish failure")
	}
	if ctrl.IsPending("LED1") {
		t.Error("IsPending(LED1) = true, pending must be cleared on publish failure")
	}
}

func TestSendCommand_ResendReplaces(t *testing.T) {
	ctrl, pub, _, pool := testController(t)
	defer pool.Close()

	if _, err := ctrl.SendCommand("LED1", "ON"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := ctrl.SendCommand("LED1", "off"); err != nil {
		t.Fatalf("second send: %v", err)
	}

	payloads := pub.payloads()
	if len(payloads) != 2 || payloads[1] != "LED1_OFF" {
		t.Errorf("published = %v, want second payload LED1_OFF", payloads)
	}
	if !ctrl.IsPending("LED1") {
		t.Error("IsPending(LED1) = false, latest command should be pending")
	}
}

func TestHandleConfirmation(t *testing.T) {
	ctrl, _, hist, pool := testController(t)

	if _, err := ctrl.SendCommand("LED1", "ON"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	payload := `{"type":"led_status","led":"LED1","state":"ON"}`
	if err := ctrl.HandleConfirmation("esp32/iot/action-history", []byte(payload)); err != nil {
		t.Fatalf("HandleConfirmation() error = %v", err)
	}
	pool.Close()

	if ctrl.IsPending("LED1") {
		t.Error("IsPending(LED1) = true after confirmation")
	}

	status, err := ctrl.Status("LED1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status["LED1"].State != StateOn {
		t.Errorf("State = %q, want ON", status["LED1"].State)
	}

	entries := hist.stored()
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	if entries[0].Type != RecordTypeLEDStatus || entries[0].Device != "LED1" || entries[0].State != StateOn {
		t.Errorf("history entry = %+v", entries[0])
	}
}

func TestHandleConfirmation_MissingFieldsDropped(t *testing.T) {
	ctrl, _, hist, pool := testController(t)

	payloads := []string{
		`{"type":"led_status","state":"ON"}`,
		`{"type":"led_status","led":"LED1"}`,
		`not json`,
	}
	for _, p := range payloads {
		if err := ctrl.HandleConfirmation("esp32/iot/action-history", []byte(p)); err != nil {
			t.Errorf("HandleConfirmation(%q) error = %v, want nil (log and drop)", p, err)
		}
	}
	pool.Close()

	if got := len(hist.stored()); got != 0 {
		t.Errorf("history entries = %d, want 0", got)
	}
}

func TestHandleConfirmation_UnknownTypeStoredNotCorrelated(t *testing.T) {
	ctrl, _, hist, pool := testController(t)

	if _, err := ctrl.SendCommand("LED1", "ON"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	payload := `{"type":"button_press","led":"LED1","state":"ON"}`
	if err := ctrl.HandleConfirmation("esp32/iot/action-history", []byte(payload)); err != nil {
		t.Fatalf("HandleConfirmation() error = %v", err)
	}
	pool.Close()

	if !ctrl.IsPending("LED1") {
		t.Error("IsPending(LED1) = false, unknown types must not clear pending")
	}

	status, _ := ctrl.Status("LED1")
	if status["LED1"].State != StateOff {
		t.Errorf("State = %q, want OFF (cache untouched)", status["LED1"].State)
	}

	entries := hist.stored()
	if len(entries) != 1 || entries[0].Type != "button_press" {
		t.Errorf("history entries = %+v, want the button_press record stored", entries)
	}
}

func TestHandleConfirmation_MonotonicCache(t *testing.T) {
	ctrl, _, _, pool := testController(t)
	defer pool.Close()

	newer := `{"type":"led_status","led":"LED1","state":"ON","timestamp":"2026-03-10T10:00:00Z"}`
	older := `{"type":"led_status","led":"LED1","state":"OFF","timestamp":"2026-03-10T09:00:00Z"}`

	if err := ctrl.HandleConfirmation("t", []byte(newer)); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.HandleConfirmation("t", []byte(older)); err != nil {
		t.Fatal(err)
	}

	status, _ := ctrl.Status("LED1")
	if status["LED1"].State != StateOn {
		t.Errorf("State = %q, want ON (older confirmation must not roll back)", status["LED1"].State)
	}
}

func TestIsPending_LazyExpiry(t *testing.T) {
	ctrl, _, _, pool := testController(t)
	defer pool.Close()

	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	current := base
	ctrl.SetClock(func() time.Time { return current })

	if _, err := ctrl.SendCommand("LED1", "ON"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if !ctrl.IsPending("LED1") {
		t.Fatal("IsPending(LED1) = false right after send")
	}

	current = base.Add(11 * time.Second) // past the 10s timeout
	if ctrl.IsPending("LED1") {
		t.Error("IsPending(LED1) = true after timeout")
	}
}

func TestStatus_DefaultsOff(t *testing.T) {
	ctrl, _, _, pool := testController(t)
	defer pool.Close()

	status, err := ctrl.Status("")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(status) != 3 {
		t.Fatalf("status devices = %d, want 3", len(status))
	}
	for device, s := range status {
		if s.State != StateOff {
			t.Errorf("%s state = %q, want OFF", device, s.State)
		}
		if s.Pending {
			t.Errorf("%s pending = true, want false", device)
		}
		if s.UpdatedAt != nil {
			t.Errorf("%s UpdatedAt = %v, want nil before first confirmation", device, s.UpdatedAt)
		}
	}

	if _, err := ctrl.Status("LED9"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Status(LED9) error = %v, want ErrUnknownDevice", err)
	}
}
