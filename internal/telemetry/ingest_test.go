package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/PhucHuwu/iot-core/internal/infrastructure/logging"
	"github.com/PhucHuwu/iot-core/internal/worker"
)

// fakeRepo records created readings in memory.
type fakeRepo struct {
	mu       sync.Mutex
	readings []Reading
	failNext bool
}

func (f *fakeRepo) Create(_ context.Context, r *Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return ErrInvalidReading
	}
	f.readings = append(f.readings, *r)
	return nil
}

func (f *fakeRepo) Latest(context.Context) (*Reading, error)           { return nil, ErrNotFound }
func (f *fakeRepo) List(context.Context, Filter) (*ListResult, error)  { return &ListResult{}, nil }
func (f *fakeRepo) Stats(context.Context, *time.Time, *time.Time) (*Stats, error) {
	return &Stats{}, nil
}

func (f *fakeRepo) stored() []Reading {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Reading, len(f.readings))
	copy(out, f.readings)
	return out
}

func newTestIngestor(repo Repository) (*Ingestor, *worker.Pool) {
	pool := worker.New(1, 16, logging.Default())
	return NewIngestor(repo, pool, nil, logging.Default()), pool
}

func TestIngestor_StoresValidReading(t *testing.T) {
	repo := &fakeRepo{}
	ing, pool := newTestIngestor(repo)

	fixed := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	ing.SetClock(func() time.Time { return fixed })

	payload := `{"temperature":28.5,"humidity":55,"light":42}`
	if err := ing.HandleMessage("esp32/iot/data", []byte(payload)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	pool.Close()

	stored := repo.stored()
	if len(stored) != 1 {
		t.Fatalf("stored readings = %d, want 1", len(stored))
	}
	r := stored[0]
	if r.DeviceID != DefaultDeviceID {
		t.Errorf("DeviceID = %q, want default", r.DeviceID)
	}
	if !r.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want clock time %v", r.Timestamp, fixed)
	}
}

func TestIngestor_PreservesDeviceTimestamp(t *testing.T) {
	repo := &fakeRepo{}
	ing, pool := newTestIngestor(repo)

	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ing.SetClock(func() time.Time { return fixed })

	supplied := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := `{"temperature":25.5,"humidity":55,"light":42,"timestamp":"2026-01-02T03:04:05Z"}`
	if err := ing.HandleMessage("esp32/iot/data", []byte(payload)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	pool.Close()

	stored := repo.stored()
	if len(stored) != 1 {
		t.Fatalf("stored readings = %d, want 1", len(stored))
	}
	if !stored[0].Timestamp.Equal(supplied) {
		t.Errorf("Timestamp = %v, want supplied %v", stored[0].Timestamp, supplied)
	}
}

func TestIngestor_StampsUnparseableTimestamp(t *testing.T) {
	repo := &fakeRepo{}
	ing, pool := newTestIngestor(repo)

	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ing.SetClock(func() time.Time { return fixed })

	payload := `{"temperature":25.5,"humidity":55,"light":42,"timestamp":"yesterday"}`
	if err := ing.HandleMessage("esp32/iot/data", []byte(payload)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	pool.Close()

	stored := repo.stored()
	if len(stored) != 1 {
		t.Fatalf("stored readings = %d, want 1", len(stored))
	}
	if !stored[0].Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want receipt time %v", stored[0].Timestamp, fixed)
	}
}

func TestIngestor_DropsMalformed(t *testing.T) {
	repo := &fakeRepo{}
	ing, pool := newTestIngestor(repo)

	payloads := []string{
		`not json`,
		`{"temperature":28.5,"humidity":55}`,          // missing light
		`{"temperature":200,"humidity":55,"light":42}`, // out of range
	}
	for _, p := range payloads {
		if err := ing.HandleMessage("esp32/iot/data", []byte(p)); err != nil {
			t.Errorf("HandleMessage(%q) error = %v, want nil (log and drop)", p, err)
		}
	}
	pool.Close()

	if got := len(repo.stored()); got != 0 {
		t.Errorf("stored readings = %d, want 0", got)
	}
}

func TestIngestor_StoreFailureDoesNotPropagate(t *testing.T) {
	repo := &fakeRepo{failNext: true}
	ing, pool := newTestIngestor(repo)

	payload := `{"temperature":28.5,"humidity":55,"light":42}`
	if err := ing.HandleMessage("esp32/iot/data", []byte(payload)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	pool.Close()

	if got := len(repo.stored()); got != 0 {
		t.Errorf("stored readings = %d, want 0 after store failure", got)
	}
}
