package control

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/PhucHuwu/iot-core/internal/infrastructure/database"
	_ "github.com/PhucHuwu/iot-core/migrations"
)

func testHistoryRepo(t *testing.T) *SQLiteHistoryRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return NewSQLiteHistoryRepository(db.DB)
}

func seedEntries(t *testing.T, repo *SQLiteHistoryRepository, entries []Entry) {
	t.Helper()
	ctx := context.Background()
	for i := range entries {
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("seeding entry %d: %v", i, err)
		}
	}
}

func histTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "ON", want: StateOn},
		{in: "on", want: StateOn},
		{in: " 1 ", want: StateOn},
		{in: "true", want: StateOn},
		{in: "OFF", want: StateOff},
		{in: "0", want: StateOff},
		{in: "false", want: StateOff},
		{in: "dim", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeState(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidState) {
				t.Errorf("NormalizeState(%q) error = %v, want ErrInvalidState", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeState(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeState(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHistoryRepository_CreateAndList(t *testing.T) {
	repo := testHistoryRepo(t)
	ctx := context.Background()

	seedEntries(t, repo, []Entry{
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOn, Timestamp: histTS("2026-03-10T01:00:00Z")},
		{Type: RecordTypeLEDStatus, Device: "LED2", State: StateOff, Timestamp: histTS("2026-03-10T02:00:00Z")},
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOff, Timestamp: histTS("2026-03-10T03:00:00Z")},
	})

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	// Most recent first by default.
	if result.Entries[0].Timestamp != histTS("2026-03-10T03:00:00Z") {
		t.Errorf("first entry = %+v, want the 03:00 record", result.Entries[0])
	}
	if result.Entries[0].ID == "" {
		t.Error("entry ID is empty, want generated ID")
	}
}

func TestHistoryRepository_Filters(t *testing.T) {
	repo := testHistoryRepo(t)
	ctx := context.Background()

	seedEntries(t, repo, []Entry{
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOn, Timestamp: histTS("2026-03-10T01:00:00Z")},
		{Type: RecordTypeLEDStatus, Device: "LED2", State: StateOn, Timestamp: histTS("2026-03-10T02:00:00Z")},
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOff, Timestamp: histTS("2026-03-11T01:00:00Z")},
	})

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
	}{
		{name: "by device", filter: Filter{Device: "LED1"}, wantTotal: 2},
		{name: "by state", filter: Filter{State: StateOn}, wantTotal: 2},
		{name: "device and state", filter: Filter{Device: "LED1", State: StateOn}, wantTotal: 1},
		{name: "substring on day", filter: Filter{Substring: "2026-03-11"}, wantTotal: 1},
		{
			name: "time range end exclusive",
			filter: Filter{
				Start: timePtr(histTS("2026-03-10T01:00:00Z")),
				End:   timePtr(histTS("2026-03-10T02:00:00Z")),
			},
			wantTotal: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestHistoryRepository_SortAndPagination(t *testing.T) {
	repo := testHistoryRepo(t)
	ctx := context.Background()

	seedEntries(t, repo, []Entry{
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOn, Timestamp: histTS("2026-03-10T01:00:00Z")},
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOff, Timestamp: histTS("2026-03-10T02:00:00Z")},
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOn, Timestamp: histTS("2026-03-10T03:00:00Z")},
	})

	result, err := repo.List(ctx, Filter{SortAsc: true, Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("page size = %d, want 2", len(result.Entries))
	}
	if !result.Entries[0].Timestamp.Equal(histTS("2026-03-10T01:00:00Z")) {
		t.Errorf("ascending order wrong: %+v", result.Entries)
	}

	result, err = repo.List(ctx, Filter{SortAsc: true, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() page 2 error = %v", err)
	}
	if len(result.Entries) != 1 || !result.Entries[0].Timestamp.Equal(histTS("2026-03-10T03:00:00Z")) {
		t.Errorf("page 2 = %+v, want the 03:00 record", result.Entries)
	}
}

func TestHistoryRepository_CountOn(t *testing.T) {
	repo := testHistoryRepo(t)
	ctx := context.Background()

	seedEntries(t, repo, []Entry{
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOn, Timestamp: histTS("2026-03-10T01:00:00Z")},
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOn, Timestamp: histTS("2026-03-10T02:00:00Z")},
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOff, Timestamp: histTS("2026-03-10T03:00:00Z")},
		{Type: RecordTypeLEDStatus, Device: "LED2", State: StateOn, Timestamp: histTS("2026-03-10T04:00:00Z")},
		// Unknown types never count as toggles.
		{Type: "button_press", Device: "LED2", State: StateOn, Timestamp: histTS("2026-03-10T05:00:00Z")},
		// Out of range.
		{Type: RecordTypeLEDStatus, Device: "LED1", State: StateOn, Timestamp: histTS("2026-03-11T01:00:00Z")},
	})

	counts, err := repo.CountOn(ctx, histTS("2026-03-10T00:00:00Z"), histTS("2026-03-11T00:00:00Z"))
	if err != nil {
		t.Fatalf("CountOn() error = %v", err)
	}
	if counts["LED1"] != 2 {
		t.Errorf("LED1 count = %d, want 2", counts["LED1"])
	}
	if counts["LED2"] != 1 {
		t.Errorf("LED2 count = %d, want 1", counts["LED2"])
	}
	if _, ok := counts["LED3"]; ok {
		t.Error("LED3 present in counts, want absent (no rows)")
	}
}
