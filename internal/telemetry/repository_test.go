package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/PhucHuwu/iot-core/internal/infrastructure/database"
	_ "github.com/PhucHuwu/iot-core/migrations"
)

func testRepo(t *testing.T) *SQLiteRepository {
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

	return NewSQLiteRepository(db.DB)
}

func seedReadings(t *testing.T, repo *SQLiteRepository, readings []Reading) {
	t.Helper()
	ctx := context.Background()
	for i := range readings {
		if err := repo.Create(ctx, &readings[i]); err != nil {
			t.Fatalf("seeding reading %d: %v", i, err)
		}
	}
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRepository_CreateAndLatest(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seedReadings(t, repo, []Reading{
		{Temperature: 25, Humidity: 50, Light: 40, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T01:00:00Z")},
		{Temperature: 30, Humidity: 60, Light: 55, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T02:00:00Z")},
	})

	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Temperature != 30 {
		t.Errorf("Latest().Temperature = %v, want 30", latest.Temperature)
	}
	if latest.ID == "" {
		t.Error("Latest().ID is empty, want generated ID")
	}
}

func TestRepository_LatestEmpty(t *testing.T) {
	repo := testRepo(t)

	_, err := repo.Latest(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest() on empty table error = %v, want ErrNotFound", err)
	}
}

func TestRepository_ListTimeRange(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seedReadings(t, repo, []Reading{
		{Temperature: 25, Humidity: 50, Light: 40, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T01:00:00Z")},
		{Temperature: 26, Humidity: 51, Light: 41, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T02:00:00Z")},
		{Temperature: 27, Humidity: 52, Light: 42, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T03:00:00Z")},
	})

	start := ts("2026-03-10T01:30:00Z")
	end := ts("2026-03-10T03:00:00Z") // exclusive: the 03:00 reading is out
	result, err := repo.List(ctx, Filter{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("Total = %d, want 1", result.Total)
	}
	if len(result.Readings) != 1 || result.Readings[0].Temperature != 26 {
		t.Errorf("Readings = %+v, want the 02:00 reading", result.Readings)
	}
}

func TestRepository_ListSubstring(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seedReadings(t, repo, []Reading{
		{Temperature: 25, Humidity: 50, Light: 40, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T01:00:00Z")},
		{Temperature: 26, Humidity: 51, Light: 41, DeviceID: "esp32_001", Timestamp: ts("2026-03-11T01:00:00Z")},
	})

	result, err := repo.List(ctx, Filter{Substring: "2026-03-11"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("Total = %d, want 1", result.Total)
	}
}

func TestRepository_ListFieldBounds(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seedReadings(t, repo, []Reading{
		{Temperature: 20, Humidity: 50, Light: 40, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T01:00:00Z")},
		{Temperature: 30, Humidity: 60, Light: 55, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T02:00:00Z")},
		{Temperature: 40, Humidity: 70, Light: 70, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T03:00:00Z")},
	})

	minTemp := 25.0
	maxTemp := 35.0
	result, err := repo.List(ctx, Filter{TemperatureMin: &minTemp, TemperatureMax: &maxTemp})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || result.Readings[0].Temperature != 30 {
		t.Errorf("bounded list = %+v, want only the 30 degree reading", result.Readings)
	}
}

func TestRepository_ListSortAndPagination(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seedReadings(t, repo, []Reading{
		{Temperature: 30, Humidity: 50, Light: 40, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T01:00:00Z")},
		{Temperature: 10, Humidity: 51, Light: 41, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T02:00:00Z")},
		{Temperature: 20, Humidity: 52, Light: 42, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T03:00:00Z")},
	})

	result, err := repo.List(ctx, Filter{SortField: "temperature", SortAsc: true, Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	if len(result.Readings) != 2 {
		t.Fatalf("page size = %d, want 2", len(result.Readings))
	}
	if result.Readings[0].Temperature != 10 || result.Readings[1].Temperature != 20 {
		t.Errorf("ascending sort order wrong: %+v", result.Readings)
	}

	// Second page
	result, err = repo.List(ctx, Filter{SortField: "temperature", SortAsc: true, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() page 2 error = %v", err)
	}
	if len(result.Readings) != 1 || result.Readings[0].Temperature != 30 {
		t.Errorf("page 2 = %+v, want the 30 degree reading", result.Readings)
	}
}

func TestRepository_ListUnknownSortFallsBack(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seedReadings(t, repo, []Reading{
		{Temperature: 25, Humidity: 50, Light: 40, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T01:00:00Z")},
	})

	// An unknown sort field must not reach the SQL string.
	if _, err := repo.List(ctx, Filter{SortField: "timestamp; DROP TABLE sensor_readings"}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if _, err := repo.Latest(ctx); err != nil {
		t.Errorf("table damaged by sort injection attempt: %v", err)
	}
}

func TestRepository_Stats(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seedReadings(t, repo, []Reading{
		{Temperature: 20, Humidity: 40, Light: 30, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T01:00:00Z")},
		{Temperature: 30, Humidity: 60, Light: 50, DeviceID: "esp32_001", Timestamp: ts("2026-03-10T02:00:00Z")},
	})

	stats, err := repo.Stats(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Count != 2 {
		t.Errorf("Count = %d, want 2", stats.Count)
	}
	if stats.Temperature.Min != 20 || stats.Temperature.Max != 30 || stats.Temperature.Avg != 25 {
		t.Errorf("Temperature stats = %+v, want min 20 max 30 avg 25", stats.Temperature)
	}
	if stats.First == nil || stats.Last == nil {
		t.Fatal("First/Last are nil, want timestamps")
	}
	if !stats.First.Equal(ts("2026-03-10T01:00:00Z")) {
		t.Errorf("First = %v, want 01:00", stats.First)
	}
}

func TestRepository_StatsEmpty(t *testing.T) {
	repo := testRepo(t)

	stats, err := repo.Stats(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("Count = %d, want 0", stats.Count)
	}
	if stats.First != nil || stats.Last != nil {
		t.Error("First/Last should be nil for empty table")
	}
}
