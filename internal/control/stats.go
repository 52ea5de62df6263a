package control

import (
	"context"
	"sync"
	"time"
)

// statsCacheTTL bounds how stale a cached toggle count may be. The
// dashboard polls faster than the counts change.
const statsCacheTTL = 3 * time.Second

// ToggleStats holds per-device ON counts for one civil-calendar day.
type ToggleStats struct {
	Date   string         `json:"date"` // DD/MM/YYYY in the local calendar
	Counts map[string]int `json:"counts"`
}

// StatsService computes daily toggle counts with a short in-process
// cache in front of the history table.
type StatsService struct {
	repo    HistoryRepository
	devices []string
	loc     *time.Location

	mu       sync.Mutex
	cached   map[string]ToggleStats
	cachedAt map[string]time.Time

	now Clock
}

// NewStatsService creates a stats service for the configured devices.
// Day boundaries follow loc, the deployment's civil calendar.
func NewStatsService(repo HistoryRepository, devices []string, loc *time.Location) *StatsService {
	return &StatsService{
		repo:     repo,
		devices:  devices,
		loc:      loc,
		cached:   make(map[string]ToggleStats),
		cachedAt: make(map[string]time.Time),
		now:      time.Now,
	}
}

// SetClock overrides the timestamp source. Tests only.
func (s *StatsService) SetClock(clock Clock) {
	s.now = clock
}

// ForDay returns ON counts per device for the civil day containing
// day. Every configured device appears in the result, zero when it
// never toggled. Results are cached briefly per day.
func (s *StatsService) ForDay(ctx context.Context, day time.Time) (*ToggleStats, error) {
	local := day.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)
	key := start.Format("02/01/2006")

	s.mu.Lock()
	if at, ok := s.cachedAt[key]; ok && s.now().Sub(at) < statsCacheTTL {
		stats := s.cached[key]
		s.mu.Unlock()
		return &stats, nil
	}
	s.mu.Unlock()

	counts, err := s.repo.CountOn(ctx, start, end)
	if err != nil {
		return nil, err
	}

	stats := ToggleStats{
		Date:   key,
		Counts: make(map[string]int, len(s.devices)),
	}
	for _, d := range s.devices {
		stats.Counts[d] = counts[d]
	}

	s.mu.Lock()
	s.cached[key] = stats
	s.cachedAt[key] = s.now()
	s.mu.Unlock()

	return &stats, nil
}

// Today returns the toggle counts for the current civil day.
func (s *StatsService) Today(ctx context.Context) (*ToggleStats, error) {
	return s.ForDay(ctx, s.now())
}
