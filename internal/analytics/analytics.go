// Package analytics serves the longitudinal check-in summary shown on the
// admin dashboard. Everything here is sensitive and sits behind the session guard.
package analytics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrInvalidRange is returned for a non-positive reporting window
var ErrInvalidRange = errors.New("reporting window must be positive")

// CheckIn is one recorded patient arrival at the tablet
type CheckIn struct {
	PatientRef string
	CareTeam   string
	ArrivedAt  time.Time
	WaitTime   time.Duration
}

// Summary aggregates check-ins over a window
type Summary struct {
	From            time.Time      `json:"from"`
	To              time.Time      `json:"to"`
	TotalCheckIns   int            `json:"total_check_ins"`
	UniquePatients  int            `json:"unique_patients"`
	AverageWaitSecs float64        `json:"average_wait_seconds"`
	CheckInsByTeam  map[string]int `json:"check_ins_by_team"`
	DailyCheckIns   []DailyCount   `json:"daily_check_ins"`
}

// DailyCount is the number of check-ins on one calendar day (UTC)
type DailyCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Source provides the analytics summary
type Source interface {
	Summary(ctx context.Context, window time.Duration) (*Summary, error)
}

// Recorder accepts check-ins as patients arrive
type Recorder interface {
	Record(c CheckIn)
}

// MemorySource keeps check-ins in memory. It is both the Recorder behind
// POST /checkins and the Source behind the admin dashboard.
type MemorySource struct {
	mu       sync.RWMutex
	checkIns []CheckIn
	now      func() time.Time
}

func NewMemorySource(now func() time.Time) *MemorySource {
	if now == nil {
		now = time.Now
	}
	return &MemorySource{now: now}
}

// Record stores one check-in
func (s *MemorySource) Record(c CheckIn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkIns = append(s.checkIns, c)
}

func (s *MemorySource) Summary(ctx context.Context, window time.Duration) (*Summary, error) {
	if window <= 0 {
		return nil, ErrInvalidRange
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	to := s.now().UTC()
	from := to.Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &Summary{
		From:           from,
		To:             to,
		CheckInsByTeam: make(map[string]int),
		DailyCheckIns:  []DailyCount{},
	}
	patients := make(map[string]struct{})
	days := make(map[string]int)
	var totalWait time.Duration

	for _, c := range s.checkIns {
		if c.ArrivedAt.Before(from) || c.ArrivedAt.After(to) {
			continue
		}
		summary.TotalCheckIns++
		summary.CheckInsByTeam[c.CareTeam]++
		patients[c.PatientRef] = struct{}{}
		days[c.ArrivedAt.UTC().Format("2006-01-02")]++
		totalWait += c.WaitTime
	}

	summary.UniquePatients = len(patients)
	if summary.TotalCheckIns > 0 {
		summary.AverageWaitSecs = totalWait.Seconds() / float64(summary.TotalCheckIns)
	}
	for day, count := range days {
		summary.DailyCheckIns = append(summary.DailyCheckIns, DailyCount{Day: day, Count: count})
	}
	sort.Slice(summary.DailyCheckIns, func(i, j int) bool {
		return summary.DailyCheckIns[i].Day < summary.DailyCheckIns[j].Day
	})

	return summary, nil
}
