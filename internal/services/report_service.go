package services

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"finledger/internal/cache"
	"finledger/internal/core"
	"finledger/internal/ledger"
	"finledger/internal/session"
)

// SnapshotSource returns a user's full collections.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID string) (session.Snapshot, error)
}

// ReportService derives read-only figures from a user's snapshot. Category
// reports are cached per user until the user's ledger changes.
type ReportService struct {
	snapshots     SnapshotSource
	stats         cache.Cache[core.CategoryReport]
	maxSeriesDays int

	// generations counts invalidations per user. A report is cached only if
	// no invalidation happened while it was computed.
	mu          sync.Mutex
	generations map[string]uint64
}

func NewReportService(snapshots SnapshotSource, stats cache.Cache[core.CategoryReport], maxSeriesDays int) *ReportService {
	return &ReportService{
		snapshots:     snapshots,
		stats:         stats,
		maxSeriesDays: maxSeriesDays,
		generations:   make(map[string]uint64),
	}
}

func (s *ReportService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// store caches report unless userID was invalidated after gen was read.
func (s *ReportService) store(userID string, gen uint64, key string, report core.CategoryReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] != gen {
		return false
	}
	s.stats.Set(key, report)
	return true
}

func (s *ReportService) snapshot(ctx context.Context, userID string) (session.Snapshot, error) {
	if userID == "" {
		return session.Snapshot{}, core.ErrEmptyUser
	}
	snap, err := s.snapshots.Snapshot(ctx, userID)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("load ledger: %w", err)
	}
	return snap, nil
}

func (s *ReportService) Dashboard(ctx context.Context, userID string, today core.Date) (core.Dashboard, error) {
	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return core.Dashboard{}, err
	}
	return ledger.Dashboard(snap.Transactions, today), nil
}

func (s *ReportService) Projection(ctx context.Context, userID string, start, end core.Date) (core.Projection, error) {
	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return core.Projection{}, err
	}
	return ledger.Project(snap.Transactions, snap.ScheduledExpenses, snap.ScheduledIncomes, start, end)
}

// Series returns the daily running balance over [start, end]. Ranges longer
// than the configured maximum are rejected before anything is computed.
func (s *ReportService) Series(ctx context.Context, userID string, start, end core.Date) (iter.Seq[core.DayBalance], error) {
	if s.maxSeriesDays > 0 && start.DaysUntil(end)+1 > s.maxSeriesDays {
		return nil, fmt.Errorf("%w: %s..%s spans more than %d days", core.ErrInvalidRange, start, end, s.maxSeriesDays)
	}
	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ledger.DailySeries(snap.Transactions, snap.ScheduledExpenses, snap.ScheduledIncomes, start, end)
}

func statsKey(userID string, f ledger.CategoryFilter) string {
	return fmt.Sprintf("%s|%04d-%02d|%d|%s", userID, f.Year, f.Month, f.TopN, f.Category)
}

// Stats returns the category breakdown for the filter's month.
func (s *ReportService) Stats(ctx context.Context, userID string, filter ledger.CategoryFilter) (core.CategoryReport, error) {
	if err := filter.Validate(); err != nil {
		return core.CategoryReport{}, err
	}
	key := statsKey(userID, filter)
	gen := s.generation(userID)
	if s.stats != nil {
		if report, ok := s.stats.Get(key); ok {
			return report, nil
		}
	}

	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return core.CategoryReport{}, err
	}
	report, err := ledger.GroupByCategory(snap.Transactions, filter)
	if err != nil {
		return core.CategoryReport{}, err
	}
	if s.stats != nil && !s.store(userID, gen, key, report) {
		slog.DebugContext(ctx, "Report not cached, ledger changed while computing", "user_id", userID)
	}
	return report, nil
}

func (s *ReportService) Categories(ctx context.Context, userID string) ([]string, error) {
	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ledger.Categories(snap.Transactions), nil
}

// Invalidate drops the user's cached reports. It is a ChangeListener.
func (s *ReportService) Invalidate(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[userID]++
	if s.stats == nil {
		return
	}
	if n := s.stats.DeletePrefix(userID + "|"); n > 0 {
		slog.DebugContext(ctx, "Cached reports invalidated", "user_id", userID, "count", n)
	}
}
