package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/queue"
	"rollbook/internal/roster"
)

// Roster lists the students a user owns.
type Roster interface {
	List(ctx context.Context, actor string) ([]roster.Student, error)
}

// Service builds monthly summaries, consulting the cache when one is set.
type Service struct {
	students Roster
	records  attendance.Repository
	cache    Cache
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates a report service. cache may be nil.
func NewService(students Roster, records attendance.Repository, cache Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		students: students,
		records:  records,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

// Monthly returns actor's summary for a month. Cache failures degrade to a
// fresh computation.
func (s *Service) Monthly(ctx context.Context, actor string, month, year int) (Summary, error) {
	if actor == "" {
		return Summary{}, apperr.ErrUnauthenticated
	}
	from, to, err := MonthRange(month, year)
	if err != nil {
		return Summary{}, err
	}

	var key string
	if s.cache != nil {
		cached, k, ok, err := s.cache.Get(ctx, actor, month, year)
		key = k
		if err != nil {
			s.log.Warn("report cache read failed", zap.String("owner", actor), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	students, err := s.students.List(ctx, actor)
	if err != nil {
		return Summary{}, fmt.Errorf("load roster: %w", err)
	}
	records, err := s.records.ListRange(ctx, actor, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("load attendance %s..%s: %w", from.Format(attendance.DateLayout), to.Format(attendance.DateLayout), err)
	}
	summary, err := Summarize(month, year, students, records, s.now())
	if err != nil {
		return Summary{}, err
	}

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, summary); err != nil {
			s.log.Warn("report cache write failed", zap.String("owner", actor), zap.Error(err))
		}
	}
	return summary, nil
}

// HandleChange drops cached summaries made stale by a change event. Saved
// attendance affects one month; roster changes affect all of them.
func (s *Service) HandleChange(ctx context.Context, msg queue.Message) error {
	if s.cache == nil {
		return nil
	}
	change, err := msg.Change()
	if err != nil {
		return err
	}
	switch msg.Type {
	case queue.TypeAttendanceSaved:
		date, err := attendance.ParseDate(change.Date)
		if err != nil {
			return fmt.Errorf("attendance event for %s: %w", change.Owner, err)
		}
		return s.cache.InvalidateMonth(ctx, change.Owner, int(date.Month()), date.Year())
	case queue.TypeRosterChanged:
		return s.cache.InvalidateOwner(ctx, change.Owner)
	}
	return nil
}
