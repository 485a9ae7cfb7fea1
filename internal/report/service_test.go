package report

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/attendance"
	"rollbook/internal/marking"
	"rollbook/internal/queue"
	"rollbook/internal/roster"
	"rollbook/internal/store/memstore"
	"rollbook/internal/users"
)

type staticRoster struct {
	students []roster.Student
	calls    int
}

func (s *staticRoster) List(context.Context, string) ([]roster.Student, error) {
	s.calls++
	return s.students, nil
}

type rangeRecords struct {
	attendance.Repository
	rows []attendance.Record
}

func (r *rangeRecords) ListRange(_ context.Context, _ string, from, to time.Time) ([]attendance.Record, error) {
	var out []attendance.Record
	for _, rec := range r.rows {
		if !rec.Date.Before(from) && !rec.Date.After(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func TestRedisCache(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	_, march, ok, err := cache.Get(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "report:monthly:u1:2024-03:g0.0", march)
	_, april, _, err := cache.Get(ctx, "u1", 4, 2024)
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, march, Summary{Month: time.March, Year: 2024, TotalWorkingDays: 4}))
	require.NoError(t, cache.Set(ctx, april, Summary{Month: time.April, Year: 2024}))
	assert.True(t, mr.Exists(march))
	assert.Error(t, cache.Set(ctx, "", Summary{}))

	got, _, ok, err := cache.Get(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, got.TotalWorkingDays)

	require.NoError(t, cache.InvalidateMonth(ctx, "u1", 3, 2024))
	_, key, ok, _ := cache.Get(ctx, "u1", 3, 2024)
	assert.False(t, ok)
	assert.Equal(t, "report:monthly:u1:2024-03:g0.1", key)
	_, _, ok, _ = cache.Get(ctx, "u1", 4, 2024)
	assert.True(t, ok)

	require.NoError(t, cache.InvalidateOwner(ctx, "u1"))
	_, _, ok, _ = cache.Get(ctx, "u1", 4, 2024)
	assert.False(t, ok)

	// Other owners are untouched.
	_, other, _, _ := cache.Get(ctx, "u2", 4, 2024)
	require.NoError(t, cache.Set(ctx, other, Summary{Month: time.April, Year: 2024}))
	require.NoError(t, cache.InvalidateOwner(ctx, "u1"))
	_, _, ok, _ = cache.Get(ctx, "u2", 4, 2024)
	assert.True(t, ok)
}

func TestLateWriteAfterInvalidationIsNotServed(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	_, key, ok, err := cache.Get(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.InvalidateMonth(ctx, "u1", 3, 2024))
	require.NoError(t, cache.Set(ctx, key, Summary{Month: time.March, Year: 2024, TotalWorkingDays: 1}))
	_, _, ok, err = cache.Get(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	assert.False(t, ok)

	_, key, _, _ = cache.Get(ctx, "u1", 3, 2024)
	require.NoError(t, cache.InvalidateOwner(ctx, "u1"))
	require.NoError(t, cache.Set(ctx, key, Summary{Month: time.March, Year: 2024, TotalWorkingDays: 1}))
	_, _, ok, _ = cache.Get(ctx, "u1", 3, 2024)
	assert.False(t, ok)
}

func TestMonthlyReflectsSavedSheet(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()
	userSvc := users.NewService(db.Users())
	_, _, err := userSvc.Ensure(ctx, "u1", "t@example.com", "T")
	require.NoError(t, err)
	students := roster.NewService(db.Students(), userSvc)
	_, err = students.Add(ctx, "u1", roster.Fields{RegisterNumber: "A", RollNumber: "1", Name: "Anbu", Class: "X", Department: "CSE", Year: "I"})
	require.NoError(t, err)

	cache, _ := newCache(t)
	svc := NewService(students, db.Attendance(), cache, nil)

	save := func(day int, status attendance.Status) {
		t.Helper()
		sheet, err := marking.Open(ctx, "u1", d(day), students, db.Attendance())
		require.NoError(t, err)
		require.NoError(t, sheet.Set("A", status))
		require.NoError(t, sheet.Save(ctx))
		msg, err := queue.NewChange(queue.TypeAttendanceSaved, queue.Change{Owner: "u1", Date: d(day).Format(attendance.DateLayout)})
		require.NoError(t, err)
		require.NoError(t, svc.HandleChange(ctx, msg))
	}

	save(4, attendance.StatusPresent)
	s, err := svc.Monthly(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Rows[0].Percentage)

	// Served from the cache while nothing changes.
	s, err = svc.Monthly(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalWorkingDays)

	save(5, attendance.StatusAbsent)
	s, err = svc.Monthly(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalWorkingDays)
	assert.Equal(t, 1, s.Rows[0].Absent)
	assert.Equal(t, 50, s.Rows[0].Percentage)
}

func TestHandleChange(t *testing.T) {
	cache, _ := newCache(t)
	students := &staticRoster{students: []roster.Student{{RegisterNumber: "A", Name: "Anbu", Class: "X"}}}
	svc := NewService(students, &rangeRecords{}, cache, nil)
	ctx := context.Background()

	_, err := svc.Monthly(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	_, err = svc.Monthly(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, students.calls)

	msg, err := queue.NewChange(queue.TypeRosterChanged, queue.Change{Owner: "u1"})
	require.NoError(t, err)
	require.NoError(t, svc.HandleChange(ctx, msg))
	_, err = svc.Monthly(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, students.calls)

	bad, _ := queue.NewChange(queue.TypeAttendanceSaved, queue.Change{Owner: "u1", Date: "March"})
	assert.Error(t, svc.HandleChange(ctx, bad))
}

func TestMonthlyWithoutCache(t *testing.T) {
	svc := NewService(&staticRoster{}, &rangeRecords{}, nil, nil)
	_, err := svc.Monthly(context.Background(), "", 3, 2024)
	assert.Error(t, err)
	_, err = svc.Monthly(context.Background(), "u1", 13, 2024)
	assert.Error(t, err)

	s, err := svc.Monthly(context.Background(), "u1", 3, 2024)
	require.NoError(t, err)
	assert.Empty(t, s.Rows)

	msg, _ := queue.NewChange(queue.TypeRosterChanged, queue.Change{Owner: "u1"})
	assert.NoError(t, svc.HandleChange(context.Background(), msg))
}
