package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/apperr"
)

type memRepo map[string]Profile

func (m memRepo) GetProfile(_ context.Context, id string) (Profile, error) {
	p, ok := m[id]
	if !ok {
		return Profile{}, apperr.ErrNotFound
	}
	return p, nil
}

func (m memRepo) CreateProfile(_ context.Context, p Profile) (Profile, bool, error) {
	if existing, ok := m[p.ID]; ok {
		return existing, false, nil
	}
	m[p.ID] = p
	return p, true, nil
}

func (m memRepo) UpdateFullName(_ context.Context, id, fullName string) (Profile, error) {
	p, ok := m[id]
	if !ok {
		return Profile{}, apperr.ErrNotFound
	}
	p.FullName = fullName
	m[id] = p
	return p, nil
}

type brokenRepo struct{ memRepo }

func (brokenRepo) GetProfile(context.Context, string) (Profile, error) {
	return Profile{}, errors.New("db down")
}

func TestEnsureCreatesOnce(t *testing.T) {
	svc := NewService(memRepo{})
	ctx := context.Background()

	p, created, err := svc.Ensure(ctx, "u1", " t@example.com ", "Teacher")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "t@example.com", p.Email)

	p, created, err = svc.Ensure(ctx, "u1", "t@example.com", "Renamed")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Teacher", p.FullName)

	_, _, err = svc.Ensure(ctx, "", "x", "y")
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
}

func TestRename(t *testing.T) {
	svc := NewService(memRepo{})
	ctx := context.Background()
	_, _, err := svc.Ensure(ctx, "u1", "t@example.com", "")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, "u1", "   ")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	p, err := svc.Rename(ctx, "u1", " Ms. Rao ")
	require.NoError(t, err)
	assert.Equal(t, "Ms. Rao", p.FullName)

	_, err = svc.Rename(ctx, "u2", "Someone")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestHasProfile(t *testing.T) {
	repo := memRepo{"u1": {ID: "u1"}}
	svc := NewService(repo)
	ctx := context.Background()

	ok, err := svc.HasProfile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasProfile(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewService(brokenRepo{repo}).HasProfile(ctx, "u1")
	assert.ErrorContains(t, err, "db down")
}
