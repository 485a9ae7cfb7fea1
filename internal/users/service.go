package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rollbook/internal/apperr"
)

// Profile mirrors an auth provider subject. It is created on first sign-in
// and only FullName changes afterwards.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists profiles.
type Repository interface {
	GetProfile(ctx context.Context, id string) (Profile, error)
	// CreateProfile inserts p unless a profile with the same id exists, in
	// which case the stored profile is returned with created=false.
	CreateProfile(ctx context.Context, p Profile) (stored Profile, created bool, err error)
	UpdateFullName(ctx context.Context, id, fullName string) (Profile, error)
}

// Service manages the profile lifecycle.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Ensure returns the caller's profile, creating it on first sign-in.
func (s *Service) Ensure(ctx context.Context, id, email, fullName string) (Profile, bool, error) {
	if id == "" {
		return Profile{}, false, apperr.ErrUnauthenticated
	}
	now := s.now()
	return s.repo.CreateProfile(ctx, Profile{
		ID:        id,
		Email:     strings.TrimSpace(email),
		FullName:  strings.TrimSpace(fullName),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Get returns the profile for id.
func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	if id == "" {
		return Profile{}, apperr.ErrUnauthenticated
	}
	return s.repo.GetProfile(ctx, id)
}

// Rename updates the mutable profile field.
func (s *Service) Rename(ctx context.Context, id, fullName string) (Profile, error) {
	if id == "" {
		return Profile{}, apperr.ErrUnauthenticated
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return Profile{}, apperr.Invalid("full_name", "this field is required")
	}
	return s.repo.UpdateFullName(ctx, id, fullName)
}

// HasProfile reports whether a profile row exists for id.
func (s *Service) HasProfile(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetProfile(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup profile: %w", err)
	}
}
