package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations remembers signed-out tokens until they expire.
type Revocations interface {
	Revoke(ctx context.Context, token string, until time.Time) error
	Revoked(ctx context.Context, token string) (bool, error)
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RedisRevocations stores token digests with a TTL matching the token's
// remaining lifetime.
type RedisRevocations struct {
	client *redis.Client
}

// NewRedisRevocations creates a revocation list.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

// Revoke marks token as signed out.
func (r *RedisRevocations) Revoke(ctx context.Context, token string, until time.Time) error {
	ttl := time.Until(until)
	if ttl < time.Second {
		ttl = time.Second
	}
	return r.client.Set(ctx, "auth:revoked:"+tokenDigest(token), 1, ttl).Err()
}

// Revoked reports whether token was signed out.
func (r *RedisRevocations) Revoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, "auth:revoked:"+tokenDigest(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevocations is the in-process variant.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryRevocations creates an empty list.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: map[string]time.Time{}}
}

// Revoke marks token as signed out.
func (m *MemoryRevocations) Revoke(_ context.Context, token string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for k, exp := range m.entries {
		if exp.Before(now) {
			delete(m.entries, k)
		}
	}
	m.entries[tokenDigest(token)] = until
	return nil
}

// Revoked reports whether token was signed out.
func (m *MemoryRevocations) Revoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[tokenDigest(token)]
	return ok && time.Now().Before(exp), nil
}

// Auth transition kinds.
const (
	EventSignedIn  = "signed_in"
	EventSignedOut = "signed_out"
)

// Event is a login/logout transition of one subject.
type Event struct {
	Kind    string    `json:"kind"`
	Subject string    `json:"subject"`
	At      time.Time `json:"at"`
}

// Notifier fans auth transitions out to the subject's subscribers.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe streams the subject's events until ctx is done.
	Subscribe(ctx context.Context, subject string) (<-chan Event, error)
}

// RedisNotifier uses one pub/sub channel per subject, so every API replica
// sees every transition.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a notifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func channelName(subject string) string {
	return "auth:events:" + subject
}

// Publish sends ev to the subject's channel.
func (n *RedisNotifier) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, channelName(ev.Subject), data).Err()
}

// Subscribe listens on the subject's channel.
func (n *RedisNotifier) Subscribe(ctx context.Context, subject string) (<-chan Event, error) {
	ps := n.client.Subscribe(ctx, channelName(subject))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// MemoryNotifier is the in-process variant.
type MemoryNotifier struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewMemoryNotifier creates a notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: map[string]map[chan Event]struct{}{}}
}

// ErrNoSubject is returned for events without a subject.
var ErrNoSubject = errors.New("auth event without subject")

// Publish delivers ev to current subscribers; slow subscribers miss events.
func (n *MemoryNotifier) Publish(_ context.Context, ev Event) error {
	if ev.Subject == "" {
		return ErrNoSubject
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[ev.Subject] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a buffered subscriber until ctx is done.
func (n *MemoryNotifier) Subscribe(ctx context.Context, subject string) (<-chan Event, error) {
	ch := make(chan Event, 8)
	n.mu.Lock()
	if n.subs[subject] == nil {
		n.subs[subject] = map[chan Event]struct{}{}
	}
	n.subs[subject][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs[subject], ch)
		if len(n.subs[subject]) == 0 {
			delete(n.subs, subject)
		}
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}
