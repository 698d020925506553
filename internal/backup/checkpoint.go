package backup

import (
	"context"
	"sync"
	"time"

	"github.com/ramonehamilton/cube-builder/internal/cube"
)

// DefaultMinInterval is the minimum spacing between automatic checkpoints.
const DefaultMinInterval = 45 * time.Second

// Policy decides how often list changes become ring snapshots.
type Policy struct {
	Capacity    int
	MinInterval time.Duration
}

// DefaultPolicy returns capacity 5 and a 45s minimum interval.
func DefaultPolicy() Policy {
	return Policy{Capacity: DefaultCapacity, MinInterval: DefaultMinInterval}
}

// Checkpointer turns list changes into ring snapshots, at most one per
// MinInterval. The first change after construction always snapshots. It
// also tracks whether changes happened since the last snapshot.
type Checkpointer struct {
	ring *Ring
	now  func() time.Time

	mu     sync.Mutex
	policy Policy
	last   time.Time
	dirty  bool
}

// NewCheckpointer creates a Checkpointer writing to ring.
func NewCheckpointer(ring *Ring, policy Policy) *Checkpointer {
	c := &Checkpointer{ring: ring, now: ring.now}
	c.SetPolicy(policy)
	return c
}

// SetPolicy replaces the policy. Capacity is clamped; a non-positive
// interval means DefaultMinInterval.
func (c *Checkpointer) SetPolicy(policy Policy) {
	policy.Capacity = ClampCapacity(policy.Capacity)
	if policy.MinInterval <= 0 {
		policy.MinInterval = DefaultMinInterval
	}

	c.mu.Lock()
	c.policy = policy
	c.mu.Unlock()
}

// Policy returns the current policy.
func (c *Checkpointer) Policy() Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// Changed records a list change and snapshots entries when the interval has
// elapsed. Returns the written slot, or nil when no snapshot was due.
func (c *Checkpointer) Changed(ctx context.Context, entries []cube.Entry) (*Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dirty = true
	now := c.now()
	if !c.last.IsZero() && now.Sub(c.last) < c.policy.MinInterval {
		return nil, nil
	}
	return c.rotateLocked(ctx, entries, now)
}

// Force snapshots entries regardless of the interval.
func (c *Checkpointer) Force(ctx context.Context, entries []cube.Entry) (*Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotateLocked(ctx, entries, c.now())
}

// Dirty reports whether the list changed since the last snapshot.
func (c *Checkpointer) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// MarkDirty flags the list as changed without taking a snapshot.
func (c *Checkpointer) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// LastCheckpoint returns when the last snapshot was taken; zero if never.
func (c *Checkpointer) LastCheckpoint() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Checkpointer) rotateLocked(ctx context.Context, entries []cube.Entry, now time.Time) (*Info, error) {
	info, err := c.ring.Rotate(ctx, entries, c.policy.Capacity)
	if err != nil {
		return nil, err
	}
	c.last = now
	c.dirty = false
	return &info, nil
}
