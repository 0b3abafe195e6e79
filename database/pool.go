/*
 * Copyright 2026 absnotary.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uptrace/bun"
)

// maxProbeRetries caps transparent health-check retries during a single
// acquisition so a dead backend cannot starve other callers.
const maxProbeRetries = 3

// probeTimeout bounds a single liveness probe.
const probeTimeout = 2 * time.Second

// Slot wraps one pinned physical connection. A slot is lent to at most one
// caller at a time and is destroyed when it fails a health check, exceeds
// the recycle age, or the pool shuts down.
type Slot struct {
	conn            bun.Conn
	createdAt       time.Time
	lastValidatedAt time.Time
	pooled          bool

	inUse     atomic.Bool
	invalid   atomic.Bool
	closeOnce sync.Once
}

// Conn returns the pinned connection. Valid only while the slot is lent out.
func (s *Slot) Conn() bun.Conn { return s.conn }

// CreatedAt returns when the physical connection was established.
func (s *Slot) CreatedAt() time.Time { return s.createdAt }

// LastValidatedAt returns when the slot last passed a liveness probe.
func (s *Slot) LastValidatedAt() time.Time { return s.lastValidatedAt }

// Invalidate flags the slot as broken mid-use. The pool destroys it on
// release instead of returning it to the idle set.
func (s *Slot) Invalidate() { s.invalid.Store(true) }

func (s *Slot) expired(maxAge time.Duration) bool {
	return maxAge > 0 && time.Since(s.createdAt) >= maxAge
}

func (s *Slot) close() {
	s.closeOnce.Do(func() { _ = s.conn.Close() })
}

// PoolStats is a point-in-time snapshot of pool policy and usage, for
// operational tooling.
type PoolStats struct {
	PoolSize       int           `json:"pool_size"`
	MaxOverflow    int           `json:"max_overflow"`
	PrePing        bool          `json:"pre_ping"`
	Recycle        time.Duration `json:"recycle"`
	AcquireTimeout time.Duration `json:"acquire_timeout"`
	Disabled       bool          `json:"disabled"`

	Idle  int `json:"idle"`
	InUse int `json:"in_use"`
	Open  int `json:"open"`

	WaitCount      int64 `json:"wait_count"`
	WaitTimeouts   int64 `json:"wait_timeouts"`
	TotalCreated   int64 `json:"total_created"`
	TotalDestroyed int64 `json:"total_destroyed"`
	ProbeFailures  int64 `json:"probe_failures"`
}

// Pool owns a bounded set of connection slots. At all times
// in_use + idle <= PoolSize + MaxOverflow, and a slot is never lent to two
// callers simultaneously.
type Pool struct {
	db       *bun.DB
	settings *Settings
	logger   Logger

	mu     sync.Mutex
	idle   []*Slot // LIFO
	all    map[*Slot]struct{}
	open   int // live slots plus in-flight creations
	closed bool
	wait   chan struct{} // closed and replaced to wake waiters

	waitCount      atomic.Int64
	waitTimeouts   atomic.Int64
	totalCreated   atomic.Int64
	totalDestroyed atomic.Int64
	probeFailures  atomic.Int64
}

// NewPool creates a pool over the given Bun database. It does not dial any
// connections: slots are created lazily on first acquire.
func NewPool(db *bun.DB, settings *Settings, logger Logger) *Pool {
	if logger == nil {
		logger = GetLogger()
	}
	return &Pool{
		db:       db,
		settings: settings,
		logger:   logger,
		all:      make(map[*Slot]struct{}),
		wait:     make(chan struct{}),
	}
}

// Acquire lends a slot to the caller, blocking up to AcquireTimeout (or the
// context deadline, whichever ends first). Preference order: a live idle
// slot, then a newly created slot if capacity allows, then waiting for a
// release. Expired or probe-failing idle slots are destroyed and the
// acquisition retried transparently, bounded by maxProbeRetries.
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	if p.settings.Disabled {
		return p.acquireUnpooled(ctx)
	}

	timer := time.NewTimer(p.settings.AcquireTimeout)
	defer timer.Stop()

	probeFailures := 0
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		// Idle slots first, newest first.
		var candidate *Slot
		var recycled []*Slot
		for len(p.idle) > 0 {
			s := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]
			if s.expired(p.settings.Recycle) {
				delete(p.all, s)
				p.open--
				recycled = append(recycled, s)
				continue
			}
			candidate = s
			break
		}

		canCreate := candidate == nil && p.open < p.settings.MaxConnections()
		if canCreate {
			p.open++ // reserve capacity before dialing
		}
		waitCh := p.wait
		p.mu.Unlock()

		for _, s := range recycled {
			s.close()
			p.totalDestroyed.Add(1)
		}
		if len(recycled) > 0 {
			p.broadcast()
		}

		if candidate != nil {
			if p.settings.PrePing {
				if err := p.probe(ctx, candidate); err != nil {
					p.destroy(candidate)
					p.probeFailures.Add(1)
					probeFailures++
					if probeFailures >= maxProbeRetries {
						return nil, fmt.Errorf("absorm: liveness probe failed %d times: %v: %w",
							probeFailures, err, ErrBackendUnavailable)
					}
					p.logger.Debug("discarded slot after failed liveness probe", "error", err)
					continue
				}
				candidate.lastValidatedAt = time.Now()
			}
			candidate.inUse.Store(true)
			return candidate, nil
		}

		if canCreate {
			s, err := p.newSlot(ctx, true)
			if err != nil {
				p.mu.Lock()
				p.open--
				p.mu.Unlock()
				p.broadcast()
				probeFailures++
				if probeFailures >= maxProbeRetries {
					return nil, fmt.Errorf("absorm: connect failed %d times: %v: %w",
						probeFailures, err, ErrBackendUnavailable)
				}
				p.logger.Warn("failed to create connection slot, retrying", "error", err)
				continue
			}
			s.inUse.Store(true)
			return s, nil
		}

		// At capacity: wait for a release, destroy, or shutdown.
		p.waitCount.Add(1)
		select {
		case <-waitCh:
			continue
		case <-timer.C:
			p.waitTimeouts.Add(1)
			return nil, fmt.Errorf("absorm: no slot freed within %s: %w",
				p.settings.AcquireTimeout, ErrPoolExhausted)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// acquireUnpooled serves Disabled mode: a brand-new connection per acquire,
// destroyed on release, unbounded.
func (p *Pool) acquireUnpooled(ctx context.Context) (*Slot, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.open++
	p.mu.Unlock()

	s, err := p.newSlot(ctx, false)
	if err != nil {
		p.mu.Lock()
		p.open--
		p.mu.Unlock()
		return nil, fmt.Errorf("absorm: connect failed: %v: %w", err, ErrBackendUnavailable)
	}
	s.inUse.Store(true)
	return s, nil
}

// Release returns a slot to the idle set. Slots that were invalidated,
// exceeded the recycle age, belong to a disabled pool, or arrive after
// shutdown are destroyed instead, freeing capacity for a replacement.
// Overflow slots are transient: when the idle set already holds PoolSize
// slots, a healthy returnee is destroyed rather than kept.
func (p *Pool) Release(s *Slot) {
	if s == nil || !s.inUse.CompareAndSwap(true, false) {
		return
	}

	if !s.pooled {
		p.destroy(s)
		return
	}

	p.mu.Lock()
	if _, tracked := p.all[s]; !tracked {
		// Forcibly reclaimed during shutdown.
		p.mu.Unlock()
		s.close()
		return
	}
	if p.closed || s.invalid.Load() || s.expired(p.settings.Recycle) ||
		len(p.idle) >= p.settings.PoolSize {
		delete(p.all, s)
		p.open--
		p.mu.Unlock()
		s.close()
		p.totalDestroyed.Add(1)
		p.broadcast()
		return
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
	p.broadcast()
}

// Shutdown disallows new acquisitions, waits up to DrainTimeout (or the
// context deadline) for in-use slots to come back, then destroys every
// slot, reclaiming stragglers forcibly. Safe to call more than once.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	for _, s := range idle {
		delete(p.all, s)
	}
	p.open -= len(idle)
	p.mu.Unlock()

	for _, s := range idle {
		s.close()
		p.totalDestroyed.Add(1)
	}
	p.broadcast() // wake waiters so they observe ErrPoolClosed

	drain := time.NewTimer(p.settings.DrainTimeout)
	defer drain.Stop()

	for {
		p.mu.Lock()
		remaining := p.open
		waitCh := p.wait
		p.mu.Unlock()

		if remaining == 0 {
			p.logger.Info("connection pool shut down")
			return nil
		}

		select {
		case <-waitCh:
		case <-drain.C:
			p.forceReclaim(remaining)
			return nil
		case <-ctx.Done():
			p.mu.Lock()
			remaining = p.open
			p.mu.Unlock()
			p.forceReclaim(remaining)
			return ctx.Err()
		}
	}
}

func (p *Pool) forceReclaim(remaining int) {
	p.mu.Lock()
	stragglers := make([]*Slot, 0, len(p.all))
	for s := range p.all {
		stragglers = append(stragglers, s)
	}
	p.all = make(map[*Slot]struct{})
	p.open = 0
	p.mu.Unlock()

	for _, s := range stragglers {
		s.close()
		p.totalDestroyed.Add(1)
	}
	p.logger.Warn("drain timeout elapsed, reclaimed in-use slots forcibly",
		"reclaimed", len(stragglers), "outstanding", remaining)
}

// Stats returns a snapshot of the pool's configuration and usage.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	idle := len(p.idle)
	open := p.open
	p.mu.Unlock()

	return PoolStats{
		PoolSize:       p.settings.PoolSize,
		MaxOverflow:    p.settings.MaxOverflow,
		PrePing:        p.settings.PrePing,
		Recycle:        p.settings.Recycle,
		AcquireTimeout: p.settings.AcquireTimeout,
		Disabled:       p.settings.Disabled,
		Idle:           idle,
		InUse:          open - idle,
		Open:           open,
		WaitCount:      p.waitCount.Load(),
		WaitTimeouts:   p.waitTimeouts.Load(),
		TotalCreated:   p.totalCreated.Load(),
		TotalDestroyed: p.totalDestroyed.Load(),
		ProbeFailures:  p.probeFailures.Load(),
	}
}

// newSlot dials a connection and registers the slot. The caller must have
// reserved capacity by incrementing p.open beforehand.
func (p *Pool) newSlot(ctx context.Context, pooled bool) (*Slot, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s := &Slot{
		conn:            conn,
		createdAt:       now,
		lastValidatedAt: now,
		pooled:          pooled,
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return nil, ErrPoolClosed
	}
	p.all[s] = struct{}{}
	p.mu.Unlock()
	p.totalCreated.Add(1)
	return s, nil
}

// destroy removes a slot from the pool's accounting and closes it.
func (p *Pool) destroy(s *Slot) {
	p.mu.Lock()
	if _, tracked := p.all[s]; tracked {
		delete(p.all, s)
		p.open--
	}
	p.mu.Unlock()
	s.close()
	p.totalDestroyed.Add(1)
	p.broadcast()
}

// probe performs a lightweight liveness round trip on the slot.
func (p *Pool) probe(ctx context.Context, s *Slot) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return s.conn.PingContext(probeCtx)
}

// broadcast wakes every goroutine blocked in Acquire or Shutdown.
func (p *Pool) broadcast() {
	p.mu.Lock()
	close(p.wait)
	p.wait = make(chan struct{})
	p.mu.Unlock()
}
