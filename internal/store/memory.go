// Package store – in-memory backend.
//
// Memory mirrors the Redis semantics closely enough for tests and
// single-node development: windowed counters expire by wall clock, hash
// increments are atomic under a mutex, and the broker fans out to local
// subscribers only (there is no sibling process to reach).
package store

import (
	"context"
	"sync"
	"time"
)

type memCounter struct {
	count    int64
	expireAt time.Time
}

// Memory implements Store entirely in process.
type Memory struct {
	mu       sync.Mutex
	counters map[string]*memCounter
	hashes   map[string]map[string]int64
	subs     map[string][]chan []byte

	// now is a test seam for counter expiry.
	now func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		counters: make(map[string]*memCounter),
		hashes:   make(map[string]map[string]int64),
		subs:     make(map[string][]chan []byte),
		now:      time.Now,
	}
}

// IncrWindow increments the key's counter, resetting it when the previous
// window has expired.
func (m *Memory) IncrWindow(_ context.Context, key string, windowMillis int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || now.After(c.expireAt) {
		c = &memCounter{expireAt: now.Add(time.Duration(windowMillis) * time.Millisecond)}
		m.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// HIncrBy atomically adds n to a hash field.
func (m *Memory) HIncrBy(_ context.Context, key, field string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]int64)
		m.hashes[key] = h
	}
	h[field] += n
	return h[field], nil
}

// HGetAll returns a copy of the hash, or an empty map when absent.
func (m *Memory) HGetAll(_ context.Context, key string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.hashes[key]))
	for field, v := range m.hashes[key] {
		out[field] = v
	}
	return out, nil
}

// Publish delivers payload to every in-process subscriber of channel.
// Slow subscribers are skipped rather than blocking the publisher.
func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	chans := make([]chan []byte, len(m.subs[channel]))
	copy(chans, m.subs[channel])
	m.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe consumes channel until ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	ch := make(chan []byte, 64)

	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		list := m.subs[channel]
		for i, c := range list {
			if c == ch {
				m.subs[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-ch:
			handler(payload)
		}
	}
}
