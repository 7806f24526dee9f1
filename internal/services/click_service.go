// Package services – ClickService
//
// This file aggregates invite-link clicks. Counts live in the shared
// store so every process sees the same totals; each click bumps both an
// all-time counter and a per-day bucket, then broadcasts the new total to
// subscribers of the invite's topic.
package services

import (
	"context"
	"time"

	"github.com/provell/go-network-backend/internal/realtime"
	"github.com/provell/go-network-backend/internal/store"
)

const (
	clickFieldTotal = "total"
	clickDayPrefix  = "d:"
)

// ClickSnapshot is the aggregated click state of one invite.
type ClickSnapshot struct {
	// InviteID identifies the invite link.
	InviteID string
	// TotalClicks is the all-time click count.
	TotalClicks int64
	// DailyBuckets maps yyyy-mm-dd (UTC) to that day's click count.
	DailyBuckets map[string]int64
}

// ClickService records and reads invite click counts.
type ClickService struct {
	// Store holds the click hashes.
	Store store.ClickStore
	// Bus publishes inviteClicked events; nil disables emission.
	Bus realtime.Publisher
}

// NewClickService constructs a ClickService.
func NewClickService(st store.ClickStore, bus realtime.Publisher) *ClickService {
	return &ClickService{Store: st, Bus: bus}
}

// clickKey is the hash key for one invite's counters.
func clickKey(inviteID string) string {
	return "clicks:" + inviteID
}

// RecordClick increments the invite's counters and broadcasts the new
// total on the invite's topic. The daily bucket uses the UTC date so
// counts do not depend on server locale.
func (s *ClickService) RecordClick(ctx context.Context, inviteID string) (ClickSnapshot, error) {
	key := clickKey(inviteID)
	day := clickDayPrefix + time.Now().UTC().Format("2006-01-02")

	total, err := s.Store.HIncrBy(ctx, key, clickFieldTotal, 1)
	if err != nil {
		return ClickSnapshot{}, err
	}
	if _, err := s.Store.HIncrBy(ctx, key, day, 1); err != nil {
		return ClickSnapshot{}, err
	}

	if s.Bus != nil {
		s.Bus.Publish(ctx, realtime.InviteTopic(inviteID), realtime.Event{
			Name: realtime.EventInviteClicked,
			Data: realtime.InviteClicked{InviteID: inviteID, ClickCount: total},
		})
	}
	return s.snapshot(ctx, inviteID, total)
}

// Clicks reads the invite's current counters without incrementing.
func (s *ClickService) Clicks(ctx context.Context, inviteID string) (ClickSnapshot, error) {
	return s.snapshot(ctx, inviteID, -1)
}

// snapshot materializes the hash. total overrides the stored total when
// >= 0 so RecordClick reports the count it just produced even if another
// process increments in between.
func (s *ClickService) snapshot(ctx context.Context, inviteID string, total int64) (ClickSnapshot, error) {
	fields, err := s.Store.HGetAll(ctx, clickKey(inviteID))
	if err != nil {
		return ClickSnapshot{}, err
	}

	snap := ClickSnapshot{InviteID: inviteID, TotalClicks: total, DailyBuckets: make(map[string]int64)}
	for field, n := range fields {
		switch {
		case field == clickFieldTotal:
			if total < 0 {
				snap.TotalClicks = n
			}
		case len(field) > len(clickDayPrefix) && field[:len(clickDayPrefix)] == clickDayPrefix:
			snap.DailyBuckets[field[len(clickDayPrefix):]] = n
		}
	}
	if snap.TotalClicks < 0 {
		snap.TotalClicks = 0
	}
	return snap, nil
}
