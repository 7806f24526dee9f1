// Package services – ValueService
//
// This file implements the value propagator: the single writer of
// ValueRecord rows. The network value of an identity is its count of
// accepted connections multiplied by the configured base unit, rounded to
// two decimals. Recomputation is idempotent: with no intervening change in
// accepted connections the delta is zero and no event is emitted, so the
// propagator can be invoked freely after any lifecycle transition.
package services

import (
	"context"
	"math"

	"gorm.io/gorm"

	"github.com/provell/go-network-backend/internal/realtime"
)

// DefaultBaseUnit is the value contributed by one accepted connection.
const DefaultBaseUnit = 3.14

// ValueRepo defines the repository contract required by ValueService.
type ValueRepo interface {
	// CountAccepted returns the identity's number of accepted connections.
	CountAccepted(ctx context.Context, db *gorm.DB, identityID string) (int64, error)

	// GetValue returns the identity's persisted value, 0 when absent.
	GetValue(ctx context.Context, db *gorm.DB, identityID string) (float64, error)

	// UpsertValue persists the identity's new value.
	UpsertValue(ctx context.Context, db *gorm.DB, identityID string, value float64) error
}

// ValueService recomputes and propagates network values.
type ValueService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the value repository used by this service.
	Repo ValueRepo
	// Bus publishes networkValueChange events; nil disables emission.
	Bus realtime.Publisher

	// BaseUnit is the per-connection value multiplier. Zero falls back to
	// DefaultBaseUnit.
	BaseUnit float64
}

// NewValueService constructs a ValueService with the default base unit.
func NewValueService(db *gorm.DB, repo ValueRepo, bus realtime.Publisher) *ValueService {
	return &ValueService{DB: db, Repo: repo, Bus: bus, BaseUnit: DefaultBaseUnit}
}

// Recompute derives the identity's value from its accepted-connection
// count, persists it, and returns the delta versus the previous value.
// A non-zero delta emits networkValueChange on the identity's user topic;
// a zero delta emits nothing.
func (s *ValueService) Recompute(ctx context.Context, identityID string) (float64, error) {
	count, err := s.Repo.CountAccepted(ctx, s.DB, identityID)
	if err != nil {
		return 0, err
	}

	unit := s.BaseUnit
	if unit == 0 {
		unit = DefaultBaseUnit
	}
	value := round2(float64(count) * unit)

	prev, err := s.Repo.GetValue(ctx, s.DB, identityID)
	if err != nil {
		return 0, err
	}
	delta := round2(value - prev)
	if delta == 0 {
		return 0, nil
	}

	if err := s.Repo.UpsertValue(ctx, s.DB, identityID, value); err != nil {
		return 0, err
	}
	if s.Bus != nil {
		s.Bus.Publish(ctx, realtime.UserTopic(identityID), realtime.Event{
			Name: realtime.EventNetworkValueChange,
			Data: realtime.NetworkValueChange{IdentityID: identityID, NewValue: value, Delta: delta},
		})
	}
	return delta, nil
}

// CurrentValue reads the identity's persisted value without recomputing.
func (s *ValueService) CurrentValue(ctx context.Context, identityID string) (float64, error) {
	return s.Repo.GetValue(ctx, s.DB, identityID)
}

// round2 rounds to two decimal places, away from zero on ties.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
