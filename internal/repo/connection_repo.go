// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ConnectionRequest model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition. The single piece of coordination they do provide is
// UpdateStatus, a conditional write that serializes concurrent state
// transitions without any process-wide lock.
//
// Error semantics:
//   - When a connection is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - UpdateStatus returns ErrStaleUpdate when the row exists but its status
//     no longer matches the expected one (a concurrent writer got there first).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/provell/go-network-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleUpdate is returned by UpdateStatus when the conditional write
// matched zero rows because the status changed under us. The caller lost a
// first-writer-wins race and should surface a stale-state error.
var ErrStaleUpdate = errors.New("connection status changed concurrently")

// ErrIllegalTransition is returned when a caller asks for a status step the
// lifecycle table does not allow. This is a programming error, not a race.
var ErrIllegalTransition = errors.New("illegal connection status transition")

// CreateConnection inserts a new ConnectionRequest row for the pair. The ID
// is the deterministic pair UUID, so a concurrent insert for the same pair
// fails on the primary key instead of creating a duplicate.
func CreateConnection(ctx context.Context, db *gorm.DB, requesterID, targetID, status string) (*domain.ConnectionRequest, error) {
	c := &domain.ConnectionRequest{
		ID:          domain.PairID(requesterID, targetID),
		RequesterID: requesterID,
		TargetID:    targetID,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetConnection fetches a connection by ID, or ErrNotFound if missing.
func GetConnection(ctx context.Context, db *gorm.DB, id string) (*domain.ConnectionRequest, error) {
	var c domain.ConnectionRequest
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConnectionByPair fetches the row for the unordered identity pair, or
// ErrNotFound when the pair has never interacted.
func GetConnectionByPair(ctx context.Context, db *gorm.DB, a, b string) (*domain.ConnectionRequest, error) {
	return GetConnection(ctx, db, domain.PairID(a, b))
}

// UpdateStatus transitions a connection from expectedStatus to newStatus as
// a single conditional write (first writer wins). When resolved is non-nil
// the resolved_at column is set as part of the same statement.
//
// Returns ErrIllegalTransition when the lifecycle table forbids the step,
// ErrStaleUpdate when the row exists under a different status, and
// ErrNotFound when it does not exist at all.
func UpdateStatus(ctx context.Context, db *gorm.DB, id, expectedStatus, newStatus string, resolved *time.Time) error {
	if !domain.CanTransition(expectedStatus, newStatus) {
		return ErrIllegalTransition
	}
	updates := map[string]any{
		"status":     newStatus,
		"updated_at": time.Now().UTC(),
	}
	if resolved != nil {
		updates["resolved_at"] = *resolved
	}
	res := db.WithContext(ctx).
		Model(&domain.ConnectionRequest{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).
			Model(&domain.ConnectionRequest{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStaleUpdate
	}
	return nil
}

// Rerequest resurrects a REJECTED, REMOVED, or orphaned INITIATED row back
// to PENDING with the given requester/target orientation, conditionally on
// its current status. Shares the UpdateStatus race semantics.
func Rerequest(ctx context.Context, db *gorm.DB, id, expectedStatus, requesterID, targetID string) error {
	if !domain.CanTransition(expectedStatus, domain.StatusPending) {
		return ErrIllegalTransition
	}
	res := db.WithContext(ctx).
		Model(&domain.ConnectionRequest{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(map[string]any{
			"status":       domain.StatusPending,
			"requester_id": requesterID,
			"target_id":    targetID,
			"resolved_at":  nil,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleUpdate
	}
	return nil
}

// CountAccepted returns the number of ACCEPTED connections the identity is
// part of, on either side of the pair.
func CountAccepted(ctx context.Context, db *gorm.DB, identityID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ConnectionRequest{}).
		Where("status = ? AND (requester_id = ? OR target_id = ?)", domain.StatusAccepted, identityID, identityID).
		Count(&total).Error
	return total, err
}

// ListAccepted enumerates the ACCEPTED connections the identity is part of,
// most recently resolved first.
func ListAccepted(ctx context.Context, db *gorm.DB, identityID string) ([]domain.ConnectionRequest, error) {
	var out []domain.ConnectionRequest
	err := db.WithContext(ctx).
		Where("status = ? AND (requester_id = ? OR target_id = ?)", domain.StatusAccepted, identityID, identityID).
		Order("resolved_at desc").
		Find(&out).Error
	return out, err
}
