// Package services – repository adapters.
//
// The repo package exposes free functions; the services declare small
// interfaces. These stateless adapters bind the two so the composition
// root can wire services with one literal and tests can substitute fakes.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/provell/go-network-backend/internal/domain"
	"github.com/provell/go-network-backend/internal/repo"
)

// GormConnectionRepo adapts the repo package to ConnectionRepo.
type GormConnectionRepo struct{}

func (GormConnectionRepo) Create(ctx context.Context, db *gorm.DB, requesterID, targetID, status string) (*domain.ConnectionRequest, error) {
	return repo.CreateConnection(ctx, db, requesterID, targetID, status)
}

func (GormConnectionRepo) Get(ctx context.Context, db *gorm.DB, id string) (*domain.ConnectionRequest, error) {
	return repo.GetConnection(ctx, db, id)
}

func (GormConnectionRepo) GetByPair(ctx context.Context, db *gorm.DB, a, b string) (*domain.ConnectionRequest, error) {
	return repo.GetConnectionByPair(ctx, db, a, b)
}

func (GormConnectionRepo) UpdateStatus(ctx context.Context, db *gorm.DB, id, expectedStatus, newStatus string, resolved *time.Time) error {
	return repo.UpdateStatus(ctx, db, id, expectedStatus, newStatus, resolved)
}

func (GormConnectionRepo) Rerequest(ctx context.Context, db *gorm.DB, id, expectedStatus, requesterID, targetID string) error {
	return repo.Rerequest(ctx, db, id, expectedStatus, requesterID, targetID)
}

func (GormConnectionRepo) ListAccepted(ctx context.Context, db *gorm.DB, identityID string) ([]domain.ConnectionRequest, error) {
	return repo.ListAccepted(ctx, db, identityID)
}

// GormValueRepo adapts the repo package to ValueRepo.
type GormValueRepo struct{}

func (GormValueRepo) CountAccepted(ctx context.Context, db *gorm.DB, identityID string) (int64, error) {
	return repo.CountAccepted(ctx, db, identityID)
}

func (GormValueRepo) GetValue(ctx context.Context, db *gorm.DB, identityID string) (float64, error) {
	return repo.GetValue(ctx, db, identityID)
}

func (GormValueRepo) UpsertValue(ctx context.Context, db *gorm.DB, identityID string, value float64) error {
	return repo.UpsertValue(ctx, db, identityID, value)
}
