// Package repo – ValueRecord persistence.
//
// GetValue returns 0 for identities that have never had a value computed,
// so the propagator can always diff against "previous value" without a
// special first-run path. UpsertValue writes the new score in one statement.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/provell/go-network-backend/internal/domain"
)

// GetValue returns the identity's current network value, or 0 when no
// record exists yet.
func GetValue(ctx context.Context, db *gorm.DB, identityID string) (float64, error) {
	var rec domain.ValueRecord
	err := db.WithContext(ctx).First(&rec, "identity_id = ?", identityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Value, nil
}

// UpsertValue inserts or overwrites the identity's value record.
func UpsertValue(ctx context.Context, db *gorm.DB, identityID string, value float64) error {
	rec := domain.ValueRecord{
		IdentityID: identityID,
		Value:      value,
		UpdatedAt:  time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rec).Error
}
