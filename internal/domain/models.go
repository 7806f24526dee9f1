// Package domain defines the persistence models for connection requests and
// network value records. These types are mapped with GORM and form the core
// data layer of the networking backend.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// pairNamespace is the UUIDv5 namespace for deterministic connection IDs.
// It must never change once data exists: the primary key of every
// ConnectionRequest row is derived from it.
var pairNamespace = uuid.MustParse("b7a9c0de-55c1-4f92-9a35-1d6f3a70c4e2")

// PairID derives the deterministic ID for the unordered identity pair (a, b).
// Both argument orders yield the same UUID, which makes duplicate-request
// detection a primary-key lookup instead of a scan.
func PairID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return uuid.NewSHA1(pairNamespace, []byte(a+"\x00"+b)).String()
}

// ConnectionRequest represents a request-to-connect between two identities.
// A single row exists per unordered pair; its primary key is PairID of the
// two identities. The row is created on request and mutated only by state
// transitions (see state.go), each performed as a conditional write.
//
// Fields:
//   - ID: deterministic pair UUID primary key (char(36)).
//   - RequesterID / TargetID: the identities on each side of the current
//     request. On a re-request after rejection or removal the roles may swap.
//   - Status: current lifecycle state (see Status* constants).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - ResolvedAt: set when the request reaches ACCEPTED or REJECTED.
type ConnectionRequest struct {
	ID          string     `json:"id"           gorm:"type:char(36);primaryKey"`
	RequesterID string     `json:"requester_id" gorm:"type:varchar(64);not null;index:idx_conn_requester"`
	TargetID    string     `json:"target_id"    gorm:"type:varchar(64);not null;index:idx_conn_target"`
	Status      string     `json:"status"       gorm:"type:varchar(16);not null;index:idx_conn_status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// TableName returns the database table name for ConnectionRequest.
func (ConnectionRequest) TableName() string { return "connections" }

// Involves reports whether identityID is one of the two parties.
func (c *ConnectionRequest) Involves(identityID string) bool {
	return c.RequesterID == identityID || c.TargetID == identityID
}

// PeerOf returns the other party of the pair, or "" when identityID is not
// part of the connection.
func (c *ConnectionRequest) PeerOf(identityID string) string {
	switch identityID {
	case c.RequesterID:
		return c.TargetID
	case c.TargetID:
		return c.RequesterID
	}
	return ""
}

// ValueRecord holds the derived network value of one identity. It is written
// only by the value propagator and read by anyone needing the current score.
type ValueRecord struct {
	IdentityID string    `json:"identity_id" gorm:"type:varchar(64);primaryKey"`
	Value      float64   `json:"value"       gorm:"not null;default:0"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for ValueRecord.
func (ValueRecord) TableName() string { return "value_records" }
