// Package services – ConnectionService
//
// This file implements the connection-request state machine. Every
// transition is authorized against the acting identity, performed as a
// conditional write (first writer wins; the loser observes ErrStaleState),
// and followed by the events the rest of the system depends on: targeted
// networkUpdate frames for the parties involved and, after an accept or
// removal, value recomputation for both sides.
//
// Service-level errors (e.g. ErrDuplicateConnection) are returned for
// predictable cases so the transport can map them to stable wire codes.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/provell/go-network-backend/internal/domain"
	"github.com/provell/go-network-backend/internal/realtime"
	"github.com/provell/go-network-backend/internal/repo"
)

// ConnectionRepo defines the repository contract required by
// ConnectionService. Implementations persist ConnectionRequest aggregates
// and provide the conditional writes that serialize racing transitions.
type ConnectionRepo interface {
	// Create inserts a new request row with the deterministic pair ID.
	Create(ctx context.Context, db *gorm.DB, requesterID, targetID, status string) (*domain.ConnectionRequest, error)

	// Get fetches a request by ID.
	Get(ctx context.Context, db *gorm.DB, id string) (*domain.ConnectionRequest, error)

	// GetByPair fetches the row for the unordered pair.
	GetByPair(ctx context.Context, db *gorm.DB, a, b string) (*domain.ConnectionRequest, error)

	// UpdateStatus performs the conditional status transition.
	UpdateStatus(ctx context.Context, db *gorm.DB, id, expectedStatus, newStatus string, resolved *time.Time) error

	// Rerequest resurrects a rejected, removed, or orphaned initiated row
	// back to pending.
	Rerequest(ctx context.Context, db *gorm.DB, id, expectedStatus, requesterID, targetID string) error

	// ListAccepted enumerates the identity's accepted connections.
	ListAccepted(ctx context.Context, db *gorm.DB, identityID string) ([]domain.ConnectionRequest, error)
}

// ValuePropagator is the slice of ValueService the state machine needs.
type ValuePropagator interface {
	Recompute(ctx context.Context, identityID string) (float64, error)
	CurrentValue(ctx context.Context, identityID string) (float64, error)
}

// ConnectionService drives the connection lifecycle.
type ConnectionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the connection repository used by this service.
	Repo ConnectionRepo
	// Values recomputes network values after accept and removal.
	Values ValuePropagator
	// Bus publishes networkUpdate events; nil disables emission.
	Bus realtime.Publisher
}

// NewConnectionService constructs a ConnectionService.
func NewConnectionService(db *gorm.DB, r ConnectionRepo, values ValuePropagator, bus realtime.Publisher) *ConnectionService {
	return &ConnectionService{DB: db, Repo: r, Values: values, Bus: bus}
}

// Request creates (or resurrects) a pending connection request from
// requesterID to targetID and notifies the target. The request persists as
// INITIATED and is advanced to PENDING before the notification goes out.
//
// Fails with ErrSelfConnection when both ids match, ErrDuplicateConnection
// while a pending or accepted request exists for the pair, and
// ErrConnectionBlocked while the pair is blocked.
func (s *ConnectionService) Request(ctx context.Context, requesterID, targetID string) (*domain.ConnectionRequest, error) {
	if requesterID == targetID {
		return nil, ErrSelfConnection
	}

	existing, err := s.Repo.GetByPair(ctx, s.DB, requesterID, targetID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c, createErr := s.Repo.Create(ctx, s.DB, requesterID, targetID, domain.StatusInitiated)
		if createErr == nil {
			if err := s.Repo.UpdateStatus(ctx, s.DB, c.ID, domain.StatusInitiated, domain.StatusPending, nil); err != nil {
				return nil, s.translate(err)
			}
			c.Status = domain.StatusPending
			s.notifyPending(ctx, c)
			return c, nil
		}
		// Create only collides on the pair primary key when a racing
		// request won. Re-fetch to tell that apart from a store outage:
		// a row that is actually there gets a state-machine answer,
		// anything else propagates the infrastructure error.
		existing, err = s.Repo.GetByPair(ctx, s.DB, requesterID, targetID)
		if err != nil {
			return nil, createErr
		}

	case err != nil:
		return nil, err
	}

	if existing.Status == domain.StatusBlocked {
		return nil, ErrConnectionBlocked
	}
	if domain.BlocksNewRequest(existing.Status) {
		return nil, ErrDuplicateConnection
	}

	// Rejected, removed, or an initiated row orphaned by a writer that
	// crashed before the advance: resurrect the pair row under the new
	// orientation. The conditional write decides any race with the
	// original writer.
	if err := s.Repo.Rerequest(ctx, s.DB, existing.ID, existing.Status, requesterID, targetID); err != nil {
		return nil, s.translate(err)
	}
	existing.Status = domain.StatusPending
	existing.RequesterID = requesterID
	existing.TargetID = targetID
	existing.ResolvedAt = nil
	s.notifyPending(ctx, existing)
	return existing, nil
}

// Accept transitions a PENDING request to ACCEPTED. Only the target of the
// request may accept. On success both parties' values are recomputed and a
// networkUpdate carrying the accepted edge goes to both user topics and to
// each of the supplied industry topics.
func (s *ConnectionService) Accept(ctx context.Context, connectionID, actorID string, industries []string) (*domain.ConnectionRequest, error) {
	c, err := s.authorize(ctx, connectionID, actorID, domain.StatusPending)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, s.DB, c.ID, domain.StatusPending, domain.StatusAccepted, &now); err != nil {
		return nil, s.translate(err)
	}
	c.Status = domain.StatusAccepted
	c.ResolvedAt = &now

	// Value recomputation emits networkValueChange for each side whose
	// value actually moved.
	if s.Values != nil {
		if _, err := s.Values.Recompute(ctx, c.RequesterID); err != nil {
			return c, err
		}
		if _, err := s.Values.Recompute(ctx, c.TargetID); err != nil {
			return c, err
		}
	}

	update := s.linkUpdate(ctx, c)
	s.publishToParties(ctx, c, update)
	for _, industry := range industries {
		scoped := update
		scoped.Industry = industry
		s.publish(ctx, realtime.IndustryTopic(industry), scoped)
	}
	return c, nil
}

// Reject transitions a PENDING request to REJECTED and tells both parties
// to drop the pending edge from their views. Only the target may reject;
// no value change occurs.
func (s *ConnectionService) Reject(ctx context.Context, connectionID, actorID string) (*domain.ConnectionRequest, error) {
	c, err := s.authorize(ctx, connectionID, actorID, domain.StatusPending)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, s.DB, c.ID, domain.StatusPending, domain.StatusRejected, &now); err != nil {
		return nil, s.translate(err)
	}
	c.Status = domain.StatusRejected
	c.ResolvedAt = &now

	s.publishToParties(ctx, c, s.linkUpdate(ctx, c))
	return c, nil
}

// Remove transitions an ACCEPTED connection to REMOVED. Either party may
// remove. Both values are recomputed since the accepted count changed.
func (s *ConnectionService) Remove(ctx context.Context, connectionID, actorID string) (*domain.ConnectionRequest, error) {
	c, err := s.Repo.Get(ctx, s.DB, connectionID)
	if err != nil {
		return nil, s.translate(err)
	}
	if !c.Involves(actorID) || c.Status != domain.StatusAccepted {
		return nil, ErrUnauthorizedTransition
	}

	if err := s.Repo.UpdateStatus(ctx, s.DB, c.ID, domain.StatusAccepted, domain.StatusRemoved, nil); err != nil {
		return nil, s.translate(err)
	}
	c.Status = domain.StatusRemoved

	if s.Values != nil {
		if _, err := s.Values.Recompute(ctx, c.RequesterID); err != nil {
			return c, err
		}
		if _, err := s.Values.Recompute(ctx, c.TargetID); err != nil {
			return c, err
		}
	}
	s.publishToParties(ctx, c, s.linkUpdate(ctx, c))
	return c, nil
}

// Block transitions a REJECTED request to BLOCKED. Blocking is an explicit
// act of the identity who rejected (the target of the rejected request).
func (s *ConnectionService) Block(ctx context.Context, connectionID, actorID string) (*domain.ConnectionRequest, error) {
	c, err := s.authorize(ctx, connectionID, actorID, domain.StatusRejected)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateStatus(ctx, s.DB, c.ID, domain.StatusRejected, domain.StatusBlocked, nil); err != nil {
		return nil, s.translate(err)
	}
	c.Status = domain.StatusBlocked
	return c, nil
}

// Unblock returns a BLOCKED pair to PENDING. Only the blocker may unblock.
func (s *ConnectionService) Unblock(ctx context.Context, connectionID, actorID string) (*domain.ConnectionRequest, error) {
	c, err := s.authorize(ctx, connectionID, actorID, domain.StatusBlocked)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateStatus(ctx, s.DB, c.ID, domain.StatusBlocked, domain.StatusPending, nil); err != nil {
		return nil, s.translate(err)
	}
	c.Status = domain.StatusPending
	s.notifyPending(ctx, c)
	return c, nil
}

// Snapshot builds the identity's ego network for one industry: the
// identity itself plus each accepted peer, with current values, and the
// accepted edges between them. Used to answer subscribeToNetwork.
func (s *ConnectionService) Snapshot(ctx context.Context, identityID, industry string) (realtime.NetworkUpdate, error) {
	accepted, err := s.Repo.ListAccepted(ctx, s.DB, identityID)
	if err != nil {
		return realtime.NetworkUpdate{}, err
	}

	nodes := []realtime.NetworkNode{{ID: identityID, Value: s.valueOf(ctx, identityID)}}
	links := make([]realtime.NetworkLink, 0, len(accepted))
	for _, c := range accepted {
		peer := c.PeerOf(identityID)
		nodes = append(nodes, realtime.NetworkNode{ID: peer, Value: s.valueOf(ctx, peer)})
		links = append(links, realtime.NetworkLink{Source: c.RequesterID, Target: c.TargetID, Status: c.Status})
	}
	return realtime.NetworkUpdate{Nodes: nodes, Links: links, Industry: industry}, nil
}

// authorize loads the connection and verifies that actorID is its target
// and the status matches. Authorization failures and wrong-state calls
// both map to ErrUnauthorizedTransition; the conditional write still
// decides races that happen after this read.
func (s *ConnectionService) authorize(ctx context.Context, connectionID, actorID, wantStatus string) (*domain.ConnectionRequest, error) {
	c, err := s.Repo.Get(ctx, s.DB, connectionID)
	if err != nil {
		return nil, s.translate(err)
	}
	if actorID != c.TargetID || c.Status != wantStatus {
		return nil, ErrUnauthorizedTransition
	}
	return c, nil
}

// translate maps repository sentinels onto service errors.
func (s *ConnectionService) translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrConnectionNotFound
	case errors.Is(err, repo.ErrStaleUpdate):
		return ErrStaleState
	}
	return err
}

// linkUpdate builds the two-node graph fragment describing the current
// state of the connection's edge.
func (s *ConnectionService) linkUpdate(ctx context.Context, c *domain.ConnectionRequest) realtime.NetworkUpdate {
	return realtime.NetworkUpdate{
		Nodes: []realtime.NetworkNode{
			{ID: c.RequesterID, Value: s.valueOf(ctx, c.RequesterID)},
			{ID: c.TargetID, Value: s.valueOf(ctx, c.TargetID)},
		},
		Links: []realtime.NetworkLink{
			{Source: c.RequesterID, Target: c.TargetID, Status: c.Status},
		},
	}
}

// notifyPending emits the pending-request notification to the target.
func (s *ConnectionService) notifyPending(ctx context.Context, c *domain.ConnectionRequest) {
	s.publish(ctx, realtime.UserTopic(c.TargetID), s.linkUpdate(ctx, c))
}

// publishToParties sends the update to both sides of the pair.
func (s *ConnectionService) publishToParties(ctx context.Context, c *domain.ConnectionRequest, update realtime.NetworkUpdate) {
	s.publish(ctx, realtime.UserTopic(c.RequesterID), update)
	s.publish(ctx, realtime.UserTopic(c.TargetID), update)
}

func (s *ConnectionService) publish(ctx context.Context, topic realtime.Topic, update realtime.NetworkUpdate) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(ctx, topic, realtime.Event{Name: realtime.EventNetworkUpdate, Data: update})
}

// valueOf reads an identity's current value, treating read failures as 0;
// node values are decoration on the graph, not the value of record.
func (s *ConnectionService) valueOf(ctx context.Context, identityID string) float64 {
	if s.Values == nil {
		return 0
	}
	v, err := s.Values.CurrentValue(ctx, identityID)
	if err != nil {
		return 0
	}
	return v
}
