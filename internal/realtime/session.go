// Package realtime – sessions.
//
// A Session is the server-side representation of one live client
// connection. It is owned exclusively by the process that holds the
// connection and is destroyed on disconnect; nothing about it is shared
// across processes.
package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session carries the admitted identity, its topic-authorizing claims, and
// the buffered outbound queue drained by the connection's write pump.
type Session struct {
	// ID uniquely identifies this connection (one identity may hold many).
	ID string
	// IdentityID is the authenticated identity behind the connection.
	IdentityID string
	// Industries the identity may subscribe to, from the admit-time claims.
	Industries []string
	// Invites the identity owns, from the admit-time claims.
	Invites []string
	// ConnectedAt records admission time.
	ConnectedAt time.Time

	send      chan Event
	errorCnt  atomic.Int32
	closeOnce sync.Once
	done      chan struct{}
}

// NewSession constructs a Session with a send buffer of the given size.
func NewSession(identityID string, industries, invites []string, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		ID:          uuid.NewString(),
		IdentityID:  identityID,
		Industries:  industries,
		Invites:     invites,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan Event, buffer),
		done:        make(chan struct{}),
	}
}

// Enqueue places an event on the session's outbound queue without blocking.
// It reports false when the session is closed or its buffer is full; a full
// buffer drops this frame only, isolating the slow consumer from every
// other recipient.
func (s *Session) Enqueue(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- ev:
		return true
	default:
		return false
	}
}

// Outbound exposes the queue drained by the write pump.
func (s *Session) Outbound() <-chan Event { return s.send }

// Done is closed when the session is terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close marks the session terminated. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// RecordError increments the session's error count and returns the total.
// The transport closes sessions whose count passes its threshold.
func (s *Session) RecordError() int { return int(s.errorCnt.Add(1)) }

// ErrorCount returns the number of errors reported on this session.
func (s *Session) ErrorCount() int { return int(s.errorCnt.Load()) }

// HasIndustry reports whether the session's claims include the industry.
func (s *Session) HasIndustry(name string) bool {
	for _, ind := range s.Industries {
		if ind == name {
			return true
		}
	}
	return false
}

// OwnsInvite reports whether the session's claims include the invite.
func (s *Session) OwnsInvite(inviteID string) bool {
	for _, id := range s.Invites {
		if id == inviteID {
			return true
		}
	}
	return false
}

// Authorized reports whether the session may subscribe to topic: its own
// user topic, an industry from its claims, or an invite it owns.
func (s *Session) Authorized(t Topic) bool {
	switch t.Kind {
	case TopicUser:
		return t.ID == s.IdentityID
	case TopicIndustry:
		return s.HasIndustry(t.ID)
	case TopicInvite:
		return s.OwnsInvite(t.ID)
	}
	return false
}
