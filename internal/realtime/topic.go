// Package realtime implements the process-local half of event distribution:
// topics, live sessions, the subscription registry, and the broadcaster that
// bridges local delivery with the shared cross-process broker.
package realtime

import (
	"errors"
	"fmt"
	"strings"
)

// TopicKind discriminates the closed set of topic variants.
type TopicKind string

// The three topic kinds sessions may subscribe to.
const (
	TopicUser     TopicKind = "user"
	TopicIndustry TopicKind = "industry"
	TopicInvite   TopicKind = "invite"
)

// ErrInvalidTopic is returned by ParseTopic for malformed encodings.
var ErrInvalidTopic = errors.New("invalid topic")

// Topic is a named delivery channel: per-user, per-industry, or per-invite.
// It is a pure value; two topics are equal when kind and id match, which
// makes Topic usable directly as a map key.
type Topic struct {
	Kind TopicKind
	ID   string
}

// UserTopic addresses events at one identity.
func UserTopic(identityID string) Topic { return Topic{Kind: TopicUser, ID: identityID} }

// IndustryTopic addresses events at every subscriber of an industry.
func IndustryTopic(name string) Topic { return Topic{Kind: TopicIndustry, ID: name} }

// InviteTopic addresses events at watchers of one invite.
func InviteTopic(inviteID string) Topic { return Topic{Kind: TopicInvite, ID: inviteID} }

// String encodes the topic as "<kind>:<id>", the form used for broker
// envelopes and log fields.
func (t Topic) String() string { return fmt.Sprintf("%s:%s", t.Kind, t.ID) }

// Valid reports whether the topic has a known kind and a non-empty id.
func (t Topic) Valid() bool {
	switch t.Kind {
	case TopicUser, TopicIndustry, TopicInvite:
		return t.ID != ""
	}
	return false
}

// ParseTopic decodes the "<kind>:<id>" form produced by String.
func ParseTopic(s string) (Topic, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, s)
	}
	t := Topic{Kind: TopicKind(kind), ID: id}
	if !t.Valid() {
		return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, s)
	}
	return t, nil
}
