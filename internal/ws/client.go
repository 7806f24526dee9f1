// Package ws – per-connection pumps and frame dispatch.
package ws

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/provell/go-network-backend/internal/ratelimit"
	"github.com/provell/go-network-backend/internal/realtime"
	"github.com/provell/go-network-backend/internal/services"
	"github.com/provell/go-network-backend/internal/store"
)

const (
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second
	// pongWait is the idle window before a silent peer is dropped.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxFrameSize bounds inbound frames.
	maxFrameSize = 4096
)

// client binds one WebSocket connection to its session.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	sess *realtime.Session
	log  zerolog.Logger
}

func newClient(h *Hub, conn *websocket.Conn, sess *realtime.Session) *client {
	return &client{
		hub:  h,
		conn: conn,
		sess: sess,
		log: h.Log.With().
			Str("session_id", sess.ID).
			Str("identity_id", sess.IdentityID).
			Logger(),
	}
}

// writeAuthFailure emits the one error frame an unauthenticated peer gets.
func writeAuthFailure(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteJSON(realtime.ErrorEvent(realtime.CodeAuthenticationFailed, "authentication failed"))
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"),
		time.Now().Add(writeWait))
}

// readPump consumes inbound frames until the peer disconnects or the
// session closes. Frames are dispatched one at a time, so a session's
// commands apply in the order they were sent.
func (c *client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("abnormal close")
			}
			return
		}
		c.dispatch(ctx, raw)

		select {
		case <-c.sess.Done():
			return
		default:
		}
	}
}

// writePump drains the session's outbound queue onto the wire and keeps
// the connection alive with pings. It closes the connection when the
// session ends, which in turn unblocks the read pump.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.sess.Outbound():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				c.sess.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.sess.Close()
				return
			}
		case <-c.sess.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// dispatch runs one inbound frame through parse, rate limiting, and the
// matching service call.
func (c *client) dispatch(ctx context.Context, raw []byte) {
	frame, err := realtime.ParseClientFrame(raw)
	if err != nil {
		c.reportError(realtime.CodeBadRequest, err.Error())
		return
	}

	if err := c.hub.Limiter.TryConsume(ctx, c.sess.IdentityID, frame.Kind.Name()); err != nil {
		code, msg := wireError(err)
		c.reportError(code, msg)
		return
	}

	switch frame.Kind {
	case realtime.ClientSubscribeToNetwork:
		c.subscribe(ctx, frame.Industries)
	case realtime.ClientUnsubscribeFromNetwork:
		c.unsubscribe(frame.Industries)
	case realtime.ClientConnectionRequest:
		_, err = c.hub.Connections.Request(ctx, c.sess.IdentityID, frame.TargetID)
	case realtime.ClientConnectionAccept:
		_, err = c.hub.Connections.Accept(ctx, frame.ConnectionID, c.sess.IdentityID, c.sess.Industries)
	case realtime.ClientConnectionReject:
		_, err = c.hub.Connections.Reject(ctx, frame.ConnectionID, c.sess.IdentityID)
	case realtime.ClientInviteClick:
		_, err = c.hub.Clicks.RecordClick(ctx, frame.InviteID)
	}

	if err != nil {
		code, msg := wireError(err)
		c.reportError(code, msg)
	}
}

// subscribe joins each authorized industry topic and answers with that
// industry's current ego-network snapshot. Unauthorized industries are
// reported individually; the rest of the batch still applies.
func (c *client) subscribe(ctx context.Context, industries []string) {
	for _, industry := range industries {
		topic := realtime.IndustryTopic(industry)
		if !c.sess.Authorized(topic) {
			c.reportError(realtime.CodeUnauthorizedTopic, "not a member of industry "+industry)
			continue
		}
		c.hub.Registry.Subscribe(c.sess, topic)

		snap, err := c.hub.Connections.Snapshot(ctx, c.sess.IdentityID, industry)
		if err != nil {
			code, msg := wireError(err)
			c.reportError(code, msg)
			continue
		}
		c.sess.Enqueue(realtime.Event{Name: realtime.EventNetworkUpdate, Data: snap})
	}
}

func (c *client) unsubscribe(industries []string) {
	topics := make([]realtime.Topic, 0, len(industries))
	for _, industry := range industries {
		topics = append(topics, realtime.IndustryTopic(industry))
	}
	c.hub.Registry.Unsubscribe(c.sess, topics...)
}

// reportError queues an error frame and enforces the session error budget.
func (c *client) reportError(code, message string) {
	c.sess.Enqueue(realtime.ErrorEvent(code, message))
	if n := c.sess.RecordError(); n > c.hub.maxSessionErrors() {
		c.log.Warn().Int("errors", n).Msg("error budget exhausted")
		c.sess.Close()
	}
}

// wireError maps service and infrastructure errors onto stable wire codes.
func wireError(err error) (code, message string) {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		return realtime.CodeRateLimited, "rate limit exceeded"
	case errors.Is(err, services.ErrSelfConnection):
		return realtime.CodeSelfConnection, "cannot connect to yourself"
	case errors.Is(err, services.ErrDuplicateConnection):
		return realtime.CodeDuplicateConnection, "connection already exists"
	case errors.Is(err, services.ErrConnectionBlocked):
		return realtime.CodeConnectionBlocked, "connection is blocked"
	case errors.Is(err, services.ErrUnauthorizedTransition):
		return realtime.CodeUnauthorizedTransition, "not allowed to change this connection"
	case errors.Is(err, services.ErrStaleState):
		return realtime.CodeStaleState, "connection changed concurrently"
	case errors.Is(err, services.ErrConnectionNotFound):
		return realtime.CodeNotFound, "connection not found"
	case errors.Is(err, store.ErrUnavailable):
		return realtime.CodeStoreUnavailable, "datastore unavailable"
	}
	return realtime.CodeStoreUnavailable, "internal error"
}
