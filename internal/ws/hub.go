// Package ws – WebSocket transport.
//
// The hub upgrades HTTP requests to WebSocket connections, gates each one
// behind a verified token, and hands the connection to a per-session
// read/write pump pair. The hub owns session lifecycle end to end: admit,
// auto-subscribe, dispatch, and teardown. Event routing itself lives in
// internal/realtime; business rules live in internal/services.
package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/provell/go-network-backend/internal/auth"
	"github.com/provell/go-network-backend/internal/ratelimit"
	"github.com/provell/go-network-backend/internal/realtime"
	"github.com/provell/go-network-backend/internal/services"
)

// Defaults applied when the corresponding Hub field is zero.
const (
	defaultSendBuffer       = 64
	defaultMaxSessionErrors = 10
)

// Hub accepts WebSocket connections and runs their sessions.
type Hub struct {
	// Registry tracks which local sessions subscribe to which topics.
	Registry *realtime.Registry
	// Bus fans events out locally and across processes.
	Bus realtime.Publisher
	// Verifier authenticates connection tokens.
	Verifier *auth.Verifier
	// Limiter throttles inbound frames per identity.
	Limiter *ratelimit.Limiter
	// Connections drives the connection-request state machine.
	Connections *services.ConnectionService
	// Clicks aggregates invite clicks.
	Clicks *services.ClickService
	// Log is the hub's base logger; sessions derive scoped loggers from it.
	Log zerolog.Logger

	// SendBuffer sizes each session's outbound queue.
	SendBuffer int
	// MaxSessionErrors closes a session once its error count passes it.
	MaxSessionErrors int
	// CheckOrigin overrides the upgrader's origin policy when set.
	CheckOrigin func(r *http.Request) bool
}

// NewHub constructs a Hub with default buffer and error-budget settings.
func NewHub(registry *realtime.Registry, bus realtime.Publisher, verifier *auth.Verifier, limiter *ratelimit.Limiter, conns *services.ConnectionService, clicks *services.ClickService, log zerolog.Logger) *Hub {
	return &Hub{
		Registry:         registry,
		Bus:              bus,
		Verifier:         verifier,
		Limiter:          limiter,
		Connections:      conns,
		Clicks:           clicks,
		Log:              log,
		SendBuffer:       defaultSendBuffer,
		MaxSessionErrors: defaultMaxSessionErrors,
	}
}

// Handler returns the gin handler for GET /ws. The HTTP request upgrades
// first so authentication failures can be reported in-band as an error
// frame before the transport closes.
func (h *Hub) Handler() gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.CheckOrigin,
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			h.Log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		h.serve(c, conn)
	}
}

// serve authenticates the connection and runs its pumps until disconnect.
func (h *Hub) serve(c *gin.Context, conn *websocket.Conn) {
	claims, err := h.admit(c)
	if err != nil {
		// One error frame, then a close frame. All authentication
		// failures collapse into a single opaque code.
		writeAuthFailure(conn)
		conn.Close()
		return
	}

	sess := realtime.NewSession(claims.IdentityID(), claims.Industries, claims.Invites, h.sendBuffer())
	cl := newClient(h, conn, sess)

	h.register(sess)
	realtime.SessionOpened()
	cl.log.Info().Msg("session admitted")

	go cl.writePump()
	cl.readPump(c.Request.Context())

	topics := len(h.Registry.Topics(sess))
	h.Registry.DropSession(sess)
	sess.Close()
	realtime.SessionClosed()
	cl.log.Info().
		Int("errors", sess.ErrorCount()).
		Int("topics", topics).
		Msg("session closed")
}

// admit extracts and verifies the connection token.
func (h *Hub) admit(c *gin.Context) (*auth.Claims, error) {
	token, err := auth.TokenFromRequest(c.GetHeader("Authorization"), c.Query("token"))
	if err != nil {
		return nil, err
	}
	return h.Verifier.Verify(token)
}

// register subscribes the new session to the topics its claims entitle it
// to without being asked: its own user topic and each owned invite.
func (h *Hub) register(sess *realtime.Session) {
	topics := []realtime.Topic{realtime.UserTopic(sess.IdentityID)}
	for _, inviteID := range sess.Invites {
		topics = append(topics, realtime.InviteTopic(inviteID))
	}
	h.Registry.Subscribe(sess, topics...)
}

func (h *Hub) sendBuffer() int {
	if h.SendBuffer > 0 {
		return h.SendBuffer
	}
	return defaultSendBuffer
}

func (h *Hub) maxSessionErrors() int {
	if h.MaxSessionErrors > 0 {
		return h.MaxSessionErrors
	}
	return defaultMaxSessionErrors
}
