// Package handlers – invite click endpoints.
//
// Invite links are shared outside the product, so the click tracker has to
// work for visitors with no WebSocket session and no token. POST records a
// click and fans the running total out to the invite's subscribers; GET
// returns the current counters for dashboards.
package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/provell/go-network-backend/internal/services"
	"github.com/provell/go-network-backend/internal/store"
	"github.com/provell/go-network-backend/internal/utils"
)

// InviteHandler serves the invite click endpoints.
type InviteHandler struct {
	Clicks *services.ClickService
}

// NewInviteHandler constructs an InviteHandler.
func NewInviteHandler(clicks *services.ClickService) *InviteHandler {
	return &InviteHandler{Clicks: clicks}
}

// clickResponse is the JSON shape of a click snapshot.
type clickResponse struct {
	InviteID    string           `json:"invite_id"`
	TotalClicks int64            `json:"total_clicks"`
	Daily       map[string]int64 `json:"daily"`
}

func toClickResponse(s services.ClickSnapshot) clickResponse {
	return clickResponse{InviteID: s.InviteID, TotalClicks: s.TotalClicks, Daily: s.DailyBuckets}
}

// RecordClick handles POST /invites/:id/click.
//
// It increments the invite's counters and returns the updated snapshot.
// Subscribers of the invite's topic receive the inviteClicked event as a
// side effect.
func (h *InviteHandler) RecordClick(c *gin.Context) {
	inviteID := c.Param("id")
	if inviteID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invite id required")
		return
	}

	snap, err := h.Clicks.RecordClick(c.Request.Context(), inviteID)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "datastore unavailable")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not record click")
		return
	}
	ok(c, http.StatusOK, toClickResponse(snap))
}

// GetClicks handles GET /invites/:id/clicks.
//
// The optional ?days=N query keeps only the most recent N daily buckets in
// the response; the total is unaffected.
func (h *InviteHandler) GetClicks(c *gin.Context) {
	inviteID := c.Param("id")
	if inviteID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invite id required")
		return
	}

	snap, err := h.Clicks.Clicks(c.Request.Context(), inviteID)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "datastore unavailable")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read clicks")
		return
	}
	if days := utils.AtoiDefault(c.Query("days"), 0); days > 0 {
		snap.DailyBuckets = trimDaily(snap.DailyBuckets, days)
	}
	ok(c, http.StatusOK, toClickResponse(snap))
}

// trimDaily keeps the most recent n day buckets. Keys are yyyy-mm-dd, so
// lexicographic order is chronological order.
func trimDaily(daily map[string]int64, n int) map[string]int64 {
	if len(daily) <= n {
		return daily
	}
	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make(map[string]int64, n)
	for _, d := range days[len(days)-n:] {
		out[d] = daily[d]
	}
	return out
}
