// Package httpserver implements the HTTP/JSON API for the feed service.
//
// All routes expect an x-user-id header forwarded by the Gateway; the
// x-user-role header selects the expansion eligibility class.
//
// Routes:
//
//	POST /feed           → start a load cycle (supersedes the previous one)
//	GET  /feed           → poll session status / committed page
//	POST /feed/location  → finalize the resolved device coordinate
//	POST /feed/images    → report image load completions
//	POST /feed/more      → append the next page
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"servimap/feed-service/internal/feed"
	"servimap/feed-service/internal/model"
	"servimap/feed-service/internal/warmer"
)

// Handler holds shared dependencies.
type Handler struct {
	sessions *Sessions
	tracker  *warmer.Tracker // optional; records fingerprints for warming
}

// NewHandler returns a configured Handler. tracker may be nil.
func NewHandler(sessions *Sessions, tracker *warmer.Tracker) *Handler {
	return &Handler{sessions: sessions, tracker: tracker}
}

// RegisterRoutes mounts all feed routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/feed", h.handleFeed)
	mux.HandleFunc("/feed/", h.handleFeedAction)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleFeed handles POST /feed and GET /feed.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.beginFeed(w, r)
	case http.MethodGet:
		h.feedStatus(w, r)
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFeedAction handles POST /feed/{action}.
func (h *Handler) handleFeedAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	switch action := parts[1]; action {
	case "location":
		h.finalizeLocation(w, r)
	case "images":
		h.imagesReady(w, r)
	case "more":
		h.loadMore(w, r)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) beginFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Filters       model.Filters   `json:"filters"`
		Location      *model.GeoPoint `json:"location,omitempty"`
		LocationFinal bool            `json:"locationFinal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	role := model.Role(r.Header.Get("x-user-role"))
	if role == "" {
		role = model.RoleCustomer
	}

	ctrl := h.sessions.For(userID)
	res := ctrl.Begin(r.Context(), role, body.Filters, body.Location, body.LocationFinal)

	if h.tracker != nil {
		// Non-fatal: warming is an optimization, not a dependency.
		if err := h.tracker.Touch(r.Context(), res.Fingerprint, body.Filters, body.Location); err != nil {
			log.Printf("[feed] warm tracker touch failed: %v", err)
		}
	}

	jsonOK(w, map[string]any{
		"cycleId":     res.CycleID,
		"fingerprint": res.Fingerprint,
		"snapshot":    res.Snapshot,
	})
}

func (h *Handler) feedStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	st, err := h.sessions.For(userID).Status()
	if errors.Is(err, feed.ErrNoActiveCycle) {
		jsonError(w, "no feed session", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[feed] status error: %v", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, st)
}

func (h *Handler) finalizeLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Location *model.GeoPoint `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	fp, err := h.sessions.For(userID).FinalizeLocation(body.Location)
	if errors.Is(err, feed.ErrNoActiveCycle) {
		jsonError(w, "no feed session", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[feed] finalize location error: %v", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]string{"fingerprint": fp})
}

func (h *Handler) imagesReady(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		CycleID uint64   `json:"cycleId"`
		IDs     []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		jsonError(w, "body must contain cycleId and ids", http.StatusBadRequest)
		return
	}

	ctrl := h.sessions.For(userID)
	for _, id := range body.IDs {
		ctrl.ImageReady(body.CycleID, id)
	}
	jsonOK(w, map[string]int{"accepted": len(body.IDs)})
}

func (h *Handler) loadMore(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ctrl := h.sessions.For(userID)
	appended, hasMore, err := ctrl.LoadMore(r.Context())
	switch {
	case errors.Is(err, feed.ErrNotCommitted):
		jsonError(w, "feed not committed yet", http.StatusConflict)
		return
	case errors.Is(err, feed.ErrNoMorePages):
		jsonOK(w, map[string]any{"items": []model.Listing{}, "hasMore": false})
		return
	case errors.Is(err, feed.ErrLoadInProgress):
		jsonError(w, "page load already in progress", http.StatusConflict)
		return
	case errors.Is(err, feed.ErrSuperseded):
		jsonError(w, "feed superseded during page load", http.StatusConflict)
		return
	case err != nil:
		// Accumulated pages are preserved; the client keeps its content
		// and may retry.
		log.Printf("[feed] load more error: %v", err)
		jsonError(w, "page load failed", http.StatusBadGateway)
		return
	}

	jsonOK(w, map[string]any{"items": appended, "hasMore": hasMore})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
