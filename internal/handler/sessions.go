package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meja-pos/composer-gateway/internal/composer"
	"github.com/meja-pos/composer-gateway/internal/menu"
	"github.com/meja-pos/composer-gateway/internal/session"
	"github.com/meja-pos/composer-gateway/internal/upstream"
	"github.com/meja-pos/composer-gateway/internal/ws"
)

// ItemFinder resolves catalog items for the add-line endpoint.
// Satisfied by *menu.Store; narrow interface for testability.
type ItemFinder interface {
	FindItem(id string) (*menu.MenuItem, bool)
}

// Broadcaster fans saved-order events out to the terminals watching a table.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToTable(table string, event ws.Event)
}

// SessionHandler exposes composer sessions over HTTP: one session per open
// order screen.
type SessionHandler struct {
	sessions *session.Manager
	catalog  ItemFinder
	hub      Broadcaster
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Manager, catalog ItemFinder, hub Broadcaster) *SessionHandler {
	return &SessionHandler{sessions: sessions, catalog: catalog, hub: hub}
}

// RegisterRoutes registers session endpoints on the given Chi router.
// Expected to be mounted at /sessions
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/{sid}", h.State)
	r.Delete("/{sid}", h.Close)
	r.Post("/{sid}/lines", h.AddLine)
	r.Patch("/{sid}/lines/{idx}", h.UpdateLine)
	r.Delete("/{sid}/lines/{idx}", h.RemoveLine)
	r.Post("/{sid}/save", h.Save)
}

// --- Request / Response types ---

type openSessionRequest struct {
	OrderID string `json:"order_id"`
}

type addLineRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Size       string `json:"size"`
}

type updateLineRequest struct {
	Quantity *int32  `json:"quantity"`
	Notes    *string `json:"notes"`
}

type lineResponse struct {
	MenuItemID *string `json:"menu_item_id"`
	Name       string  `json:"name"`
	Size       string  `json:"size"`
	Quantity   int32   `json:"quantity"`
	Notes      string  `json:"notes"`
	Confirmed  bool    `json:"confirmed"`
	UnitPrice  string  `json:"unit_price"`
	Subtotal   string  `json:"subtotal"`
}

type sessionStateResponse struct {
	SessionID         uuid.UUID      `json:"session_id"`
	OrderID           string         `json:"order_id,omitempty"`
	TableName         string         `json:"table_name,omitempty"`
	Customer          string         `json:"customer,omitempty"`
	Deposit           string         `json:"deposit"`
	Lines             []lineResponse `json:"lines"`
	Subtotal          string         `json:"subtotal"`
	HasPendingChanges bool           `json:"has_pending_changes"`
}

type saveResponse struct {
	OrderID        string `json:"order_id"`
	SubmittedCount int    `json:"submitted_count"`
}

type openedEventPayload struct {
	OrderID   string `json:"order_id"`
	TableName string `json:"table_name"`
}

type savedEventPayload struct {
	OrderID   string           `json:"order_id"`
	TableName string           `json:"table_name"`
	Items     []savedEventItem `json:"items"`
}

type savedEventItem struct {
	DishID   uuid.UUID `json:"dish_id"`
	SizeID   uuid.UUID `json:"size_id"`
	Quantity int32     `json:"quantity"`
	Notes    string    `json:"notes"`
}

// --- Handlers ---

// Open handles POST /sessions. An empty order_id opens a composer for a new
// order with an empty store; otherwise the store is reconciled against the
// server before the session is returned.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	sid, c, err := h.sessions.Open(callerContext(r), req.OrderID)
	if err != nil {
		// Load failure: nothing is retained, the terminal retries by reopening.
		writeUpstreamError(w, "open session", err)
		return
	}

	if table := c.TableName(); table != "" {
		h.broadcastOpened(table, c.OrderID())
	}

	writeJSON(w, http.StatusCreated, stateResponse(sid, c))
}

// State handles GET /sessions/{sid}.
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	sid, c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(sid, c))
}

// Close handles DELETE /sessions/{sid}. Cancelling discards pending lines
// with no network effect.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	sid, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}
	if !h.sessions.Close(sid) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddLine handles POST /sessions/{sid}/lines.
func (h *SessionHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	sid, c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.MenuItemID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "menu_item_id is required"})
		return
	}
	if req.Size == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "size is required"})
		return
	}

	item, found := h.catalog.FindItem(req.MenuItemID)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
		return
	}
	if _, found := item.SizeByName(req.Size); !found {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "size does not belong to menu item"})
		return
	}

	c.AddLine(item, req.Size)
	writeJSON(w, http.StatusOK, stateResponse(sid, c))
}

// UpdateLine handles PATCH /sessions/{sid}/lines/{idx}. Quantity and notes
// may be patched independently. Edits against confirmed lines are no-ops:
// the state comes back unchanged rather than as an error.
func (h *SessionHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	sid, c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	idx, ok := lineIndex(w, r)
	if !ok {
		return
	}

	var req updateLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Quantity == nil && req.Notes == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity or notes is required"})
		return
	}

	if req.Notes != nil {
		if err := c.SetNotes(idx, *req.Notes); err != nil {
			writeLineError(w, err)
			return
		}
	}
	if req.Quantity != nil {
		if err := c.SetQuantity(idx, *req.Quantity); err != nil {
			writeLineError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, stateResponse(sid, c))
}

// RemoveLine handles DELETE /sessions/{sid}/lines/{idx}.
func (h *SessionHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	sid, c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	idx, ok := lineIndex(w, r)
	if !ok {
		return
	}

	if err := c.RemoveLine(idx); err != nil {
		writeLineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(sid, c))
}

// Save handles POST /sessions/{sid}/save. Exactly the pending lines go to
// the server in one batch; nothing pending is a success with no network
// call. On success the session is discarded — the screen reopens with a
// fresh reconciliation load. On failure the session and its pending lines
// survive for a retry.
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	sid, c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	result, err := c.Save(callerContext(r))
	if err != nil {
		if errors.Is(err, composer.ErrSaveInFlight) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "save already in progress"})
			return
		}
		if errors.Is(err, composer.ErrNoOrder) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "session has no order to submit to"})
			return
		}
		writeUpstreamError(w, "save order", err)
		return
	}

	h.sessions.Close(sid)

	if len(result.Items) > 0 && c.TableName() != "" {
		h.broadcastSaved(c.TableName(), result)
	}

	writeJSON(w, http.StatusOK, saveResponse{
		OrderID:        result.OrderID,
		SubmittedCount: len(result.Items),
	})
}

// --- Helpers ---

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (uuid.UUID, *composer.Composer, bool) {
	sid, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return uuid.Nil, nil, false
	}
	c, ok := h.sessions.Get(sid)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return uuid.Nil, nil, false
	}
	return sid, c, true
}

func (h *SessionHandler) broadcastOpened(table, orderID string) {
	payload, err := json.Marshal(openedEventPayload{OrderID: orderID, TableName: table})
	if err != nil {
		log.Printf("ERROR: marshal opened event: %v", err)
		return
	}
	h.hub.BroadcastToTable(table, ws.Event{Type: ws.EventSessionOpened, Payload: payload})
}

func (h *SessionHandler) broadcastSaved(table string, result *composer.SaveResult) {
	items := make([]savedEventItem, len(result.Items))
	for i, it := range result.Items {
		items[i] = savedEventItem{
			DishID:   it.DishID,
			SizeID:   it.SizeID,
			Quantity: it.Quantity,
			Notes:    it.Notes,
		}
	}
	payload, err := json.Marshal(savedEventPayload{
		OrderID:   result.OrderID,
		TableName: table,
		Items:     items,
	})
	if err != nil {
		log.Printf("ERROR: marshal saved event: %v", err)
		return
	}
	h.hub.BroadcastToTable(table, ws.Event{Type: ws.EventOrderSaved, Payload: payload})
}

func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil || idx < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line index"})
		return 0, false
	}
	return idx, true
}

func writeLineError(w http.ResponseWriter, err error) {
	if errors.Is(err, composer.ErrLineIndex) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "line not found"})
		return
	}
	log.Printf("ERROR: line mutation: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// writeUpstreamError maps a backend failure to a gateway response, keeping
// the server's message text when there is one.
func writeUpstreamError(w http.ResponseWriter, op string, err error) {
	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		msg := upErr.Message
		if msg == "" {
			msg = "order service error"
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": msg})
		return
	}
	log.Printf("ERROR: %s: %v", op, err)
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "order service unavailable"})
}

// callerContext forwards the caller's bearer token so the backend can
// enforce authorization; the gateway itself never validates tokens.
func callerContext(r *http.Request) context.Context {
	return upstream.WithToken(r.Context(), r.Header.Get("Authorization"))
}

func stateResponse(sid uuid.UUID, c *composer.Composer) sessionStateResponse {
	lines := c.Lines()
	resp := sessionStateResponse{
		SessionID:         sid,
		OrderID:           c.OrderID(),
		TableName:         c.TableName(),
		Customer:          c.Customer(),
		Deposit:           c.Deposit().StringFixed(2),
		Lines:             make([]lineResponse, len(lines)),
		Subtotal:          c.Subtotal().StringFixed(2),
		HasPendingChanges: c.HasPendingChanges(),
	}
	for i, l := range lines {
		lr := lineResponse{
			Size:      l.Size,
			Quantity:  l.Quantity,
			Notes:     l.Notes,
			Confirmed: l.Confirmed,
			UnitPrice: l.UnitPrice().StringFixed(2),
			Subtotal:  l.Subtotal().StringFixed(2),
		}
		if l.Item != nil {
			lr.Name = l.Item.Name
			if !l.Item.IsPlaceholder() {
				s := l.Item.ID.String()
				lr.MenuItemID = &s
			}
		}
		resp.Lines[i] = lr
	}
	return resp
}
