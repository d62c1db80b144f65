package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/gym-booking-bot/internal/catalog"
	"github.com/wolfman30/gym-booking-bot/internal/conversation"
	"github.com/wolfman30/gym-booking-bot/internal/members"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

const msgMemberNotFound = "❌ 查無此會員資料，請確認後再試一次。"

type bookingEngine interface {
	Start(ctx context.Context, userID, displayName string) (conversation.Result, error)
	Handle(ctx context.Context, userID, text string) (conversation.Result, error)
	Cancel(ctx context.Context, userID string) (conversation.Result, error)
}

type memberDirectory interface {
	Lookup(ctx context.Context, keyword string) (members.Member, error)
}

type catalogProvider interface {
	Snapshot() *catalog.Catalog
	Refresh(ctx context.Context) (*catalog.Catalog, error)
}

type BookingHandlerConfig struct {
	Engine  bookingEngine
	Members memberDirectory
	Catalog catalogProvider
	Logger  *logging.Logger
}

// BookingHandler exposes the booking dialogue over JSON.
type BookingHandler struct {
	engine  bookingEngine
	members memberDirectory
	catalog catalogProvider
	logger  *logging.Logger
}

func NewBookingHandler(cfg BookingHandlerConfig) *BookingHandler {
	if cfg.Engine == nil {
		panic("handlers: booking engine required")
	}
	if cfg.Catalog == nil {
		panic("handlers: catalog provider required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &BookingHandler{
		engine:  cfg.Engine,
		members: cfg.Members,
		catalog: cfg.Catalog,
		logger:  cfg.Logger,
	}
}

type startRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	// Member is a member number or name resolved through the member sheet.
	Member string `json:"member"`
}

type messageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type startResponse struct {
	conversation.Result
	Member *members.Member `json:"member,omitempty"`
}

// Start opens a booking dialogue, resolving the member first when asked.
func (h *BookingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		jsonError(w, "user_id required", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Member) == "" && strings.TrimSpace(req.DisplayName) == "" {
		jsonError(w, "display_name or member required", http.StatusBadRequest)
		return
	}

	resp := startResponse{}
	name := req.DisplayName
	if strings.TrimSpace(req.Member) != "" {
		if h.members == nil {
			jsonError(w, "member lookup not configured", http.StatusNotImplemented)
			return
		}
		member, err := h.members.Lookup(r.Context(), req.Member)
		switch {
		case errors.Is(err, members.ErrMemberNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": "member not found",
				"reply": conversation.Reply{Kind: conversation.ReplyText, Text: msgMemberNotFound},
			})
			return
		case err != nil:
			h.logger.Error("member lookup failed", "user_id", req.UserID, "error", err)
			jsonError(w, "member lookup failed", http.StatusBadGateway)
			return
		}
		resp.Member = &member
		name = member.Name
	}

	result, err := h.engine.Start(r.Context(), req.UserID, name)
	if err != nil {
		h.logger.Error("booking start failed", "user_id", req.UserID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	resp.Result = result
	writeJSON(w, http.StatusOK, resp)
}

// Message feeds one chat message into the user's dialogue.
func (h *BookingHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		jsonError(w, "user_id required", http.StatusBadRequest)
		return
	}
	result, err := h.engine.Handle(r.Context(), req.UserID, req.Text)
	h.writeResult(w, req.UserID, result, err)
}

// Cancel abandons the user's dialogue.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		jsonError(w, "user_id required", http.StatusBadRequest)
		return
	}
	result, err := h.engine.Cancel(r.Context(), req.UserID)
	h.writeResult(w, req.UserID, result, err)
}

func (h *BookingHandler) writeResult(w http.ResponseWriter, userID string, result conversation.Result, err error) {
	switch {
	case errors.Is(err, conversation.ErrNoSession):
		jsonError(w, "no active booking session", http.StatusNotFound)
	case err != nil:
		h.logger.Error("booking turn failed", "user_id", userID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// Catalog returns the live catalog snapshot.
func (h *BookingHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Snapshot())
}

// RefreshCatalog reloads the catalog from the sheets.
func (h *BookingHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.catalog.Refresh(r.Context())
	if err != nil {
		h.logger.Warn("manual catalog refresh failed", "error", err)
		jsonError(w, "catalog refresh failed", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HealthCheck reports liveness and the catalog size.
func (h *BookingHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	snapshot := h.catalog.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"categories": snapshot.Len(),
		"loaded_at":  snapshot.LoadedAt(),
	})
}
