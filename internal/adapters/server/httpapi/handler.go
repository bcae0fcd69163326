// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/lanes/internal/adapters/server/common"
	"github.com/hylla/lanes/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// restActorID attributes REST mutations that carry no explicit actor.
const restActorID = "lanes-api"

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	boards common.BoardService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over a board service.
func NewHandler(boards common.BoardService) *Handler {
	return &Handler{boards: boards}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.boards == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}
	r = r.WithContext(common.WithActor(r.Context(), actorFromRequest(r), domain.ActorTypeUser))

	segments := splitPath(normalizePath(r.URL.Path))
	switch {
	case len(segments) == 1 && segments[0] == "boards":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListBoards(w, r)
	case len(segments) == 3 && segments[0] == "boards" && segments[2] == "items":
		switch r.Method {
		case http.MethodGet:
			h.handleListItems(w, r, segments[1])
		case http.MethodPost:
			h.handleCreateItem(w, r, segments[1])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(segments) == 3 && segments[0] == "boards" && segments[2] == "index":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBoardIndex(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "boards" && segments[2] == "events":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListEvents(w, r, segments[1])
	case len(segments) == 2 && segments[0] == "items":
		switch r.Method {
		case http.MethodPatch:
			h.handleUpdateItem(w, r, segments[1])
		case http.MethodDelete:
			h.handleDeleteItem(w, r, segments[1])
		default:
			writeMethodNotAllowed(w, http.MethodPatch, http.MethodDelete)
		}
	case len(segments) == 3 && segments[0] == "items" && segments[2] == "move":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMoveItem(w, r, segments[1])
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleListBoards serves GET `/boards`.
func (h *Handler) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.boards.ListBoards(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"boards": boards,
	})
}

// handleListItems serves GET `/boards/{board}/items`.
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request, board string) {
	req, err := listRequestFromQuery(r, board)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	items, err := h.boards.ListItems(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

// handleCreateItem serves POST `/boards/{board}/items`.
func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request, board string) {
	var req common.CreateItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.Board = board
	item, err := h.boards.CreateItem(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleBoardIndex serves GET `/boards/{board}/index`.
func (h *Handler) handleBoardIndex(w http.ResponseWriter, r *http.Request, board string) {
	req, err := listRequestFromQuery(r, board)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	index, err := h.boards.BoardIndex(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"board":   board,
		"columns": index,
	})
}

// handleListEvents serves GET `/boards/{board}/events`.
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request, board string) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}
	events, err := h.boards.ListChangeEvents(r.Context(), common.ListEventsRequest{Board: board, Limit: limit})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// handleUpdateItem serves PATCH `/items/{id}`.
func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request, itemID string) {
	var req common.UpdateItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ItemID = itemID
	item, err := h.boards.UpdateItem(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleDeleteItem serves DELETE `/items/{id}`.
func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request, itemID string) {
	err := h.boards.DeleteItem(r.Context(), common.DeleteItemRequest{
		ItemID: itemID,
		Mode:   r.URL.Query().Get("mode"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveItem serves POST `/items/{id}/move`.
func (h *Handler) handleMoveItem(w http.ResponseWriter, r *http.Request, itemID string) {
	var req common.MoveItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ItemID = itemID
	moved, err := h.boards.MoveItem(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moved)
}

// listRequestFromQuery builds list filters from query parameters.
func listRequestFromQuery(r *http.Request, board string) (common.ListItemsRequest, error) {
	query := r.URL.Query()
	req := common.ListItemsRequest{
		Board:      board,
		Assignee:   strings.TrimSpace(query.Get("assignee")),
		RecordType: strings.TrimSpace(query.Get("record_type")),
		RecordID:   strings.TrimSpace(query.Get("record_id")),
	}
	if raw := strings.TrimSpace(query.Get("include_archived")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return common.ListItemsRequest{}, fmt.Errorf("include_archived must be a boolean: %w", common.ErrInvalidRequest)
		}
		req.IncludeArchived = include
	}
	return req, nil
}

// actorFromRequest reads an optional caller id header.
func actorFromRequest(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get("X-Lanes-Actor")); actor != "" {
		return actor
	}
	return restActorID
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// splitPath splits a normalized path, rejecting empty segments.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	segments := strings.Split(path, "/")
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return nil
		}
	}
	return segments
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	var confirmErr *common.ConfirmationError
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.As(err, &confirmErr):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "confirmation_required",
			Message: confirmErr.Prompt,
			Hint:    "Repeat the move with confirm=true.",
			Context: map[string]any{
				"item_id": confirmErr.ItemID,
				"column":  confirmErr.Column,
			},
		})
	case errors.Is(err, common.ErrConfirmationRequired):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "confirmation_required",
			Message: err.Error(),
			Hint:    "Repeat the move with confirm=true.",
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
