package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Signer mints a room token for one participant.
type Signer interface {
	Sign(identity, name, room string) (string, error)
}

type TokenHandler struct {
	signer     Signer
	logger     *slog.Logger
	roomPrefix string
	newID      func() string
}

// NewTokenHandler returns a handler for GET /getToken. A nil signer means credentials are
// missing; every call then answers with an error body.
func NewTokenHandler(signer Signer, logger *slog.Logger, roomPrefix string) *TokenHandler {
	if roomPrefix == "" {
		roomPrefix = "aria-room-"
	}
	return &TokenHandler{
		signer:     signer,
		logger:     logger,
		roomPrefix: roomPrefix,
		newID:      func() string { return uuid.NewString()[:8] },
	}
}

type tokenResponse struct {
	Token    string `json:"token"`
	RoomName string `json:"roomName"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetToken issues a fresh identity and room per call so concurrent visitors never share one.
func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	if h.signer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "API keys not found in .env file"})
		return
	}
	id := h.newID()
	identity := "user_" + id
	room := h.roomPrefix + id

	token, err := h.signer.Sign(identity, "Visitor "+id, room)
	if err != nil {
		h.logger.Error("token signing failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to issue token"})
		return
	}
	h.logger.Info("room token issued", "identity", identity, "room", room)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, RoomName: room})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
