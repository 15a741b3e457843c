package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/coordinator"
	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/session"
)

type ToolHandler struct {
	coord    *coordinator.Coordinator
	sessions *session.Registry
	logger   *slog.Logger
	validate *validator.Validate
}

func NewToolHandler(coord *coordinator.Coordinator, logger *slog.Logger) *ToolHandler {
	v := validator.New()
	// Report json names so errors match what the agent sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ToolHandler{coord: coord, sessions: coord.Sessions(), logger: logger, validate: v}
}

// Register mounts the session and tool routes on mux.
func (h *ToolHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/tools/{tool}", h.Invoke)
	mux.HandleFunc("GET /api/v1/tools", h.ListTools)
}

func (h *ToolHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid room_name")
		return
	}
	s := h.sessions.Create(strings.TrimSpace(req.RoomName))
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *ToolHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *ToolHandler) ListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": coordinator.Tools()})
}

// Invoke runs one tool. Recoverable outcomes such as conflicts are 200s: the body's outcome
// field is what the agent acts on.
func (h *ToolHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if s.Closed() {
		writeError(w, http.StatusGone, "session closed")
		return
	}

	tool := r.PathValue("tool")
	run, ok := h.tools()[tool]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tool")
		return
	}
	reply, status, msg := run(r, s)
	if status != 0 {
		writeJSON(w, status, map[string]any{"error": msg, "tool": tool})
		return
	}
	h.logger.Info("tool invoked", "session_id", s.ID, "tool", tool, "outcome", reply.Outcome)
	writeJSON(w, http.StatusOK, reply)
}

// toolFunc returns either a reply or a non-zero status with an error message.
type toolFunc func(r *http.Request, s *session.Session) (coordinator.Reply, int, string)

func (h *ToolHandler) tools() map[string]toolFunc {
	return map[string]toolFunc{
		coordinator.ToolIdentify: func(r *http.Request, s *session.Session) (coordinator.Reply, int, string) {
			var a identifyArgs
			if status, msg := h.bind(r, &a); status != 0 {
				return coordinator.Reply{}, status, msg
			}
			return h.coord.Identify(r.Context(), s, a.PhoneNumber), 0, ""
		},
		coordinator.ToolFetch: func(r *http.Request, s *session.Session) (coordinator.Reply, int, string) {
			var a fetchSlotsArgs
			if status, msg := h.bind(r, &a); status != 0 {
				return coordinator.Reply{}, status, msg
			}
			return h.coord.FetchAvailability(r.Context(), s, a.Date), 0, ""
		},
		coordinator.ToolBook: func(r *http.Request, s *session.Session) (coordinator.Reply, int, string) {
			var a bookArgs
			if status, msg := h.bind(r, &a); status != 0 {
				return coordinator.Reply{}, status, msg
			}
			return h.coord.Book(r.Context(), s, coordinator.BookRequest{
				Name:          a.Name,
				ContactNumber: a.ContactNumber,
				Date:          a.Date,
				Time:          a.TimeStr,
			}), 0, ""
		},
		coordinator.ToolRetrieve: func(r *http.Request, s *session.Session) (coordinator.Reply, int, string) {
			var a retrieveArgs
			if status, msg := h.bind(r, &a); status != 0 {
				return coordinator.Reply{}, status, msg
			}
			return h.coord.ListByContact(r.Context(), s, a.ContactNumber), 0, ""
		},
		coordinator.ToolModify: func(r *http.Request, s *session.Session) (coordinator.Reply, int, string) {
			var a modifyArgs
			if status, msg := h.bind(r, &a); status != 0 {
				return coordinator.Reply{}, status, msg
			}
			return h.coord.Modify(r.Context(), s, string(a.AppointmentNumber), a.NewDate, a.NewTime), 0, ""
		},
		coordinator.ToolCancel: func(r *http.Request, s *session.Session) (coordinator.Reply, int, string) {
			var a cancelArgs
			if status, msg := h.bind(r, &a); status != 0 {
				return coordinator.Reply{}, status, msg
			}
			return h.coord.Cancel(r.Context(), s, string(a.AppointmentNumber)), 0, ""
		},
		coordinator.ToolSummarize: func(r *http.Request, s *session.Session) (coordinator.Reply, int, string) {
			var a summarizeArgs
			if status, msg := h.bind(r, &a); status != 0 {
				return coordinator.Reply{}, status, msg
			}
			// Teardown outlives the request.
			return h.coord.CloseSession(context.WithoutCancel(r.Context()), s, a.Summary), 0, ""
		},
	}
}

func (h *ToolHandler) bind(r *http.Request, dst any) (int, string) {
	if err := decodeOptional(r, dst); err != nil {
		return http.StatusBadRequest, "invalid json body"
	}
	if err := h.validate.Struct(dst); err != nil {
		if fields := missingFields(err); len(fields) > 0 {
			return http.StatusBadRequest, "missing required fields: " + strings.Join(fields, ", ")
		}
		return http.StatusBadRequest, "invalid arguments"
	}
	return 0, ""
}

// decodeOptional decodes a JSON body; an empty body leaves dst untouched.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
