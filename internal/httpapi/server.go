package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"roomclerk/internal/booking"
	"roomclerk/internal/catalog"
	"roomclerk/internal/config"
	"roomclerk/internal/dialog"
	"roomclerk/internal/observability"
	"roomclerk/internal/sessionstore"
)

type Server struct {
	cfg      config.Config
	service  *dialog.Service
	catalog  catalog.Catalog
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, service *dialog.Service, cat catalog.Catalog, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		service: service,
		catalog: cat,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections unless explicitly
				// opened up; non-browser clients omit Origin and pass.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Get("/v1/sessions/ws", s.handleSessionWS)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Delete("/v1/sessions/{id}", s.handleResetSession)
	r.Post("/v1/sessions/{id}/turns", s.handleTurn)
	r.Get("/v1/rooms", s.handleListRooms)
	r.Get("/v1/rooms/{id}", s.handleGetRoom)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type createSessionResponse struct {
	SessionID string       `json:"session_id"`
	State     dialog.State `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	TTLMS     int64        `json:"ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.CreateSession(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "persistence_error", "could not create session")
		return
	}
	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID,
		State:     sess.State,
		CreatedAt: sess.CreatedAt,
		TTLMS:     s.cfg.SessionTTL.Milliseconds(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.service.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", "unknown session id")
			return
		}
		respondError(w, http.StatusInternalServerError, "persistence_error", "could not load session")
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.ResetSession(r.Context(), id); err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", "unknown session id")
			return
		}
		respondError(w, http.StatusInternalServerError, "persistence_error", "could not reset session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type turnRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	res, err := s.service.ProcessTurn(r.Context(), id, req.Text)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", "unknown session id")
			return
		}
		if errors.Is(err, booking.ErrPersistence) {
			log.Printf("turn persistence failure for session %s: %v", id, err)
			respondError(w, http.StatusInternalServerError, "persistence_error", "could not process turn")
			return
		}
		// Collaborator trouble and booking races still carry a
		// user-facing reply; surface it with its error code in-band.
		log.Printf("turn degraded for session %s: %v", id, err)
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.catalog.ListRooms(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "persistence_error", "could not list rooms")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// handleGetRoom resolves by id first, then by name, so
// /v1/rooms/Boardroom works for human callers.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")
	room, err := s.catalog.ByID(r.Context(), key)
	if errors.Is(err, catalog.ErrNotFound) {
		room, err = s.catalog.ByName(r.Context(), key)
	}
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "room_not_found", "unknown room")
			return
		}
		respondError(w, http.StatusInternalServerError, "persistence_error", "could not load room")
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "unknown session id")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(64 << 10)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}

		// One text frame is one turn; the reply frame mirrors the REST
		// turn response.
		res, err := s.service.ProcessTurn(r.Context(), sessionID, text)
		if err != nil && errors.Is(err, booking.ErrPersistence) {
			res = dialog.TurnResult{
				SessionID: sessionID,
				Reply:     "Something went wrong on my side. Please try again.",
				ErrorCode: "persistence_error",
			}
		} else if err != nil {
			log.Printf("ws turn degraded for session %s: %v", sessionID, err)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(res); err != nil {
			return
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
