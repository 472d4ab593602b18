package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"roomclerk/internal/booking"
	"roomclerk/internal/catalog"
	"roomclerk/internal/config"
	"roomclerk/internal/dialog"
	"roomclerk/internal/interpreter"
	"roomclerk/internal/ledger"
	"roomclerk/internal/resolver"
	"roomclerk/internal/sessionstore"
)

type fixedInterpreter struct {
	result interpreter.Result
}

func (f *fixedInterpreter) Interpret(_ context.Context, _ []interpreter.Turn, _ time.Time) (interpreter.Result, error) {
	return f.result, nil
}

func fullResult() interpreter.Result {
	date := "2026-09-01"
	tm := "14:00"
	hours := 1.0
	capn := 4
	name := "Alex"
	return interpreter.Result{Fields: booking.Extraction{
		StartDate:     &date,
		StartTime:     &tm,
		DurationHours: &hours,
		Capacity:      &capn,
		Requester:     &name,
	}}
}

func newTestServer(t *testing.T, result interpreter.Result) *Server {
	t.Helper()
	cat := catalog.NewInMemoryCatalog([]catalog.Room{
		{ID: "room-1", Name: "Huddle", Capacity: 2, Equipment: []string{"whiteboard"}},
		{ID: "room-2", Name: "Studio", Capacity: 6, Equipment: []string{"projector"}},
	})
	led := ledger.NewInMemoryLedger(30 * time.Minute)
	engine := dialog.NewEngine(&fixedInterpreter{result: result}, resolver.New(cat, led, 30*time.Minute), led, nil, dialog.EngineOptions{})
	store := sessionstore.NewInMemoryStore(time.Hour)
	service := dialog.NewService(store, engine, nil)

	cfg := config.Config{SessionTTL: time.Hour, AllowAnyOrigin: true}
	return New(cfg, service, cat, nil)
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", rec.Code)
	}
	var body struct {
		SessionID string `json:"session_id"`
		State     string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if body.SessionID == "" || body.State != string(dialog.StateStart) {
		t.Fatalf("create response = %+v", body)
	}
	return body.SessionID
}

func postTurn(t *testing.T, router http.Handler, sessionID, text string) (*httptest.ResponseRecorder, dialog.TurnResult) {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"text": text})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sessionID+"/turns", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var res dialog.TurnResult
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode turn response: %v", err)
		}
	}
	return rec, res
}

func TestTurnFlowToBooking(t *testing.T) {
	router := newTestServer(t, fullResult()).Router()
	id := createSession(t, router)

	rec, res := postTurn(t, router, id, "a room for 4 people on 2026-09-01 at 14:00 for 1 hour, I'm Alex")
	if rec.Code != http.StatusOK {
		t.Fatalf("turn status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if res.State != dialog.StateAwaitingConfirmation || res.ErrorCode != "" {
		t.Fatalf("turn result = %+v", res)
	}

	_, res = postTurn(t, router, id, "yes")
	if res.State != dialog.StateBooked || res.Outcome != dialog.OutcomeBooked {
		t.Fatalf("confirmation result = %+v", res)
	}

	// The transcript is visible on the session resource.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d", rec.Code)
	}
	var sess dialog.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(sess.Turns) != 2 || sess.ReservationID == "" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestTurnValidation(t *testing.T) {
	router := newTestServer(t, fullResult()).Router()
	id := createSession(t, router)

	rec, _ := postTurn(t, router, id, "   ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty text status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/turns", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d, want 400", rec.Code)
	}

	rec, _ = postTurn(t, router, "unknown-id", "hello")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	router := newTestServer(t, fullResult()).Router()
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+id, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted session status = %d, want 404", rec.Code)
	}
}

func TestListRooms(t *testing.T) {
	router := newTestServer(t, fullResult()).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("rooms status = %d", rec.Code)
	}
	var body struct {
		Rooms []catalog.Room `json:"rooms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode rooms: %v", err)
	}
	if len(body.Rooms) != 2 {
		t.Fatalf("len(rooms) = %d, want 2", len(body.Rooms))
	}
}

func TestGetRoomByIDOrName(t *testing.T) {
	router := newTestServer(t, fullResult()).Router()

	for _, key := range []string{"room-2", "Studio"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/"+key, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("get room %q status = %d, want 200", key, rec.Code)
		}
		var room catalog.Room
		if err := json.Unmarshal(rec.Body.Bytes(), &room); err != nil {
			t.Fatalf("decode room: %v", err)
		}
		if room.ID != "room-2" {
			t.Fatalf("room = %+v, want room-2", room)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/attic", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown room status = %d, want 404", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestServer(t, fullResult()).Router()

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestSessionWebsocketTurn(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, fullResult()).Router())
	defer srv.Close()

	id := createSessionHTTP(t, srv.URL)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/ws?session_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("a room for 4 on 2026-09-01")); err != nil {
		t.Fatalf("ws write error = %v", err)
	}
	var res dialog.TurnResult
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("ws read error = %v", err)
	}
	if res.State != dialog.StateAwaitingConfirmation || res.Reply == "" {
		t.Fatalf("ws turn result = %+v", res)
	}
}

func TestSessionWebsocketRequiresKnownSession(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, fullResult()).Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/ws?session_id=unknown"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("ws dial should fail for an unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ws dial response = %+v, want 404", resp)
	}
}

func createSessionHTTP(t *testing.T, baseURL string) string {
	t.Helper()
	resp, err := http.Post(baseURL+"/v1/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return body.SessionID
}
