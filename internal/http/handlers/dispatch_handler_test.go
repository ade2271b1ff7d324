// README: Handler tests for dispatch routes and error-to-status mapping.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"fooddispatch/internal/http/handlers"
	"fooddispatch/internal/modules/dispatch"
	"fooddispatch/internal/types"
)

type stubDispatcher struct {
	assignment *dispatch.Assignment
	err        error
	cancelled  int

	claimedBy types.ID
}

func (s *stubDispatcher) Dispatch(context.Context, types.ID) (*dispatch.Assignment, error) {
	return s.assignment, s.err
}

func (s *stubDispatcher) Claim(_ context.Context, _ types.ID, driverID types.ID) (*dispatch.Assignment, error) {
	s.claimedBy = driverID
	if s.err != nil {
		return nil, s.err
	}
	a := *s.assignment
	a.Status = dispatch.StatusClaimed
	a.ClaimedBy = &driverID
	return &a, nil
}

func (s *stubDispatcher) Cancel(context.Context, types.ID) (int, error) {
	return s.cancelled, s.err
}

func (s *stubDispatcher) Get(context.Context, types.ID) (*dispatch.Assignment, error) {
	return s.assignment, s.err
}

func (s *stubDispatcher) History(context.Context, types.ID) ([]dispatch.Assignment, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.assignment == nil {
		return nil, nil
	}
	return []dispatch.Assignment{*s.assignment}, nil
}

func buildDispatchRouter(d handlers.Dispatcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewDispatchHandler(d)
	r.POST("/api/orders/:id/dispatch", h.Dispatch)
	r.POST("/api/orders/:id/cancel", h.Cancel)
	r.GET("/api/orders/:id/assignments", h.History)
	r.GET("/api/assignments/:id", h.Get)
	r.POST("/api/assignments/:id/claim", h.Claim)
	return r
}

func doRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleAssignment() *dispatch.Assignment {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &dispatch.Assignment{
		ID:        "a-1",
		OrderID:   "o1",
		Attempt:   1,
		Notified:  []types.ID{"d1", "d2"},
		Status:    dispatch.StatusPending,
		CreatedAt: created,
		ExpiresAt: created.Add(5 * time.Minute),
	}
}

func TestDispatch_Created(t *testing.T) {
	r := buildDispatchRouter(&stubDispatcher{assignment: sampleAssignment()})
	w := doRequest(r, http.MethodPost, "/api/orders/o1/dispatch", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	var body struct {
		AssignmentID string   `json:"assignment_id"`
		Status       string   `json:"status"`
		Notified     []string `json:"notified"`
		ExpiresAt    string   `json:"expires_at"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.AssignmentID != "a-1" || body.Status != "pending" || len(body.Notified) != 2 {
		t.Errorf("unexpected body %+v", body)
	}
	if body.ExpiresAt != "2026-03-01T12:05:00Z" {
		t.Errorf("expires_at = %q", body.ExpiresAt)
	}
}

func TestDispatch_NoDriversIsNotAnError(t *testing.T) {
	err := fmt.Errorf("order o1: %w", dispatch.ErrNoDriversAvailable)
	r := buildDispatchRouter(&stubDispatcher{err: err})
	w := doRequest(r, http.MethodPost, "/api/orders/o1/dispatch", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["outcome"] != "no_drivers_available" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestDispatch_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid state", fmt.Errorf("order o1 is pending: %w", dispatch.ErrInvalidState), http.StatusConflict},
		{"not found", fmt.Errorf("order o1: %w", dispatch.ErrNotFound), http.StatusNotFound},
		{"geocoding", fmt.Errorf("x: %w", dispatch.ErrGeocodingFailed), http.StatusBadGateway},
		{"notification", fmt.Errorf("x: %w", dispatch.ErrNotificationDeliveryFailed), http.StatusBadGateway},
		{"unexpected", fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := buildDispatchRouter(&stubDispatcher{err: tc.err})
			w := doRequest(r, http.MethodPost, "/api/orders/o1/dispatch", nil)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestDispatch_RejectsMalformedOrderID(t *testing.T) {
	r := buildDispatchRouter(&stubDispatcher{assignment: sampleAssignment()})
	w := doRequest(r, http.MethodPost, "/api/orders/o1;drop/dispatch", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestClaim_Success(t *testing.T) {
	stub := &stubDispatcher{assignment: sampleAssignment()}
	r := buildDispatchRouter(stub)
	w := doRequest(r, http.MethodPost, "/api/assignments/a-1/claim", map[string]any{"driver_id": "d2"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if stub.claimedBy != "d2" {
		t.Errorf("claim forwarded driver %q, want d2", stub.claimedBy)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "claimed" || body["claimed_by"] != "d2" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestClaim_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"already claimed", dispatch.ErrAlreadyClaimed, http.StatusConflict},
		{"expired", dispatch.ErrExpired, http.StatusGone},
		{"cancelled", dispatch.ErrCancelled, http.StatusGone},
		{"not candidate", dispatch.ErrNotCandidate, http.StatusForbidden},
		{"not found", dispatch.ErrNotFound, http.StatusNotFound},
		{"write conflict", dispatch.ErrStoreWriteConflict, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := buildDispatchRouter(&stubDispatcher{err: tc.err})
			w := doRequest(r, http.MethodPost, "/api/assignments/a-1/claim", map[string]any{"driver_id": "d1"})
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestClaim_RequiresDriverID(t *testing.T) {
	r := buildDispatchRouter(&stubDispatcher{assignment: sampleAssignment()})
	w := doRequest(r, http.MethodPost, "/api/assignments/a-1/claim", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCancel_ReportsCount(t *testing.T) {
	r := buildDispatchRouter(&stubDispatcher{cancelled: 1})
	w := doRequest(r, http.MethodPost, "/api/orders/o1/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["cancelled"] != float64(1) {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHistory_EmptyListIsArray(t *testing.T) {
	r := buildDispatchRouter(&stubDispatcher{})
	w := doRequest(r, http.MethodGet, "/api/orders/o1/assignments", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Assignments []any `json:"assignments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Assignments == nil {
		t.Error("assignments should be an empty array, not null")
	}
}

func TestGet_Assignment(t *testing.T) {
	r := buildDispatchRouter(&stubDispatcher{assignment: sampleAssignment()})
	w := doRequest(r, http.MethodGet, "/api/assignments/a-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body dispatch.Assignment
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "a-1" || body.Status != dispatch.StatusPending {
		t.Errorf("unexpected assignment %+v", body)
	}
}
