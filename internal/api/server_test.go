package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusrooms/internal/authz"
	"campusrooms/internal/config"
	"campusrooms/internal/database"
	"campusrooms/internal/models"
	"campusrooms/internal/repository"
	"campusrooms/internal/service"
)

const approverID int64 = 100

func newTestServer(t *testing.T, cfg config.APIConfig) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	oracle := authz.NewOracle([]int64{approverID}, nil)
	audit := repository.NewMemoryAuditRepository(100)
	svc := service.NewReservationService(db, oracle, audit, nil, &logger)

	rooms := []models.Room{
		{ID: "R101", Name: "Lecture Hall A", SortOrder: 2, IsActive: true},
		{ID: "R102", Name: "Seminar Room B", SortOrder: 1, IsActive: true},
		{ID: "R900", Name: "Closed Wing", SortOrder: 3, IsActive: false},
	}

	facility := config.FacilityConfig{
		OpenTime:           "08:00",
		CloseTime:          "22:00",
		SlotStepMinutes:    30,
		MinDurationMinutes: 30,
		MaxDurationMinutes: 240,
		BulkConcurrency:    3,
	}

	srv := NewHTTPServer(cfg, facility, svc, rooms, audit, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func submitBody(roomID, date, start, end string, requester int64) map[string]any {
	return map[string]any{
		"room_id":      roomID,
		"date":         date,
		"start":        start,
		"end":          end,
		"requester_id": requester,
		"purpose":      "seminar",
	}
}

func TestRoomsEndpoint(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/rooms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rooms := body["rooms"].([]any)
	// Inactive rooms are hidden; sort order wins over ID.
	require.Len(t, rooms, 2)
	first := rooms[0].(map[string]any)
	assert.Equal(t, "R102", first["id"])
}

func TestSlotsEndpoint(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	starts := body["starts"].([]any)
	require.NotEmpty(t, starts)
	assert.Equal(t, "08:00", starts[0])
	assert.Equal(t, "21:30", starts[len(starts)-1])

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?start=20:00", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ends := body["ends"].([]any)
	require.NotEmpty(t, ends)
	assert.Equal(t, "20:30", ends[0])
	assert.Equal(t, "22:00", ends[len(ends)-1])

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?start=8am", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitValidation(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown room", submitBody("R999", "2026-09-01", "10:00", "11:00", 1), http.StatusBadRequest},
		{"inactive room", submitBody("R900", "2026-09-01", "10:00", "11:00", 1), http.StatusBadRequest},
		{"bad date", submitBody("R101", "next tuesday", "10:00", "11:00", 1), http.StatusBadRequest},
		{"end before start", submitBody("R101", "2026-09-01", "11:00", "10:00", 1), http.StatusBadRequest},
		{"valid", submitBody("R101", "2026-09-01", "10:00", "11:00", 1), http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRequestLifecycle(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	resp, created := doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests",
		submitBody("R101", "2026-09-01", "10:00", "11:00", 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	requestID := created["id"].(string)
	assert.Equal(t, models.RequestPending, created["status"])

	// The slot now shows a pending conflict but no blocking one.
	resp, avail := doJSON(t, http.MethodGet,
		ts.URL+"/api/v1/availability?room_id=R101&date=2026-09-01&start=10:30&end=11:30", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "conflicts_pending", avail["verdict"])
	assert.Equal(t, false, avail["blocking"])

	// Approve it.
	resp, entry := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/requests/%s/approve", ts.URL, requestID),
		map[string]any{"actor_id": approverID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, requestID, entry["request_id"])

	// Approving twice is an invalid state, not a second entry.
	resp, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/requests/%s/approve", ts.URL, requestID),
		map[string]any{"actor_id": approverID})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// The slot is now blocked for everyone else.
	resp, avail = doJSON(t, http.MethodGet,
		ts.URL+"/api/v1/availability?room_id=R101&date=2026-09-01&start=10:30&end=11:30", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "conflicts_confirmed", avail["verdict"])
	assert.Equal(t, true, avail["blocking"])

	// A submit into the occupied slot conflicts.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests",
		submitBody("R101", "2026-09-01", "10:30", "11:30", 2))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Owner cancels; the slot frees up.
	resp, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/requests/%s/cancel", ts.URL, requestID),
		map[string]any{"actor_id": 1, "reason": "course moved online"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, avail = doJSON(t, http.MethodGet,
		ts.URL+"/api/v1/availability?room_id=R101&date=2026-09-01&start=10:00&end=11:00", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "free", avail["verdict"])
}

func TestRejectRequiresFeedback(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	resp, created := doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests",
		submitBody("R101", "2026-09-02", "09:00", "10:00", 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	requestID := created["id"].(string)

	resp, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/requests/%s/reject", ts.URL, requestID),
		map[string]any{"actor_id": approverID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/requests/%s/reject", ts.URL, requestID),
		map[string]any{"actor_id": approverID, "feedback": "room reserved for exams that week"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestForbiddenTransition(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	resp, created := doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests",
		submitBody("R101", "2026-09-03", "09:00", "10:00", 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	requestID := created["id"].(string)

	// Requester 1 is not an approver.
	resp, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/requests/%s/approve", ts.URL, requestID),
		map[string]any{"actor_id": int64(1)})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBulkReject(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		start := fmt.Sprintf("%02d:00", 9+i)
		end := fmt.Sprintf("%02d:00", 10+i)
		resp, created := doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests",
			submitBody("R102", "2026-09-04", start, end, 1))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		ids = append(ids, created["id"].(string))
	}
	// A bogus ID fails its own task without touching the others.
	ids = append(ids, "no-such-request")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests/bulk", map[string]any{
		"actor_id":    approverID,
		"action":      "reject",
		"request_ids": ids,
		"feedback":    "semester schedule frozen",
		"concurrency": 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, float64(3), body["fulfilled"])
	assert.Equal(t, float64(4), body["total"])

	results := body["results"].([]any)
	require.Len(t, results, 4)
	last := results[3].(map[string]any)
	assert.Equal(t, "no-such-request", last["request_id"])
	assert.Equal(t, "rejected", last["status"])
}

func TestBulkValidation(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests/bulk", map[string]any{
		"actor_id": approverID, "action": "reject", "request_ids": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests/bulk", map[string]any{
		"actor_id": approverID, "action": "archive", "request_ids": []string{"x"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuditEndpoint(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests",
		submitBody("R101", "2026-09-05", "09:00", "10:00", 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/audit?limit=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records := body["records"].([]any)
	require.NotEmpty(t, records)
	first := records[0].(map[string]any)
	assert.Equal(t, "reservation.submit", first["action"])
	assert.Equal(t, "ok", first["outcome"])

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/audit?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRequests(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/requests",
		submitBody("R101", "2026-09-06", "09:00", "10:00", 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/requests?status=pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["requests"].([]any), 1)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/requests?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
