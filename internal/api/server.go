package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"campusrooms/internal/bulk"
	"campusrooms/internal/config"
	"campusrooms/internal/domain"
	"campusrooms/internal/metrics"
	"campusrooms/internal/models"
	"campusrooms/internal/service"
	"campusrooms/internal/timeslot"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the reservation portal over a JSON API.
type HTTPServer struct {
	cfg      config.APIConfig
	facility config.FacilityConfig
	svc      *service.ReservationService
	rooms    []models.Room
	audit    domain.AuditRepository
	logger   *zerolog.Logger
	server   *http.Server
	auth     *HTTPAuth
}

func NewHTTPServer(cfg config.APIConfig, facility config.FacilityConfig, svc *service.ReservationService, rooms []models.Room, audit domain.AuditRepository, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		facility: facility,
		svc:      svc,
		rooms:    rooms,
		audit:    audit,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler assembles the routed, authenticated, logged handler chain.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/rooms", s.handleRooms)
	mux.HandleFunc("/api/v1/slots", s.handleSlots)
	mux.HandleFunc("/api/v1/availability", s.handleAvailability)
	mux.HandleFunc("/api/v1/requests", s.handleRequests)
	mux.HandleFunc("/api/v1/requests/bulk", s.handleBulk)
	mux.HandleFunc("/api/v1/requests/", s.handleRequestAction)
	mux.HandleFunc("/api/v1/audit", s.handleAudit)
	mux.HandleFunc("/healthz", s.handleHealth)

	return s.loggingMiddleware(s.auth.Wrap(mux))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rooms := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if room.IsActive {
			rooms = append(rooms, room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].SortOrder == rooms[j].SortOrder {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].SortOrder < rooms[j].SortOrder
	})

	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// handleSlots returns the bookable start grid, or the valid end times when a
// start is given.
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	open, err := s.facility.Open()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "facility hours misconfigured")
		return
	}
	closeAt, err := s.facility.Close()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "facility hours misconfigured")
		return
	}

	starts := timeslot.GenerateSlots(open, closeAt, s.facility.SlotStepMinutes, s.facility.MinDurationMinutes)

	startParam := strings.TrimSpace(r.URL.Query().Get("start"))
	if startParam == "" {
		writeJSON(w, http.StatusOK, map[string]any{"starts": formatTimes(starts)})
		return
	}

	start, err := timeslot.Parse(startParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ends := timeslot.ValidEndTimes(start, starts, s.facility.MinDurationMinutes, s.facility.MaxDurationMinutes, closeAt)
	writeJSON(w, http.StatusOK, map[string]any{"start": start.String(), "ends": formatTimes(ends)})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	roomID := strings.TrimSpace(r.URL.Query().Get("room_id"))
	if roomID == "" {
		writeError(w, http.StatusBadRequest, "room_id is required")
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	iv, err := parseInterval(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	verdict, err := s.svc.CheckSlot(r.Context(), roomID, date, iv)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":  roomID,
		"date":     date.Format(models.DateLayout),
		"interval": iv.String(),
		"verdict":  verdict.String(),
		"blocking": verdict.Blocking(),
	})
}

func (s *HTTPServer) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRequests(w, r)
	case http.MethodPost:
		s.handleSubmit(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleListRequests(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = models.RequestPending
	}

	list, err := s.svc.ListByStatus(r.Context(), status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": list})
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoomID      string `json:"room_id"`
		Date        string `json:"date"`
		Start       string `json:"start"`
		End         string `json:"end"`
		RequesterID int64  `json:"requester_id"`
		Purpose     string `json:"purpose"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := parseDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	iv, err := parseInterval(body.Start, body.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.knownRoom(body.RoomID) {
		writeError(w, http.StatusBadRequest, "unknown room "+body.RoomID)
		return
	}

	req, err := s.svc.Submit(r.Context(), service.SubmitInput{
		RoomID:      body.RoomID,
		Date:        date,
		Interval:    iv,
		RequesterID: body.RequesterID,
		Purpose:     body.Purpose,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// handleRequestAction routes /api/v1/requests/{id}/{approve|reject|cancel}.
func (s *HTTPServer) handleRequestAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/requests/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	requestID, verb := parts[0], parts[1]

	var body struct {
		ActorID  int64  `json:"actor_id"`
		Feedback string `json:"feedback"`
		Reason   string `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch verb {
	case "approve":
		entry, err := s.svc.Approve(r.Context(), body.ActorID, requestID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case "reject":
		if err := s.svc.Reject(r.Context(), body.ActorID, requestID, body.Feedback); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": models.RequestRejected})
	case "cancel":
		if err := s.svc.Cancel(r.Context(), body.ActorID, requestID, body.Reason); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": models.RequestCancelled})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		ActorID     int64    `json:"actor_id"`
		Action      string   `json:"action"`
		RequestIDs  []string `json:"request_ids"`
		Feedback    string   `json:"feedback"`
		Concurrency int      `json:"concurrency"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.RequestIDs) == 0 {
		writeError(w, http.StatusBadRequest, "request_ids is required")
		return
	}
	if body.Concurrency <= 0 {
		body.Concurrency = s.facility.BulkConcurrency
	}

	var results []bulk.Result
	switch body.Action {
	case "approve":
		results = s.svc.BulkApprove(r.Context(), body.ActorID, body.RequestIDs, body.Concurrency, nil)
	case "reject":
		results = s.svc.BulkReject(r.Context(), body.ActorID, body.RequestIDs, body.Feedback, body.Concurrency, nil)
	case "cancel":
		results = s.svc.BulkCancel(r.Context(), body.ActorID, body.RequestIDs, body.Feedback, body.Concurrency, nil)
	default:
		writeError(w, http.StatusBadRequest, "action must be approve, reject or cancel")
		return
	}

	items := make([]map[string]any, 0, len(results))
	fulfilled := 0
	for _, res := range results {
		item := map[string]any{
			"request_id": res.TaskID,
			"status":     string(res.Status),
		}
		if res.Err != nil {
			item["error"] = res.Err.Error()
		} else if res.Status == bulk.StatusFulfilled {
			fulfilled++
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":   items,
		"fulfilled": fulfilled,
		"total":     len(results),
	})
}

func (s *HTTPServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "audit log is not configured")
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read audit log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *HTTPServer) knownRoom(roomID string) bool {
	for _, room := range s.rooms {
		if room.ID == roomID && room.IsActive {
			return true
		}
	}
	return false
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch svcErr.Kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindConflict:
		status = http.StatusConflict
	case service.KindInvalidState:
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, map[string]string{
		"error": svcErr.Msg,
		"kind":  svcErr.Kind.String(),
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}
	return date, nil
}

func parseInterval(rawStart, rawEnd string) (timeslot.Interval, error) {
	start, err := timeslot.Parse(rawStart)
	if err != nil {
		return timeslot.Interval{}, err
	}
	end, err := timeslot.Parse(rawEnd)
	if err != nil {
		return timeslot.Interval{}, err
	}
	return timeslot.NewInterval(start, end)
}

func formatTimes(times []timeslot.TimeOfDay) []string {
	out := make([]string, 0, len(times))
	for _, t := range times {
		out = append(out, t.String())
	}
	return out
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
