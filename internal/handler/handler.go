// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the admission controller.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/logger"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/service"
	"github.com/go-chi/chi/v5"
)

// Client-facing messages. They match the payloads existing clients parse.
const (
	msgNotFound         = "Gym not found"
	msgCapacityExceeded = "Gym is at max capacity"
	msgDuplicateBooking = "User already has a booking for this gym"
	msgUserIDRequired   = "userId is required"
	msgStoreUnavailable = "storage unavailable"
	msgArchiveDisabled  = "sensor archive is not enabled"
)

// SensorIngester applies a sensor reading.
type SensorIngester interface {
	Ingest(ctx context.Context, reading model.SensorReading) error
}

// SensorHistory lists recently archived readings, newest first.
type SensorHistory interface {
	Recent(ctx context.Context, facilityID string, limit int) ([]model.SensorReading, error)
}

// FacilityHandler holds all HTTP handlers for the capacity API.
type FacilityHandler struct {
	ctrl      *service.AdmissionController
	sensors   SensorIngester
	history   SensorHistory
	validator *service.Validator
	log       *logger.Logger
}

// NewFacilityHandler constructs a FacilityHandler. history may be nil, in
// which case the sensor history route answers 404.
func NewFacilityHandler(ctrl *service.AdmissionController, sensors SensorIngester, history SensorHistory, log *logger.Logger) *FacilityHandler {
	return &FacilityHandler{
		ctrl:      ctrl,
		sensors:   sensors,
		history:   history,
		validator: service.NewValidator(),
		log:       log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// decodeJSON reads at most 1 MiB. An empty body decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeServiceError maps controller errors to status codes. Infrastructure
// failures are logged and never reported as business rejections.
func (h *FacilityHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, service.ErrCapacityExceeded):
		writeError(w, http.StatusBadRequest, msgCapacityExceeded)
	case errors.Is(err, service.ErrDuplicateBooking):
		writeError(w, http.StatusBadRequest, msgDuplicateBooking)
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		h.log.Error("Store unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, msgStoreUnavailable)
	default:
		h.log.Error("Unhandled error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ListFacilities handles GET /facilities
func (h *FacilityHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.ctrl.ListFacilities(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if facilities == nil {
		facilities = []model.Facility{}
	}
	writeJSON(w, http.StatusOK, facilities)
}

// GetCapacity handles GET /facilities/{id}/capacity
func (h *FacilityHandler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	capacity, err := h.ctrl.Query(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, capacity)
}

// Book handles POST /facilities/{id}/book
func (h *FacilityHandler) Book(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.BookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, msgUserIDRequired)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservation, err := h.ctrl.Book(r.Context(), req.UserID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// ListReservations handles GET /facilities/{id}/reservations
func (h *FacilityHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.ctrl.ListReservations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if reservations == nil {
		reservations = []model.Reservation{}
	}
	writeJSON(w, http.StatusOK, reservations)
}

// ReportSensor handles POST /facilities/{id}/sensor
func (h *FacilityHandler) ReportSensor(w http.ResponseWriter, r *http.Request) {
	var req model.SensorUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = "http"
	}
	reading := model.SensorReading{
		FacilityID: chi.URLParam(r, "id"),
		Fullness:   *req.Fullness,
		ObservedAt: time.Now().UTC(),
		Source:     source,
	}
	if err := h.sensors.Ingest(r.Context(), reading); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, reading)
}

// SensorReadings handles GET /facilities/{id}/sensor-readings?limit=N
func (h *FacilityHandler) SensorReadings(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, msgArchiveDisabled)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.ctrl.GetFacility(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	readings, err := h.history.Recent(r.Context(), id, limit)
	if err != nil {
		h.log.Error("Failed to read sensor history", "facility_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, msgStoreUnavailable)
		return
	}
	if readings == nil {
		readings = []model.SensorReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
