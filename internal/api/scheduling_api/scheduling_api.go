// Package scheduling_api exposes the scheduling services as JSON over HTTP.
package scheduling_api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/services/availability"
	"github.com/cola500/equinet/internal/services/bookings"
	"github.com/cola500/equinet/internal/services/intervals"
	"github.com/cola500/equinet/internal/services/routes"
	"github.com/cola500/equinet/internal/services/series"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type SchedulingAPI struct {
	availability *availability.Service
	bookings     *bookings.Service
	series       *series.Service
	routes       *routes.Service
	intervals    *intervals.Service
}

func New(av *availability.Service, bk *bookings.Service, sr *series.Service, rt *routes.Service, iv *intervals.Service) *SchedulingAPI {
	return &SchedulingAPI{availability: av, bookings: bk, series: sr, routes: rt, intervals: iv}
}

// Register mounts the /v1 endpoints on r.
func (a *SchedulingAPI) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/availability/check", a.CheckAvailability)
		r.Post("/bookings", a.CreateBooking)
		r.Patch("/bookings/{id}/status", a.UpdateBookingStatus)
		r.Post("/series", a.CreateSeries)
		r.Post("/series/{id}/cancel", a.CancelSeries)
		r.Post("/routes", a.CreateRoute)
		r.Get("/intervals/resolve", a.ResolveInterval)
	})
}

func (a *SchedulingAPI) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var body slotRequest
	if !decode(w, r, &body) {
		return
	}
	req, err := body.toAvailability()
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := a.availability.Check(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *SchedulingAPI) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if !decode(w, r, &body) {
		return
	}
	if body.IdempotencyKey == nil {
		if k := r.Header.Get("Idempotency-Key"); k != "" {
			body.IdempotencyKey = &k
		}
	}
	req, err := body.toModel()
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := a.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

func (a *SchedulingAPI) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body updateStatusRequest
	if !decode(w, r, &body) {
		return
	}
	b, err := a.bookings.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (a *SchedulingAPI) CreateSeries(w http.ResponseWriter, r *http.Request) {
	var body createSeriesRequest
	if !decode(w, r, &body) {
		return
	}
	req, err := body.toService()
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := a.series.CreateSeries(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSeriesResultDTO(res))
}

func (a *SchedulingAPI) CancelSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body cancelSeriesRequest
	if !decode(w, r, &body) {
		return
	}
	res, err := a.series.CancelSeries(r.Context(), id, body.ActorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelSeriesDTO{
		Series:            toSeriesDTO(res.Series),
		CancelledBookings: toBookingDTOs(res.Cancelled),
	})
}

func (a *SchedulingAPI) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var body createRouteRequest
	if !decode(w, r, &body) {
		return
	}
	req, err := body.toService()
	if err != nil {
		writeError(w, err)
		return
	}
	route, err := a.routes.CreateRoute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRouteDTO(route))
}

// ResolveInterval answers GET /v1/intervals/resolve?horseId&providerId&serviceId&defaultWeeks.
// horseId is optional.
func (a *SchedulingAPI) ResolveInterval(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	providerID, err := queryUint(q.Get("providerId"), "providerId")
	if err != nil {
		writeError(w, err)
		return
	}
	serviceID, err := queryUint(q.Get("serviceId"), "serviceId")
	if err != nil {
		writeError(w, err)
		return
	}
	defaultWeeks, err := strconv.Atoi(q.Get("defaultWeeks"))
	if err != nil || defaultWeeks <= 0 {
		writeError(w, errs.New(errs.Validation, "defaultWeeks must be a positive integer"))
		return
	}
	var horseID *uint64
	if v := q.Get("horseId"); v != "" {
		h, err := queryUint(v, "horseId")
		if err != nil {
			writeError(w, err)
			return
		}
		horseID = &h
	}

	weeks, err := a.intervals.Resolve(r.Context(), horseID, providerID, serviceID, defaultWeeks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"weeks": weeks})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, errs.Newf(errs.Validation, "invalid request body: %v", err))
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := queryUint(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return 0, false
	}
	return id, true
}

func queryUint(v, field string) (uint64, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		return 0, errs.Newf(errs.Validation, "%s must be a positive integer", field)
	}
	return n, nil
}

func statusFor(code errs.Code) int {
	switch code {
	case errs.SlotConflict, errs.SlotUnavailable, errs.OrdersUnavailable, errs.NoBookingsCreated, errs.InvalidTransition:
		return http.StatusConflict
	case errs.Validation:
		return http.StatusBadRequest
	case errs.InvalidInterval, errs.InvalidOccurrences:
		return http.StatusUnprocessableEntity
	case errs.NotFound, errs.SeriesNotFound:
		return http.StatusNotFound
	case errs.NotOwner, errs.RecurringFeatureOff, errs.RecurringDisabled:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		slog.Error("request failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "internal error"})
		return
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	writeJSON(w, statusFor(e.Code), errorResponse{Code: string(e.Code), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err.Error())
	}
}
