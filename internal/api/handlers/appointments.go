package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"weekplan/internal/core"
	"weekplan/internal/types"
)

// AppointmentRepo defines the data access contract for appointment
// operations.
type AppointmentRepo interface {
	ListByUser(ctx context.Context, userID string) ([]types.Appointment, error)
	GetByID(ctx context.Context, userID, id string) (*types.Appointment, error)
	Create(ctx context.Context, appt *types.Appointment) error
	Update(ctx context.Context, appt *types.Appointment) error
	Delete(ctx context.Context, userID, id string) error
}

// RepeatRuleRequest is the repeat block on appointment create/update.
// Frequency defaults to weekly when omitted.
type RepeatRuleRequest struct {
	Days      []string `json:"days" validate:"required,min=1,max=7"`
	Frequency string   `json:"frequency,omitempty" validate:"omitempty,max=20"`
	Until     string   `json:"until,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// CreateAppointmentRequest is the request body for POST /v1/appointments.
type CreateAppointmentRequest struct {
	Title           string             `json:"title" validate:"required,max=200"`
	Description     string             `json:"description,omitempty" validate:"omitempty,max=1000"`
	Type            string             `json:"type,omitempty" validate:"omitempty,max=50"`
	Date            string             `json:"date" validate:"required,datetime=2006-01-02"`
	Time            *string            `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	DurationMinutes *int               `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
	Repeat          *RepeatRuleRequest `json:"repeat,omitempty"`
}

// UpdateAppointmentRequest is the request body for PATCH /v1/appointments/{id}.
type UpdateAppointmentRequest struct {
	Title           *string            `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description     *string            `json:"description,omitempty" validate:"omitempty,max=1000"`
	Type            *string            `json:"type,omitempty" validate:"omitempty,max=50"`
	Date            *string            `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time            *string            `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	DurationMinutes *int               `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
	Repeat          *RepeatRuleRequest `json:"repeat,omitempty"`
}

// AppointmentHandler manages the user's calendar obligations.
type AppointmentHandler struct {
	repo      AppointmentRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewAppointmentHandler creates an AppointmentHandler with the provided
// dependencies.
func NewAppointmentHandler(repo AppointmentRepo, v *core.Validator, l *slog.Logger) *AppointmentHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AppointmentHandler{repo: repo, validator: v, logger: l}
}

// RegisterRoutes mounts appointment routes on the provided chi.Router.
func (h *AppointmentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

// List handles GET /v1/appointments.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	appointments, err := h.repo.ListByUser(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: appointments})
}

// Create handles POST /v1/appointments.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	var req CreateAppointmentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)

	apptType, ok := types.ParseAppointmentType(req.Type)
	if req.Type != "" && !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationEnum,
			"type must be one of work, school, medical, social, other", nil))
		return
	}

	repeat, err := buildRepeatRule(req.Repeat, date)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	appt := &types.Appointment{
		ID:              "appt_" + uuid.New().String(),
		UserID:          actor.ID,
		Title:           req.Title,
		Description:     req.Description,
		Type:            apptType,
		Date:            date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Repeat:          repeat,
		CreatedAt:       time.Now().UTC(),
	}

	if err := h.repo.Create(r.Context(), appt); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: appt})
}

// Get handles GET /v1/appointments/{id}.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "Appointment ID is required", nil))
		return
	}

	appt, err := h.repo.GetByID(r.Context(), actor.ID, id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: appt})
}

// Update handles PATCH /v1/appointments/{id}.
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "Appointment ID is required", nil))
		return
	}

	var req UpdateAppointmentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	appt, err := h.repo.GetByID(r.Context(), actor.ID, id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Title != nil {
		appt.Title = *req.Title
	}
	if req.Description != nil {
		appt.Description = *req.Description
	}
	if req.Type != nil {
		apptType, ok := types.ParseAppointmentType(*req.Type)
		if !ok {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationEnum,
				"type must be one of work, school, medical, social, other", nil))
			return
		}
		appt.Type = apptType
	}
	if req.Date != nil {
		date, _ := time.Parse("2006-01-02", *req.Date)
		appt.Date = date
	}
	if req.Time != nil {
		appt.Time = req.Time
	}
	if req.DurationMinutes != nil {
		appt.DurationMinutes = req.DurationMinutes
	}
	if req.Repeat != nil {
		repeat, err := buildRepeatRule(req.Repeat, appt.Date)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		appt.Repeat = repeat
	}

	if err := h.repo.Update(r.Context(), appt); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: appt})
}

// Delete handles DELETE /v1/appointments/{id}.
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "Appointment ID is required", nil))
		return
	}

	if err := h.repo.Delete(r.Context(), actor.ID, id); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// buildRepeatRule converts a repeat request into a domain RepeatRule,
// enforcing that an until date never precedes the appointment's start.
func buildRepeatRule(req *RepeatRuleRequest, start time.Time) (*types.RepeatRule, error) {
	if req == nil {
		return nil, nil
	}

	days, ok := types.ParseWeekdaySet(req.Days)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationEnum,
			"repeat.days contains an unrecognized weekday", nil)
	}

	frequency, ok := types.ParseRepeatFrequency(req.Frequency)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationEnum,
			"repeat.frequency must be weekly or biweekly", nil)
	}

	rule := &types.RepeatRule{Days: days, Frequency: frequency}
	if req.Until != "" {
		until, _ := time.Parse("2006-01-02", req.Until)
		if until.Before(start) {
			return nil, types.NewAppError(types.ErrCodeValidationRepeatWindow,
				"repeat.until must not precede the appointment date", nil)
		}
		rule.Until = &until
	}
	return rule, nil
}
