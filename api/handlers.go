/*
handlers.go - HTTP handlers for the absence management API

PURPOSE:
  Exposes the accounting engine over REST. Handles HTTP request/response
  and JSON serialization, then delegates every decision to the engine.

ENDPOINTS:
  Auth:
    POST /api/auth/register           Create an account (+ entitlements)
    POST /api/auth/login              Obtain a bearer token
    GET  /api/auth/me                 Current actor's record

  Employees:
    GET    /api/users                 List employees
    GET    /api/users/{id}            Get one employee
    PUT    /api/users/{id}            Administrative edit
    PUT    /api/users/{id}/hours      HR hours-only edit
    DELETE /api/users/{id}            Delete (clears manager back-refs)
    POST   /api/users/{id}/add-hours  Manual entitlement credit
    GET    /api/users/{id}/adjustments Credit log

  Absences:
    POST   /api/absences              Create request
    GET    /api/absences              Shared calendar (kind/status/user filters)
    GET    /api/absences/my           Own requests
    GET    /api/absences/pending      Pending queue (authority-scoped)
    PUT    /api/absences/{id}/action  approve | reject | pending
    PUT    /api/absences/{id}/status  Privileged status override
    DELETE /api/absences/{id}         Delete request

  Balances & accrual:
    GET  /api/balance/my              Own balance
    GET  /api/balance/all             Every employee's balance
    GET  /api/balance/{id}            One employee's balance
    POST /api/hours/monthly-accrual   Run the bulk accrual now
    GET  /api/hours/accrual-log       Accrual run log
    GET  /api/stats                   Counts by status/kind

ERROR HANDLING:
  Engine error kinds map onto HTTP status codes:
    Invalid-Input -> 400, Forbidden -> 403, Not-Found -> 404, Conflict -> 409
  Everything else is a 500.

SEE ALSO:
  - dto.go: request/response shapes
  - auth.go: token issue/verify and the actor middleware
  - server.go: router setup
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/nimbushr/absence-engine/absence"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Svc   *absence.Service
	Store absence.Store
	Auth  *TokenAuthority
}

// NewHandler creates a new handler.
func NewHandler(svc *absence.Service, store absence.Store, auth *TokenAuthority) *Handler {
	return &Handler{Svc: svc, Store: store, Auth: auth}
}

// =============================================================================
// AUTH
// =============================================================================

// Register creates an account with initial entitlement values and returns
// a token for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required", nil)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}

	e, err := h.Svc.RegisterEmployee(r.Context(), absence.RegisterInput{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         absence.Role(req.Role),
		ManagerID:    req.ManagerID,

		TotalVacationHours:     decimalFrom(req.TotalVacationHours),
		TotalPermitHours:       decimalFrom(req.TotalPermitHours),
		MonthlyVacationAccrual: decimalFrom(req.MonthlyVacationAccrual),
		MonthlyPermitAccrual:   decimalFrom(req.MonthlyPermitAccrual),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	token, err := h.Auth.Issue(e)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: toEmployeeDTO(e)})
}

// Login verifies credentials and returns a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	e, err := h.Store.GetEmployeeByEmail(r.Context(), req.Email)
	if err != nil || !checkPassword(e.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.Auth.Issue(e)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: toEmployeeDTO(e)})
}

// Me returns the acting employee's record.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	e, err := h.Store.GetEmployee(r.Context(), actor.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(e))
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Svc.ListEmployeeRecords(r.Context(), actorFrom(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Svc.GetEmployeeRecord(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(e))
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var role *absence.Role
	if req.Role != nil {
		v := absence.Role(*req.Role)
		role = &v
	}

	e, err := h.Svc.UpdateEmployee(r.Context(), actorFrom(r), chi.URLParam(r, "id"),
		absence.UpdateEmployeeInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Role:      role,
			ManagerID: req.ManagerID,
		})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(e))
}

func (h *Handler) UpdateEmployeeHours(w http.ResponseWriter, r *http.Request) {
	var req UpdateHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	e, err := h.Svc.UpdateEmployeeHours(r.Context(), actorFrom(r), chi.URLParam(r, "id"),
		absence.HoursUpdateInput{
			TotalVacationHours:     decimalPtr(req.TotalVacationHours),
			TotalPermitHours:       decimalPtr(req.TotalPermitHours),
			MonthlyVacationAccrual: decimalPtr(req.MonthlyVacationAccrual),
			MonthlyPermitAccrual:   decimalPtr(req.MonthlyPermitAccrual),
		})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(e))
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.RemoveEmployee(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Employee deleted"})
}

// AddHours applies a manual entitlement credit.
func (h *Handler) AddHours(w http.ResponseWriter, r *http.Request) {
	var req AddHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	employeeID := chi.URLParam(r, "id")
	bucket := absence.Bucket(req.Bucket)
	newTotal, err := h.Svc.AddHours(r.Context(), actorFrom(r), employeeID, bucket,
		decimalFrom(req.Hours), req.Note)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AddHoursResponse{
		EmployeeID: employeeID,
		Bucket:     req.Bucket,
		NewTotal:   newTotal.InexactFloat64(),
	})
}

func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Svc.Adjustments(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]AdjustmentDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AdjustmentDTO{
			ID:         e.ID,
			EmployeeID: e.EmployeeID,
			Bucket:     string(e.Bucket),
			Hours:      e.Hours.InexactFloat64(),
			Note:       e.Note,
			ActorID:    e.ActorID,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ABSENCE REQUESTS
// =============================================================================

func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	var req CreateAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date, want YYYY-MM-DD", err)
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date, want YYYY-MM-DD", err)
		return
	}

	created, err := h.Svc.CreateRequest(r.Context(), actorFrom(r), absence.CreateRequestInput{
		Kind:      absence.Kind(req.Kind),
		StartDate: start,
		EndDate:   end,
		Hours:     decimalPtr(req.Hours),
		Notes:     req.Notes,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// ListAbsences returns the shared calendar, optionally filtered.
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	requests, err := h.Svc.ListRequests(r.Context(), absence.RequestFilter{
		EmployeeID: q.Get("user"),
		Kind:       absence.Kind(q.Get("kind")),
		Status:     absence.Status(q.Get("status")),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

func (h *Handler) MyAbsences(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Svc.OwnRequests(r.Context(), actorFrom(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

func (h *Handler) PendingAbsences(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Svc.PendingRequests(r.Context(), actorFrom(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// AbsenceAction performs the normal approve/reject/reopen transition.
func (h *Handler) AbsenceAction(w http.ResponseWriter, r *http.Request) {
	var req AbsenceActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Svc.ApplyAction(r.Context(), actorFrom(r), chi.URLParam(r, "id"),
		absence.Action(req.Action), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// OverrideAbsenceStatus is the privileged status override.
func (h *Handler) OverrideAbsenceStatus(w http.ResponseWriter, r *http.Request) {
	var req OverrideStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Svc.OverrideStatus(r.Context(), actorFrom(r), chi.URLParam(r, "id"),
		absence.Status(req.Status), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

func (h *Handler) DeleteAbsence(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteRequest(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Request deleted"})
}

// =============================================================================
// BALANCES AND ACCRUAL
// =============================================================================

func (h *Handler) MyBalance(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	b, err := h.Svc.BalanceFor(r.Context(), actor, actor.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Svc.BalanceFor(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

func (h *Handler) AllBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Svc.AllBalances(r.Context(), actorFrom(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunAccrual triggers the bulk accrual on demand.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	run, err := h.Svc.RunAccrual(r.Context(), actorFrom(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccrualRunDTO(run))
}

func (h *Handler) AccrualLog(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Svc.AccrualLog(r.Context(), actorFrom(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]AccrualRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toAccrualRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func toAccrualRunDTO(run *absence.AccrualRun) AccrualRunDTO {
	return AccrualRunDTO{
		ID:               run.ID,
		ActorID:          run.ActorID,
		EmployeesUpdated: run.EmployeesUpdated,
		CreatedAt:        run.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// STATS
// =============================================================================

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.ComputeStats(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	byKind := make(map[string]int, len(stats.ApprovedByKind))
	for k, v := range stats.ApprovedByKind {
		byKind[string(k)] = v
	}
	writeJSON(w, http.StatusOK, StatsDTO{
		TotalEmployees:   stats.TotalEmployees,
		TotalRequests:    stats.TotalRequests,
		PendingRequests:  stats.PendingRequests,
		ApprovedRequests: stats.ApprovedRequests,
		ApprovedByKind:   byKind,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

// writeEngineError maps engine error kinds onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case absence.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	case absence.IsForbidden(err):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case absence.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case absence.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// writeError returns the error body. Client errors (4xx) carry the
// underlying detail; server errors are logged and the detail stays out of
// the response so wrapped internals never reach API consumers.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		if status >= http.StatusInternalServerError {
			log.WithError(err).Error(message)
		} else {
			body["detail"] = err.Error()
		}
	}
	writeJSON(w, status, body)
}
