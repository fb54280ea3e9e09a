/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures decoupling the internal domain model from the external
  API contract. Hour quantities cross the wire as JSON numbers; the domain
  keeps them as decimals.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

VALIDATION:
  Structural validation (types, presence) happens while decoding here;
  business validation belongs to the engine.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimbushr/absence-engine/absence"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	ManagerID string `json:"manager_id,omitempty"`

	TotalVacationHours     float64 `json:"total_vacation_hours"`
	TotalPermitHours       float64 `json:"total_permit_hours"`
	MonthlyVacationAccrual float64 `json:"monthly_vacation_accrual"`
	MonthlyPermitAccrual   float64 `json:"monthly_permit_accrual"`

	CreatedAt string `json:"created_at"`
}

func toEmployeeDTO(e *absence.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:        e.ID,
		Email:     e.Email,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Role:      string(e.Role),
		ManagerID: e.ManagerID,

		TotalVacationHours:     e.TotalVacationHours.InexactFloat64(),
		TotalPermitHours:       e.TotalPermitHours.InexactFloat64(),
		MonthlyVacationAccrual: e.MonthlyVacationAccrual.InexactFloat64(),
		MonthlyPermitAccrual:   e.MonthlyPermitAccrual.InexactFloat64(),

		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	ManagerID string `json:"manager_id"`

	TotalVacationHours     float64 `json:"total_vacation_hours"`
	TotalPermitHours       float64 `json:"total_permit_hours"`
	MonthlyVacationAccrual float64 `json:"monthly_vacation_accrual"`
	MonthlyPermitAccrual   float64 `json:"monthly_permit_accrual"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  EmployeeDTO `json:"user"`
}

type UpdateEmployeeRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	ManagerID *string `json:"manager_id"`
}

type UpdateHoursRequest struct {
	TotalVacationHours     *float64 `json:"total_vacation_hours"`
	TotalPermitHours       *float64 `json:"total_permit_hours"`
	MonthlyVacationAccrual *float64 `json:"monthly_vacation_accrual"`
	MonthlyPermitAccrual   *float64 `json:"monthly_permit_accrual"`
}

// =============================================================================
// REQUESTS
// =============================================================================

type RequestDTO struct {
	ID              string   `json:"id"`
	EmployeeID      string   `json:"employee_id"`
	Kind            string   `json:"kind"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	Hours           *float64 `json:"hours,omitempty"`
	Status          string   `json:"status"`
	Notes           string   `json:"notes,omitempty"`
	DecidedBy       string   `json:"decided_by,omitempty"`
	DecidedAt       string   `json:"decided_at,omitempty"`
	RejectionReason string   `json:"rejection_reason,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

func toRequestDTO(r *absence.Request) RequestDTO {
	dto := RequestDTO{
		ID:              r.ID,
		EmployeeID:      r.EmployeeID,
		Kind:            string(r.Kind),
		StartDate:       r.StartDate.Format("2006-01-02"),
		EndDate:         r.EndDate.Format("2006-01-02"),
		Status:          string(r.Status),
		Notes:           r.Notes,
		DecidedBy:       r.DecidedBy,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
	if r.Kind == absence.KindPermit {
		hours := r.Hours.InexactFloat64()
		dto.Hours = &hours
	}
	if r.DecidedAt != nil {
		dto.DecidedAt = r.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

func toRequestDTOs(rs []*absence.Request) []RequestDTO {
	out := make([]RequestDTO, len(rs))
	for i, r := range rs {
		out[i] = toRequestDTO(r)
	}
	return out
}

type CreateAbsenceRequest struct {
	Kind      string   `json:"kind"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Hours     *float64 `json:"hours"`
	Notes     string   `json:"notes"`
}

type AbsenceActionRequest struct {
	Action string `json:"action"` // approve | reject | pending
	Reason string `json:"reason"`
}

type OverrideStatusRequest struct {
	Status string `json:"status"` // pending | approved | rejected
	Reason string `json:"reason"`
}

// =============================================================================
// BALANCES AND LEDGER
// =============================================================================

type BucketBalanceDTO struct {
	Total          float64 `json:"total"`
	Used           float64 `json:"used"`
	Pending        float64 `json:"pending"`
	Remaining      float64 `json:"remaining"`
	MonthlyAccrual float64 `json:"monthly_accrual"`
}

type BalanceDTO struct {
	EmployeeID string           `json:"employee_id"`
	Vacation   BucketBalanceDTO `json:"vacation"`
	Permit     BucketBalanceDTO `json:"permit"`
}

func toBalanceDTO(b *absence.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID: b.EmployeeID,
		Vacation:   toBucketDTO(b.Vacation),
		Permit:     toBucketDTO(b.Permit),
	}
}

func toBucketDTO(b absence.BucketBalance) BucketBalanceDTO {
	return BucketBalanceDTO{
		Total:          b.Total.InexactFloat64(),
		Used:           b.Used.InexactFloat64(),
		Pending:        b.Pending.InexactFloat64(),
		Remaining:      b.Remaining.InexactFloat64(),
		MonthlyAccrual: b.MonthlyAccrual.InexactFloat64(),
	}
}

type AddHoursRequest struct {
	Bucket string  `json:"bucket"` // vacation | permit
	Hours  float64 `json:"hours"`
	Note   string  `json:"note"`
}

type AddHoursResponse struct {
	EmployeeID string  `json:"employee_id"`
	Bucket     string  `json:"bucket"`
	NewTotal   float64 `json:"new_total"`
}

type AdjustmentDTO struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	Bucket     string  `json:"bucket"`
	Hours      float64 `json:"hours"`
	Note       string  `json:"note,omitempty"`
	ActorID    string  `json:"actor_id"`
	CreatedAt  string  `json:"created_at"`
}

type AccrualRunDTO struct {
	ID               string `json:"id"`
	ActorID          string `json:"actor_id"`
	EmployeesUpdated int    `json:"employees_updated"`
	CreatedAt        string `json:"created_at"`
}

type StatsDTO struct {
	TotalEmployees   int            `json:"total_employees"`
	TotalRequests    int            `json:"total_requests"`
	PendingRequests  int            `json:"pending_requests"`
	ApprovedRequests int            `json:"approved_requests"`
	ApprovedByKind   map[string]int `json:"approved_by_kind"`
}

// =============================================================================
// DECODING HELPERS
// =============================================================================

func decimalFrom(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
