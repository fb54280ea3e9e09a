/*
service.go - Engine service wiring and employee record operations

PURPOSE:
  Service ties the persistence collaborator and the notification sink to the
  engine operations. Request lifecycle lives in machine.go, balance
  derivation in balance.go, ledger/accrual in ledger.go; this file carries
  the constructor, the fire-and-forget notification path, and the employee
  record operations (registration, edits, deletion, stats).

NOTIFICATIONS:
  The sink is called on a separate goroutine, failures are logged and
  dropped. A dead mail server must never roll back or delay a state change.
*/
package absence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Notifier is the outbound notification sink. Implementations live in the
// notify package; the engine only knows this shape.
type Notifier interface {
	Notify(to, subject, body string) error
}

// Service exposes the engine operations over a Store and a Notifier.
type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

// NewService creates the engine service. notifier may be nil, in which case
// notification side effects are skipped entirely.
func NewService(store Store, notifier Notifier) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// notifyAsync fires a notification without blocking the caller. Sink
// failures and panics are logged and otherwise ignored.
func (s *Service) notifyAsync(to, subject, body string) {
	if s.notifier == nil || to == "" {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("recipient", to).Warnf("notification sink panicked: %v", r)
			}
		}()
		if err := s.notifier.Notify(to, subject, body); err != nil {
			log.WithError(err).WithField("recipient", to).Warn("notification failed")
		}
	}()
}

// =============================================================================
// EMPLOYEE REGISTRATION AND EDITS
// =============================================================================

// RegisterInput carries a new employee record. PasswordHash is produced by
// the auth collaborator; the engine never sees plaintext credentials.
type RegisterInput struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	ManagerID    string

	TotalVacationHours     decimal.Decimal
	TotalPermitHours       decimal.Decimal
	MonthlyVacationAccrual decimal.Decimal
	MonthlyPermitAccrual   decimal.Decimal
}

// RegisterEmployee creates an employee with initial entitlement values.
func (s *Service) RegisterEmployee(ctx context.Context, in RegisterInput) (*Employee, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, invalidf("email is required")
	}
	role := in.Role
	if role == "" {
		role = RoleEmployee
	}
	if !role.Valid() {
		return nil, invalidf("unrecognized role %q", role)
	}

	e := &Employee{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		PasswordHash: in.PasswordHash,

		TotalVacationHours:     in.TotalVacationHours,
		TotalPermitHours:       in.TotalPermitHours,
		MonthlyVacationAccrual: in.MonthlyVacationAccrual,
		MonthlyPermitAccrual:   in.MonthlyPermitAccrual,

		CreatedAt: s.now().UTC(),
	}

	if in.ManagerID != "" {
		if err := s.validateManagerRef(ctx, e.ID, in.ManagerID); err != nil {
			return nil, err
		}
		e.ManagerID = in.ManagerID
	}

	if err := s.store.InsertEmployee(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEmployeeInput carries an administrative edit. Nil fields are left
// untouched.
type UpdateEmployeeInput struct {
	FirstName *string
	LastName  *string
	Role      *Role
	ManagerID *string // empty string clears the reference
}

// UpdateEmployee applies an administrative edit to profile, role and
// manager reference.
func (s *Service) UpdateEmployee(ctx context.Context, actor Actor, id string, in UpdateEmployeeInput) (*Employee, error) {
	if !actor.Can(CapManageEmployees) {
		return nil, forbiddenf("role %s may not edit employees", actor.Role)
	}
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		e.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		e.LastName = *in.LastName
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, invalidf("unrecognized role %q", *in.Role)
		}
		e.Role = *in.Role
	}
	if in.ManagerID != nil {
		if *in.ManagerID != "" {
			if err := s.validateManagerRef(ctx, e.ID, *in.ManagerID); err != nil {
				return nil, err
			}
		}
		e.ManagerID = *in.ManagerID
	}

	if err := s.store.UpdateEmployee(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// HoursUpdateInput edits entitlement totals and accrual rates only.
type HoursUpdateInput struct {
	TotalVacationHours     *decimal.Decimal
	TotalPermitHours       *decimal.Decimal
	MonthlyVacationAccrual *decimal.Decimal
	MonthlyPermitAccrual   *decimal.Decimal
}

// UpdateEmployeeHours is the HR-scoped hours-only edit: it can touch the
// four entitlement fields and nothing else.
func (s *Service) UpdateEmployeeHours(ctx context.Context, actor Actor, id string, in HoursUpdateInput) (*Employee, error) {
	if !actor.Can(CapEditHours) {
		return nil, forbiddenf("role %s may not edit entitlement hours", actor.Role)
	}
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.TotalVacationHours != nil {
		e.TotalVacationHours = *in.TotalVacationHours
	}
	if in.TotalPermitHours != nil {
		e.TotalPermitHours = *in.TotalPermitHours
	}
	if in.MonthlyVacationAccrual != nil {
		e.MonthlyVacationAccrual = *in.MonthlyVacationAccrual
	}
	if in.MonthlyPermitAccrual != nil {
		e.MonthlyPermitAccrual = *in.MonthlyPermitAccrual
	}

	if err := s.store.UpdateEmployee(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEmployeeRecord returns one employee. Actors may always read their own
// record.
func (s *Service) GetEmployeeRecord(ctx context.Context, actor Actor, id string) (*Employee, error) {
	if actor.ID != id && !actor.Can(CapViewEmployees) {
		return nil, forbiddenf("role %s may not view other employees", actor.Role)
	}
	return s.store.GetEmployee(ctx, id)
}

// ListEmployeeRecords returns all employees.
func (s *Service) ListEmployeeRecords(ctx context.Context, actor Actor) ([]*Employee, error) {
	if !actor.Can(CapViewEmployees) {
		return nil, forbiddenf("role %s may not list employees", actor.Role)
	}
	return s.store.ListEmployees(ctx)
}

// RemoveEmployee deletes an employee record. The store clears dependents'
// manager back-references; it never cascade-deletes the dependents.
func (s *Service) RemoveEmployee(ctx context.Context, actor Actor, id string) error {
	if !actor.Can(CapManageEmployees) {
		return forbiddenf("role %s may not delete employees", actor.Role)
	}
	if actor.ID == id {
		return invalidf("an employee cannot delete their own account")
	}
	if _, err := s.store.GetEmployee(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteEmployee(ctx, id)
}

// validateManagerRef checks that a manager reference points at another
// existing employee, never at the employee itself.
func (s *Service) validateManagerRef(ctx context.Context, employeeID, managerID string) error {
	if managerID == employeeID {
		return invalidf("manager reference cannot point at the employee itself")
	}
	if _, err := s.store.GetEmployee(ctx, managerID); err != nil {
		if IsNotFound(err) {
			return invalidf("manager %s does not exist", managerID)
		}
		return err
	}
	return nil
}

// =============================================================================
// STATS
// =============================================================================

// Stats is the reporting snapshot exposed to every authenticated actor.
type Stats struct {
	TotalEmployees   int
	TotalRequests    int
	PendingRequests  int
	ApprovedRequests int
	ApprovedByKind   map[Kind]int
}

// ComputeStats counts employees and requests by status and kind.
func (s *Service) ComputeStats(ctx context.Context) (*Stats, error) {
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := s.store.ListRequests(ctx, RequestFilter{})
	if err != nil {
		return nil, err
	}

	st := &Stats{
		TotalEmployees: len(employees),
		TotalRequests:  len(requests),
		ApprovedByKind: map[Kind]int{KindVacation: 0, KindPermit: 0, KindSick: 0},
	}
	for _, r := range requests {
		switch r.Status {
		case StatusPending:
			st.PendingRequests++
		case StatusApproved:
			st.ApprovedRequests++
			st.ApprovedByKind[r.Kind]++
		}
	}
	return st, nil
}
