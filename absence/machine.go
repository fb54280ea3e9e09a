/*
machine.go - Absence request state machine

PURPOSE:
  Owns the lifecycle of a request: creation, the single pending ->
  approved|rejected decision, the reopen no-op, the privileged override that
  bypasses the normal transition, and deletion.

TRANSITIONS:
  (none)            create    -> pending    requesting employee
  pending           approve   -> approved   admin | HR | owner's manager
  pending           reject    -> rejected   same (reason optional)
  pending           reopen    -> pending    same (no-op but stamped)
  approved|rejected override  -> any        admin | HR | owner's manager
  pending           delete    -> (removed)  owner; admin at any status

  Legality is encoded in the transition table below; nothing else
  re-validates status values.

STAMPING:
  Every transition records acting identity and timestamp. The rejection
  reason is kept only while the outcome is rejected and cleared otherwise.

NOTIFICATIONS:
  Every status change fires a notification to the requester through the
  fire-and-forget path in service.go. Creation notifies the approvers.

CONCURRENCY:
  Transitions on the same request are not mutually excluded. Two concurrent
  decisions both succeed and the later write wins; see the last-writer-wins
  assertions in machine_test.go.
*/
package absence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Action is a normal (non-override) transition event.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReopen  Action = "pending"
)

// actionTargets is the single source of transition legality for normal
// actions. All three are legal only from StatusPending.
var actionTargets = map[Action]Status{
	ActionApprove: StatusApproved,
	ActionReject:  StatusRejected,
	ActionReopen:  StatusPending,
}

// =============================================================================
// CREATE
// =============================================================================

// CreateRequestInput carries a new request from the owning employee.
// Hours is mandatory for permit requests and ignored for the others.
type CreateRequestInput struct {
	Kind      Kind
	StartDate time.Time
	EndDate   time.Time
	Hours     *decimal.Decimal
	Notes     string
}

// CreateRequest validates and stores a new request in the pending state,
// then notifies the actors who can decide it.
func (s *Service) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (*Request, error) {
	owner, err := s.store.GetEmployee(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if !in.Kind.Valid() {
		return nil, invalidf("unrecognized absence kind %q", in.Kind)
	}

	start, end := Date(in.StartDate), Date(in.EndDate)
	if start.After(end) {
		return nil, invalidf("start date %s is after end date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	hours := decimal.Zero
	if in.Kind == KindPermit {
		if in.Hours == nil || !in.Hours.IsPositive() {
			return nil, invalidf("permit requests require a positive hours quantity")
		}
		hours = *in.Hours
	}

	r := &Request{
		ID:         uuid.NewString(),
		EmployeeID: owner.ID,
		Kind:       in.Kind,
		StartDate:  start,
		EndDate:    end,
		Hours:      hours,
		Status:     StatusPending,
		Notes:      in.Notes,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.store.InsertRequest(ctx, r); err != nil {
		return nil, err
	}

	s.notifyApprovers(ctx, owner, r)
	return r, nil
}

// =============================================================================
// DECIDE (approve / reject / reopen)
// =============================================================================

// ApplyAction performs the normal pending -> approved|rejected transition,
// or the reopen no-op. Only admins, HR, or the owner's direct manager may
// act; resolved requests need OverrideStatus instead.
func (s *Service) ApplyAction(ctx context.Context, actor Actor, requestID string, action Action, reason string) (*Request, error) {
	target, ok := actionTargets[action]
	if !ok {
		return nil, invalidf("unrecognized action %q", action)
	}

	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	owner, err := s.store.GetEmployee(ctx, r.EmployeeID)
	if err != nil {
		return nil, err
	}

	if !actor.CanActOn(CapDecideRequest, owner) {
		return nil, forbiddenf("actor %s may not decide requests for employee %s", actor.ID, owner.ID)
	}
	if r.Status != StatusPending {
		return nil, invalidf("request %s has already been handled", r.ID)
	}

	changed := r.Status != target
	s.stamp(r, actor, target, reason)

	if err := s.store.UpdateRequest(ctx, r); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"request": r.ID,
		"actor":   actor.ID,
		"action":  string(action),
		"status":  string(r.Status),
	}).Info("request transition")

	if changed {
		s.notifyRequester(owner, r)
	}
	return r, nil
}

// OverrideStatus is the privileged, unconstrained status change. It may
// move a request from any state to any state, including back to pending
// (reopen of a resolved request).
func (s *Service) OverrideStatus(ctx context.Context, actor Actor, requestID string, newStatus Status, reason string) (*Request, error) {
	if !newStatus.Valid() {
		return nil, invalidf("unrecognized status %q", newStatus)
	}

	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	owner, err := s.store.GetEmployee(ctx, r.EmployeeID)
	if err != nil {
		return nil, err
	}

	if !actor.CanActOn(CapOverrideStatus, owner) {
		return nil, forbiddenf("actor %s may not override requests for employee %s", actor.ID, owner.ID)
	}

	changed := r.Status != newStatus
	s.stamp(r, actor, newStatus, reason)

	if err := s.store.UpdateRequest(ctx, r); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"request": r.ID,
		"actor":   actor.ID,
		"status":  string(newStatus),
	}).Info("request status override")

	if changed {
		s.notifyRequester(owner, r)
	}
	return r, nil
}

// stamp applies the target status and the decision audit fields. The
// rejection reason survives only a rejected outcome.
func (s *Service) stamp(r *Request, actor Actor, target Status, reason string) {
	now := s.now().UTC()
	r.Status = target
	r.DecidedBy = actor.ID
	r.DecidedAt = &now
	if target == StatusRejected {
		r.RejectionReason = reason
	} else {
		r.RejectionReason = ""
	}
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteRequest removes a request. The owning employee may delete their own
// request while it is pending; an admin may delete any request regardless
// of status.
func (s *Service) DeleteRequest(ctx context.Context, actor Actor, requestID string) error {
	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	if actor.Role != RoleAdmin {
		if r.EmployeeID != actor.ID {
			return forbiddenf("actor %s may not delete another employee's request", actor.ID)
		}
		if r.Status != StatusPending {
			return invalidf("only pending requests can be deleted by their owner")
		}
	}

	return s.store.DeleteRequest(ctx, requestID)
}

// =============================================================================
// QUERIES
// =============================================================================

// ListRequests returns requests matching the filter. Every authenticated
// actor may read the shared absence calendar.
func (s *Service) ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, invalidf("unrecognized absence kind %q", f.Kind)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalidf("unrecognized status %q", f.Status)
	}
	return s.store.ListRequests(ctx, f)
}

// OwnRequests returns the actor's requests.
func (s *Service) OwnRequests(ctx context.Context, actor Actor) ([]*Request, error) {
	return s.store.ListRequests(ctx, RequestFilter{EmployeeID: actor.ID})
}

// PendingRequests returns the pending requests the actor has authority to
// decide: all of them for admin and HR, the direct team for a manager.
func (s *Service) PendingRequests(ctx context.Context, actor Actor) ([]*Request, error) {
	if !actor.Can(CapDecideRequest) {
		return nil, forbiddenf("role %s may not review pending requests", actor.Role)
	}

	pending, err := s.store.ListRequests(ctx, RequestFilter{Status: StatusPending})
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleManager {
		return pending, nil
	}

	// Manager: keep only direct reports' requests.
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	team := make(map[string]bool)
	for _, e := range employees {
		if e.ManagerID == actor.ID {
			team[e.ID] = true
		}
	}

	scoped := pending[:0]
	for _, r := range pending {
		if team[r.EmployeeID] {
			scoped = append(scoped, r)
		}
	}
	return scoped, nil
}

// =============================================================================
// NOTIFICATION CONTENT
// =============================================================================

func (s *Service) notifyApprovers(ctx context.Context, owner *Employee, r *Request) {
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		log.WithError(err).Warn("could not resolve approvers for notification")
		return
	}

	subject := fmt.Sprintf("New %s request from %s", r.Kind, owner.FullName())
	body := fmt.Sprintf("%s requested %s from %s to %s.\nNotes: %s",
		owner.FullName(), r.Kind,
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"),
		orDash(r.Notes))

	for _, e := range employees {
		if e.Role == RoleAdmin || (e.Role == RoleManager && e.ID == owner.ManagerID) {
			s.notifyAsync(e.Email, subject, body)
		}
	}
}

func (s *Service) notifyRequester(owner *Employee, r *Request) {
	var subject, outcome string
	switch r.Status {
	case StatusApproved:
		subject = "Request approved"
		outcome = "Your absence request has been APPROVED."
	case StatusRejected:
		subject = "Request rejected"
		outcome = fmt.Sprintf("Your absence request has been REJECTED.\nReason: %s", orDash(r.RejectionReason))
	default:
		subject = "Request reopened"
		outcome = "Your absence request is pending review again."
	}

	body := fmt.Sprintf("%s\nKind: %s\nFrom: %s\nTo: %s",
		outcome, r.Kind,
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))

	s.notifyAsync(owner.Email, subject, body)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
