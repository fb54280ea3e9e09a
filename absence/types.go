// Package absence implements the leave entitlement accounting engine:
// per-employee entitlement ledgers, balance derivation, the absence request
// state machine, and the recurring accrual operation.
package absence

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLOSED ENUMERATIONS
// =============================================================================

// Role is the closed set of actor roles. Authorization decisions key off
// this type only; free-form role strings are rejected at the boundary.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleHR, RoleEmployee:
		return true
	}
	return false
}

// Kind is the closed set of absence kinds.
type Kind string

const (
	KindVacation Kind = "vacation"
	KindPermit   Kind = "permit"
	KindSick     Kind = "sick"
)

func (k Kind) Valid() bool {
	switch k {
	case KindVacation, KindPermit, KindSick:
		return true
	}
	return false
}

// Status is the closed set of request states. Transition legality lives in
// machine.go; nothing else re-validates status strings ad hoc.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Bucket identifies one of the two hour-denominated entitlement allowances.
// Sick leave is tracked but never consumes a bucket.
type Bucket string

const (
	BucketVacation Bucket = "vacation"
	BucketPermit   Bucket = "permit"
)

func (b Bucket) Valid() bool {
	return b == BucketVacation || b == BucketPermit
}

// =============================================================================
// RECORDS
// =============================================================================

// Employee carries identity, role, the optional manager back-reference and
// the four entitlement fields. Balances are never stored on this record;
// they are derived at read time (see balance.go).
type Employee struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	ManagerID    string // lookup-only back-reference, never an ownership edge
	PasswordHash string

	TotalVacationHours     decimal.Decimal
	TotalPermitHours       decimal.Decimal
	MonthlyVacationAccrual decimal.Decimal
	MonthlyPermitAccrual   decimal.Decimal

	CreatedAt time.Time
}

// FullName returns the display name used in notifications and audit stamps.
func (e *Employee) FullName() string {
	if e.FirstName == "" {
		return e.LastName
	}
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// Request is a single absence request. EmployeeID is immutable after
// creation; status changes go through the state machine only.
//
// Invariant: Hours is positive if and only if Kind is KindPermit. For
// vacation and sick the consumed quantity is derived from the date range.
// Invariant: StartDate <= EndDate (dates, inclusive on both ends).
type Request struct {
	ID         string
	EmployeeID string
	Kind       Kind
	StartDate  time.Time // date-granular, UTC midnight
	EndDate    time.Time // date-granular, UTC midnight, inclusive
	Hours      decimal.Decimal
	Status     Status
	Notes      string

	// Decision stamp, set on every transition via action or override.
	DecidedBy       string
	DecidedAt       *time.Time
	RejectionReason string // cleared on any non-rejected outcome

	CreatedAt time.Time
}

// AdjustmentEntry is one immutable record of a manual entitlement credit.
// Append-only; never mutated or deleted.
type AdjustmentEntry struct {
	ID         string
	EmployeeID string
	Bucket     Bucket
	Hours      decimal.Decimal
	Note       string
	ActorID    string
	CreatedAt  time.Time
}

// AccrualRun is one immutable record of a bulk accrual execution.
// ActorID is SystemActorID for scheduled runs. Append-only.
type AccrualRun struct {
	ID               string
	ActorID          string
	EmployeesUpdated int
	CreatedAt        time.Time
}

// SystemActorID marks accrual runs triggered by the scheduler rather than
// a privileged user.
const SystemActorID = "system"

// =============================================================================
// ACTOR
// =============================================================================

// Actor is the authenticated-actor record supplied by the auth collaborator
// on every call. The engine never looks tokens up itself.
type Actor struct {
	ID        string
	Role      Role
	ManagerID string
}

// SystemActor is the acting identity for scheduler-driven operations.
var SystemActor = Actor{ID: SystemActorID, Role: RoleAdmin}
