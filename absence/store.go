/*
store.go - Persistence interface consumed by the engine

PURPOSE:
  The engine defines what it needs from the record store; backends implement
  it (store/sqlite for the real thing, store/memory for tests and dev).

CONTRACT:
  - Lookups return ErrNotFound (wrapped) for absent records.
  - Inserts return ErrConflict (wrapped) on duplicate id or email.
  - AddEmployeeHours is an atomic per-record increment. No cross-record
    transaction is assumed by the engine: each employee's accrual and each
    request's transition is independent.
  - adjustment_log and accrual_runs are append-only. No update or delete
    methods exist for them on purpose.
  - DeleteEmployee removes the employee's requests in the same operation
    (a request's owning employee must exist) and clears dependents' manager
    back-references; the manager edge is cleared, never cascaded.

SEE ALSO:
  - store/sqlite/sqlite.go
  - store/memory/memory.go
*/
package absence

import (
	"context"

	"github.com/shopspring/decimal"
)

// RequestFilter narrows ListRequests. Zero-valued fields are ignored.
type RequestFilter struct {
	EmployeeID string
	Kind       Kind
	Status     Status
}

// Store is the persistence collaborator.
type Store interface {
	// Employees
	InsertEmployee(ctx context.Context, e *Employee) error
	UpdateEmployee(ctx context.Context, e *Employee) error
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	GetEmployeeByEmail(ctx context.Context, email string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)
	DeleteEmployee(ctx context.Context, id string) error

	// AddEmployeeHours atomically increments the employee's total for the
	// given bucket and returns the new total.
	AddEmployeeHours(ctx context.Context, id string, bucket Bucket, amount decimal.Decimal) (decimal.Decimal, error)

	// Requests
	InsertRequest(ctx context.Context, r *Request) error
	UpdateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	DeleteRequest(ctx context.Context, id string) error
	ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error)

	// Append-only logs
	AppendAdjustment(ctx context.Context, e *AdjustmentEntry) error
	ListAdjustments(ctx context.Context, employeeID string) ([]*AdjustmentEntry, error)
	AppendAccrualRun(ctx context.Context, r *AccrualRun) error
	ListAccrualRuns(ctx context.Context) ([]*AccrualRun, error)
}
