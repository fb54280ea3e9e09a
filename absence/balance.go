/*
balance.go - Balance derivation

PURPOSE:
  Derives used/pending/remaining hours per bucket by combining the
  employee's ledger totals with their stored requests. Purely a read: no
  caching, no side effects, safe to call concurrently and arbitrarily often,
  always consistent with the stored records.

ACCOUNTING RULES:
  - Approved vacation consumes working-day-hours of the request's range.
  - Approved permit consumes the request's explicit hours field, exactly.
  - Sick requests consume neither bucket (tracked for reporting only).
  - Pending requests accumulate separately and are informational:
    remaining = total - used, never total - used - pending. Nothing in the
    system enforces a hard cap, so a pending request can be approved past
    the nominal remaining balance.
*/
package absence

import (
	"context"

	"github.com/shopspring/decimal"
)

// BucketBalance is the derived state of one entitlement bucket.
type BucketBalance struct {
	Total          decimal.Decimal
	Used           decimal.Decimal
	Pending        decimal.Decimal
	Remaining      decimal.Decimal
	MonthlyAccrual decimal.Decimal
}

// Balance is the derived entitlement state of one employee.
type Balance struct {
	EmployeeID string
	Vacation   BucketBalance
	Permit     BucketBalance
}

// ComputeBalance derives the employee's balance from stored records.
func (s *Service) ComputeBalance(ctx context.Context, employeeID string) (*Balance, error) {
	e, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	requests, err := s.store.ListRequests(ctx, RequestFilter{EmployeeID: employeeID})
	if err != nil {
		return nil, err
	}

	b := &Balance{
		EmployeeID: e.ID,
		Vacation: BucketBalance{
			Total:          e.TotalVacationHours,
			MonthlyAccrual: e.MonthlyVacationAccrual,
		},
		Permit: BucketBalance{
			Total:          e.TotalPermitHours,
			MonthlyAccrual: e.MonthlyPermitAccrual,
		},
	}

	for _, r := range requests {
		var vacation, permit *decimal.Decimal
		switch r.Status {
		case StatusApproved:
			vacation, permit = &b.Vacation.Used, &b.Permit.Used
		case StatusPending:
			vacation, permit = &b.Vacation.Pending, &b.Permit.Pending
		default:
			continue
		}

		switch r.Kind {
		case KindVacation:
			*vacation = vacation.Add(WorkingHours(r.StartDate, r.EndDate))
		case KindPermit:
			*permit = permit.Add(r.Hours)
		case KindSick:
			// Sick leave never draws down a bucket.
		}
	}

	b.Vacation.Remaining = b.Vacation.Total.Sub(b.Vacation.Used)
	b.Permit.Remaining = b.Permit.Total.Sub(b.Permit.Used)
	return b, nil
}

// BalanceFor applies the read authorization: actors always see their own
// balance; reading anyone else's requires CapViewAllBalances.
func (s *Service) BalanceFor(ctx context.Context, actor Actor, employeeID string) (*Balance, error) {
	if actor.ID != employeeID && !actor.Can(CapViewAllBalances) {
		return nil, forbiddenf("role %s may not view other employees' balances", actor.Role)
	}
	return s.ComputeBalance(ctx, employeeID)
}

// AllBalances derives every employee's balance.
func (s *Service) AllBalances(ctx context.Context, actor Actor) ([]*Balance, error) {
	if !actor.Can(CapViewAllBalances) {
		return nil, forbiddenf("role %s may not view all balances", actor.Role)
	}
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	balances := make([]*Balance, 0, len(employees))
	for _, e := range employees {
		b, err := s.ComputeBalance(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, nil
}
