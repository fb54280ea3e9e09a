/*
ledger.go - Manual credits and the bulk accrual operation

PURPOSE:
  AddHours credits one employee's bucket and appends an immutable
  AdjustmentEntry. RunAccrual credits every employee's buckets by their
  monthly rates and appends one AccrualRun row per invocation.

IDEMPOTENCY:
  RunAccrual carries NO period guard. Invoking it twice in the same month
  credits every employee twice. The accrual run log makes repeated runs
  visible to an operator; refusing one is a deliberate non-feature (see
  DESIGN.md).
*/
package absence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// =============================================================================
// MANUAL CREDIT
// =============================================================================

// AddHours atomically increments the employee's bucket total by amount,
// appends an adjustment log entry, and returns the new total. amount must
// be positive.
func (s *Service) AddHours(ctx context.Context, actor Actor, employeeID string, bucket Bucket, amount decimal.Decimal, note string) (decimal.Decimal, error) {
	if !actor.Can(CapCreditHours) {
		return decimal.Zero, forbiddenf("role %s may not credit hours", actor.Role)
	}
	if !bucket.Valid() {
		return decimal.Zero, invalidf("unrecognized bucket %q", bucket)
	}
	if !amount.IsPositive() {
		return decimal.Zero, invalidf("credit amount must be positive, got %s", amount)
	}
	if _, err := s.store.GetEmployee(ctx, employeeID); err != nil {
		return decimal.Zero, err
	}

	newTotal, err := s.store.AddEmployeeHours(ctx, employeeID, bucket, amount)
	if err != nil {
		return decimal.Zero, err
	}

	entry := &AdjustmentEntry{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Bucket:     bucket,
		Hours:      amount,
		Note:       note,
		ActorID:    actor.ID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.AppendAdjustment(ctx, entry); err != nil {
		return decimal.Zero, err
	}

	log.WithFields(log.Fields{
		"employee": employeeID,
		"bucket":   string(bucket),
		"hours":    amount.String(),
		"actor":    actor.ID,
	}).Info("manual hours credit")

	return newTotal, nil
}

// Adjustments returns the append-only credit log for one employee.
func (s *Service) Adjustments(ctx context.Context, actor Actor, employeeID string) ([]*AdjustmentEntry, error) {
	if actor.ID != employeeID && !actor.Can(CapViewAllBalances) {
		return nil, forbiddenf("role %s may not view other employees' adjustments", actor.Role)
	}
	return s.store.ListAdjustments(ctx, employeeID)
}

// =============================================================================
// BULK ACCRUAL
// =============================================================================

// RunAccrual is the on-demand entry point for privileged actors.
func (s *Service) RunAccrual(ctx context.Context, actor Actor) (*AccrualRun, error) {
	if !actor.Can(CapRunAccrual) {
		return nil, forbiddenf("role %s may not run the accrual", actor.Role)
	}
	return s.runAccrual(ctx, actor.ID)
}

// RunScheduledAccrual is the scheduler's entry point; the run is logged
// under the system actor marker.
func (s *Service) RunScheduledAccrual(ctx context.Context) (*AccrualRun, error) {
	return s.runAccrual(ctx, SystemActorID)
}

// runAccrual credits each employee's buckets by their monthly rates. The
// two buckets accrue independently: an employee may accrue vacation only,
// permit only, both, or neither. Per-employee increments are atomic at the
// store; no cross-employee transaction is attempted.
func (s *Service) runAccrual(ctx context.Context, actorID string) (*AccrualRun, error) {
	start := time.Now()
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	updated := 0
	for _, e := range employees {
		credited := false
		if e.MonthlyVacationAccrual.IsPositive() {
			if _, err := s.store.AddEmployeeHours(ctx, e.ID, BucketVacation, e.MonthlyVacationAccrual); err != nil {
				log.WithError(err).WithField("employee", e.ID).Error("vacation accrual failed")
				continue
			}
			credited = true
		}
		if e.MonthlyPermitAccrual.IsPositive() {
			if _, err := s.store.AddEmployeeHours(ctx, e.ID, BucketPermit, e.MonthlyPermitAccrual); err != nil {
				log.WithError(err).WithField("employee", e.ID).Error("permit accrual failed")
				continue
			}
			credited = true
		}
		if credited {
			updated++
		}
	}

	run := &AccrualRun{
		ID:               uuid.NewString(),
		ActorID:          actorID,
		EmployeesUpdated: updated,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.AppendAccrualRun(ctx, run); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"actor":    actorID,
		"updated":  updated,
		"duration": time.Since(start).String(),
	}).Info("accrual run completed")

	return run, nil
}

// AccrualLog returns every recorded accrual run, newest first.
func (s *Service) AccrualLog(ctx context.Context, actor Actor) ([]*AccrualRun, error) {
	if !actor.Can(CapViewAccrualLog) {
		return nil, forbiddenf("role %s may not view the accrual log", actor.Role)
	}
	return s.store.ListAccrualRuns(ctx)
}
