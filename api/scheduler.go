/*
scheduler.go - Automated monthly accrual scheduler

PURPOSE:
  Fires the bulk entitlement accrual once a month without operator
  involvement. The run is the same operation the monthly-accrual endpoint
  exposes; the scheduler only decides WHEN, never WHAT.

DESIGN:
  - Background goroutine armed with a timer for the next firing time
  - Fires on the 1st of every month at 02:00 server time, then re-arms
  - The accrual itself carries no period guard: if an operator also runs
    the endpoint that month, employees are credited twice. The accrual run
    log is the operator's window into that.

USAGE:
  scheduler := NewAccrualScheduler(svc)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAccrual endpoint (manual trigger)
  - absence/ledger.go: the accrual operation
*/
package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nimbushr/absence-engine/absence"
)

// AccrualScheduler runs the monthly accrual unattended.
type AccrualScheduler struct {
	Svc     *absence.Service
	Enabled bool

	// nextFire computes the next firing instant; overridable in tests.
	nextFire func(after time.Time) time.Time

	timer *time.Timer
	stop  chan struct{}
	wg    sync.WaitGroup
	mu    sync.Mutex
}

// NewAccrualScheduler creates a new scheduler.
func NewAccrualScheduler(svc *absence.Service) *AccrualScheduler {
	return &AccrualScheduler{
		Svc:      svc,
		Enabled:  true,
		nextFire: nextMonthlyFire,
		stop:     make(chan struct{}),
	}
}

// nextMonthlyFire returns the first 02:00 on the 1st of a month strictly
// after the given instant, in the same location.
func nextMonthlyFire(after time.Time) time.Time {
	fire := time.Date(after.Year(), after.Month(), 1, 2, 0, 0, 0, after.Location())
	for !fire.After(after) {
		fire = fire.AddDate(0, 1, 0)
	}
	return fire
}

// Start begins the scheduler.
func (as *AccrualScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		log.Info("accrual scheduler disabled, not starting")
		return
	}

	fire := as.nextFire(time.Now())
	as.timer = time.NewTimer(time.Until(fire))
	as.wg.Add(1)

	go as.run()

	log.WithField("next_run", fire.Format(time.RFC3339)).Info("accrual scheduler started")
}

// Stop stops the scheduler. The timer is only touched after the run
// goroutine has exited, so Stop never races run's re-arm.
func (as *AccrualScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.timer == nil {
		return
	}
	close(as.stop)
	as.wg.Wait()
	as.timer.Stop()
	log.Info("accrual scheduler stopped")
}

func (as *AccrualScheduler) run() {
	defer as.wg.Done()

	for {
		select {
		case <-as.timer.C:
			as.fire()
			// Safe without a lock: Stop touches the timer only after
			// this goroutine has returned.
			next := as.nextFire(time.Now())
			as.timer.Reset(time.Until(next))
			log.WithField("next_run", next.Format(time.RFC3339)).Info("accrual scheduler re-armed")
		case <-as.stop:
			return
		}
	}
}

func (as *AccrualScheduler) fire() {
	run, err := as.Svc.RunScheduledAccrual(context.Background())
	if err != nil {
		log.WithError(err).Error("scheduled accrual failed")
		return
	}
	log.WithFields(log.Fields{
		"run":     run.ID,
		"updated": run.EmployeesUpdated,
	}).Info("scheduled accrual completed")
}
