// Package memory provides an in-memory absence.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nimbushr/absence-engine/absence"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps everything in mutex-guarded maps. Values are copied on the
// way in and out so callers never share memory with the store.
type Store struct {
	mu          sync.RWMutex
	employees   map[string]*absence.Employee
	requests    map[string]*absence.Request
	adjustments []*absence.AdjustmentEntry
	accrualRuns []*absence.AccrualRun
}

var _ absence.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		employees: make(map[string]*absence.Employee),
		requests:  make(map[string]*absence.Request),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Store) InsertEmployee(_ context.Context, e *absence.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[e.ID]; ok {
		return absence.ErrConflict
	}
	for _, existing := range m.employees {
		if strings.EqualFold(existing.Email, e.Email) {
			return absence.ErrConflict
		}
	}
	cp := *e
	m.employees[e.ID] = &cp
	return nil
}

func (m *Store) UpdateEmployee(_ context.Context, e *absence.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[e.ID]; !ok {
		return absence.ErrNotFound
	}
	cp := *e
	m.employees[e.ID] = &cp
	return nil
}

func (m *Store) GetEmployee(_ context.Context, id string) (*absence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, absence.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Store) GetEmployeeByEmail(_ context.Context, email string) (*absence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.employees {
		if strings.EqualFold(e.Email, email) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, absence.ErrNotFound
}

func (m *Store) ListEmployees(_ context.Context) ([]*absence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*absence.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteEmployee removes the record together with the employee's requests
// (a request's owning employee must exist) and clears dependents' manager
// back-references. The manager edge is cleared, never cascaded.
func (m *Store) DeleteEmployee(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[id]; !ok {
		return absence.ErrNotFound
	}
	delete(m.employees, id)
	for rid, r := range m.requests {
		if r.EmployeeID == id {
			delete(m.requests, rid)
		}
	}
	for _, e := range m.employees {
		if e.ManagerID == id {
			e.ManagerID = ""
		}
	}
	return nil
}

func (m *Store) AddEmployeeHours(_ context.Context, id string, bucket absence.Bucket, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.employees[id]
	if !ok {
		return decimal.Zero, absence.ErrNotFound
	}
	switch bucket {
	case absence.BucketVacation:
		e.TotalVacationHours = e.TotalVacationHours.Add(amount)
		return e.TotalVacationHours, nil
	case absence.BucketPermit:
		e.TotalPermitHours = e.TotalPermitHours.Add(amount)
		return e.TotalPermitHours, nil
	}
	return decimal.Zero, absence.ErrInvalidInput
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Store) InsertRequest(_ context.Context, r *absence.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[r.ID]; ok {
		return absence.ErrConflict
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Store) UpdateRequest(_ context.Context, r *absence.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[r.ID]; !ok {
		return absence.ErrNotFound
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Store) GetRequest(_ context.Context, id string) (*absence.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, absence.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Store) DeleteRequest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[id]; !ok {
		return absence.ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

func (m *Store) ListRequests(_ context.Context, f absence.RequestFilter) ([]*absence.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*absence.Request
	for _, r := range m.requests {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// APPEND-ONLY LOGS
// =============================================================================

func (m *Store) AppendAdjustment(_ context.Context, e *absence.AdjustmentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.adjustments = append(m.adjustments, &cp)
	return nil
}

func (m *Store) ListAdjustments(_ context.Context, employeeID string) ([]*absence.AdjustmentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*absence.AdjustmentEntry
	for _, e := range m.adjustments {
		if employeeID == "" || e.EmployeeID == employeeID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Store) AppendAccrualRun(_ context.Context, r *absence.AccrualRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.accrualRuns = append(m.accrualRuns, &cp)
	return nil
}

func (m *Store) ListAccrualRuns(_ context.Context) ([]*absence.AccrualRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*absence.AccrualRun, 0, len(m.accrualRuns))
	for i := len(m.accrualRuns) - 1; i >= 0; i-- {
		cp := *m.accrualRuns[i]
		out = append(out, &cp)
	}
	return out, nil
}
