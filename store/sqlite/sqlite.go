/*
Package sqlite provides the SQLite-backed implementation of absence.Store.

PURPOSE:
  Persists employees, absence requests and the two append-only logs. The
  same patterns apply to PostgreSQL in production - only minor SQL dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  adjustment_log and accrual_runs have INSERT and SELECT paths only. There
  are no UPDATE or DELETE statements for them anywhere in this package.

DECIMAL HANDLING:
  Hour quantities are stored as TEXT and parsed with shopspring/decimal to
  avoid floating-point drift in balances.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. AddEmployeeHours
  runs a read-modify-write inside a single database transaction under the
  write lock, which gives the per-record atomic increment the engine
  expects. Nothing here serializes transitions on the same request: two
  concurrent decisions both succeed and the later write wins.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) plus foreign keys on.
  Deleting an employee removes their requests through ON DELETE CASCADE and
  explicitly clears dependents' manager back-references (clear, never
  cascade, for the manager edge).

USAGE:
  store, err := sqlite.New("./data/absences.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - absence/store.go: interface contract
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/nimbushr/absence-engine/absence"
)

// Store implements absence.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ absence.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		manager_id TEXT,
		password_hash TEXT NOT NULL DEFAULT '',
		total_vacation_hours TEXT NOT NULL DEFAULT '0',
		total_permit_hours TEXT NOT NULL DEFAULT '0',
		monthly_vacation_accrual TEXT NOT NULL DEFAULT '0',
		monthly_permit_accrual TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_manager ON employees(manager_id);

	CREATE TABLE IF NOT EXISTS absence_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		hours TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		decided_by TEXT,
		decided_at TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee ON absence_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON absence_requests(status);

	-- Append-only: no UPDATE/DELETE path exists for the two tables below.
	CREATE TABLE IF NOT EXISTS adjustment_log (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		bucket TEXT NOT NULL,
		hours TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		actor_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_employee ON adjustment_log(employee_id);

	CREATE TABLE IF NOT EXISTS accrual_runs (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		employees_updated INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) InsertEmployee(ctx context.Context, e *absence.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (
			id, email, first_name, last_name, role, manager_id, password_hash,
			total_vacation_hours, total_permit_hours,
			monthly_vacation_accrual, monthly_permit_accrual, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Email, e.FirstName, e.LastName, string(e.Role),
		nullString(e.ManagerID), e.PasswordHash,
		e.TotalVacationHours.String(), e.TotalPermitHours.String(),
		e.MonthlyVacationAccrual.String(), e.MonthlyPermitAccrual.String(),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("employee %s: %w", e.Email, absence.ErrConflict)
	}
	return err
}

func (s *Store) UpdateEmployee(ctx context.Context, e *absence.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE employees SET
			email = ?, first_name = ?, last_name = ?, role = ?, manager_id = ?,
			password_hash = ?,
			total_vacation_hours = ?, total_permit_hours = ?,
			monthly_vacation_accrual = ?, monthly_permit_accrual = ?
		WHERE id = ?`,
		e.Email, e.FirstName, e.LastName, string(e.Role), nullString(e.ManagerID),
		e.PasswordHash,
		e.TotalVacationHours.String(), e.TotalPermitHours.String(),
		e.MonthlyVacationAccrual.String(), e.MonthlyPermitAccrual.String(),
		e.ID,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("employee %s: %w", e.Email, absence.ErrConflict)
	}
	if err != nil {
		return err
	}
	return requireRow(res, "employee", e.ID)
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployeeBy(ctx, "id = ?", id)
}

func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployeeBy(ctx, "email = ? COLLATE NOCASE", email)
}

func (s *Store) getEmployeeBy(ctx context.Context, where string, arg any) (*absence.Employee, error) {
	row := s.db.QueryRowContext(ctx, selectEmployee+" WHERE "+where, arg)
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("employee %v: %w", arg, absence.ErrNotFound)
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context) ([]*absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectEmployee+" ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*absence.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEmployee removes the employee and, in the same transaction, clears
// dependents' manager back-references. Requests owned by the employee go
// with them via the schema's ON DELETE CASCADE.
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE employees SET manager_id = NULL WHERE manager_id = ?`, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res, "employee", id); err != nil {
		return err
	}

	return tx.Commit()
}

// AddEmployeeHours increments one bucket total inside a single transaction
// under the write lock and returns the new total.
func (s *Store) AddEmployeeHours(ctx context.Context, id string, bucket absence.Bucket, amount decimal.Decimal) (decimal.Decimal, error) {
	var column string
	switch bucket {
	case absence.BucketVacation:
		column = "total_vacation_hours"
	case absence.BucketPermit:
		column = "total_permit_hours"
	default:
		return decimal.Zero, fmt.Errorf("bucket %q: %w", bucket, absence.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		"SELECT "+column+" FROM employees WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("employee %s: %w", id, absence.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, err
	}

	total, err := decimal.NewFromString(current)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt %s for employee %s: %w", column, id, err)
	}
	total = total.Add(amount)

	if _, err := tx.ExecContext(ctx,
		"UPDATE employees SET "+column+" = ? WHERE id = ?", total.String(), id); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

const selectEmployee = `
	SELECT id, email, first_name, last_name, role, manager_id, password_hash,
	       total_vacation_hours, total_permit_hours,
	       monthly_vacation_accrual, monthly_permit_accrual, created_at
	FROM employees`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*absence.Employee, error) {
	var (
		e         absence.Employee
		role      string
		managerID sql.NullString
		totalVac  string
		totalPerm string
		rateVac   string
		ratePerm  string
		createdAt string
	)
	err := row.Scan(&e.ID, &e.Email, &e.FirstName, &e.LastName, &role, &managerID,
		&e.PasswordHash, &totalVac, &totalPerm, &rateVac, &ratePerm, &createdAt)
	if err != nil {
		return nil, err
	}

	e.Role = absence.Role(role)
	e.ManagerID = managerID.String
	if e.TotalVacationHours, err = decimal.NewFromString(totalVac); err != nil {
		return nil, err
	}
	if e.TotalPermitHours, err = decimal.NewFromString(totalPerm); err != nil {
		return nil, err
	}
	if e.MonthlyVacationAccrual, err = decimal.NewFromString(rateVac); err != nil {
		return nil, err
	}
	if e.MonthlyPermitAccrual, err = decimal.NewFromString(ratePerm); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) InsertRequest(ctx context.Context, r *absence.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO absence_requests (
			id, employee_id, kind, start_date, end_date, hours, status, notes,
			decided_by, decided_at, rejection_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployeeID, string(r.Kind),
		r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout),
		r.Hours.String(), string(r.Status), r.Notes,
		nullString(r.DecidedBy), nullTime(r.DecidedAt), r.RejectionReason,
		r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("request %s: %w", r.ID, absence.ErrConflict)
	}
	return err
}

func (s *Store) UpdateRequest(ctx context.Context, r *absence.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE absence_requests SET
			kind = ?, start_date = ?, end_date = ?, hours = ?, status = ?,
			notes = ?, decided_by = ?, decided_at = ?, rejection_reason = ?
		WHERE id = ?`,
		string(r.Kind), r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout),
		r.Hours.String(), string(r.Status), r.Notes,
		nullString(r.DecidedBy), nullTime(r.DecidedAt), r.RejectionReason,
		r.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "request", r.ID)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*absence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectRequest+" WHERE id = ?", id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request %s: %w", id, absence.ErrNotFound)
	}
	return r, err
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM absence_requests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "request", id)
}

func (s *Store) ListRequests(ctx context.Context, f absence.RequestFilter) ([]*absence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectRequest
	var clauses []string
	var args []any
	if f.EmployeeID != "" {
		clauses = append(clauses, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*absence.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const selectRequest = `
	SELECT id, employee_id, kind, start_date, end_date, hours, status, notes,
	       decided_by, decided_at, rejection_reason, created_at
	FROM absence_requests`

func scanRequest(row rowScanner) (*absence.Request, error) {
	var (
		r         absence.Request
		kind      string
		status    string
		start     string
		end       string
		hours     string
		decidedBy sql.NullString
		decidedAt sql.NullString
		createdAt string
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &kind, &start, &end, &hours, &status,
		&r.Notes, &decidedBy, &decidedAt, &r.RejectionReason, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Kind = absence.Kind(kind)
	r.Status = absence.Status(status)
	r.DecidedBy = decidedBy.String
	if r.StartDate, err = time.Parse(dateLayout, start); err != nil {
		return nil, err
	}
	if r.EndDate, err = time.Parse(dateLayout, end); err != nil {
		return nil, err
	}
	if r.Hours, err = decimal.NewFromString(hours); err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		t, err := time.Parse(time.RFC3339, decidedAt.String)
		if err != nil {
			return nil, err
		}
		r.DecidedAt = &t
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// =============================================================================
// APPEND-ONLY LOGS
// =============================================================================

func (s *Store) AppendAdjustment(ctx context.Context, e *absence.AdjustmentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adjustment_log (id, employee_id, bucket, hours, note, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EmployeeID, string(e.Bucket), e.Hours.String(), e.Note, e.ActorID,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListAdjustments(ctx context.Context, employeeID string) ([]*absence.AdjustmentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, bucket, hours, note, actor_id, created_at
		FROM adjustment_log`
	var args []any
	if employeeID != "" {
		query += " WHERE employee_id = ?"
		args = append(args, employeeID)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*absence.AdjustmentEntry
	for rows.Next() {
		var (
			e         absence.AdjustmentEntry
			bucket    string
			hours     string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &bucket, &hours, &e.Note, &e.ActorID, &createdAt); err != nil {
			return nil, err
		}
		e.Bucket = absence.Bucket(bucket)
		if e.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) AppendAccrualRun(ctx context.Context, r *absence.AccrualRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accrual_runs (id, actor_id, employees_updated, created_at)
		VALUES (?, ?, ?, ?)`,
		r.ID, r.ActorID, r.EmployeesUpdated, r.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListAccrualRuns(ctx context.Context) ([]*absence.AccrualRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, employees_updated, created_at
		FROM accrual_runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*absence.AccrualRun
	for rows.Next() {
		var (
			r         absence.AccrualRun
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.ActorID, &r.EmployeesUpdated, &createdAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, absence.ErrNotFound)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
