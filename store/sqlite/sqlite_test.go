package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbushr/absence-engine/absence"
	"github.com/nimbushr/absence-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testEmployee(id string) *absence.Employee {
	return &absence.Employee{
		ID:           id,
		Email:        id + "@example.com",
		FirstName:    "Test",
		LastName:     "User",
		Role:         absence.RoleEmployee,
		PasswordHash: "x",

		TotalVacationHours:     decimal.NewFromInt(160),
		TotalPermitHours:       decimal.NewFromInt(40),
		MonthlyVacationAccrual: decimal.RequireFromString("14.67"),
		MonthlyPermitAccrual:   decimal.NewFromInt(2),

		CreatedAt: time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployee_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := testEmployee("emp-1")
	require.NoError(t, store.InsertEmployee(ctx, want))

	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)

	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.Role, got.Role)
	assert.Empty(t, got.ManagerID)
	assert.True(t, got.TotalVacationHours.Equal(want.TotalVacationHours))
	assert.True(t, got.MonthlyVacationAccrual.Equal(decimal.RequireFromString("14.67")),
		"fractional accrual rate survives the TEXT column: %s", got.MonthlyVacationAccrual)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
}

func TestEmployee_GetByEmailCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertEmployee(ctx, testEmployee("emp-1")))

	got, err := store.GetEmployeeByEmail(ctx, "EMP-1@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", got.ID)
}

func TestEmployee_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEmployee(context.Background(), "ghost")
	assert.True(t, absence.IsNotFound(err))
}

func TestEmployee_DuplicateEmailConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertEmployee(ctx, testEmployee("emp-1")))

	dup := testEmployee("emp-2")
	dup.Email = "EMP-1@example.com" // differs only in case
	err := store.InsertEmployee(ctx, dup)
	assert.True(t, absence.IsConflict(err), "got %v", err)
}

func TestEmployee_UpdateMissingRow(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateEmployee(context.Background(), testEmployee("ghost"))
	assert.True(t, absence.IsNotFound(err))
}

func TestAddEmployeeHours_IncrementsAndReturnsNewTotal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertEmployee(ctx, testEmployee("emp-1")))

	newTotal, err := store.AddEmployeeHours(ctx, "emp-1", absence.BucketVacation, decimal.NewFromInt(8))
	require.NoError(t, err)
	assert.True(t, newTotal.Equal(decimal.NewFromInt(168)), "got %s", newTotal)

	// The other bucket is untouched.
	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, got.TotalPermitHours.Equal(decimal.NewFromInt(40)))
}

func TestAddEmployeeHours_UnknownEmployee(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddEmployeeHours(context.Background(), "ghost",
		absence.BucketVacation, decimal.NewFromInt(8))
	assert.True(t, absence.IsNotFound(err))
}

func TestDeleteEmployee_ClearsManagerRefsAndCascadesRequests(t *testing.T) {
	// GIVEN: A manager with one report and one stored request of their own
	// WHEN: Deleting the manager
	// THEN: The report survives with manager_id cleared; the manager's
	//       requests are gone via cascade

	store := newTestStore(t)
	ctx := context.Background()

	mgr := testEmployee("mgr")
	mgr.Role = absence.RoleManager
	require.NoError(t, store.InsertEmployee(ctx, mgr))

	report := testEmployee("report")
	report.ManagerID = "mgr"
	require.NoError(t, store.InsertEmployee(ctx, report))

	require.NoError(t, store.InsertRequest(ctx, testRequest("req-1", "mgr")))

	require.NoError(t, store.DeleteEmployee(ctx, "mgr"))

	got, err := store.GetEmployee(ctx, "report")
	require.NoError(t, err)
	assert.Empty(t, got.ManagerID)

	_, err = store.GetRequest(ctx, "req-1")
	assert.True(t, absence.IsNotFound(err))
}

// =============================================================================
// REQUESTS
// =============================================================================

func testRequest(id, employeeID string) *absence.Request {
	return &absence.Request{
		ID:         id,
		EmployeeID: employeeID,
		Kind:       absence.KindVacation,
		StartDate:  time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
		Hours:      decimal.Zero,
		Status:     absence.StatusPending,
		Notes:      "spring break",
		CreatedAt:  time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestRequest_RoundTripWithDecision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertEmployee(ctx, testEmployee("emp-1")))
	require.NoError(t, store.InsertRequest(ctx, testRequest("req-1", "emp-1")))

	r, err := store.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, absence.StatusPending, r.Status)
	assert.Nil(t, r.DecidedAt)
	assert.Equal(t, "2026-03-02", r.StartDate.Format("2006-01-02"))

	decided := time.Date(2026, time.February, 21, 8, 30, 0, 0, time.UTC)
	r.Status = absence.StatusRejected
	r.DecidedBy = "admin"
	r.DecidedAt = &decided
	r.RejectionReason = "blackout week"
	require.NoError(t, store.UpdateRequest(ctx, r))

	got, err := store.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, absence.StatusRejected, got.Status)
	assert.Equal(t, "admin", got.DecidedBy)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(decided))
	assert.Equal(t, "blackout week", got.RejectionReason)
}

func TestRequest_ListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertEmployee(ctx, testEmployee("emp-1")))
	require.NoError(t, store.InsertEmployee(ctx, testEmployee("emp-2")))

	r1 := testRequest("req-1", "emp-1")
	r2 := testRequest("req-2", "emp-2")
	r2.Kind = absence.KindSick
	r3 := testRequest("req-3", "emp-1")
	r3.Status = absence.StatusApproved
	for _, r := range []*absence.Request{r1, r2, r3} {
		require.NoError(t, store.InsertRequest(ctx, r))
	}

	byEmployee, err := store.ListRequests(ctx, absence.RequestFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, byEmployee, 2)

	byKind, err := store.ListRequests(ctx, absence.RequestFilter{Kind: absence.KindSick})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, "req-2", byKind[0].ID)

	combined, err := store.ListRequests(ctx, absence.RequestFilter{
		EmployeeID: "emp-1",
		Status:     absence.StatusApproved,
	})
	require.NoError(t, err)
	require.Len(t, combined, 1)
	assert.Equal(t, "req-3", combined[0].ID)
}

func TestRequest_DeleteMissingRow(t *testing.T) {
	store := newTestStore(t)

	err := store.DeleteRequest(context.Background(), "ghost")
	assert.True(t, absence.IsNotFound(err))
}

// =============================================================================
// APPEND-ONLY LOGS
// =============================================================================

func TestAdjustmentLog_AppendAndListByEmployee(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, emp := range []string{"emp-1", "emp-2", "emp-1"} {
		entry := &absence.AdjustmentEntry{
			ID:         string(rune('a' + i)),
			EmployeeID: emp,
			Bucket:     absence.BucketVacation,
			Hours:      decimal.NewFromInt(8),
			ActorID:    "admin",
			CreatedAt:  time.Date(2026, time.March, 1, 10, i, 0, 0, time.UTC),
		}
		require.NoError(t, store.AppendAdjustment(ctx, entry))
	}

	entries, err := store.ListAdjustments(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "emp-1", e.EmployeeID)
		assert.True(t, e.Hours.Equal(decimal.NewFromInt(8)))
	}
}

func TestAccrualRuns_ListedNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := &absence.AccrualRun{
		ID: "run-1", ActorID: absence.SystemActorID, EmployeesUpdated: 3,
		CreatedAt: time.Date(2026, time.February, 1, 2, 0, 0, 0, time.UTC),
	}
	newer := &absence.AccrualRun{
		ID: "run-2", ActorID: "admin", EmployeesUpdated: 4,
		CreatedAt: time.Date(2026, time.March, 1, 2, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.AppendAccrualRun(ctx, older))
	require.NoError(t, store.AppendAccrualRun(ctx, newer))

	runs, err := store.ListAccrualRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
}
