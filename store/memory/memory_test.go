package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbushr/absence-engine/absence"
	"github.com/nimbushr/absence-engine/store/memory"
)

func testEmployee(id string) *absence.Employee {
	return &absence.Employee{
		ID:        id,
		Email:     id + "@example.com",
		Role:      absence.RoleEmployee,
		CreatedAt: time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC),
	}
}

func testRequest(id, employeeID string) *absence.Request {
	return &absence.Request{
		ID:         id,
		EmployeeID: employeeID,
		Kind:       absence.KindVacation,
		StartDate:  time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
		Hours:      decimal.Zero,
		Status:     absence.StatusPending,
		CreatedAt:  time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestDeleteEmployee_RemovesRequestsAndClearsManagerRefs(t *testing.T) {
	// GIVEN: A manager with one report and two stored requests of their own
	// WHEN: Deleting the manager
	// THEN: The report survives with manager_id cleared; the manager's
	//       requests go with them, the report's request stays

	store := memory.New()
	ctx := context.Background()

	mgr := testEmployee("mgr")
	mgr.Role = absence.RoleManager
	require.NoError(t, store.InsertEmployee(ctx, mgr))

	report := testEmployee("report")
	report.ManagerID = "mgr"
	require.NoError(t, store.InsertEmployee(ctx, report))

	require.NoError(t, store.InsertRequest(ctx, testRequest("req-1", "mgr")))
	require.NoError(t, store.InsertRequest(ctx, testRequest("req-2", "mgr")))
	require.NoError(t, store.InsertRequest(ctx, testRequest("req-3", "report")))

	require.NoError(t, store.DeleteEmployee(ctx, "mgr"))

	got, err := store.GetEmployee(ctx, "report")
	require.NoError(t, err)
	assert.Empty(t, got.ManagerID)

	orphans, err := store.ListRequests(ctx, absence.RequestFilter{EmployeeID: "mgr"})
	require.NoError(t, err)
	assert.Empty(t, orphans, "deleted employee's requests must not survive")

	kept, err := store.ListRequests(ctx, absence.RequestFilter{EmployeeID: "report"})
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestDeleteEmployee_UnknownEmployee(t *testing.T) {
	store := memory.New()

	err := store.DeleteEmployee(context.Background(), "ghost")
	assert.True(t, absence.IsNotFound(err))
}
