package absence_test

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

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*absence.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return absence.NewService(store, nil), store
}

// seedEmployee inserts an employee record directly, bypassing registration.
func seedEmployee(t *testing.T, store *memory.Store, id string, role absence.Role, managerID string) *absence.Employee {
	t.Helper()
	e := &absence.Employee{
		ID:        id,
		Email:     id + "@example.com",
		FirstName: id,
		LastName:  "Test",
		Role:      role,
		ManagerID: managerID,

		TotalVacationHours: decimal.NewFromInt(160),
		TotalPermitHours:   decimal.NewFromInt(40),

		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertEmployee(context.Background(), e))
	return e
}

func actorOf(e *absence.Employee) absence.Actor {
	return absence.Actor{ID: e.ID, Role: e.Role, ManagerID: e.ManagerID}
}

// seedTeam builds the standard cast: an admin, an HR account, two managers
// and one direct report each.
func seedTeam(t *testing.T, store *memory.Store) (admin, hr, mgr1, mgr2, alice, bob *absence.Employee) {
	t.Helper()
	admin = seedEmployee(t, store, "admin", absence.RoleAdmin, "")
	hr = seedEmployee(t, store, "hr", absence.RoleHR, "")
	mgr1 = seedEmployee(t, store, "mgr1", absence.RoleManager, "")
	mgr2 = seedEmployee(t, store, "mgr2", absence.RoleManager, "")
	alice = seedEmployee(t, store, "alice", absence.RoleEmployee, "mgr1")
	bob = seedEmployee(t, store, "bob", absence.RoleEmployee, "mgr2")
	return
}

func vacationInput(start, end string) absence.CreateRequestInput {
	return absence.CreateRequestInput{
		Kind:      absence.KindVacation,
		StartDate: day(start),
		EndDate:   day(end),
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateRequest_VacationStartsPending(t *testing.T) {
	// GIVEN: An employee
	// WHEN: Submitting a vacation request
	// THEN: It is stored pending with zero hours (vacation derives from dates)

	svc, store := newTestService(t)
	_, _, _, _, alice, _ := seedTeam(t, store)

	r, err := svc.CreateRequest(context.Background(), actorOf(alice),
		vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)

	assert.Equal(t, absence.StatusPending, r.Status)
	assert.Equal(t, alice.ID, r.EmployeeID)
	assert.True(t, r.Hours.IsZero())
	assert.Empty(t, r.DecidedBy)
	assert.Nil(t, r.DecidedAt)
}

func TestCreateRequest_PermitRequiresHours(t *testing.T) {
	// GIVEN: An employee
	// WHEN: Submitting a permit request with no hours quantity
	// THEN: Invalid-input

	svc, store := newTestService(t)
	_, _, _, _, alice, _ := seedTeam(t, store)

	_, err := svc.CreateRequest(context.Background(), actorOf(alice), absence.CreateRequestInput{
		Kind:      absence.KindPermit,
		StartDate: day("2026-03-02"),
		EndDate:   day("2026-03-02"),
	})
	assert.True(t, absence.IsInvalidInput(err), "missing hours: %v", err)

	zero := decimal.Zero
	_, err = svc.CreateRequest(context.Background(), actorOf(alice), absence.CreateRequestInput{
		Kind:      absence.KindPermit,
		StartDate: day("2026-03-02"),
		EndDate:   day("2026-03-02"),
		Hours:     &zero,
	})
	assert.True(t, absence.IsInvalidInput(err), "zero hours: %v", err)
}

func TestCreateRequest_PermitStoresHours(t *testing.T) {
	svc, store := newTestService(t)
	_, _, _, _, alice, _ := seedTeam(t, store)

	four := decimal.NewFromInt(4)
	r, err := svc.CreateRequest(context.Background(), actorOf(alice), absence.CreateRequestInput{
		Kind:      absence.KindPermit,
		StartDate: day("2026-03-02"),
		EndDate:   day("2026-03-02"),
		Hours:     &four,
	})
	require.NoError(t, err)
	assert.True(t, r.Hours.Equal(four))
}

func TestCreateRequest_RejectsUnknownKind(t *testing.T) {
	svc, store := newTestService(t)
	_, _, _, _, alice, _ := seedTeam(t, store)

	_, err := svc.CreateRequest(context.Background(), actorOf(alice), absence.CreateRequestInput{
		Kind:      absence.Kind("sabbatical"),
		StartDate: day("2026-03-02"),
		EndDate:   day("2026-03-02"),
	})
	assert.True(t, absence.IsInvalidInput(err))
}

func TestCreateRequest_RejectsInvertedRange(t *testing.T) {
	svc, store := newTestService(t)
	_, _, _, _, alice, _ := seedTeam(t, store)

	_, err := svc.CreateRequest(context.Background(), actorOf(alice),
		vacationInput("2026-03-06", "2026-03-02"))
	assert.True(t, absence.IsInvalidInput(err))
}

// =============================================================================
// DECIDE
// =============================================================================

func TestApplyAction_ManagerApprovesOwnReport(t *testing.T) {
	// GIVEN: A pending request from alice (reports to mgr1)
	// WHEN: mgr1 approves it
	// THEN: Request is approved and stamped with the decider

	svc, store := newTestService(t)
	_, _, mgr1, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)

	updated, err := svc.ApplyAction(ctx, actorOf(mgr1), r.ID, absence.ActionApprove, "")
	require.NoError(t, err)

	assert.Equal(t, absence.StatusApproved, updated.Status)
	assert.Equal(t, mgr1.ID, updated.DecidedBy)
	require.NotNil(t, updated.DecidedAt)
}

func TestApplyAction_ManagerOutsideTeamForbidden(t *testing.T) {
	// GIVEN: A pending request from alice (reports to mgr1)
	// WHEN: mgr2 tries to approve it
	// THEN: Forbidden, and the request stays pending

	svc, store := newTestService(t)
	_, _, _, mgr2, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)

	_, err = svc.ApplyAction(ctx, actorOf(mgr2), r.ID, absence.ActionApprove, "")
	assert.True(t, absence.IsForbidden(err), "got %v", err)

	stored, err := store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, absence.StatusPending, stored.Status)
}

func TestApplyAction_EmployeeForbidden(t *testing.T) {
	svc, store := newTestService(t)
	_, _, _, _, alice, bob := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)

	_, err = svc.ApplyAction(ctx, actorOf(bob), r.ID, absence.ActionApprove, "")
	assert.True(t, absence.IsForbidden(err))

	// Not even for their own request.
	_, err = svc.ApplyAction(ctx, actorOf(alice), r.ID, absence.ActionApprove, "")
	assert.True(t, absence.IsForbidden(err))
}

func TestApplyAction_ResolvedRequestCannotBeDecidedAgain(t *testing.T) {
	// GIVEN: An already-approved request
	// WHEN: HR tries to reject it through the normal action
	// THEN: Invalid-input; resolved requests need the override path

	svc, store := newTestService(t)
	_, hr, _, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)
	_, err = svc.ApplyAction(ctx, actorOf(hr), r.ID, absence.ActionApprove, "")
	require.NoError(t, err)

	_, err = svc.ApplyAction(ctx, actorOf(hr), r.ID, absence.ActionReject, "late")
	assert.True(t, absence.IsInvalidInput(err), "got %v", err)
}

func TestApplyAction_RejectKeepsReason(t *testing.T) {
	svc, store := newTestService(t)
	admin, _, _, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)

	updated, err := svc.ApplyAction(ctx, actorOf(admin), r.ID, absence.ActionReject, "blackout week")
	require.NoError(t, err)
	assert.Equal(t, absence.StatusRejected, updated.Status)
	assert.Equal(t, "blackout week", updated.RejectionReason)
}

func TestApplyAction_ReopenIsAStampedNoOp(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: An admin applies the reopen action
	// THEN: Status stays pending but the decision audit fields are stamped

	svc, store := newTestService(t)
	admin, _, _, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)

	updated, err := svc.ApplyAction(ctx, actorOf(admin), r.ID, absence.ActionReopen, "")
	require.NoError(t, err)
	assert.Equal(t, absence.StatusPending, updated.Status)
	assert.Equal(t, admin.ID, updated.DecidedBy)
	assert.NotNil(t, updated.DecidedAt)
}

func TestApplyAction_UnknownAction(t *testing.T) {
	svc, store := newTestService(t)
	admin, _, _, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)

	_, err = svc.ApplyAction(ctx, actorOf(admin), r.ID, absence.Action("escalate"), "")
	assert.True(t, absence.IsInvalidInput(err))
}

// =============================================================================
// OVERRIDE
// =============================================================================

func TestOverrideStatus_ReopensResolvedRequest(t *testing.T) {
	// GIVEN: A rejected request
	// WHEN: HR overrides it back to pending
	// THEN: It is pending again and the old rejection reason is cleared

	svc, store := newTestService(t)
	_, hr, _, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)
	_, err = svc.ApplyAction(ctx, actorOf(hr), r.ID, absence.ActionReject, "blackout week")
	require.NoError(t, err)

	updated, err := svc.OverrideStatus(ctx, actorOf(hr), r.ID, absence.StatusPending, "second look")
	require.NoError(t, err)
	assert.Equal(t, absence.StatusPending, updated.Status)
	assert.Empty(t, updated.RejectionReason)
}

func TestOverrideStatus_EmployeeForbidden(t *testing.T) {
	svc, store := newTestService(t)
	_, hr, _, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)
	_, err = svc.ApplyAction(ctx, actorOf(hr), r.ID, absence.ActionReject, "")
	require.NoError(t, err)

	_, err = svc.OverrideStatus(ctx, actorOf(alice), r.ID, absence.StatusApproved, "")
	assert.True(t, absence.IsForbidden(err))
}

func TestOverrideStatus_LastWriterWins(t *testing.T) {
	// GIVEN: A request approved by the manager
	// WHEN: HR overrides it to rejected afterwards
	// THEN: The later write stands; no transition is blocked by the earlier one

	svc, store := newTestService(t)
	_, hr, mgr1, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)
	_, err = svc.ApplyAction(ctx, actorOf(mgr1), r.ID, absence.ActionApprove, "")
	require.NoError(t, err)

	updated, err := svc.OverrideStatus(ctx, actorOf(hr), r.ID, absence.StatusRejected, "coverage gap")
	require.NoError(t, err)
	assert.Equal(t, absence.StatusRejected, updated.Status)
	assert.Equal(t, hr.ID, updated.DecidedBy)
	assert.Equal(t, "coverage gap", updated.RejectionReason)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteRequest_OwnerDeletesPending(t *testing.T) {
	svc, store := newTestService(t)
	_, _, _, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRequest(ctx, actorOf(alice), r.ID))

	_, err = store.GetRequest(ctx, r.ID)
	assert.True(t, absence.IsNotFound(err))
}

func TestDeleteRequest_OwnerCannotDeleteResolved(t *testing.T) {
	// GIVEN: An approved request
	// WHEN: The owner tries to delete it
	// THEN: Invalid-input; the request survives

	svc, store := newTestService(t)
	admin, _, _, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)
	_, err = svc.ApplyAction(ctx, actorOf(admin), r.ID, absence.ActionApprove, "")
	require.NoError(t, err)

	err = svc.DeleteRequest(ctx, actorOf(alice), r.ID)
	assert.True(t, absence.IsInvalidInput(err), "got %v", err)
}

func TestDeleteRequest_NonOwnerForbidden(t *testing.T) {
	// A non-owner gets Forbidden before any status check applies.
	svc, store := newTestService(t)
	_, _, _, _, alice, bob := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)

	err = svc.DeleteRequest(ctx, actorOf(bob), r.ID)
	assert.True(t, absence.IsForbidden(err))
}

func TestDeleteRequest_AdminDeletesAnyStatus(t *testing.T) {
	svc, store := newTestService(t)
	admin, _, _, _, alice, _ := seedTeam(t, store)
	ctx := context.Background()

	r, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)
	_, err = svc.ApplyAction(ctx, actorOf(admin), r.ID, absence.ActionApprove, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRequest(ctx, actorOf(admin), r.ID))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestPendingRequests_ManagerSeesOnlyOwnTeam(t *testing.T) {
	// GIVEN: Pending requests from alice (mgr1's team) and bob (mgr2's team)
	// WHEN: mgr1 lists the pending queue
	// THEN: Only alice's request shows up

	svc, store := newTestService(t)
	_, hr, mgr1, _, alice, bob := seedTeam(t, store)
	ctx := context.Background()

	ra, err := svc.CreateRequest(ctx, actorOf(alice), vacationInput("2026-03-02", "2026-03-03"))
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, actorOf(bob), vacationInput("2026-03-04", "2026-03-05"))
	require.NoError(t, err)

	scoped, err := svc.PendingRequests(ctx, actorOf(mgr1))
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, ra.ID, scoped[0].ID)

	all, err := svc.PendingRequests(ctx, actorOf(hr))
	require.NoError(t, err)
	assert.Len(t, all, 2, "HR sees the full queue")
}

func TestPendingRequests_EmployeeForbidden(t *testing.T) {
	svc, store := newTestService(t)
	_, _, _, _, alice, _ := seedTeam(t, store)

	_, err := svc.PendingRequests(context.Background(), actorOf(alice))
	assert.True(t, absence.IsForbidden(err))
}

func TestListRequests_FilterValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListRequests(context.Background(), absence.RequestFilter{Kind: "holiday"})
	assert.True(t, absence.IsInvalidInput(err))

	_, err = svc.ListRequests(context.Background(), absence.RequestFilter{Status: "parked"})
	assert.True(t, absence.IsInvalidInput(err))
}
