/*
capability.go - Capability-set authorization

PURPOSE:
  Each operation declares the minimal capability it requires; the check runs
  once at the operation boundary instead of scattering role conditionals
  through every handler.

TEAM SCOPE:
  Deciding or overriding a request carries an extra ownership relation for
  managers: a manager may only act on requests whose owner's manager
  reference equals the manager's own id. Admin and HR are unrestricted.
*/
package absence

// Capability names one authorization requirement of an engine operation.
type Capability int

const (
	// CapDecideRequest: approve/reject/reopen a pending request.
	// Team-scoped for managers.
	CapDecideRequest Capability = iota

	// CapOverrideStatus: force a resolved request to any status.
	// Team-scoped for managers.
	CapOverrideStatus

	// CapCreditHours: manual entitlement credit (add-hours).
	CapCreditHours

	// CapRunAccrual: invoke the bulk accrual operation on demand.
	CapRunAccrual

	// CapViewAllBalances: read balances other than the actor's own.
	CapViewAllBalances

	// CapViewEmployees: read employee records.
	CapViewEmployees

	// CapManageEmployees: edit roles/profiles, delete employees.
	CapManageEmployees

	// CapEditHours: edit entitlement totals and accrual rates directly.
	CapEditHours

	// CapViewAccrualLog: read the accrual run log.
	CapViewAccrualLog
)

var capabilityRoles = map[Capability]map[Role]bool{
	CapDecideRequest:   {RoleAdmin: true, RoleHR: true, RoleManager: true},
	CapOverrideStatus:  {RoleAdmin: true, RoleHR: true, RoleManager: true},
	CapCreditHours:     {RoleAdmin: true, RoleHR: true, RoleManager: true},
	CapRunAccrual:      {RoleAdmin: true, RoleHR: true},
	CapViewAllBalances: {RoleAdmin: true, RoleHR: true, RoleManager: true},
	CapViewEmployees:   {RoleAdmin: true, RoleHR: true, RoleManager: true},
	CapManageEmployees: {RoleAdmin: true},
	CapEditHours:       {RoleAdmin: true, RoleHR: true},
	CapViewAccrualLog:  {RoleAdmin: true, RoleHR: true},
}

// Can reports whether the actor's role grants the capability, ignoring team
// scope. Use CanActOn when the operation targets another employee's request.
func (a Actor) Can(c Capability) bool {
	return capabilityRoles[c][a.Role]
}

// CanActOn reports whether the actor may exercise a team-scoped capability
// against a request owned by the given employee.
func (a Actor) CanActOn(c Capability, owner *Employee) bool {
	if !a.Can(c) {
		return false
	}
	if a.Role == RoleManager {
		return owner.ManagerID == a.ID
	}
	return true
}
