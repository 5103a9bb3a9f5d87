// Package gateway manages automation agents: external processes the admin
// delegates narrow capabilities to, such as a payroll bot that sweeps
// vested funds to workers on a schedule.
package gateway

// Permissions an agent can hold.
const (
	PermissionExecutePayroll = "execute_payroll"
	PermissionManageTreasury = "manage_treasury"
	PermissionRegisterAgent  = "register_agent"
)

// ValidPermission reports whether the name is a known permission.
func ValidPermission(name string) bool {
	switch name {
	case PermissionExecutePayroll, PermissionManageTreasury, PermissionRegisterAgent:
		return true
	}
	return false
}

// Agent is a registered automation principal and the permissions it holds.
type Agent struct {
	Address      string
	Permissions  []string
	RegisteredAt int64
}

// HasPermission reports whether the agent holds the named permission.
func (a Agent) HasPermission(name string) bool {
	for _, p := range a.Permissions {
		if p == name {
			return true
		}
	}
	return false
}
