package rbac

import "github.com/odyssey-erp/compensation/internal/shared"

// Policy maps role names to the permissions they grant.
type Policy map[string][]string

// DefaultPolicy grants administrators every permission and regular users
// read access to the billing report.
func DefaultPolicy() Policy {
	return Policy{
		shared.RoleAdmin: shared.CompensationScopes(),
		shared.RoleUser:  {shared.PermReportView},
	}
}
