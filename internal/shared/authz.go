package shared

// Roles carried by access tokens.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Compensation permissions.
const (
	PermBonusCalculate = "bonus.calculate"
	PermReportView     = "report.view"
	PermAssignmentEdit = "vendor.assignment.edit"
	PermJobsView       = "jobs.view"
)

// CompensationScopes lists every permission known to the service.
func CompensationScopes() []string {
	return []string{
		PermBonusCalculate,
		PermReportView,
		PermAssignmentEdit,
		PermJobsView,
	}
}
