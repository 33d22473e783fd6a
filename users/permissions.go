package users

// Permission identifies a single guarded capability in the application.
type Permission string

const (
	PermProjectsView      Permission = "projects.view"
	PermProjectsManage    Permission = "projects.manage"
	PermEquipmentView     Permission = "equipment.view"
	PermEquipmentManage   Permission = "equipment.manage"
	PermTimesheetsSubmit  Permission = "timesheets.submit"
	PermTimesheetsApprove Permission = "timesheets.approve"
	PermInvoicesManage    Permission = "invoices.manage"
	PermIncidentsReport   Permission = "incidents.report"
	PermTeamManage        Permission = "team.manage"
	PermReportsView       Permission = "reports.view"
	PermBillingManage     Permission = "billing.manage"
)

// rolePermissions is the static role to permission-set table. The principal
// admin role is intentionally absent: it is granted everything by HasPermission.
var rolePermissions = map[RoleType][]Permission{
	RoleAdmin: {
		PermProjectsView, PermProjectsManage,
		PermEquipmentView, PermEquipmentManage,
		PermTimesheetsSubmit, PermTimesheetsApprove,
		PermInvoicesManage, PermIncidentsReport,
		PermTeamManage, PermReportsView, PermBillingManage,
	},
	RoleProjectManager: {
		PermProjectsView, PermProjectsManage,
		PermEquipmentView,
		PermTimesheetsApprove,
		PermInvoicesManage, PermIncidentsReport,
		PermReportsView,
	},
	RoleForeman: {
		PermProjectsView,
		PermEquipmentView, PermEquipmentManage,
		PermTimesheetsSubmit, PermTimesheetsApprove,
		PermIncidentsReport,
	},
	RoleFieldWorker: {
		PermProjectsView,
		PermEquipmentView,
		PermTimesheetsSubmit,
		PermIncidentsReport,
	},
	RoleViewer: {
		PermProjectsView,
		PermEquipmentView,
		PermReportsView,
	},
}

// HasPermission reports whether a role grants a permission.
func HasPermission(role RoleType, permission Permission) bool {
	if role == RolePrincipalAdmin {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// HasPermission checks a permission against the user's role.
func (u *User) HasPermission(permission Permission) bool {
	return HasPermission(u.Role, permission)
}
