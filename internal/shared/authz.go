package shared

// Core platform permissions.
const (
	PermAdminAccess = "admin.access"
	PermUsersManage = "users.manage"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermPermissionsView = "permissions.view"

	PermMembersView = "members.view"
	PermMembersEdit = "members.edit"

	PermTournamentsView = "tournaments.view"
	PermTournamentsEdit = "tournaments.edit"

	PermFinanceView = "finance.view"
	PermFinanceEdit = "finance.edit"

	PermAssetsView = "assets.view"
	PermAssetsEdit = "assets.edit"

	PermReportsView = "reports.view"
)

// CoreScopes lists all permissions shipped with the platform.
func CoreScopes() []string {
	return []string{
		PermAdminAccess,
		PermUsersManage,
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermMembersView,
		PermMembersEdit,
		PermTournamentsView,
		PermTournamentsEdit,
		PermFinanceView,
		PermFinanceEdit,
		PermAssetsView,
		PermAssetsEdit,
		PermReportsView,
	}
}

// DefaultCriticalPermissions is the fallback critical set when configuration
// provides none. Losing either can lock an administrator out of user
// management entirely.
func DefaultCriticalPermissions() []string {
	return []string{PermUsersManage, PermAdminAccess}
}
