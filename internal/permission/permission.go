package permission

// Role identifies a user's position in the organization.
type Role string

// Core roles keyed by the default permission table
const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleOps     Role = "ops"
	RoleFinance Role = "finance"
	RoleViewer  Role = "viewer"
)

// Extended roles recorded in the activity log. They carry no defaults of their own.
const (
	RoleOwner          Role = "owner"
	RoleDirector       Role = "director"
	RoleSysadmin       Role = "sysadmin"
	RoleAdministration Role = "administration"
	RoleMarketing      Role = "marketing"
	RoleEngineer       Role = "engineer"
	RoleHR             Role = "hr"
	RoleHSE            Role = "hse"
)

// DashboardDefault means "use the dashboard of the profile's role"
const DashboardDefault = "default"

// Flag names a single capability in a PermissionSet
type Flag string

const (
	FlagSeeRevenue     Flag = "can_see_revenue"
	FlagSeeProfit      Flag = "can_see_profit"
	FlagApprovePJO     Flag = "can_approve_pjo"
	FlagManageInvoices Flag = "can_manage_invoices"
	FlagManageUsers    Flag = "can_manage_users"
	FlagCreatePJO      Flag = "can_create_pjo"
	FlagFillCosts      Flag = "can_fill_costs"
)

// PermissionSet is the fixed group of capability flags attached to a role or profile.
type PermissionSet struct {
	CanSeeRevenue     bool `json:"can_see_revenue"`
	CanSeeProfit      bool `json:"can_see_profit"`
	CanApprovePJO     bool `json:"can_approve_pjo"`
	CanManageInvoices bool `json:"can_manage_invoices"`
	CanManageUsers    bool `json:"can_manage_users"`
	CanCreatePJO      bool `json:"can_create_pjo"`
	CanFillCosts      bool `json:"can_fill_costs"`
}

// Profile is the authorization view of a user: identity, role and persisted flags.
type Profile struct {
	UserID          string
	Role            Role
	CustomDashboard string
	IsActive        bool
	Permissions     PermissionSet
}

// defaultPermissions is only read through GetDefaultPermissions, which returns copies.
var defaultPermissions = map[Role]PermissionSet{
	RoleAdmin: {
		CanSeeRevenue:     true,
		CanSeeProfit:      true,
		CanApprovePJO:     true,
		CanManageInvoices: true,
		CanManageUsers:    true,
		CanCreatePJO:      true,
		CanFillCosts:      true,
	},
	RoleManager: {
		CanSeeRevenue: true,
		CanSeeProfit:  true,
		CanApprovePJO: true,
		CanCreatePJO:  true,
	},
	RoleFinance: {
		CanSeeRevenue:     true,
		CanSeeProfit:      true,
		CanManageInvoices: true,
	},
	RoleOps: {
		CanFillCosts: true,
	},
	RoleViewer: {},
}

var coreRoles = []Role{RoleAdmin, RoleManager, RoleOps, RoleFinance, RoleViewer}

var extendedRoles = []Role{
	RoleOwner, RoleDirector, RoleSysadmin, RoleAdministration,
	RoleMarketing, RoleEngineer, RoleHR, RoleHSE,
}

// CoreRoles returns the roles that have an entry in the default table
func CoreRoles() []Role {
	return append([]Role(nil), coreRoles...)
}

// IsKnownRole reports whether role belongs to the core or the extended role set.
func IsKnownRole(role string) bool {
	for _, r := range coreRoles {
		if string(r) == role {
			return true
		}
	}
	for _, r := range extendedRoles {
		if string(r) == role {
			return true
		}
	}
	return false
}

// GetDefaultPermissions returns the seed permission set for role.
// Anything that is not an exact match for a core role gets the viewer set.
func GetDefaultPermissions(role string) PermissionSet {
	if set, ok := defaultPermissions[Role(role)]; ok {
		return set
	}
	return defaultPermissions[RoleViewer]
}

// Effective returns the flags that authorization decisions are made on.
// Ops never sees revenue or profit, whatever the stored flags say.
func (p *Profile) Effective() PermissionSet {
	set := p.Permissions
	if p.Role == RoleOps {
		set.CanSeeRevenue = false
		set.CanSeeProfit = false
	}
	return set
}

// Get returns the value of flag. Unknown flags are false.
func (s PermissionSet) Get(flag Flag) bool {
	switch flag {
	case FlagSeeRevenue:
		return s.CanSeeRevenue
	case FlagSeeProfit:
		return s.CanSeeProfit
	case FlagApprovePJO:
		return s.CanApprovePJO
	case FlagManageInvoices:
		return s.CanManageInvoices
	case FlagManageUsers:
		return s.CanManageUsers
	case FlagCreatePJO:
		return s.CanCreatePJO
	case FlagFillCosts:
		return s.CanFillCosts
	default:
		return false
	}
}

// HasPermission reads flag from the profile's own permissions.
func HasPermission(profile *Profile, flag Flag) bool {
	if profile == nil {
		return false
	}
	return profile.Effective().Get(flag)
}

// IsRole reports whether the profile holds one of roles.
func IsRole(profile *Profile, roles ...Role) bool {
	if profile == nil {
		return false
	}
	for _, r := range roles {
		if profile.Role == r {
			return true
		}
	}
	return false
}

// GetDashboardType picks the dashboard a profile lands on.
func GetDashboardType(profile *Profile) string {
	if profile == nil {
		return string(RoleViewer)
	}
	if profile.CustomDashboard != "" && profile.CustomDashboard != DashboardDefault {
		return profile.CustomDashboard
	}
	return string(profile.Role)
}

// GuardResult is the outcome of a guard rule. Reason is set only when denied.
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CanRemoveAdminPermission blocks the sole admin from demoting themselves.
// The caller supplies the current admin count.
func CanRemoveAdminPermission(totalAdminCount int64, targetUserID, actingUserID string) GuardResult {
	if totalAdminCount <= 1 && targetUserID == actingUserID {
		return GuardResult{
			Allowed: false,
			Reason:  "Cannot remove admin permission from the last admin account",
		}
	}
	return GuardResult{Allowed: true}
}
