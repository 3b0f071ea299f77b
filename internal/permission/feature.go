package permission

import "sort"

type predicate func(s PermissionSet) bool

func always(PermissionSet) bool { return true }

func flag(f Flag) predicate {
	return func(s PermissionSet) bool { return s.Get(f) }
}

// features maps every recognized feature key to the test it requires.
var features = map[string]predicate{
	"pjo.view":         always,
	"pjo.create":       flag(FlagCreatePJO),
	"pjo.approve":      flag(FlagApprovePJO),
	"pjo.view_revenue": flag(FlagSeeRevenue),
	"pjo.view_profit":  flag(FlagSeeProfit),
	"pjo.fill_costs":   flag(FlagFillCosts),

	"jo.view_full": func(s PermissionSet) bool {
		return s.CanSeeRevenue && s.CanSeeProfit
	},
	"jo.view_costs": func(s PermissionSet) bool {
		return s.CanFillCosts || s.CanSeeProfit
	},
	"jo.create": flag(FlagApprovePJO),

	"invoices.view": func(s PermissionSet) bool {
		return s.CanManageInvoices || s.CanSeeRevenue
	},
	"invoices.manage": flag(FlagManageInvoices),
	"payments.record": flag(FlagManageInvoices),

	"users.manage": flag(FlagManageUsers),

	"audit.view": func(s PermissionSet) bool {
		return s.CanManageUsers || s.CanApprovePJO
	},

	"reports.financial": func(s PermissionSet) bool {
		return s.CanSeeRevenue && s.CanSeeProfit
	},
}

// Feature keys used by the HTTP layer
const (
	FeaturePJOView        = "pjo.view"
	FeaturePJOCreate      = "pjo.create"
	FeaturePJOApprove     = "pjo.approve"
	FeaturePJOViewRevenue = "pjo.view_revenue"
	FeaturePJOViewProfit  = "pjo.view_profit"
	FeaturePJOFillCosts   = "pjo.fill_costs"
	FeatureJOViewFull     = "jo.view_full"
	FeatureJOViewCosts    = "jo.view_costs"
	FeatureJOCreate       = "jo.create"
	FeatureInvoicesView   = "invoices.view"
	FeatureInvoicesManage = "invoices.manage"
	FeaturePaymentsRecord = "payments.record"
	FeatureUsersManage    = "users.manage"
	FeatureAuditView      = "audit.view"
	FeatureReportsFinance = "reports.financial"
)

// CanAccessFeature evaluates featureKey against the profile. Unknown keys deny.
func CanAccessFeature(profile *Profile, featureKey string) bool {
	if profile == nil {
		return false
	}
	test, ok := features[featureKey]
	if !ok {
		return false
	}
	return test(profile.Effective())
}

// FeatureKeys lists every recognized feature key in sorted order.
func FeatureKeys() []string {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FeatureAccess resolves every recognized feature for the profile, e.g. for a /me payload.
func FeatureAccess(profile *Profile) map[string]bool {
	access := make(map[string]bool, len(features))
	for _, k := range FeatureKeys() {
		access[k] = CanAccessFeature(profile, k)
	}
	return access
}
