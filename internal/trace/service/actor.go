package service

// Role codes carried in JWT claims. OrgAdmin implies every capability
// within its own organization.
const (
	RoleOrgAdmin         = "org_admin"
	RoleDisposalApprover = "disposal_approver"
	RoleInventoryManager = "inventory_manager"
	RoleProductionLead   = "production_lead"
)

// Actor is the request-scoped identity injected into every service call.
// It replaces any notion of ambient session state: handlers build it from
// the authenticated request and pass it down explicitly.
type Actor struct {
	UserID   string
	UserName string
	OrgID    string
	IP       string
	Roles    []string
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role || r == RoleOrgAdmin {
			return true
		}
	}
	return false
}
