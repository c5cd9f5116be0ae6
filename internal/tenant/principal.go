/*
Package tenant defines the Principal value passed explicitly into every
service call, replacing the "global request-scoped current user/company"
pattern the spec flags for replacement (§9 Design Notes).

Capabilities are values, not role names (§4.8): a Principal carries the
set of things it's allowed to do, not a role string a service has to
interpret.
*/
package tenant

// Capability is a value a Principal may hold. A principal may hold
// several; holding CapabilityChecker never implies it may approve its
// own request (see ledger.Approval).
type Capability string

const (
	CapabilityMaker    Capability = "MAKER"    // may submit for approval
	CapabilityChecker  Capability = "CHECKER"  // may approve/reject
	CapabilityPoster   Capability = "POSTER"   // may post a voucher
	CapabilityAdmin    Capability = "ADMIN"    // may override closed-FY guards, reopen FYs
	CapabilityAccountant Capability = "ACCOUNTANT" // may close (not reopen) a financial year
)

// Principal is the authenticated, company-scoped actor behind a service
// call. Selectors and services refuse calls without one (§9).
type Principal struct {
	UserID       string
	CompanyID    string
	Capabilities map[Capability]bool
}

// Has reports whether the principal holds the given capability.
func (p Principal) Has(c Capability) bool {
	return p.Capabilities[c]
}

// NewPrincipal builds a Principal from a variadic capability list —
// convenience constructor for services and tests.
func NewPrincipal(userID, companyID string, caps ...Capability) Principal {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return Principal{UserID: userID, CompanyID: companyID, Capabilities: m}
}
