package fuel

import (
	"github.com/google/uuid"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

type Package string

const (
	PackageFull   Package = "full"
	PackageRefill Package = "refill"
)

type Fuel struct {
	Balance   int       `json:"balance"`
	Used      int       `json:"used"`
	Plan      Plan      `json:"plan"`
	Available []Package `json:"available"`
}

type CheckoutRequest struct {
	Package Package `json:"package"`
}

type Checkout struct {
	TransactionID string  `json:"transactionId"`
	CheckoutURL   string  `json:"checkoutUrl"`
	Package       Package `json:"package"`
}

// Purchase is a completed payment reported by a provider webhook.
type Purchase struct {
	Provider      string
	TransactionID string
	UserID        uuid.UUID
	Package       Package
}

// Available lists the packages offered on a plan. The full tank upgrades a
// free account; premium accounts top up with refills.
func Available(plan Plan) []Package {
	if plan == PlanPremium {
		return []Package{PackageRefill}
	}
	return []Package{PackageFull}
}

func Offered(plan Plan, pkg Package) bool {
	for _, p := range Available(plan) {
		if p == pkg {
			return true
		}
	}
	return false
}

func (p Package) Valid() bool {
	return p == PackageFull || p == PackageRefill
}
