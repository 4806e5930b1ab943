package clinic

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clinic is the tenant root. Every domain entity is reachable from exactly
// one clinic; no cross-clinic reference exists.
type Clinic struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	SubscriptionPlan   string    `json:"subscriptionPlan"`
	AICallCount        int       `json:"aiCallCount"`
	BillingPeriodStart time.Time `json:"billingPeriodStart"`
	CreatedAt          time.Time `json:"createdAt"`
}

// QuotaLimits holds the per-plan monthly AI call ceilings.
type QuotaLimits struct {
	Free       int
	Pro        int
	Enterprise int
}

// MonthlyLimit resolves a plan name to its monthly AI call limit by
// substring match, most permissive tier first. Unrecognized plans get the
// free tier.
func (q QuotaLimits) MonthlyLimit(plan string) int {
	p := strings.ToLower(plan)
	switch {
	case strings.Contains(p, "enterprise"):
		return q.Enterprise
	case strings.Contains(p, "pro"):
		return q.Pro
	default:
		return q.Free
	}
}

// SameBillingMonth reports whether two instants fall in the same UTC month.
func SameBillingMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
