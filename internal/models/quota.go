package models

import "time"

// Quota resource kinds
const (
	QuotaKindRegion = "region"
	QuotaKindHost   = "host"
)

// QuotaCounter tracks how many active resources of a kind a user owns
// against the plan limit. Mutated only by the allocation orchestrator
// and the retirement service, in the same atomic unit as the resource
// write.
type QuotaCounter struct {
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Current   int       `json:"current"`
	PlanLimit int       `json:"plan_limit"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuotaInfo is the read-side view returned by the ledger's Check.
type QuotaInfo struct {
	UserID       string  `json:"user_id"`
	Kind         string  `json:"kind"`
	Current      int     `json:"current"`
	Limit        int     `json:"limit"`
	Available    int     `json:"available"`
	UsagePercent float64 `json:"usage_percent"`
	Warning      bool    `json:"warning"`
}
