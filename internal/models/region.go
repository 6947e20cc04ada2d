package models

import "time"

// Region is an allocated (X,Y) slot in a country's address space,
// exclusively owned by the allocating user. (country, X, Y) is unique
// across active regions; hard-deleted regions release the slot.
type Region struct {
	ID          string    `json:"id"`
	CountryCode string    `json:"country_code"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	OwnerID     string    `json:"owner_id"`
	Label       string    `json:"label,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot captures the full attribute set for an audit record.
func (r *Region) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"id":           r.ID,
		"country_code": r.CountryCode,
		"x":            r.X,
		"y":            r.Y,
		"owner_id":     r.OwnerID,
		"label":        r.Label,
		"tags":         r.Tags,
		"created_at":   r.CreatedAt.Format(time.RFC3339),
	}
}
