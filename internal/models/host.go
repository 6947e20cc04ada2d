package models

import "time"

// Host is an allocated Z offset within a region, 1 ≤ Z ≤ 254. (region, Z)
// is unique across active hosts; a host cannot outlive its region.
type Host struct {
	ID        string    `json:"id"`
	RegionID  string    `json:"region_id"`
	Z         int       `json:"z"`
	OwnerID   string    `json:"owner_id"`
	Label     string    `json:"label,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot captures the full attribute set for an audit record.
func (h *Host) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"id":         h.ID,
		"region_id":  h.RegionID,
		"z":          h.Z,
		"owner_id":   h.OwnerID,
		"label":      h.Label,
		"tags":       h.Tags,
		"created_at": h.CreatedAt.Format(time.RFC3339),
	}
}
