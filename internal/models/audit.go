package models

import "time"

// Audit event kinds
const (
	AuditEventAllocated = "allocated"
	AuditEventUpdated   = "updated"
	AuditEventRetired   = "retired"
)

// Audited resource types
const (
	ResourceTypeRegion = "region"
	ResourceTypeHost   = "host"
)

// AuditRecord is an append-only snapshot of a resource at the time of a
// mutating event. Records are never updated or deleted and outlive the
// resources they describe.
type AuditRecord struct {
	ID           string                 `json:"id"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Event        string                 `json:"event"`
	ActorID      string                 `json:"actor_id"`
	Snapshot     map[string]interface{} `json:"snapshot"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AuditFilter narrows an audit history query. Zero values mean "any".
type AuditFilter struct {
	ResourceType string
	ResourceID   string
	ActorID      string
	From         time.Time
	To           time.Time
	Page         int
	PageSize     int
}
