package models

// ==================== Allocation DTOs ====================

// AllocateRegionRequest asks for the next free (X,Y) slot in a country.
type AllocateRegionRequest struct {
	CountryCode string   `json:"country_code" binding:"required"`
	Label       string   `json:"label"`
	Tags        []string `json:"tags"`
}

// AllocateHostRequest asks for the next free Z offset in a region.
type AllocateHostRequest struct {
	RegionID string   `json:"region_id" binding:"required"`
	Label    string   `json:"label"`
	Tags     []string `json:"tags"`
}

// AllocateHostsBatchRequest asks for count hosts, best effort.
type AllocateHostsBatchRequest struct {
	RegionID string `json:"region_id" binding:"required"`
	Count    int    `json:"count" binding:"required"`
	Label    string `json:"label"`
}

// BatchItem is the outcome of one item of a batch allocation: either a
// host or a failure, never both.
type BatchItem struct {
	Index     int    `json:"index"`
	Host      *Host  `json:"host,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResult reports per-item outcomes plus aggregate counts. A failed
// item never aborts the remaining items.
type BatchResult struct {
	Requested int         `json:"requested"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

// ==================== Retirement DTOs ====================

// RetireRequest hard-deletes a region or host.
type RetireRequest struct {
	Reason  string `json:"reason" binding:"required"`
	Cascade bool   `json:"cascade"`
}

// ==================== Reservation DTOs ====================

// CreateReservationRequest places a time-bounded hold on a coordinate.
type CreateReservationRequest struct {
	ScopeType  string `json:"scope_type" binding:"required"` // region_in_country | host_in_region
	ScopeID    string `json:"scope_id" binding:"required"`   // country code or region id
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Z          int    `json:"z"`
	TTLMinutes int    `json:"ttl_minutes"`
}

// ConvertResult is the resource produced by converting a reservation:
// a region or a host, depending on the reservation's scope.
type ConvertResult struct {
	Reservation *Reservation `json:"reservation"`
	Region      *Region      `json:"region,omitempty"`
	Host        *Host        `json:"host,omitempty"`
}

// ==================== Read-side DTOs ====================

// AddressInfo is the read-side translation between a coordinate and its
// external dotted address form.
type AddressInfo struct {
	Address     string  `json:"address"`
	CountryCode string  `json:"country_code"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Z           int     `json:"z,omitempty"`
	Region      *Region `json:"region,omitempty"`
	Host        *Host   `json:"host,omitempty"`
}

// AuditPage is one page of audit history.
type AuditPage struct {
	Records  []*AuditRecord `json:"records"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}
