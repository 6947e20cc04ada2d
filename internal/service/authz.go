package service

import "context"

// Actions checked against the permission provider
const (
	ActionAllocateRegion = "region:allocate"
	ActionAllocateHost   = "host:allocate"
	ActionRetire         = "resource:retire"
	ActionUpdate         = "resource:update"
	ActionReserve        = "coordinate:reserve"
	ActionConvert        = "reservation:convert"
	ActionCancel         = "reservation:cancel"
)

// ResourceRef names the resource an action targets. OwnerID is empty
// for namespace-level actions (e.g. allocating into a country).
type ResourceRef struct {
	Type    string
	ID      string
	OwnerID string
}

// PermissionProvider is consulted before every mutating operation.
// A denial surfaces as a permission error to the caller.
type PermissionProvider interface {
	Authorize(ctx context.Context, userID, action string, resource ResourceRef) bool
}

// OwnerAuthorizer allows namespace-level actions for everyone and
// resource-level actions only for the resource owner.
type OwnerAuthorizer struct{}

func (OwnerAuthorizer) Authorize(_ context.Context, userID, _ string, resource ResourceRef) bool {
	if resource.OwnerID == "" {
		return true
	}
	return resource.OwnerID == userID
}
