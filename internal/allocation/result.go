package allocation

import "errors"

// FailureKind discriminates expected allocation failures. Expected commerce
// failures travel in the Result; only unexpected persistence errors surface
// as Go errors.
type FailureKind string

// Expected allocation failure kinds.
const (
	// FailureNone marks a successful allocation.
	FailureNone FailureKind = ""
	// FailureOrderNotPaid means the owning order is not PAID or COMPLETED.
	FailureOrderNotPaid FailureKind = "order_not_paid"
	// FailureNoProfileAvailable means every Netflix profile is claimed.
	FailureNoProfileAvailable FailureKind = "no_profile_available"
	// FailureNoSlotAvailable means every Spotify seat is claimed.
	FailureNoSlotAvailable FailureKind = "no_slot_available"
)

// Deallocation precondition failures.
var (
	// ErrItemNotFound indicates the order item does not exist.
	ErrItemNotFound = errors.New("allocation: order item not found")
	// ErrResourceNotFound indicates the sub-resource does not exist.
	ErrResourceNotFound = errors.New("allocation: resource not found")
	// ErrOrderStillPaid rejects deallocation of a resource whose owning order
	// is still PAID or COMPLETED without an explicit override.
	ErrOrderStillPaid = errors.New("allocation: order still paid")
	// ErrUserMismatch indicates the caller passed a user that does not own the order.
	ErrUserMismatch = errors.New("allocation: user does not own order")
)

// Result reports the outcome of an allocate call.
type Result struct {
	OK               bool        // Whether a resource is bound to the item.
	ResourceKind     string      // Bound resource kind on success.
	ResourceID       uint64      // Bound resource ID on success.
	AlreadyAllocated bool        // True when a prior call had already bound the resource.
	Failure          FailureKind // Expected failure kind when OK is false.
}

func success(kind string, id uint64, already bool) Result {
	return Result{OK: true, ResourceKind: kind, ResourceID: id, AlreadyAllocated: already}
}

func failure(kind FailureKind) Result {
	return Result{Failure: kind}
}
