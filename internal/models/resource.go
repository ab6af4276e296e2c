package models

// Sub-resource lifecycle statuses. The status column is authoritative and is
// always validated together with the user/order item reference pair.
const (
	// ResourceStatusFree marks a sub-resource that can still be claimed.
	ResourceStatusFree = "FREE"
	// ResourceStatusClaimed marks a sub-resource bound to an order item and user.
	ResourceStatusClaimed = "CLAIMED"
)

// Sub-resource kinds used in API payloads and order item bindings.
const (
	// ResourceKindProfile identifies a Netflix profile.
	ResourceKindProfile = "NETFLIX_PROFILE"
	// ResourceKindSlot identifies a Spotify seat.
	ResourceKindSlot = "SPOTIFY_SLOT"
)
