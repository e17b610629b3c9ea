package config

// Persistent state keys (Registry)
const (
	KeyActiveRide    = "active_ride"
	KeyLastRideID    = "last_ride_id"
	KeyPermissionSet = "location_permission"
)
