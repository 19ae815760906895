package domain

import "time"

// ConnectivityState is the network liveness signal shown next to the
// alert banner. It is independent of any single fetch outcome.
type ConnectivityState struct {
	IsOnline   bool      `json:"is_online"`
	LastUpdate time.Time `json:"last_update"`
}
