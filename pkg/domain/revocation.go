package domain

import "time"

// RevocationEntry is the value stored for a blacklisted token.
type RevocationEntry struct {
	Reason        string    `json:"reason"`
	BlacklistedAt time.Time `json:"blacklistedAt"`
	// TTL is the time left before the store drops the entry. Filled on read only.
	TTL time.Duration `json:"-"`
}

// RevocationStats is a diagnostic snapshot of the revocation store.
type RevocationStats struct {
	ActiveCount       int     `json:"activeCount"`
	EstimatedMemoryKB float64 `json:"estimatedMemoryKB"`
	StoreConnected    bool    `json:"storeConnected"`
}
