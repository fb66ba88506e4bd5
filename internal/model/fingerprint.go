package model

import "time"

// Fingerprint is the content signature used to recognize the same real-world
// event reported by more than one channel.
type Fingerprint string

// FingerprintEntry records the first sighting of a fingerprint.
type FingerprintEntry struct {
	FirstSeenAt time.Time   `json:"first_seen_at"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Source      Channel     `json:"source"`
}

// Expired reports whether the entry is older than ttl at now.
func (e FingerprintEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FirstSeenAt) > ttl
}
