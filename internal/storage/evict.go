package storage

import "time"

// Evict drops notification records sent before now-retention and returns
// how many were removed. Pending results are left alone; their expiry is
// decided by the scheduler.
func Evict(s *State, now time.Time, retention time.Duration) int {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := now.Add(-retention)
	n := 0
	for k, r := range s.Notified {
		if r.SentAt.Before(cutoff) {
			delete(s.Notified, k)
			n++
		}
	}
	return n
}
