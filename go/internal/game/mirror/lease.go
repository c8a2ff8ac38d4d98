package mirror

import "time"

// Lease is a time-bounded claim held by one owner. The zero Lease is never active.
type Lease struct {
	Owner   string
	Expires time.Time
}

func NewLease(owner string, now time.Time, d time.Duration) Lease {
	return Lease{Owner: owner, Expires: now.Add(d)}
}

// Active reports whether the lease is held at now.
func (l Lease) Active(now time.Time) bool {
	return l.Owner != "" && now.Before(l.Expires)
}

// Remaining is the time left on the lease, zero once expired.
func (l Lease) Remaining(now time.Time) time.Duration {
	if !l.Active(now) {
		return 0
	}
	return l.Expires.Sub(now)
}
