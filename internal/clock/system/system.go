// Package system is the wall clock used outside tests. Sync windows, cache
// ages and session expiry all read time through feed.Clock so tests can pin it.
package system

import "time"

// Clock reads time.Now in UTC.
type Clock struct{}

// New returns a Clock.
func New() *Clock { return &Clock{} }

// Now returns the current UTC time. Monotonic readings are stripped so values
// compare and serialize the same way as timestamps loaded from a source.
func (*Clock) Now() time.Time {
	return time.Now().UTC().Round(0)
}
