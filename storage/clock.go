package storage

import "time"

// SystemClock is the production Clock, backed by the OS wall clock.
type SystemClock struct{}

// CurrentTime returns the current time as unix nanoseconds.
func (SystemClock) CurrentTime() int64 {
	return time.Now().UnixNano()
}
