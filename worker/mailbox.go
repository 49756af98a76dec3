package worker

import "sync"

// Mailbox serializes mutating requests against one chain onto a single
// logical owner, the "mailbox/actor pattern" spec.md §5 requires: all
// mutating handlers on one chain run one at a time. Requests waiting on
// the mutex are not guaranteed to run in submission order. Readers
// (GetChainInfo) do not go through the mailbox; they wait on the view's
// read lock, which an open scope holds exclusively.
type Mailbox struct {
	mu sync.Mutex
}

// NewMailbox creates an idle Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Run executes fn with exclusive ownership of this chain's write scope.
// Requests submitted concurrently block here until the mutex is free;
// which waiting request runs next is not defined.
func (m *Mailbox) Run(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn()
}
