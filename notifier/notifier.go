// Package notifier implements the one-shot, height-keyed delivery
// notification registry a caller uses to learn when cross-chain messages up
// to a given height have finished being delivered.
package notifier

import (
	"sync"

	"github.com/tolelom/multichain/chainid"
)

// DeliveryNotifier tracks callers waiting for messages up to some height to
// be delivered, modeled on the teacher's pub/sub emitter
// (tolelom-tolchain/events/emitter.go Subscribe/Emit), specialized from
// topic-keyed broadcast to one-shot height-keyed fan-out.
type DeliveryNotifier struct {
	mu      sync.Mutex
	waiters map[chainid.Height][]chan struct{}
}

// New creates an empty DeliveryNotifier.
func New() *DeliveryNotifier {
	return &DeliveryNotifier{waiters: make(map[chainid.Height][]chan struct{})}
}

// Register arranges for ch to be closed once Notify is called with a
// height >= height. If nothing is currently outstanding for that height the
// caller should not register at all — callers are expected to check first,
// matching the original's "no need to wait" fast path.
func (n *DeliveryNotifier) Register(height chainid.Height, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waiters[height] = append(n.waiters[height], ch)
}

// Notify releases every waiter registered for a height <= height, since
// delivery up to height implies delivery of everything below it.
func (n *DeliveryNotifier) Notify(height chainid.Height) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for h, chans := range n.waiters {
		if h > height {
			continue
		}
		for _, ch := range chans {
			close(ch)
		}
		delete(n.waiters, h)
	}
}

// NotifyImmediately closes ch right away — the path taken when a caller
// asks to be notified about a height with nothing outstanding to wait for.
func NotifyImmediately(ch chan struct{}) {
	close(ch)
}
