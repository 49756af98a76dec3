package notifier

import (
	"testing"
	"time"
)

func TestNotifyReleasesWaitersAtOrBelowHeight(t *testing.T) {
	n := New()
	ch5 := make(chan struct{})
	ch10 := make(chan struct{})
	n.Register(5, ch5)
	n.Register(10, ch10)

	n.Notify(7)

	select {
	case <-ch5:
	case <-time.After(time.Second):
		t.Fatalf("expected waiter at height 5 to be released by Notify(7)")
	}
	select {
	case <-ch10:
		t.Fatalf("waiter at height 10 must not be released by Notify(7)")
	default:
	}

	n.Notify(10)
	select {
	case <-ch10:
	case <-time.After(time.Second):
		t.Fatalf("expected waiter at height 10 to be released by Notify(10)")
	}
}

func TestNotifyReleasesMultipleWaitersAtSameHeight(t *testing.T) {
	n := New()
	a := make(chan struct{})
	b := make(chan struct{})
	n.Register(3, a)
	n.Register(3, b)

	n.Notify(3)
	for _, ch := range []chan struct{}{a, b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("expected all waiters at height 3 to be released")
		}
	}
}

func TestNotifyImmediatelyClosesChannel(t *testing.T) {
	ch := make(chan struct{})
	NotifyImmediately(ch)
	select {
	case <-ch:
	default:
		t.Fatalf("expected channel to be closed immediately")
	}
}
