// Package waitobj provides NT style dispatcher objects: events, and threads
// carrying a user APC queue that only drains inside an alertable wait.
package waitobj

import (
	"sync"
	"time"

	"ntaio/internal/status"
	"ntaio/internal/util"
)

// Infinite blocks forever, zero polls.
const Infinite time.Duration = -1

// Timer returns a channel firing after timeout. Infinite never fires.
func Timer(timeout time.Duration) (<-chan time.Time, func() bool) {
	if timeout < 0 { return nil, func() bool { return false } }
	t := time.NewTimer(timeout)
	return t.C, t.Stop
}

type Event struct {
	mu		sync.Mutex
	manual	bool
	set		bool
	wake	chan struct{} // closed and replaced on every Set
}

func CreateEvent(manual bool, initial bool) *Event {
	return &Event{
		manual:	manual,
		set:	initial,
		wake:	make(chan struct{}),
	}
}

func (e *Event) Set() {
	e.mu.Lock()
	e.set = true
	close(e.wake)
	e.wake = make(chan struct{})
	e.mu.Unlock()
}

func (e *Event) Reset() {
	e.mu.Lock()
	e.set = false
	e.mu.Unlock()
}

func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// consumes the signal for auto reset events
func (e *Event) try() (bool, <-chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		if !e.manual { e.set = false }
		return true, nil
	}
	return false, e.wake
}

// Wait returns Success or Timeout.
func (e *Event) Wait(timeout time.Duration) status.Status {
	return e.WaitAlertable(nil, timeout)
}

// WaitAlertable additionally returns UserAPC after running the APCs queued to
// th. It must be called by th's owner.
func (e *Event) WaitAlertable(th *Thread, timeout time.Duration) status.Status {
	timer, stop := Timer(timeout)
	defer stop()

	var alert <-chan struct{}
	if th != nil { alert = th.Alerted() }

	for {
		if th != nil && th.DeliverAPCs() > 0 { return status.UserAPC }
		ok, wake := e.try()
		if ok { return status.Success }

		select {
		case <-wake:
		case <-alert:
		case <-timer:
			if ok, _ := e.try(); ok { return status.Success }
			return status.Timeout
		}
	}
}

// Thread stands in for the OS thread that issued a request. Go has no thread
// identity, so callers create one per logical thread and pass it along.
type Thread struct {
	Name	string

	mu		sync.Mutex
	apcs	util.Queue[func()]
	alert	chan struct{} // cap 1
}

func CreateThread(name string) *Thread {
	return &Thread{
		Name:	name,
		apcs:	util.CreateQueue[func()](4),
		alert:	make(chan struct{}, 1),
	}
}

// QueueAPC may be called from any goroutine. fn runs on the owner.
func (t *Thread) QueueAPC(fn func()) {
	t.mu.Lock()
	t.apcs.Push(fn)
	t.mu.Unlock()
	select {
	case t.alert <- struct{}{}:
	default:
	}
}

func (t *Thread) PendingAPCs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.apcs.Cnt()
}

// Fires (possibly spuriously) after an APC is queued.
func (t *Thread) Alerted() <-chan struct{} {
	return t.alert
}

// DeliverAPCs runs everything queued, including APCs queued by APCs, and
// returns how many ran.
func (t *Thread) DeliverAPCs() int {
	ran := 0
	for {
		t.mu.Lock()
		if t.apcs.Cnt() == 0 {
			t.mu.Unlock()
			return ran
		}
		fn := t.apcs.Pop()
		t.mu.Unlock()
		fn()
		ran++
	}
}

// SleepEx: Success after timeout, UserAPC if alertable and APCs ran.
func (t *Thread) SleepEx(timeout time.Duration, alertable bool) status.Status {
	timer, stop := Timer(timeout)
	defer stop()

	if !alertable {
		if timer == nil { select {} }
		<-timer
		return status.Success
	}
	for {
		if t.DeliverAPCs() > 0 { return status.UserAPC }
		select {
		case <-t.alert:
		case <-timer:
			if t.DeliverAPCs() > 0 { return status.UserAPC }
			return status.Success
		}
	}
}
