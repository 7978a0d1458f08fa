// Package port implements I/O completion ports: a reference counted FIFO of
// completion messages with blocking, polling and alertable removal.
package port

import (
	"log/slog"
	"sync"
	"time"

	"ntaio/internal/status"
	"ntaio/internal/util"
	"ntaio/internal/waitobj"

	"github.com/google/uuid"
	"github.com/negrel/assert"
)

const opRemove = "RemoveIoCompletion"
const opPost = "SetIoCompletion"

type Message struct {
	Key			uint64
	Value		uint64
	Status		status.Status
	Information	uint64
}

type Port struct {
	ID			uuid.UUID
	log			slog.Logger

	mu			sync.Mutex
	queue		util.Queue[Message]
	wake		chan struct{} // closed and replaced on post and on destroy
	waiters		int
	refs		int // the creator's handle plus one per bound File Object
	open		bool // the creator's handle
	closed		bool
}

func CreatePort() *Port {
	id := uuid.New()
	log := *slog.With("src", "Port", "port", id.String()[:8])
	log.Debug("CreatePort")

	return &Port{
		ID:		id,
		log:	log,
		queue:	util.CreateQueue[Message](0x10),
		wake:	make(chan struct{}),
		refs:	1,
		open:	true,
	}
}

func (p *Port) broadcast() {
	close(p.wake)
	p.wake = make(chan struct{})
}

// Retain adds the reference a File Object holds while bound. Binding goes
// through the port handle, so a closed handle refuses.
func (p *Port) Retain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open { return status.New(status.InvalidHandle, "Retain") }
	p.refs++
	return nil
}

// Release drops a File Object's reference.
func (p *Port) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed { return status.New(status.InvalidHandle, "Release") }
	p.release()
	return nil
}

// Close closes the creator's handle, once. Bound File Objects keep the port
// alive and completing until they release it.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open { return status.New(status.InvalidHandle, "Close") }
	p.open = false
	p.release()
	return nil
}

// The last reference discards queued messages and wakes every waiter with
// AbandonedWait0.
func (p *Port) release() {
	p.refs--
	assert.GreaterOrEqual(p.refs, 0, "port released twice")
	if p.refs > 0 { return }

	p.closed = true
	dropped := p.queue.Clear()
	p.broadcast()
	p.log.Debug("Destroyed", "dropped", dropped, "waiters", p.waiters)
}

func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Post queues a message. Real completions and injected ones take this same path.
func (p *Port) Post(key, value uint64, st status.Status, information uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed { return status.New(status.InvalidHandle, opPost) }

	p.queue.Push(Message{
		Key:			key,
		Value:			value,
		Status:			st,
		Information:	information,
	})
	p.broadcast()
	return nil
}

func (p *Port) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Cnt()
}

func (p *Port) Waiters() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiters
}

func (p *Port) RemoveOne(timeout time.Duration) (Message, error) {
	msgs, _, err := p.RemoveMany(1, timeout, nil)
	if err != nil { return Message{}, err }
	return msgs[0], nil
}

// RemoveMany returns as soon as at least one message is queued, taking up to
// max of them in FIFO order, plus how many remain queued. A non-nil th makes the
// wait alertable: APCs queued to th run and the call fails with UserAPC, but
// only if no message was available at that point.
func (p *Port) RemoveMany(max int, timeout time.Duration, th *waitobj.Thread) ([]Message, int, error) {
	if max < 1 { return nil, 0, status.New(status.InvalidParameter, opRemove) }

	timer, stop := waitobj.Timer(timeout)
	defer stop()

	var alert <-chan struct{}
	if th != nil { alert = th.Alerted() }

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, 0, status.New(status.InvalidHandle, opRemove)
	}
	p.waiters++

	for {
		if p.closed {
			p.waiters--
			p.mu.Unlock()
			return nil, 0, status.New(status.AbandonedWait0, opRemove)
		}
		if p.queue.Cnt() > 0 {
			msgs := p.queue.PopN(max)
			remaining := p.queue.Cnt()
			p.waiters--
			p.mu.Unlock()
			return msgs, remaining, nil
		}
		if th != nil && th.PendingAPCs() > 0 {
			p.waiters--
			p.mu.Unlock()
			th.DeliverAPCs()
			return nil, 0, status.New(status.UserAPC, opRemove)
		}

		wake := p.wake
		p.mu.Unlock()

		expired := false
		select {
		case <-wake:
		case <-alert:
		case <-timer:
			expired = true
		}

		p.mu.Lock()
		if expired && !p.closed && p.queue.Cnt() == 0 && (th == nil || th.PendingAPCs() == 0) {
			p.waiters--
			p.mu.Unlock()
			return nil, 0, status.New(status.Timeout, opRemove)
		}
	}
}
