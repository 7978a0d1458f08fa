package iomgr

import (
	"sync/atomic"
)

type OpCode uint16
const (
	OpNop 	OpCode = iota
	OpWrite 
	OpRead
	OpSync
)

// One host request. Backends write Res (bytes or -errno) and then call Done
// exactly once, from whatever goroutine finished the work.
type Op struct {
	Fd		int
	Opcode	OpCode
	Buf		[]byte
	Off		int64
	Append	bool // resolve Off to EOF when the write executes
	Stream	bool // pipe or socket: no offset, may block indefinitely

	Done	func(*Op)

	Res		int32
	cancel	atomic.Bool
	done	atomic.Bool
}

// Cancel is advisory. Ops that have not reached the host yet finish with
// -ECANCELED, ops already handed to the kernel finish with their real result.
func (o *Op) Cancel() {
	o.cancel.Store(true)
}

func (o *Op) Cancelled() bool {
	return o.cancel.Load()
}

func (o *Op) Result() int32 {
	return atomic.LoadInt32(&o.Res)
}

func (o *Op) finish(res int32) {
	if o.done.Swap(true) { panic("iomgr: op finished twice") }
	atomic.StoreInt32(&o.Res, res)
	if o.Done != nil { o.Done(o) }
}

type Backend interface {
	Submit(op *Op)
	Name() string
	Close() error
}
