//go:build linux

package aio

import (
	"log/slog"
	"sync/atomic"

	c "ntaio/internal"
	"ntaio/internal/file"
	"ntaio/internal/iomgr"
	"ntaio/internal/metrics"
	"ntaio/internal/status"
)

type opKind uint8
const (
	opRead opKind = iota
	opWrite
	opFlush
	opControl
)

func (k opKind) String() string {
	switch k {
	case opRead:
		return "read"
	case opWrite:
		return "write"
	case opFlush:
		return "flush"
	}
	return "control"
}

func (k opKind) opcode() iomgr.OpCode {
	switch k {
	case opRead:
		return iomgr.OpRead
	case opWrite:
		return iomgr.OpWrite
	case opFlush:
		return iomgr.OpSync
	}
	return iomgr.OpNop
}

type operation struct {
	fo		*file.FileObject
	kind	opKind
	req		Request
	want	int
	pointer	bool // offset comes from the file pointer
	sync	bool // finished before the issuing call returned
	hop		*iomgr.Op
	done	atomic.Bool
}

// Bytes or -errno to status and information.
func (op *operation) result(res int32) (status.Status, uint64) {
	if res < 0 { return status.FromResult(res), 0 }
	if op.kind == opRead && res == 0 && op.want > 0 { return status.EndOfFile, 0 }
	return status.Success, uint64(res)
}

// Resets the wait objects this op will signal, before anything can complete it.
func (op *operation) begin() {
	if op.fo.Synchronous() { return }
	if op.req.Event != nil {
		op.req.Event.Reset()
	} else if !op.fo.Skips(c.FILE_SKIP_SET_EVENT_ON_HANDLE) {
		op.fo.Event.Reset()
	}
}

type router struct {
	log		slog.Logger
	metrics	metrics.IoMetrics
}

// complete writes the status block and fans out. Everything is read at
// completion time, so a port bound while the op was pending still gets it.
func (r *router) complete(op *operation, st status.Status, info uint64) {
	if op.done.Swap(true) { panic("aio: operation completed twice") }
	op.req.IOSB.set(st, info)

	fo := op.fo
	if fo.Synchronous() { return }

	if op.req.Event != nil {
		op.req.Event.Set()
		r.metrics.Notified(metrics.ChanEvent)
	} else if !fo.Skips(c.FILE_SKIP_SET_EVENT_ON_HANDLE) {
		fo.Event.Set()
		r.metrics.Notified(metrics.ChanHandle)
	}

	if p, key := fo.Completion(); p != nil {
		switch {
		case op.sync && st == status.Success && fo.Skips(c.FILE_SKIP_COMPLETION_PORT_ON_SUCCESS):
			r.metrics.Notified(metrics.ChanPortSkipped)
		default:
			if err := p.Post(key, op.req.APCContext, st, info); err != nil {
				r.log.Warn("Completion dropped", "port", p.ID.String()[:8], "err", err)
				break
			}
			r.metrics.Notified(metrics.ChanPort)
		}
	}

	if op.req.APC != nil {
		apc, ctx, iosb := op.req.APC, op.req.APCContext, op.req.IOSB
		op.req.Thread.QueueAPC(func() { apc(ctx, iosb) })
		r.metrics.Notified(metrics.ChanAPC)
	}
}
