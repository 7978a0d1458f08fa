// Package aio issues reads, writes, flushes and control requests against File
// Objects and routes every completion to the status block and the notification
// channels wired for it.
package aio

import (
	"sync/atomic"

	"ntaio/internal/status"
	"ntaio/internal/waitobj"
)

// IoStatusBlock is owned by the caller and written once, when the operation
// completes. Until then it reads as Pending.
type IoStatusBlock struct {
	claimed	atomic.Bool
	written	atomic.Bool
	status	atomic.Uint32
	info	atomic.Uint64
}

func (b *IoStatusBlock) set(st status.Status, info uint64) {
	if b.claimed.Swap(true) { panic("aio: status block written twice") }
	b.status.Store(uint32(st))
	b.info.Store(info)
	b.written.Store(true)
}

func (b *IoStatusBlock) Status() status.Status {
	if !b.written.Load() { return status.Pending }
	return status.Status(b.status.Load())
}

// Bytes transferred, or the size of the returned data for control requests.
func (b *IoStatusBlock) Information() uint64 {
	if !b.written.Load() { return 0 }
	return b.info.Load()
}

func (b *IoStatusBlock) Done() bool {
	return b.written.Load()
}

// APCRoutine runs on the issuing Thread during an alertable wait.
type APCRoutine func(ctx uint64, iosb *IoStatusBlock)

type Request struct {
	IOSB		*IoStatusBlock
	Event		*waitobj.Event // explicit event, always signalled
	APC			APCRoutine
	APCContext	uint64 // also the value of the completion port message
	Thread		*waitobj.Thread
}

// At is a byte offset argument.
func At(off int64) *int64 {
	return &off
}
