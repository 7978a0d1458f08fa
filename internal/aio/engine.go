//go:build linux

package aio

import (
	"log/slog"

	c "ntaio/internal"
	"ntaio/internal/file"
	"ntaio/internal/iomgr"
	"ntaio/internal/metrics"
	"ntaio/internal/port"
	"ntaio/internal/status"
	"ntaio/internal/waitobj"

	"golang.org/x/sys/unix"
)

type Config struct {
	// run requests whose fd is ready on the issuing goroutine
	Inline	bool	`mapstructure:"inline"`
}

type Engine struct {
	log			slog.Logger
	cfg			Config
	mgr			*file.Manager
	backend		iomgr.Backend
	metrics		metrics.IoMetrics
	pending		*registry
	router		router
}

func CreateEngine(cfg Config, mgr *file.Manager, backend iomgr.Backend, m metrics.IoMetrics) *Engine {
	if m == nil { m = metrics.NewIoMetrics(backend.Name()) }
	log := *slog.With("src", "Engine")

	e := &Engine{
		log:		log,
		cfg:		cfg,
		mgr:		mgr,
		backend:	backend,
		metrics:	m,
		pending:	createRegistry(),
		router:		router{ log: log, metrics: m },
	}

	prev := mgr.OnLastHandle
	mgr.OnLastHandle = func(fo *file.FileObject) {
		e.retire(fo)
		if prev != nil { prev(fo) }
	}

	log.Debug("CreateEngine", "backend", backend.Name(), "inline", cfg.Inline)
	return e
}

// Close cancels and drains everything still pending, then stops the backend.
func (e *Engine) Close() error {
	n := 0
	for _, fo := range e.pending.objects() {
		n += e.pending.cancel(fo, nil)
	}
	if n > 0 { e.metrics.Cancelled(n) }
	e.pending.drain(nil)
	return e.backend.Close()
}

func (e *Engine) Manager() *file.Manager {
	return e.mgr
}

// Read reads into buf. offset nil (or FILE_USE_FILE_POINTER_POSITION) means
// the file pointer and is only valid on synchronous File Objects.
//
// A non-nil error rejects the request and leaves the status block untouched.
// Otherwise the status is final for synchronous File Objects; asynchronous ones
// get Success when the request already completed successfully and Pending in
// every other case, errors included.
func (e *Engine) Read(h *file.Handle, buf []byte, offset *int64, req Request) (status.Status, error) {
	return e.transfer(h, opRead, buf, offset, req)
}

// Write writes buf. FILE_WRITE_TO_END_OF_FILE appends at the end of file as it
// is when the write executes.
func (e *Engine) Write(h *file.Handle, buf []byte, offset *int64, req Request) (status.Status, error) {
	return e.transfer(h, opWrite, buf, offset, req)
}

// Flush is NtFlushBuffersFile.
func (e *Engine) Flush(h *file.Handle, req Request) (status.Status, error) {
	const opName = "Flush"
	fo, err := h.Object()
	if err != nil { return 0, err }
	if err := e.check(fo, opFlush, req); err != nil { return 0, status.Errorf(status.Code(err), opName, fo.Path(), nil) }

	if err := e.arm(fo, req); err != nil { return 0, status.Errorf(status.Code(err), opName, fo.Path(), nil) }
	op := e.newOp(fo, opFlush, nil, req)
	return e.issue(op), nil
}

func (e *Engine) transfer(h *file.Handle, kind opKind, buf []byte, offset *int64, req Request) (status.Status, error) {
	opName := "Read"
	if kind == opWrite { opName = "Write" }

	fo, err := h.Object()
	if err != nil { return 0, err }
	if err := e.check(fo, kind, req); err != nil { return 0, status.Errorf(status.Code(err), opName, fo.Path(), nil) }

	op := e.newOp(fo, kind, buf, req)
	if st := e.place(op, offset); st != status.Success { return 0, status.Errorf(st, opName, fo.Path(), nil) }
	if err := e.arm(fo, req); err != nil { return 0, status.Errorf(status.Code(err), opName, fo.Path(), nil) }

	if len(buf) == 0 {
		op.begin()
		e.metrics.Submitted(kind.String(), true)
		return e.completeNow(op, status.Success, 0), nil
	}
	return e.issue(op), nil
}

// Synchronous rejections: bad arguments, access and notification wiring.
// Nothing on the File Object changes here.
func (e *Engine) check(fo *file.FileObject, kind opKind, req Request) error {
	if req.IOSB == nil { return status.New(status.InvalidParameter, kind.String()) }

	switch kind {
	case opRead:
		if !fo.Access.Reads() { return status.New(status.AccessDenied, kind.String()) }
	case opWrite, opFlush:
		if !fo.Access.Writes() { return status.New(status.AccessDenied, kind.String()) }
	}
	if fo.IsDir() && kind != opControl { return status.New(status.InvalidDeviceRequest, kind.String()) }

	if req.APC != nil {
		if req.Thread == nil { return status.New(status.InvalidParameter, kind.String()) }
		if fo.Mode() == file.NotifyPort { return status.New(status.InvalidParameter, kind.String()) }
	}
	return nil
}

// arm commits the request's notification wiring once every check has passed.
// A port bound since check still wins, and the request is refused.
func (e *Engine) arm(fo *file.FileObject, req Request) error {
	if req.APC == nil { return nil }
	return fo.UseCallbacks()
}

func (e *Engine) newOp(fo *file.FileObject, kind opKind, buf []byte, req Request) *operation {
	op := &operation{ fo: fo, kind: kind, req: req, want: len(buf) }
	op.hop = &iomgr.Op{
		Fd:		fo.Fd(),
		Opcode:	kind.opcode(),
		Buf:	buf,
		Stream:	fo.Kind == file.KindStream,
	}
	return op
}

// place resolves the offset argument onto the host op.
func (e *Engine) place(op *operation, offset *int64) status.Status {
	fo := op.fo
	if fo.Kind == file.KindStream { return status.Success }

	// append-only access always writes at the end
	if op.kind == opWrite && !fo.Access.Has(c.FILE_WRITE_DATA) {
		op.hop.Append = true
		return status.Success
	}

	switch {
	case offset == nil || *offset == c.FILE_USE_FILE_POINTER_POSITION:
		if !fo.Synchronous() { return status.InvalidParameter }
		op.pointer = true
	case *offset == c.FILE_WRITE_TO_END_OF_FILE:
		if op.kind != opWrite { return status.InvalidParameter }
		op.hop.Append = true
	case *offset < 0:
		return status.InvalidParameter
	default:
		op.hop.Off = *offset
	}
	return status.Success
}

func (e *Engine) issue(op *operation) status.Status {
	fo := op.fo
	op.begin()

	if fo.Synchronous() {
		fo.LockPosition()
		defer fo.UnlockPosition()

		if op.pointer { op.hop.Off = fo.PositionLocked() }
		e.metrics.Submitted(op.kind.String(), true)
		res := e.execBlocking(op)
		st, info := op.result(res)
		if res >= 0 && fo.Kind != file.KindStream && op.kind != opFlush {
			fo.SetPositionLocked(op.hop.Off + int64(res))
		}
		return e.completeNow(op, st, info)
	}

	e.metrics.SetPending(e.pending.add(op))

	if e.cfg.Inline && e.ready(op) {
		e.metrics.Submitted(op.kind.String(), true)
		op.sync = true
		st, info := op.result(iomgr.Exec(op.hop))
		e.finish(op, st, info)
		if st == status.Success { return st }
		return status.Pending
	}

	e.metrics.Submitted(op.kind.String(), false)
	op.hop.Done = func(h *iomgr.Op) {
		st, info := op.result(h.Result())
		e.finish(op, st, info)
	}
	e.backend.Submit(op.hop)
	return status.Pending
}

func (e *Engine) ready(op *operation) bool {
	if op.fo.Kind != file.KindStream || op.kind == opFlush { return true }
	return iomgr.Ready(op.hop.Fd, op.kind == opWrite, 0)
}

// Synchronous File Objects block the caller, streams included.
func (e *Engine) execBlocking(op *operation) int32 {
	for {
		if op.hop.Stream { iomgr.Ready(op.hop.Fd, op.kind == opWrite, waitobj.Infinite) }
		res := iomgr.Exec(op.hop)
		if op.hop.Stream && res == -int32(unix.EAGAIN) { continue }
		return res
	}
}

// completeNow delivers a result known before the issuing call returns.
func (e *Engine) completeNow(op *operation, st status.Status, info uint64) status.Status {
	op.sync = true
	e.deliver(op, st, info)
	if op.fo.Synchronous() || st == status.Success { return st }
	return status.Pending
}

func (e *Engine) deliver(op *operation, st status.Status, info uint64) {
	e.router.complete(op, st, info)
	e.metrics.Completed(op.kind.String(), st)
}

func (e *Engine) finish(op *operation, st status.Status, info uint64) {
	e.deliver(op, st, info)
	e.metrics.SetPending(e.pending.remove(op))
}

// BindCompletionPort associates h's File Object with p.
func (e *Engine) BindCompletionPort(h *file.Handle, p *port.Port, key uint64) error {
	fo, err := h.Object()
	if err != nil { return err }
	return fo.BindCompletion(p, key)
}

func (e *Engine) SetCompletionModes(h *file.Handle, modes c.CompletionMode) error {
	fo, err := h.Object()
	if err != nil { return err }
	return fo.SetCompletionModes(modes)
}

// Cancel is CancelIoEx: iosb selects one operation, nil selects all of them.
// Cancelled operations still complete through the router.
func (e *Engine) Cancel(h *file.Handle, iosb *IoStatusBlock) error {
	fo, err := h.Object()
	if err != nil { return err }

	n := e.pending.cancel(fo, iosb)
	if n == 0 { return status.Errorf(status.NotFound, "CancelIoEx", fo.Path(), nil) }
	e.metrics.Cancelled(n)
	fo.Log().Debug("Cancel", "ops", n)
	return nil
}

// Pending reports how many operations of h's File Object are in flight.
func (e *Engine) Pending(h *file.Handle) int {
	fo, err := h.Object()
	if err != nil { return 0 }
	return e.pending.pending(fo)
}

func (e *Engine) CloseHandle(h *file.Handle) error {
	return e.mgr.Close(h)
}

// The last handle is going away: nothing may complete into a dead File Object.
func (e *Engine) retire(fo *file.FileObject) {
	if n := e.pending.cancel(fo, nil); n > 0 {
		e.metrics.Cancelled(n)
		fo.Log().Debug("Retire", "cancelled", n)
	}
	e.pending.drain(fo)
}
