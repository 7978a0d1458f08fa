//go:build linux

package file

import (
	"log/slog"
	"sync"
	"sync/atomic"

	c "ntaio/internal"
	"ntaio/internal/disposition"
	"ntaio/internal/port"
	"ntaio/internal/status"
	"ntaio/internal/waitobj"

	"github.com/google/uuid"
)

type Kind uint8
const (
	KindRegular Kind = iota
	KindDirectory
	KindStream // fifo, socket, device: no offsets, reads may block
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDirectory:
		return "dir"
	}
	return "stream"
}

// How completions of this File Object reach the caller beyond the status block
// and events. Moves out of NotifyNone at most once.
type NotificationMode uint8
const (
	NotifyNone NotificationMode = iota
	NotifyCallback
	NotifyPort
)

type Handle struct {
	fo		*FileObject
	closed	atomic.Bool
}

func (h *Handle) Object() (*FileObject, error) {
	if h == nil || h.closed.Load() { return nil, status.New(status.InvalidHandle, "Object") }
	return h.fo, nil
}

type FileObject struct {
	ID			uuid.UUID
	FileID		disposition.FileID
	Access		c.Access
	Share		c.Share
	Options		c.Options
	Kind		Kind
	Event		*waitobj.Event // the file handle as a wait object

	log			slog.Logger
	mgr			*Manager
	fd			int
	rec			*disposition.Record
	open		*disposition.Open
	handles		atomic.Int32

	pathMu		sync.RWMutex
	path		string

	posMu		sync.Mutex
	pos			int64

	notifyMu	sync.Mutex
	mode		NotificationMode
	port		*port.Port
	key			uint64
	skip		atomic.Uint32
}

func (fo *FileObject) Fd() int {
	return fo.fd
}

func (fo *FileObject) Log() *slog.Logger {
	return &fo.log
}

func (fo *FileObject) Handles() int {
	return int(fo.handles.Load())
}

func (fo *FileObject) Path() string {
	fo.pathMu.RLock()
	defer fo.pathMu.RUnlock()
	return fo.path
}

func (fo *FileObject) setPath(path string) {
	fo.pathMu.Lock()
	fo.path = path
	fo.pathMu.Unlock()
}

func (fo *FileObject) IsDir() bool {
	return fo.Kind == KindDirectory
}

// Synchronous File Objects serialize on the file pointer and never pend.
func (fo *FileObject) Synchronous() bool {
	return fo.Options & c.FILE_SYNCHRONOUS_IO != 0
}

func (fo *FileObject) DeleteOnClose() bool {
	return fo.rec.OnClose(fo.open)
}

// The file pointer lock. Synchronous I/O holds it for the whole request.
func (fo *FileObject) LockPosition() {
	fo.posMu.Lock()
}

func (fo *FileObject) UnlockPosition() {
	fo.posMu.Unlock()
}

// Callers hold the position lock.
func (fo *FileObject) PositionLocked() int64 {
	return fo.pos
}

func (fo *FileObject) SetPositionLocked(pos int64) {
	fo.pos = pos
}

func (fo *FileObject) Position() int64 {
	fo.posMu.Lock()
	defer fo.posMu.Unlock()
	return fo.pos
}

func (fo *FileObject) SetPosition(pos int64) error {
	if pos < 0 { return status.New(status.InvalidParameter, "SetPosition") }
	fo.posMu.Lock()
	fo.pos = pos
	fo.posMu.Unlock()
	return nil
}

func (fo *FileObject) Mode() NotificationMode {
	fo.notifyMu.Lock()
	defer fo.notifyMu.Unlock()
	return fo.mode
}

// BindCompletion attaches a port. It is set-once and excludes callbacks.
func (fo *FileObject) BindCompletion(p *port.Port, key uint64) error {
	const op = "BindCompletion"
	fo.notifyMu.Lock()
	defer fo.notifyMu.Unlock()

	if fo.mode != NotifyNone || fo.Synchronous() {
		return status.Errorf(status.InvalidParameter, op, fo.Path(), nil)
	}
	if err := p.Retain(); err != nil { return err }

	fo.mode = NotifyPort
	fo.port = p
	fo.key = key
	fo.log.Debug(op, "port", p.ID.String()[:8], "key", key)
	return nil
}

// UseCallbacks records that an APC style request was issued on this File Object.
func (fo *FileObject) UseCallbacks() error {
	fo.notifyMu.Lock()
	defer fo.notifyMu.Unlock()

	if fo.mode == NotifyPort { return status.Errorf(status.InvalidParameter, "UseCallbacks", fo.Path(), nil) }
	fo.mode = NotifyCallback
	return nil
}

// Completion returns the binding as of now; completions read it late so ops
// pending before a bind still reach the port.
func (fo *FileObject) Completion() (*port.Port, uint64) {
	fo.notifyMu.Lock()
	defer fo.notifyMu.Unlock()
	return fo.port, fo.key
}

func (fo *FileObject) unbind() {
	fo.notifyMu.Lock()
	p := fo.port
	fo.port = nil
	fo.notifyMu.Unlock()
	if p != nil { p.Release() }
}

// SetCompletionModes adds skip flags. Flags can't be cleared.
func (fo *FileObject) SetCompletionModes(modes c.CompletionMode) error {
	valid := c.FILE_SKIP_COMPLETION_PORT_ON_SUCCESS | c.FILE_SKIP_SET_EVENT_ON_HANDLE
	if modes &^ valid != 0 { return status.New(status.InvalidParameter, "SetCompletionModes") }
	fo.skip.Or(uint32(modes))
	return nil
}

func (fo *FileObject) Skips(mode c.CompletionMode) bool {
	return fo.skip.Load() & uint32(mode) != 0
}
