//go:build linux

// Package file is the object manager boundary: it opens host files into File
// Objects, hands out handles, enforces sharing and owns the disposition arena.
package file

import (
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	c "ntaio/internal"
	"ntaio/internal/disposition"
	"ntaio/internal/metrics"
	"ntaio/internal/status"
	"ntaio/internal/waitobj"

	"github.com/cespare/xxhash"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const PATH_STRIPES = 0x40
const F_OPEN_PERM  = 0o644
const D_OPEN_PERM  = 0o755

type Manager struct {
	log			slog.Logger
	arena		*disposition.Arena
	metrics		metrics.FileMetrics

	// name operations (open, rename, link, unlink) serialize per path stripe
	locks		[PATH_STRIPES]sync.Mutex

	mu			sync.Mutex
	objects		map[*FileObject]struct{}

	// runs before a File Object is torn down, with no locks held
	OnLastHandle	func(*FileObject)
}

func CreateManager(m metrics.FileMetrics) *Manager {
	if m == nil { m = metrics.NewFileMetrics() }
	return &Manager{
		log:		*slog.With("src", "FileMgr"),
		arena:		disposition.CreateArena(),
		metrics:	m,
		objects:	make(map[*FileObject]struct{}),
	}
}

// Locks the stripes for paths in a fixed order; returns the unlock.
func (m *Manager) lockPaths(paths ...string) func() {
	idx := make([]int, 0, len(paths))
	for _, p := range paths {
		idx = append(idx, int(xxhash.Sum64([]byte(p)) % PATH_STRIPES))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)
	for _, i := range idx {
		m.locks[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			m.locks[idx[j]].Unlock()
		}
	}
}

func (m *Manager) track(fo *FileObject) {
	m.mu.Lock()
	m.objects[fo] = struct{}{}
	n := len(m.objects)
	m.mu.Unlock()
	m.metrics.SetOpenObjects(n)
}

func (m *Manager) untrack(fo *FileObject) {
	m.mu.Lock()
	delete(m.objects, fo)
	n := len(m.objects)
	m.mu.Unlock()
	m.metrics.SetOpenObjects(n)
}

func (m *Manager) Objects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func absPath(path string) (string, error) {
	if path == "" { return "", status.New(status.InvalidParameter, "Open") }
	return filepath.Abs(path)
}

func identity(st *unix.Stat_t) disposition.FileID {
	return disposition.FileID{ Dev: uint64(st.Dev), Ino: st.Ino }
}

func kindOf(mode uint32) Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return KindDirectory
	case unix.S_IFREG:
		return KindRegular
	}
	return KindStream
}

// Host errno to status, telling a missing name from a missing parent.
func (m *Manager) lookupStatus(path string, err error) status.Status {
	var errno unix.Errno
	if !errors.As(err, &errno) { return status.IoDeviceError }
	if errno == unix.ENOENT || errno == unix.ENOTDIR {
		var st unix.Stat_t
		if perr := unix.Stat(filepath.Dir(path), &st); perr != nil || st.Mode & unix.S_IFMT != unix.S_IFDIR {
			return status.ObjectPathNotFound
		}
		return status.ObjectNameNotFound
	}
	return status.FromErrno(errno)
}

// The name exists but belongs to a store waiting for its last close.
func (m *Manager) deletePendingAt(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil { return false }
	r := m.arena.Lookup(identity(&st))
	return r != nil && r.State() == disposition.MarkedForDelete
}

func validOpen(access c.Access, disp c.CreateDisposition, opts c.Options) bool {
	if disp > c.FILE_OVERWRITE_IF { return false }
	if opts & c.FILE_DIRECTORY_FILE != 0 {
		if opts & c.FILE_NON_DIRECTORY_FILE != 0 { return false }
		if disp != c.FILE_OPEN && disp != c.FILE_CREATE && disp != c.FILE_OPEN_IF { return false }
	}
	if opts & c.FILE_DELETE_ON_CLOSE != 0 && access & c.DELETE == 0 { return false }
	if opts & c.FILE_SYNCHRONOUS_IO == c.FILE_SYNCHRONOUS_IO { return false }
	return true
}

func hostFlags(access c.Access, disp c.CreateDisposition) int {
	flags := unix.O_CLOEXEC | unix.O_NONBLOCK
	truncating := disp == c.FILE_SUPERSEDE || disp == c.FILE_OVERWRITE || disp == c.FILE_OVERWRITE_IF
	if access.Writes() || truncating {
		flags |= unix.O_RDWR
	} else {
		flags |= unix.O_RDONLY
	}
	switch disp {
	case c.FILE_CREATE:
		flags |= unix.O_CREAT | unix.O_EXCL
	case c.FILE_OPEN_IF, c.FILE_OVERWRITE_IF, c.FILE_SUPERSEDE:
		flags |= unix.O_CREAT
	}
	return flags
}

// hostOpen returns the fd and whether the name was created by this call.
func (m *Manager) hostOpen(path string, access c.Access, disp c.CreateDisposition, opts c.Options) (int, bool, status.Status) {
	if opts & c.FILE_DIRECTORY_FILE != 0 {
		created := false
		if disp != c.FILE_OPEN {
			err := unix.Mkdir(path, D_OPEN_PERM)
			switch {
			case err == nil:
				created = true
			case err == unix.EEXIST && disp == c.FILE_OPEN_IF:
			default:
				return -1, false, m.lookupStatus(path, err)
			}
		}
		fd, err := unix.Open(path, unix.O_RDONLY | unix.O_DIRECTORY | unix.O_CLOEXEC, 0)
		if err == unix.ENOTDIR { return -1, false, status.NotADirectory }
		if err != nil { return -1, false, m.lookupStatus(path, err) }
		return fd, created, status.Success
	}

	// O_EXCL tells us whether we created it; without it we look first
	flags := hostFlags(access, disp)
	existed := true
	if flags & unix.O_CREAT != 0 && flags & unix.O_EXCL == 0 {
		var st unix.Stat_t
		existed = unix.Stat(path, &st) == nil
	}

	fd, err := unix.Open(path, flags, F_OPEN_PERM)
	if err == unix.EISDIR {
		if opts & c.FILE_NON_DIRECTORY_FILE != 0 { return -1, false, status.FileIsADirectory }
		if disp != c.FILE_OPEN && disp != c.FILE_OPEN_IF { return -1, false, status.FileIsADirectory }
		fd, err = unix.Open(path, unix.O_RDONLY | unix.O_DIRECTORY | unix.O_CLOEXEC, 0)
	}
	if err == unix.EEXIST {
		if m.deletePendingAt(path) { return -1, false, status.DeletePending }
		return -1, false, status.ObjectNameCollision
	}
	if err != nil { return -1, false, m.lookupStatus(path, err) }

	created := flags & unix.O_EXCL != 0 || !existed
	return fd, created, status.Success
}

// Open creates a File Object and returns its first handle.
func (m *Manager) Open(path string, access c.Access, share c.Share, disp c.CreateDisposition, opts c.Options) (*Handle, error) {
	const op = "Open"
	h, st := m.open(path, access, share, disp, opts)
	m.metrics.Opened(st)
	if st != status.Success {
		m.log.Debug(op, "path", path, "status", st)
		return nil, status.Errorf(st, op, path, nil)
	}
	return h, nil
}

func (m *Manager) open(path string, access c.Access, share c.Share, disp c.CreateDisposition, opts c.Options) (*Handle, status.Status) {
	path, err := absPath(path)
	if err != nil { return nil, status.InvalidParameter }
	access = access.Expand()
	if !validOpen(access, disp, opts) { return nil, status.InvalidParameter }

	unlock := m.lockPaths(path)
	defer unlock()

	fd, created, st := m.hostOpen(path, access, disp, opts)
	if st != status.Success { return nil, st }

	fail := func(st status.Status) (*Handle, status.Status) {
		unix.Close(fd)
		if created {
			if opts & c.FILE_DIRECTORY_FILE != 0 {
				unix.Rmdir(path)
			} else {
				unix.Unlink(path)
			}
		}
		return nil, st
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil { return fail(status.Code(err)) }
	kind := kindOf(stat.Mode)

	if kind == KindDirectory && opts & c.FILE_NON_DIRECTORY_FILE != 0 { return fail(status.FileIsADirectory) }
	if kind != KindDirectory && opts & c.FILE_DIRECTORY_FILE != 0 { return fail(status.NotADirectory) }
	if kind == KindRegular {
		// blocking semantics are handled by polling, regular files never block
		unix.SetNonblock(fd, false)
	}

	doc := opts & c.FILE_DELETE_ON_CLOSE != 0
	if doc && stat.Mode & 0o222 == 0 { return fail(status.CannotDelete) }

	id := identity(&stat)
	rec := m.arena.Acquire(id, path, kind == KindDirectory)
	open, st := rec.AddOpen(access, share, doc)
	if st != status.Success {
		m.arena.Release(rec)
		return fail(st)
	}

	// truncation only once sharing allows it
	if !created && (disp == c.FILE_OVERWRITE || disp == c.FILE_OVERWRITE_IF || disp == c.FILE_SUPERSEDE) {
		if err := unix.Ftruncate(fd, 0); err != nil {
			rec.RemoveOpen(open)
			m.arena.Release(rec)
			return fail(status.Code(err))
		}
	}

	fo := &FileObject{
		ID:			uuid.New(),
		FileID:		id,
		Access:		access,
		Share:		share,
		Options:	opts,
		Kind:		kind,
		Event:		waitobj.CreateEvent(true, false),
		mgr:		m,
		fd:			fd,
		rec:		rec,
		open:		open,
		path:		path,
	}
	fo.log = *m.log.With("fo", fo.ID.String()[:8])
	fo.handles.Store(1)
	m.track(fo)

	fo.log.Debug("Open", "path", path, "access", access, "share", share, "kind", kind, "created", created)
	return &Handle{ fo: fo }, status.Success
}

// Duplicate returns a second handle on the same File Object.
func (m *Manager) Duplicate(h *Handle) (*Handle, error) {
	fo, err := h.Object()
	if err != nil { return nil, err }
	fo.handles.Add(1)
	return &Handle{ fo: fo }, nil
}

// Close releases h; the last handle tears the File Object down.
func (m *Manager) Close(h *Handle) error {
	if h == nil || h.closed.Swap(true) { return status.New(status.InvalidHandle, "Close") }
	fo := h.fo
	if fo.handles.Add(-1) > 0 { return nil }

	if m.OnLastHandle != nil { m.OnLastHandle(fo) }
	return m.destroy(fo)
}

func (m *Manager) destroy(fo *FileObject) error {
	fo.unbind()

	unlock := m.lockPaths(fo.rec.Path())
	path, remove := fo.rec.RemoveOpen(fo.open)
	err := unix.Close(fo.fd)
	if remove { m.removeName(fo.rec, path) }
	unlock()

	m.arena.Release(fo.rec)
	m.untrack(fo)
	fo.log.Debug("Destroyed", "removed", remove)

	if err != nil { return status.Errorf(status.InvalidHandle, "Close", fo.Path(), err) }
	return nil
}

// removeName unlinks path if it still names rec's store. Callers hold the path stripe.
func (m *Manager) removeName(rec *disposition.Record, path string) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil || identity(&st) != rec.ID {
		// replaced or already gone
		return
	}

	var err error
	if rec.IsDir {
		err = unix.Rmdir(path)
	} else {
		err = unix.Unlink(path)
	}
	if err != nil {
		m.log.Warn("Deferred delete failed", "path", path, "err", err)
		rec.Restore()
		m.metrics.Disposition("restored")
		return
	}
	m.metrics.Disposition("removed")
}

// FileObjects whose name is path or lies below it.
func (m *Manager) objectsAt(path string, below bool) []*FileObject {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := path + string(filepath.Separator)
	var out []*FileObject
	for fo := range m.objects {
		p := fo.Path()
		if (!below && p == path) || (below && len(p) > len(prefix) && p[:len(prefix)] == prefix) {
			out = append(out, fo)
		}
	}
	return out
}
