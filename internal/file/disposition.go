//go:build linux

package file

import (
	"io"
	"os"
	"sync/atomic"

	c "ntaio/internal"
	"ntaio/internal/disposition"
	"ntaio/internal/status"

	"golang.org/x/sys/unix"
)

func dirEmpty(path string) bool {
	d, err := os.Open(path)
	if err != nil { return true }
	defer d.Close()
	_, err = d.Readdirnames(1)
	return err == io.EOF
}

// SetDisposition is FileDispositionInformation(Ex). Plain Delete / DoNotDelete
// map to FILE_DISPOSITION_DELETE and FILE_DISPOSITION_DO_NOT_DELETE.
func (m *Manager) SetDisposition(h *Handle, flags c.DispositionFlags) error {
	const op = "SetDisposition"
	fo, err := h.Object()
	if err != nil { return err }

	var stat unix.Stat_t
	if err := unix.Fstat(fo.fd, &stat); err != nil { return status.Errorf(status.Code(err), op, fo.Path(), err) }
	facts := disposition.Facts{ ReadOnly: stat.Mode & 0o222 == 0 }
	if fo.IsDir() && flags & c.FILE_DISPOSITION_DELETE != 0 {
		facts.NonEmpty = !dirEmpty(fo.Path())
	}

	path := fo.rec.Path()
	unlock := m.lockPaths(path)
	defer unlock()

	before := fo.rec.State()
	st, unlinkNow := fo.rec.SetDisposition(fo.open, flags, facts)
	if st != status.Success {
		m.metrics.Disposition("refused")
		fo.log.Debug(op, "flags", flags, "status", st)
		return status.Errorf(st, op, fo.Path(), nil)
	}

	if unlinkNow {
		var err error
		if fo.IsDir() {
			err = unix.Rmdir(path)
		} else {
			err = unix.Unlink(path)
		}
		if err != nil {
			fo.rec.Restore()
			return status.Errorf(status.Code(err), op, path, err)
		}
		m.metrics.Disposition("posix_removed")
		return nil
	}

	switch after := fo.rec.State(); {
	case before == disposition.Normal && after == disposition.MarkedForDelete:
		m.metrics.Disposition("marked")
	case before == disposition.MarkedForDelete && after == disposition.Normal:
		m.metrics.Disposition("unmarked")
	}
	fo.log.Debug(op, "flags", flags, "state", fo.rec.State())
	return nil
}

type Info struct {
	Size			int64
	Links			uint64
	IsDir			bool
	ReadOnly		bool
	DeletePending	bool
}

func infoOf(st *unix.Stat_t) Info {
	return Info{
		Size:		st.Size,
		Links:		uint64(st.Nlink),
		IsDir:		st.Mode & unix.S_IFMT == unix.S_IFDIR,
		ReadOnly:	st.Mode & 0o222 == 0,
	}
}

// QueryAttributes looks a path up without opening it. A store waiting for its
// last close answers DeletePending.
func (m *Manager) QueryAttributes(path string) (Info, error) {
	const op = "QueryAttributes"
	path, err := absPath(path)
	if err != nil { return Info{}, err }

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Info{}, status.Errorf(m.lookupStatus(path, err), op, path, nil)
	}
	if r := m.arena.Lookup(identity(&st)); r != nil && r.State() == disposition.MarkedForDelete {
		return Info{}, status.Errorf(status.DeletePending, op, path, nil)
	}
	return infoOf(&st), nil
}

// QueryStandardInfo is FileStandardInformation on an open handle.
func (m *Manager) QueryStandardInfo(h *Handle) (Info, error) {
	fo, err := h.Object()
	if err != nil { return Info{}, err }

	var st unix.Stat_t
	if err := unix.Fstat(fo.fd, &st); err != nil {
		return Info{}, status.Errorf(status.Code(err), "QueryStandardInfo", fo.Path(), err)
	}
	info := infoOf(&st)
	info.DeletePending = fo.rec.State() != disposition.Normal || fo.rec.OnClose(fo.open)
	return info, nil
}


// Section is a shared mapping of a file. While it lives the store can't be
// marked for delete, and it keeps a marked store from being removed.
type Section struct {
	Data	[]byte

	mgr		*Manager
	rec		*disposition.Record
	closed	atomic.Bool
}

func (m *Manager) CreateSection(h *Handle, size int64, writable bool) (*Section, error) {
	const op = "CreateSection"
	fo, err := h.Object()
	if err != nil { return nil, err }

	if fo.Kind != KindRegular { return nil, status.Errorf(status.InvalidParameter, op, fo.Path(), nil) }
	if writable && !fo.Access.Writes() { return nil, status.Errorf(status.AccessDenied, op, fo.Path(), nil) }
	if !fo.Access.Reads() { return nil, status.Errorf(status.AccessDenied, op, fo.Path(), nil) }

	var st unix.Stat_t
	if err := unix.Fstat(fo.fd, &st); err != nil { return nil, status.Errorf(status.Code(err), op, fo.Path(), err) }
	if size == 0 { size = st.Size }
	if size <= 0 { return nil, status.Errorf(status.InvalidParameter, op, fo.Path(), nil) }
	if size > st.Size {
		if !writable { return nil, status.Errorf(status.InvalidParameter, op, fo.Path(), nil) }
		if err := unix.Ftruncate(fo.fd, size); err != nil { return nil, status.Errorf(status.Code(err), op, fo.Path(), err) }
	}

	prot := unix.PROT_READ
	if writable { prot |= unix.PROT_WRITE }
	data, err := unix.Mmap(fo.fd, 0, int(size), prot, unix.MAP_SHARED)
	if err != nil { return nil, status.Errorf(status.Code(err), op, fo.Path(), err) }

	rec := m.arena.Acquire(fo.FileID, fo.Path(), false)
	rec.AddSection()
	fo.log.Debug(op, "size", size, "writable", writable)

	return &Section{ Data: data, mgr: m, rec: rec }, nil
}

func (s *Section) Close() error {
	if s.closed.Swap(true) { return status.New(status.InvalidHandle, "CloseSection") }
	err := unix.Munmap(s.Data)
	s.Data = nil

	unlock := s.mgr.lockPaths(s.rec.Path())
	if path, remove := s.rec.RemoveSection(); remove {
		s.mgr.removeName(s.rec, path)
	}
	unlock()
	s.mgr.arena.Release(s.rec)

	if err != nil { return status.Errorf(status.Code(err), "CloseSection", "", err) }
	return nil
}
