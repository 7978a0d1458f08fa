//go:build linux

package file

import (
	"path/filepath"

	c "ntaio/internal"
	"ntaio/internal/disposition"
	"ntaio/internal/status"

	"golang.org/x/sys/unix"
)

// resolve turns a rename/link target into an absolute path. With a root handle
// the name is relative to that directory, otherwise a relative name is taken
// relative to the source's parent.
func (m *Manager) resolve(fo *FileObject, root *Handle, name string) (string, status.Status) {
	if name == "" { return "", status.InvalidParameter }
	if root != nil {
		rfo, err := root.Object()
		if err != nil { return "", status.InvalidHandle }
		if !rfo.IsDir() || filepath.IsAbs(name) { return "", status.InvalidParameter }
		return filepath.Join(rfo.Path(), name), status.Success
	}
	if filepath.IsAbs(name) { return filepath.Clean(name), status.Success }
	return filepath.Join(filepath.Dir(fo.Path()), name), status.Success
}

type target struct {
	path	string
	exists	bool
	id		disposition.FileID
	isDir	bool
}

func (m *Manager) lookupTarget(path string) (target, status.Status) {
	t := target{ path: path }
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		if s := m.lookupStatus(path, err); s != status.ObjectNameNotFound { return t, s }
		return t, status.Success
	}
	t.exists = true
	t.id = identity(&st)
	t.isDir = st.Mode & unix.S_IFMT == unix.S_IFDIR
	return t, status.Success
}

// An existing target can't be replaced while anything holds it open.
func (m *Manager) targetBusy(t target) bool {
	r := m.arena.Lookup(t.id)
	return r != nil && (r.Opens() > 0 || r.Sections() > 0)
}

// Rename is FileRenameInformation. Every refusal leaves both names as they were.
func (m *Manager) Rename(h *Handle, root *Handle, name string, replace bool) error {
	const op = "Rename"
	st := m.rename(h, root, name, replace)
	m.metrics.Namespace("rename", st)
	if st != status.Success { return status.Errorf(st, op, name, nil) }
	return nil
}

func (m *Manager) rename(h *Handle, root *Handle, name string, replace bool) status.Status {
	fo, err := h.Object()
	if err != nil { return status.InvalidHandle }
	if !fo.Access.Has(c.DELETE) { return status.AccessDenied }

	dst, st := m.resolve(fo, root, name)
	if st != status.Success { return st }
	src := fo.Path()
	if src == dst { return status.Success }

	unlock := m.lockPaths(src, dst)
	defer unlock()

	if st := fo.rec.BeginRename(); st != status.Success { return st }
	moved := ""
	defer func() { fo.rec.EndRename(moved) }()

	if fo.IsDir() && len(m.objectsAt(src, true)) > 0 { return status.AccessDenied }

	t, st := m.lookupTarget(dst)
	if st != status.Success { return st }

	switch {
	case t.exists && t.id == fo.FileID:
		// dst is another link to this store, only the source name goes
		if !replace { return status.ObjectNameCollision }
		if err := unix.Unlink(src); err != nil { return status.Code(err) }

	case t.exists:
		if m.targetBusy(t) { return status.AccessDenied }
		if !replace { return status.ObjectNameCollision }
		if t.isDir != fo.IsDir() { return status.AccessDenied }
		if t.isDir && !dirEmpty(dst) { return status.AccessDenied }
		if err := unix.Rename(src, dst); err != nil { return status.Code(err) }

	default:
		if st := renameNoReplace(src, dst, fo.IsDir()); st != status.Success { return st }
	}

	moved = dst
	m.moveObjects(fo.FileID, src, dst)
	fo.log.Debug("Rename", "from", src, "to", dst, "replace", replace)
	return status.Success
}

// renameNoReplace moves src to a name that was absent when checked. Filesystems
// without RENAME_NOREPLACE get link+unlink for files; directories rely on the
// path stripes held by the caller.
func renameNoReplace(src, dst string, isDir bool) status.Status {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	if err == unix.EINVAL || err == unix.ENOSYS {
		if isDir {
			err = unix.Rename(src, dst)
		} else if err = unix.Link(src, dst); err == nil {
			if uerr := unix.Unlink(src); uerr != nil {
				unix.Unlink(dst)
				err = uerr
			}
		}
	}
	if err == unix.EEXIST { return status.ObjectNameCollision }
	if err != nil { return status.Code(err) }
	return status.Success
}

// File Objects follow their name. Nothing below a renamed directory is open.
func (m *Manager) moveObjects(id disposition.FileID, src, dst string) {
	for _, o := range m.objectsAt(src, false) {
		if o.FileID == id { o.setPath(dst) }
	}
}
