//go:build linux

package file

import (
	"path/filepath"

	"ntaio/internal/disposition"
	"ntaio/internal/status"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Link is FileLinkInformation: same collision rules as Rename, and directories
// never link.
func (m *Manager) Link(h *Handle, root *Handle, name string, replace bool) error {
	const op = "Link"
	st := m.link(h, root, name, replace)
	m.metrics.Namespace("link", st)
	if st != status.Success { return status.Errorf(st, op, name, nil) }
	return nil
}

func (m *Manager) link(h *Handle, root *Handle, name string, replace bool) status.Status {
	fo, err := h.Object()
	if err != nil { return status.InvalidHandle }
	if fo.IsDir() { return status.FileIsADirectory }

	dst, st := m.resolve(fo, root, name)
	if st != status.Success { return st }
	src := fo.Path()

	unlock := m.lockPaths(src, dst)
	defer unlock()

	if fo.rec.State() != disposition.Normal { return status.DeletePending }

	t, st := m.lookupTarget(dst)
	if st != status.Success { return st }

	switch {
	case t.exists && t.id == fo.FileID:
		// already a name of this store
		if !replace { return status.ObjectNameCollision }
		return status.Success

	case t.exists:
		if m.targetBusy(t) { return status.AccessDenied }
		if !replace { return status.ObjectNameCollision }
		if t.isDir { return status.AccessDenied }

		// link beside the target, then swap it in atomically
		tmp := filepath.Join(filepath.Dir(dst), ".ntaio-link-" + uuid.NewString()[:8])
		if err := unix.Link(src, tmp); err != nil { return status.Code(err) }
		if err := unix.Rename(tmp, dst); err != nil {
			unix.Unlink(tmp)
			return status.Code(err)
		}

	default:
		err := unix.Link(src, dst)
		if err == unix.EEXIST { return status.ObjectNameCollision }
		if err != nil { return status.Code(err) }
	}

	fo.log.Debug("Link", "from", src, "to", dst, "replace", replace)
	return status.Success
}
