//go:build linux

package file_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	c "ntaio/internal"
	"ntaio/internal/file"
	"ntaio/internal/port"
	"ntaio/internal/status"

	"github.com/lmittmann/tint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.TimeOnly,
	})))
	os.Exit(m.Run())
}

func setup(t *testing.T) (*file.Manager, string) {
	return file.CreateManager(nil), t.TempDir()
}

func write(t *testing.T, path, data string) {
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func read(t *testing.T, path string) string {
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func code(err error) status.Status {
	return status.Code(err)
}

func open(t *testing.T, m *file.Manager, path string, access c.Access, share c.Share) *file.Handle {
	h, err := m.Open(path, access, share, c.FILE_OPEN, 0)
	require.NoError(t, err)
	return h
}

func Test_Open_Dispositions(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")

	_, err := m.Open(path, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, 0)
	assert.Equal(t, status.ObjectNameNotFound, code(err))
	_, err = m.Open(filepath.Join(dir, "nope", "a"), c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, 0)
	assert.Equal(t, status.ObjectPathNotFound, code(err))

	h, err := m.Open(path, c.GENERIC_WRITE, c.FILE_SHARE_ALL, c.FILE_CREATE, 0)
	require.NoError(t, err)
	require.NoError(t, m.Close(h))

	_, err = m.Open(path, c.GENERIC_WRITE, c.FILE_SHARE_ALL, c.FILE_CREATE, 0)
	assert.Equal(t, status.ObjectNameCollision, code(err))

	write(t, path, "content")
	h, err = m.Open(path, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN_IF, 0)
	require.NoError(t, err)
	require.NoError(t, m.Close(h))
	assert.Equal(t, "content", read(t, path))

	h, err = m.Open(path, c.GENERIC_WRITE, c.FILE_SHARE_ALL, c.FILE_OVERWRITE, 0)
	require.NoError(t, err)
	require.NoError(t, m.Close(h))
	assert.Equal(t, "", read(t, path))

	_, err = m.Open(path, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, c.FILE_DIRECTORY_FILE)
	assert.Equal(t, status.NotADirectory, code(err))
	_, err = m.Open(dir, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, c.FILE_NON_DIRECTORY_FILE)
	assert.Equal(t, status.FileIsADirectory, code(err))

	_, err = m.Open(path, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, c.FILE_DELETE_ON_CLOSE)
	assert.Equal(t, status.InvalidParameter, code(err))

	assert.Equal(t, 0, m.Objects())
}

func Test_Open_Directory(t *testing.T) {
	m, dir := setup(t)
	sub := filepath.Join(dir, "sub")

	h, err := m.Open(sub, c.FILE_READ_ATTRIBUTES, c.FILE_SHARE_ALL, c.FILE_CREATE, c.FILE_DIRECTORY_FILE)
	require.NoError(t, err)
	fo, _ := h.Object()
	assert.True(t, fo.IsDir())
	require.NoError(t, m.Close(h))

	// plain open of a directory works without the directory flag
	h, err = m.Open(sub, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, 0)
	require.NoError(t, err)
	require.NoError(t, m.Close(h))
}

func Test_Open_FailedSharingKeepsContent(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")
	write(t, path, "keep me")

	h := open(t, m, path, c.GENERIC_READ, c.FILE_SHARE_READ)
	defer m.Close(h)

	// overwrite must not truncate before the sharing check refuses it
	_, err := m.Open(path, c.GENERIC_WRITE, c.FILE_SHARE_ALL, c.FILE_OVERWRITE, 0)
	assert.Equal(t, status.SharingViolation, code(err))
	assert.Equal(t, "keep me", read(t, path))
}

func Test_Handles_Duplicate(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")
	write(t, path, "x")

	h := open(t, m, path, c.GENERIC_READ, c.FILE_SHARE_ALL)
	d, err := m.Duplicate(h)
	require.NoError(t, err)

	fo, _ := d.Object()
	assert.Equal(t, 2, fo.Handles())

	require.NoError(t, m.Close(h))
	assert.Equal(t, status.InvalidHandle, code(m.Close(h)))
	_, err = h.Object()
	assert.Equal(t, status.InvalidHandle, code(err))

	// still alive through the duplicate
	assert.Equal(t, 1, m.Objects())
	require.NoError(t, m.Close(d))
	assert.Equal(t, 0, m.Objects())
}

// Open A with write+delete and no sharing, mark it, a second DELETE opener is a
// sharing violation, the path reports delete pending until A closes.
func Test_DeletePending_Lifecycle(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")
	write(t, path, "doomed")

	a := open(t, m, path, c.GENERIC_WRITE | c.DELETE, c.FILE_SHARE_NONE)
	require.NoError(t, m.SetDisposition(a, c.FILE_DISPOSITION_DELETE))

	_, err := m.Open(path, c.DELETE, c.FILE_SHARE_NONE, c.FILE_OPEN, 0)
	assert.Equal(t, status.SharingViolation, code(err))

	_, err = m.QueryAttributes(path)
	assert.Equal(t, status.DeletePending, code(err))
	info, err := m.QueryStandardInfo(a)
	require.NoError(t, err)
	assert.True(t, info.DeletePending)
	assert.True(t, exists(path))

	require.NoError(t, m.Close(a))
	assert.False(t, exists(path))
	_, err = m.QueryAttributes(path)
	assert.Equal(t, status.ObjectNameNotFound, code(err))
}

func Test_DeletePending_CompatibleOpen(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")
	write(t, path, "x")

	a := open(t, m, path, c.DELETE, c.FILE_SHARE_ALL)
	b := open(t, m, path, c.GENERIC_READ, c.FILE_SHARE_ALL)
	require.NoError(t, m.SetDisposition(a, c.FILE_DISPOSITION_DELETE))

	_, err := m.Open(path, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, 0)
	assert.Equal(t, status.DeletePending, code(err))
	_, err = m.Open(path, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_CREATE, 0)
	assert.Equal(t, status.DeletePending, code(err))

	require.NoError(t, m.Close(a))
	assert.True(t, exists(path), "removal waits for the last File Object")
	require.NoError(t, m.Close(b))
	assert.False(t, exists(path))
}

func Test_Disposition_UnmarkKeepsFile(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")
	write(t, path, "x")

	h := open(t, m, path, c.DELETE, c.FILE_SHARE_ALL)
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DELETE))
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DO_NOT_DELETE))
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DELETE))
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DO_NOT_DELETE))
	require.NoError(t, m.Close(h))
	assert.True(t, exists(path))
}

func Test_Disposition_DeleteOnClose(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")

	h, err := m.Open(path, c.GENERIC_WRITE | c.DELETE, c.FILE_SHARE_ALL, c.FILE_CREATE, c.FILE_DELETE_ON_CLOSE)
	require.NoError(t, err)
	d, err := m.Duplicate(h)
	require.NoError(t, err)

	// neither the opener nor its duplicate can take it back
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DO_NOT_DELETE))
	require.NoError(t, m.SetDisposition(d, c.FILE_DISPOSITION_DO_NOT_DELETE))
	fo, err := d.Object()
	require.NoError(t, err)
	assert.True(t, fo.DeleteOnClose())

	require.NoError(t, m.Close(h))
	assert.True(t, exists(path))
	require.NoError(t, m.Close(d))
	assert.False(t, exists(path))
}

func Test_Disposition_Refusals(t *testing.T) {
	m, dir := setup(t)

	ro := filepath.Join(dir, "ro")
	write(t, ro, "x")
	require.NoError(t, os.Chmod(ro, 0o444))
	h := open(t, m, ro, c.DELETE | c.FILE_READ_DATA, c.FILE_SHARE_ALL)
	assert.Equal(t, status.CannotDelete, code(m.SetDisposition(h, c.FILE_DISPOSITION_DELETE)))
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DELETE | c.FILE_DISPOSITION_IGNORE_READONLY_ATTRIBUTE))
	require.NoError(t, m.Close(h))
	assert.False(t, exists(ro))

	full := filepath.Join(dir, "full")
	require.NoError(t, os.Mkdir(full, 0o755))
	write(t, filepath.Join(full, "child"), "x")
	h, err := m.Open(full, c.DELETE, c.FILE_SHARE_ALL, c.FILE_OPEN, c.FILE_DIRECTORY_FILE)
	require.NoError(t, err)
	assert.Equal(t, status.CannotDelete, code(m.SetDisposition(h, c.FILE_DISPOSITION_DELETE)))
	require.NoError(t, m.Close(h))
	assert.True(t, exists(full))

	plain := filepath.Join(dir, "plain")
	write(t, plain, "x")
	h = open(t, m, plain, c.GENERIC_WRITE, c.FILE_SHARE_ALL)
	assert.Equal(t, status.AccessDenied, code(m.SetDisposition(h, c.FILE_DISPOSITION_DELETE)))
	require.NoError(t, m.Close(h))
}

func Test_Disposition_EmptyDirectory(t *testing.T) {
	m, dir := setup(t)
	sub := filepath.Join(dir, "sub")

	h, err := m.Open(sub, c.DELETE, c.FILE_SHARE_ALL, c.FILE_CREATE, c.FILE_DIRECTORY_FILE)
	require.NoError(t, err)
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DELETE))
	require.NoError(t, m.Close(h))
	assert.False(t, exists(sub))
}

func Test_Disposition_PosixSemantics(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")
	write(t, path, "x")

	h := open(t, m, path, c.DELETE | c.GENERIC_READ, c.FILE_SHARE_ALL)
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DELETE | c.FILE_DISPOSITION_POSIX_SEMANTICS))
	assert.False(t, exists(path))

	// the name is free again while the old store is still open
	n, err := m.Open(path, c.GENERIC_WRITE, c.FILE_SHARE_ALL, c.FILE_CREATE, 0)
	require.NoError(t, err)
	require.NoError(t, m.Close(n))
	require.NoError(t, m.Close(h))
	assert.True(t, exists(path))
}

func Test_Section_BlocksDelete(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")
	write(t, path, "mapped bytes")

	h := open(t, m, path, c.GENERIC_READ | c.GENERIC_WRITE | c.DELETE, c.FILE_SHARE_ALL)
	s, err := m.CreateSection(h, 0, true)
	require.NoError(t, err)
	assert.Equal(t, "mapped bytes", string(s.Data))

	assert.Equal(t, status.CannotDelete, code(m.SetDisposition(h, c.FILE_DISPOSITION_DELETE)))
	require.NoError(t, s.Close())
	assert.Equal(t, status.InvalidHandle, code(s.Close()))

	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DELETE))

	// an unmarked store outlives both its handle and a section
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DO_NOT_DELETE))
	s, err = m.CreateSection(h, 0, false)
	require.NoError(t, err)
	require.NoError(t, m.Close(h))
	assert.True(t, exists(path))
	require.NoError(t, s.Close())
	assert.True(t, exists(path))
}

func Test_Section_KeepsMarkedStore(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")
	write(t, path, "x")

	h, err := m.Open(path, c.GENERIC_READ | c.DELETE, c.FILE_SHARE_ALL, c.FILE_OPEN, c.FILE_DELETE_ON_CLOSE)
	require.NoError(t, err)
	s, err := m.CreateSection(h, 0, false)
	require.NoError(t, err)

	require.NoError(t, m.Close(h))
	assert.True(t, exists(path), "mapping keeps the name")
	require.NoError(t, s.Close())
	assert.False(t, exists(path))
}

// X onto existing Y: collision without replace, then replace moves X's bytes into Y.
func Test_Rename_ReplaceMatrix(t *testing.T) {
	m, dir := setup(t)
	x := filepath.Join(dir, "x")
	y := filepath.Join(dir, "y")
	write(t, x, "from x")
	write(t, y, "from y")

	h := open(t, m, x, c.DELETE | c.GENERIC_READ, c.FILE_SHARE_ALL)
	defer m.Close(h)

	assert.Equal(t, status.ObjectNameCollision, code(m.Rename(h, nil, y, false)))
	assert.Equal(t, "from x", read(t, x))
	assert.Equal(t, "from y", read(t, y))

	require.NoError(t, m.Rename(h, nil, y, true))
	assert.False(t, exists(x))
	assert.Equal(t, "from x", read(t, y))

	fo, _ := h.Object()
	assert.Equal(t, y, fo.Path())
}

func Test_Rename_Cases(t *testing.T) {
	m, dir := setup(t)
	x := filepath.Join(dir, "x")
	write(t, x, "x")
	h := open(t, m, x, c.DELETE, c.FILE_SHARE_ALL)
	defer m.Close(h)

	// same path
	require.NoError(t, m.Rename(h, nil, x, false))

	// target absent, relative name resolves beside the source
	require.NoError(t, m.Rename(h, nil, "x2", false))
	x2 := filepath.Join(dir, "x2")
	assert.True(t, exists(x2))
	assert.False(t, exists(x))

	// open target is never replaced
	busy := filepath.Join(dir, "busy")
	write(t, busy, "busy")
	b := open(t, m, busy, c.GENERIC_READ, c.FILE_SHARE_ALL)
	assert.Equal(t, status.AccessDenied, code(m.Rename(h, nil, busy, true)))
	assert.Equal(t, status.AccessDenied, code(m.Rename(h, nil, busy, false)))
	require.NoError(t, m.Close(b))
	assert.Equal(t, "busy", read(t, busy))

	// file onto directory
	d := filepath.Join(dir, "d")
	require.NoError(t, os.Mkdir(d, 0o755))
	assert.Equal(t, status.ObjectNameCollision, code(m.Rename(h, nil, d, false)))
	assert.Equal(t, status.AccessDenied, code(m.Rename(h, nil, d, true)))
	assert.True(t, exists(x2))

	// missing parent
	assert.Equal(t, status.ObjectPathNotFound, code(m.Rename(h, nil, filepath.Join(dir, "no", "x"), false)))

	// root relative
	r, err := m.Open(d, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, c.FILE_DIRECTORY_FILE)
	require.NoError(t, err)
	require.NoError(t, m.Rename(h, r, "inside", false))
	require.NoError(t, m.Close(r))
	assert.True(t, exists(filepath.Join(d, "inside")))

	// needs DELETE
	write(t, x, "x")
	n := open(t, m, x, c.GENERIC_READ, c.FILE_SHARE_ALL)
	assert.Equal(t, status.AccessDenied, code(m.Rename(n, nil, "y", true)))
	require.NoError(t, m.Close(n))
}

func Test_Rename_Directories(t *testing.T) {
	m, dir := setup(t)
	src := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	write(t, filepath.Join(src, "child"), "c")

	h, err := m.Open(src, c.DELETE, c.FILE_SHARE_ALL, c.FILE_OPEN, c.FILE_DIRECTORY_FILE)
	require.NoError(t, err)
	defer m.Close(h)

	child := open(t, m, filepath.Join(src, "child"), c.GENERIC_READ, c.FILE_SHARE_ALL)
	assert.Equal(t, status.AccessDenied, code(m.Rename(h, nil, "dst", false)))
	require.NoError(t, m.Close(child))

	f := filepath.Join(dir, "f")
	write(t, f, "f")
	assert.Equal(t, status.AccessDenied, code(m.Rename(h, nil, f, true)))

	full := filepath.Join(dir, "full")
	require.NoError(t, os.Mkdir(full, 0o755))
	write(t, filepath.Join(full, "x"), "x")
	assert.Equal(t, status.ObjectNameCollision, code(m.Rename(h, nil, full, false)))
	assert.Equal(t, status.AccessDenied, code(m.Rename(h, nil, full, true)))

	require.NoError(t, m.Rename(h, nil, "dst", false))
	assert.Equal(t, "c", read(t, filepath.Join(dir, "dst", "child")))

	// the directory's own File Object follows, and a child opened afterwards
	// is found under the new name
	fo, err := h.Object()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dst"), fo.Path())
	child = open(t, m, filepath.Join(dir, "dst", "child"), c.GENERIC_READ, c.FILE_SHARE_ALL)
	assert.Equal(t, status.AccessDenied, code(m.Rename(h, nil, "again", false)))
	require.NoError(t, m.Close(child))
}

func Test_Rename_HardLinkAlias(t *testing.T) {
	m, dir := setup(t)
	x := filepath.Join(dir, "x")
	y := filepath.Join(dir, "y")
	write(t, x, "shared")
	require.NoError(t, os.Link(x, y))

	h := open(t, m, x, c.DELETE, c.FILE_SHARE_ALL)
	defer m.Close(h)

	assert.Equal(t, status.ObjectNameCollision, code(m.Rename(h, nil, y, false)))
	require.NoError(t, m.Rename(h, nil, y, true))
	assert.False(t, exists(x))
	assert.Equal(t, "shared", read(t, y))
}

func Test_Rename_BlocksDeleteAndPending(t *testing.T) {
	m, dir := setup(t)
	x := filepath.Join(dir, "x")
	write(t, x, "x")

	h := open(t, m, x, c.DELETE, c.FILE_SHARE_ALL)
	defer m.Close(h)
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DELETE))
	assert.Equal(t, status.DeletePending, code(m.Rename(h, nil, "y", false)))
	require.NoError(t, m.SetDisposition(h, c.FILE_DISPOSITION_DO_NOT_DELETE))
	require.NoError(t, m.Rename(h, nil, "y", false))
}

func Test_Link_Matrix(t *testing.T) {
	m, dir := setup(t)
	x := filepath.Join(dir, "x")
	y := filepath.Join(dir, "y")
	write(t, x, "from x")
	write(t, y, "from y")

	h := open(t, m, x, c.GENERIC_READ, c.FILE_SHARE_ALL)
	defer m.Close(h)

	assert.Equal(t, status.ObjectNameCollision, code(m.Link(h, nil, x, false)))
	require.NoError(t, m.Link(h, nil, x, true))

	assert.Equal(t, status.ObjectNameCollision, code(m.Link(h, nil, y, false)))
	assert.Equal(t, "from y", read(t, y))

	require.NoError(t, m.Link(h, nil, y, true))
	assert.Equal(t, "from x", read(t, y))
	assert.Equal(t, "from x", read(t, x))

	info, err := m.QueryStandardInfo(h)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Links)

	// linking onto another name of the same store
	assert.Equal(t, status.ObjectNameCollision, code(m.Link(h, nil, y, false)))
	require.NoError(t, m.Link(h, nil, y, true))

	require.NoError(t, m.Link(h, nil, "z", false))
	assert.Equal(t, "from x", read(t, filepath.Join(dir, "z")))

	busy := filepath.Join(dir, "busy")
	write(t, busy, "busy")
	b := open(t, m, busy, c.GENERIC_READ, c.FILE_SHARE_ALL)
	assert.Equal(t, status.AccessDenied, code(m.Link(h, nil, busy, true)))
	require.NoError(t, m.Close(b))

	d := filepath.Join(dir, "d")
	require.NoError(t, os.Mkdir(d, 0o755))
	assert.Equal(t, status.AccessDenied, code(m.Link(h, nil, d, true)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".ntaio-link-")
	}
}

func Test_Link_Directory(t *testing.T) {
	m, dir := setup(t)
	h, err := m.Open(dir, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, c.FILE_DIRECTORY_FILE)
	require.NoError(t, err)
	defer m.Close(h)

	assert.Equal(t, status.FileIsADirectory, code(m.Link(h, nil, "d2", false)))
	assert.Equal(t, status.FileIsADirectory, code(m.Link(h, nil, filepath.Join(dir, "..", "absent"), true)))
}

func Test_Binding_Rules(t *testing.T) {
	m, dir := setup(t)
	path := filepath.Join(dir, "a")
	write(t, path, "x")

	p := port.CreatePort()
	defer p.Close()

	h := open(t, m, path, c.GENERIC_READ, c.FILE_SHARE_ALL)
	fo, _ := h.Object()
	require.NoError(t, fo.BindCompletion(p, 1))
	assert.Equal(t, file.NotifyPort, fo.Mode())
	assert.Equal(t, status.InvalidParameter, code(fo.BindCompletion(p, 2)))
	assert.Equal(t, status.InvalidParameter, code(fo.UseCallbacks()))

	got, key := fo.Completion()
	assert.Same(t, p, got)
	assert.Equal(t, uint64(1), key)

	require.NoError(t, fo.SetCompletionModes(c.FILE_SKIP_COMPLETION_PORT_ON_SUCCESS))
	require.NoError(t, fo.SetCompletionModes(c.FILE_SKIP_SET_EVENT_ON_HANDLE))
	assert.True(t, fo.Skips(c.FILE_SKIP_COMPLETION_PORT_ON_SUCCESS))
	assert.True(t, fo.Skips(c.FILE_SKIP_SET_EVENT_ON_HANDLE))
	assert.Equal(t, status.InvalidParameter, code(fo.SetCompletionModes(0x80)))

	// the File Object held a port reference
	require.NoError(t, m.Close(h))
	assert.False(t, p.Closed())

	cb := open(t, m, path, c.GENERIC_READ, c.FILE_SHARE_ALL)
	fo, _ = cb.Object()
	require.NoError(t, fo.UseCallbacks())
	assert.Equal(t, status.InvalidParameter, code(fo.BindCompletion(p, 1)))
	require.NoError(t, m.Close(cb))

	sync, err := m.Open(path, c.GENERIC_READ, c.FILE_SHARE_ALL, c.FILE_OPEN, c.FILE_SYNCHRONOUS_IO_NONALERT)
	require.NoError(t, err)
	fo, _ = sync.Object()
	assert.Equal(t, status.InvalidParameter, code(fo.BindCompletion(p, 1)))
	require.NoError(t, m.Close(sync))
}
