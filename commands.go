//go:build linux

package main

import (
	"context"
	"log/slog"

	c "ntaio/internal"
	"ntaio/internal/aio"
	"ntaio/internal/file"
	"ntaio/internal/iomgr"
	"ntaio/internal/port"
	"ntaio/internal/status"
	"ntaio/internal/waitobj"
)

const COPY_CHUNK = 0x10000
const COPY_DEPTH = 0x4

const (
	KEY_READ uint64 = iota + 1
	KEY_WRITE
)

type completion struct {
	key		uint64
	slot	uint64
	st		status.Status
	info	uint64
}

type copySlot struct {
	buf		[]byte
	off		int64 // next byte of the chunk still to copy
	end		int64
}

// copyFile keeps COPY_DEPTH chunks in flight. Both files complete into one
// port; successes known at submission skip it and are handled here directly.
func copyFile(ctx context.Context, eng *aio.Engine, src, dst string) error {
	log := slog.With("src", "cp")
	mgr := eng.Manager()

	in, err := mgr.Open(src, c.GENERIC_READ, c.FILE_SHARE_READ, c.FILE_OPEN, c.FILE_NON_DIRECTORY_FILE)
	if err != nil { return err }
	defer eng.CloseHandle(in)

	out, err := mgr.Open(dst, c.GENERIC_WRITE | c.DELETE, c.FILE_SHARE_NONE, c.FILE_OVERWRITE_IF, c.FILE_NON_DIRECTORY_FILE)
	if err != nil { return err }
	defer eng.CloseHandle(out)

	info, err := mgr.QueryStandardInfo(in)
	if err != nil { return err }
	size := info.Size

	p := port.CreatePort()
	defer p.Close()
	for key, h := range map[uint64]*file.Handle{ KEY_READ: in, KEY_WRITE: out } {
		if err := eng.BindCompletionPort(h, p, key); err != nil { return err }
		if err := eng.SetCompletionModes(h, c.FILE_SKIP_COMPLETION_PORT_ON_SUCCESS); err != nil { return err }
	}

	slab, err := iomgr.AllocSlab(COPY_DEPTH * COPY_CHUNK)
	if err != nil { return err }
	defer iomgr.DeallocSlab(slab)

	slots := make([]copySlot, COPY_DEPTH)
	var next int64
	var inflight int
	var inline []completion

	issue := func(key uint64, i int, st status.Status, err error, iosb *aio.IoStatusBlock) error {
		if err != nil { return err }
		inflight++
		if st == status.Success {
			inline = append(inline, completion{ key, uint64(i), st, iosb.Information() })
		}
		return nil
	}

	read := func(i int) error {
		s := &slots[i]
		if s.off >= s.end {
			if next >= size { return nil }
			s.off, s.end = next, min(next + COPY_CHUNK, size)
			next = s.end
		}
		iosb := &aio.IoStatusBlock{}
		st, err := eng.Read(in, s.buf[:s.end - s.off], aio.At(s.off), aio.Request{ IOSB: iosb, APCContext: uint64(i) })
		return issue(KEY_READ, i, st, err, iosb)
	}

	write := func(i int, n uint64) error {
		s := &slots[i]
		iosb := &aio.IoStatusBlock{}
		st, err := eng.Write(out, s.buf[:n], aio.At(s.off), aio.Request{ IOSB: iosb, APCContext: uint64(i) })
		return issue(KEY_WRITE, i, st, err, iosb)
	}

	// every failed or pending completion reaches the port, the slab outlives them
	drain := func() {
		inflight -= len(inline)
		inline = nil
		for inflight > 0 {
			if _, err := p.RemoveOne(waitobj.Infinite); err != nil { return }
			inflight--
		}
	}

	fail := func(err error) error {
		// nothing half copied stays behind
		if derr := mgr.SetDisposition(out, c.FILE_DISPOSITION_DELETE); derr != nil {
			log.Warn("Cleanup", "dst", dst, "err", derr)
		}
		eng.Cancel(in, nil)
		eng.Cancel(out, nil)
		drain()
		return err
	}

	for i := range slots {
		slots[i].buf = slab[i * COPY_CHUNK:(i + 1) * COPY_CHUNK]
		if err := read(i); err != nil { return fail(err) }
	}

	for inflight > 0 {
		if ctx.Err() != nil { return fail(ctx.Err()) }

		var done completion
		if len(inline) > 0 {
			done, inline = inline[0], inline[1:]
		} else {
			msg, err := p.RemoveOne(waitobj.Infinite)
			if err != nil { return fail(err) }
			done = completion{ msg.Key, msg.Value, msg.Status, msg.Information }
		}
		inflight--

		i := int(done.slot)
		switch {
		case done.key == KEY_READ && done.st == status.EndOfFile:
			// source shrank underneath us
			slots[i].end = slots[i].off
		case done.st != status.Success:
			return fail(status.Errorf(done.st, "cp", src, nil))
		case done.key == KEY_READ:
			if err := write(i, done.info); err != nil { return fail(err) }
		case done.key == KEY_WRITE:
			slots[i].off += int64(done.info)
			if err := read(i); err != nil { return fail(err) }
		}
	}

	ev := waitobj.CreateEvent(true, false)
	iosb := &aio.IoStatusBlock{}
	if _, err := eng.Flush(out, aio.Request{ IOSB: iosb, Event: ev }); err != nil { return fail(err) }
	// the flush may skip the port, the event always fires
	ev.Wait(waitobj.Infinite)
	if st := iosb.Status(); st != status.Success { return fail(status.Errorf(st, "cp", dst, nil)) }

	log.Info("Copied", "from", src, "to", dst, "bytes", size)
	return nil
}

func rename(eng *aio.Engine, src, dst string, replace bool) error {
	h, err := eng.Manager().Open(src, c.DELETE, c.FILE_SHARE_ALL, c.FILE_OPEN, 0)
	if err != nil { return err }
	defer eng.CloseHandle(h)
	return eng.Manager().Rename(h, nil, dst, replace)
}

func link(eng *aio.Engine, src, dst string, replace bool) error {
	h, err := eng.Manager().Open(src, c.FILE_READ_ATTRIBUTES, c.FILE_SHARE_ALL, c.FILE_OPEN, 0)
	if err != nil { return err }
	defer eng.CloseHandle(h)
	return eng.Manager().Link(h, nil, dst, replace)
}

// remove marks path and lets the close delete it.
func remove(eng *aio.Engine, path string) error {
	h, err := eng.Manager().Open(path, c.DELETE, c.FILE_SHARE_ALL, c.FILE_OPEN, 0)
	if err != nil { return err }
	if err := eng.Manager().SetDisposition(h, c.FILE_DISPOSITION_DELETE); err != nil {
		eng.CloseHandle(h)
		return err
	}
	return eng.CloseHandle(h)
}
