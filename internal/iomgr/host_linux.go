//go:build linux

package iomgr

import (
	"errors"
	"sync"
	"time"

	"ntaio/internal/util"

	"golang.org/x/sys/unix"
)

// Appends resolve EOF and write under the same lock, striped by fd.
const APPEND_STRIPES = 0x40
var appendLocks [APPEND_STRIPES]sync.Mutex

func appendLock(fd int) *sync.Mutex {
	return &appendLocks[util.Hash(uint64(fd)) % APPEND_STRIPES]
}

func errnoOf(err error) int32 {
	var errno unix.Errno
	if errors.As(err, &errno) { return int32(errno) }
	return int32(unix.EIO)
}

func pwriteAll(fd int, buf []byte, off int64) (int, error) {
	done := 0
	for done < len(buf) {
		n, err := unix.Pwrite(fd, buf[done:], off + int64(done))
		if err == unix.EINTR { continue }
		if err != nil { return done, err }
		if n == 0 { return done, unix.EIO }
		done += n
	}
	return done, nil
}

func pread(fd int, buf []byte, off int64) (int, error) {
	for {
		n, err := unix.Pread(fd, buf, off)
		if err != unix.EINTR { return n, err }
	}
}

// Exec runs op synchronously on the calling goroutine and returns bytes or -errno.
// It does not finish the op.
func Exec(op *Op) int32 {
	var n int
	var err error

	switch op.Opcode {
	case OpNop:
		return 0

	case OpRead:
		if op.Stream {
			n, err = unix.Read(op.Fd, op.Buf)
		} else {
			n, err = pread(op.Fd, op.Buf, op.Off)
		}

	case OpWrite:
		switch {
		case op.Append:
			mu := appendLock(op.Fd)
			mu.Lock()
			var st unix.Stat_t
			if err = unix.Fstat(op.Fd, &st); err == nil {
				op.Off = st.Size
				n, err = pwriteAll(op.Fd, op.Buf, op.Off)
			}
			mu.Unlock()
		case op.Stream:
			n, err = unix.Write(op.Fd, op.Buf)
		default:
			n, err = pwriteAll(op.Fd, op.Buf, op.Off)
		}

	case OpSync:
		err = unix.Fsync(op.Fd)
		if err == unix.EINVAL || err == unix.EROFS {
			// pipes, sockets and friends
			err = nil
		}

	default:
		return -int32(unix.EINVAL)
	}

	if err != nil { return -errnoOf(err) }
	return int32(n)
}

// Ready reports whether fd can take the op without blocking. Regular files are
// always ready. A zero timeout polls.
func Ready(fd int, write bool, timeout time.Duration) bool {
	events := int16(unix.POLLIN)
	if write { events = unix.POLLOUT }
	fds := []unix.PollFd{{ Fd: int32(fd), Events: events }}

	ms := int(timeout.Milliseconds())
	if timeout < 0 { ms = -1 }

	n, err := unix.Poll(fds, ms)
	if err == unix.EINTR { return false }
	// let the op itself report whatever is wrong with the fd
	if err != nil { return true }
	return n > 0 && fds[0].Revents != 0
}

// Bytes queued on a pipe or socket.
func Available(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCINQ)
}
