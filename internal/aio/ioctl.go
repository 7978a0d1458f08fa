//go:build linux

package aio

import (
	"encoding/binary"

	c "ntaio/internal"
	"ntaio/internal/file"
	"ntaio/internal/iomgr"
	"ntaio/internal/status"

	"golang.org/x/sys/unix"
)

// FILE_PIPE_PEEK_BUFFER header: state, bytes available, messages, message length.
const PIPE_PEEK_HDR				= 0x10
const FILE_PIPE_CONNECTED_STATE	= 3

// DeviceControl is NtFsControlFile for the few codes a file system answers
// without a driver. Results are known immediately and complete before return.
func (e *Engine) DeviceControl(h *file.Handle, code uint32, in []byte, out []byte, req Request) (status.Status, error) {
	const opName = "DeviceControl"
	fo, err := h.Object()
	if err != nil { return 0, err }
	if err := e.check(fo, opControl, req); err != nil { return 0, status.Errorf(status.Code(err), opName, fo.Path(), nil) }

	// output buffers that can't hold the answer are rejected up front
	switch code {
	case c.FSCTL_GET_OBJECT_ID:
		if len(out) < c.OBJECT_ID_LEN { return 0, status.Errorf(status.BufferTooSmall, opName, fo.Path(), nil) }
	case c.FSCTL_PIPE_PEEK:
		if len(out) < PIPE_PEEK_HDR { return 0, status.Errorf(status.BufferTooSmall, opName, fo.Path(), nil) }
	}
	if err := e.arm(fo, req); err != nil { return 0, status.Errorf(status.Code(err), opName, fo.Path(), nil) }

	op := e.newOp(fo, opControl, nil, req)
	op.begin()
	e.metrics.Submitted(op.kind.String(), true)

	st, info := e.control(fo, code, out)
	fo.Log().Debug(opName, "code", code, "status", st, "info", info)
	return e.completeNow(op, st, info), nil
}

func (e *Engine) control(fo *file.FileObject, code uint32, out []byte) (status.Status, uint64) {
	switch code {
	case c.FSCTL_SET_SPARSE:
		if fo.Kind != file.KindRegular { return status.InvalidParameter, 0 }
		return status.Success, 0

	case c.FSCTL_GET_OBJECT_ID:
		// stable for the life of the store
		binary.LittleEndian.PutUint64(out[0:], fo.FileID.Dev)
		binary.LittleEndian.PutUint64(out[8:], fo.FileID.Ino)
		return status.Success, c.OBJECT_ID_LEN

	case c.FSCTL_PIPE_PEEK:
		if fo.Kind != file.KindStream { return status.InvalidDeviceRequest, 0 }
		avail, err := iomgr.Available(fo.Fd())
		if err != nil { return status.Code(err), 0 }

		info := uint64(PIPE_PEEK_HDR)
		if len(out) > PIPE_PEEK_HDR && avail > 0 {
			// sockets can hand out data without consuming it, pipes can't
			n, _, err := unix.Recvfrom(fo.Fd(), out[PIPE_PEEK_HDR:], unix.MSG_PEEK | unix.MSG_DONTWAIT)
			if err == nil { info += uint64(n) }
		}

		binary.LittleEndian.PutUint32(out[0:], FILE_PIPE_CONNECTED_STATE)
		binary.LittleEndian.PutUint32(out[4:], uint32(avail))
		binary.LittleEndian.PutUint32(out[8:], 0)
		binary.LittleEndian.PutUint32(out[12:], 0)
		return status.Success, info
	}
	return status.InvalidDeviceRequest, 0
}
