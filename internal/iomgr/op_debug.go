package iomgr

import (
	"fmt"
	"strings"
	"unsafe"
)

func (c OpCode) String() string {
	switch c {
	case OpNop:
		return "NOP"
	case OpWrite:
		return "WRITE"
	case OpRead:
		return "READ"
	case OpSync:
		return "FSYNC"
	}
	return fmt.Sprintf("OpCode(%d)", uint16(c))
}

func (o *Op) String() string {
	if o == nil {
		return "<nil>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Op | Opcode: %v, Fd: 0x%x, Done: %v, Cancel: %v, Res: %d",
		o.Opcode, o.Fd, o.done.Load(), o.cancel.Load(), o.Result())

	switch o.Opcode {
	case OpWrite, OpRead:
		var buf unsafe.Pointer
		if len(o.Buf) > 0 { buf = unsafe.Pointer(&o.Buf[0]) }
		off := fmt.Sprintf("0x%08x", o.Off)
		if o.Append { off = "EOF" }
		if o.Stream { off = "stream" }
		fmt.Fprintf(&b, " [ Buf: @%p | Len: 0x%08x | Off: %s ]", buf, len(o.Buf), off)
	}

	return b.String()
}
