// NTSTATUS codes and the host errno translation the subsystem needs.
package status

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type Status uint32

const (
	Success					Status = 0x00000000
	AbandonedWait0			Status = 0x00000080
	UserAPC					Status = 0x000000C0
	Timeout					Status = 0x00000102
	Pending					Status = 0x00000103

	InvalidHandle			Status = 0xC0000008
	InvalidParameter		Status = 0xC000000D
	InvalidDeviceRequest	Status = 0xC0000010
	EndOfFile				Status = 0xC0000011
	AccessDenied			Status = 0xC0000022
	BufferTooSmall			Status = 0xC0000023
	ObjectNameNotFound		Status = 0xC0000034
	ObjectNameCollision		Status = 0xC0000035
	ObjectPathNotFound		Status = 0xC000003A
	SharingViolation		Status = 0xC0000043
	DeletePending			Status = 0xC0000056
	DiskFull				Status = 0xC000007F
	MediaWriteProtected		Status = 0xC00000A2
	FileIsADirectory		Status = 0xC00000BA
	NotSupported			Status = 0xC00000BB
	NotSameDevice			Status = 0xC00000D4
	DirectoryNotEmpty		Status = 0xC0000101
	NotADirectory			Status = 0xC0000103
	Cancelled				Status = 0xC0000120
	CannotDelete			Status = 0xC0000121
	IoDeviceError			Status = 0xC0000185
	NotFound				Status = 0xC0000225
)

var names = map[Status]string{
	Success:				"STATUS_SUCCESS",
	AbandonedWait0:			"STATUS_ABANDONED_WAIT_0",
	UserAPC:				"STATUS_USER_APC",
	Timeout:				"STATUS_TIMEOUT",
	Pending:				"STATUS_PENDING",
	InvalidHandle:			"STATUS_INVALID_HANDLE",
	InvalidParameter:		"STATUS_INVALID_PARAMETER",
	InvalidDeviceRequest:	"STATUS_INVALID_DEVICE_REQUEST",
	EndOfFile:				"STATUS_END_OF_FILE",
	AccessDenied:			"STATUS_ACCESS_DENIED",
	BufferTooSmall:			"STATUS_BUFFER_TOO_SMALL",
	ObjectNameNotFound:		"STATUS_OBJECT_NAME_NOT_FOUND",
	ObjectNameCollision:	"STATUS_OBJECT_NAME_COLLISION",
	ObjectPathNotFound:		"STATUS_OBJECT_PATH_NOT_FOUND",
	SharingViolation:		"STATUS_SHARING_VIOLATION",
	DeletePending:			"STATUS_DELETE_PENDING",
	DiskFull:				"STATUS_DISK_FULL",
	MediaWriteProtected:	"STATUS_MEDIA_WRITE_PROTECTED",
	FileIsADirectory:		"STATUS_FILE_IS_A_DIRECTORY",
	NotSupported:			"STATUS_NOT_SUPPORTED",
	NotSameDevice:			"STATUS_NOT_SAME_DEVICE",
	DirectoryNotEmpty:		"STATUS_DIRECTORY_NOT_EMPTY",
	NotADirectory:			"STATUS_NOT_A_DIRECTORY",
	Cancelled:				"STATUS_CANCELLED",
	CannotDelete:			"STATUS_CANNOT_DELETE",
	IoDeviceError:			"STATUS_IO_DEVICE_ERROR",
	NotFound:				"STATUS_NOT_FOUND",
}

func (s Status) String() string {
	if n, ok := names[s]; ok { return n }
	return fmt.Sprintf("STATUS_0x%08x", uint32(s))
}

// Severity lives in the top two bits; 0b11 is an error.
func (s Status) IsError() bool {
	return s >> 30 == 3
}

// Success, informational and wait codes.
func (s Status) IsSuccess() bool {
	return s >> 30 == 0 || s >> 30 == 1
}

// Error carries a Status out of operations that fail synchronously.
type Error struct {
	Status	Status
	Op		string
	Path	string
	Err		error
}

func (e *Error) Error() string {
	msg := e.Status.String()
	if e.Op != "" { msg = e.Op + ": " + msg }
	if e.Path != "" { msg += " (" + e.Path + ")" }
	if e.Err != nil { msg += ": " + e.Err.Error() }
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same status, so errors.Is(err, status.New(...)) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) { return t.Status == e.Status && t.Op == "" }
	return false
}

func New(s Status, op string) *Error {
	return &Error{Status: s, Op: op}
}

func Errorf(s Status, op, path string, err error) *Error {
	return &Error{Status: s, Op: op, Path: path, Err: err}
}

// Code extracts the Status from an error chain. A bare errno is translated,
// anything else is an IoDeviceError.
func Code(err error) Status {
	if err == nil { return Success }
	var e *Error
	if errors.As(err, &e) { return e.Status }
	var errno unix.Errno
	if errors.As(err, &errno) { return FromErrno(errno) }
	return IoDeviceError
}

func FromErrno(errno unix.Errno) Status {
	switch errno {
	case 0:
		return Success
	case unix.ENOENT:
		return ObjectNameNotFound
	case unix.EEXIST:
		return ObjectNameCollision
	case unix.EACCES, unix.EPERM:
		return AccessDenied
	case unix.ENOTEMPTY:
		return DirectoryNotEmpty
	case unix.EISDIR:
		return FileIsADirectory
	case unix.ENOTDIR:
		return NotADirectory
	case unix.EXDEV:
		return NotSameDevice
	case unix.ENOSPC, unix.EDQUOT:
		return DiskFull
	case unix.EROFS:
		return MediaWriteProtected
	case unix.ECANCELED:
		return Cancelled
	case unix.EINVAL:
		return InvalidParameter
	case unix.EBADF:
		return InvalidHandle
	case unix.ENOTSUP, unix.ENOSYS:
		return NotSupported
	case unix.EBUSY, unix.ETXTBSY:
		return SharingViolation
	default:
		return IoDeviceError
	}
}

// FromResult maps a host result (bytes or -errno, as io_uring reports it).
func FromResult(res int32) Status {
	if res >= 0 { return Success }
	return FromErrno(unix.Errno(-res))
}
