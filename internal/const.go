// Constants
package internal

// Access rights
type Access uint32
const (
	FILE_READ_DATA			Access = 0x0001
	FILE_WRITE_DATA			Access = 0x0002
	FILE_APPEND_DATA		Access = 0x0004
	FILE_READ_EA			Access = 0x0008
	FILE_WRITE_EA			Access = 0x0010
	FILE_EXECUTE			Access = 0x0020
	FILE_READ_ATTRIBUTES	Access = 0x0080
	FILE_WRITE_ATTRIBUTES	Access = 0x0100
	DELETE					Access = 0x00010000
	READ_CONTROL			Access = 0x00020000
	STANDARD_RIGHTS_REQ		Access = 0x000F0000
	SYNCHRONIZE				Access = 0x00100000
	GENERIC_ALL				Access = 0x10000000
	GENERIC_EXECUTE			Access = 0x20000000
	GENERIC_WRITE			Access = 0x40000000
	GENERIC_READ			Access = 0x80000000

	FILE_GENERIC_READ		= READ_CONTROL | FILE_READ_DATA | FILE_READ_ATTRIBUTES | FILE_READ_EA | SYNCHRONIZE
	FILE_GENERIC_WRITE		= READ_CONTROL | FILE_WRITE_DATA | FILE_WRITE_ATTRIBUTES | FILE_WRITE_EA | FILE_APPEND_DATA | SYNCHRONIZE
	FILE_GENERIC_EXECUTE	= READ_CONTROL | FILE_READ_ATTRIBUTES | FILE_EXECUTE | SYNCHRONIZE
	FILE_ALL_ACCESS			= STANDARD_RIGHTS_REQ | SYNCHRONIZE | 0x1FF

	// rights that touch file contents; only these take part in sharing checks
	DATA_ACCESS				= FILE_READ_DATA | FILE_WRITE_DATA | FILE_APPEND_DATA | FILE_EXECUTE | DELETE
)

// Generic bits expand into their file specific rights.
func (a Access) Expand() Access {
	if a & GENERIC_READ != 0 	{ a |= FILE_GENERIC_READ }
	if a & GENERIC_WRITE != 0 	{ a |= FILE_GENERIC_WRITE }
	if a & GENERIC_EXECUTE != 0 { a |= FILE_GENERIC_EXECUTE }
	if a & GENERIC_ALL != 0 	{ a |= FILE_ALL_ACCESS }
	return a &^ (GENERIC_READ | GENERIC_WRITE | GENERIC_EXECUTE | GENERIC_ALL)
}

func (a Access) Has(bits Access) bool {
	return a & bits == bits
}

func (a Access) Reads() bool {
	return a & (FILE_READ_DATA | FILE_EXECUTE) != 0
}

func (a Access) Writes() bool {
	return a & (FILE_WRITE_DATA | FILE_APPEND_DATA) != 0
}

// Sharing
type Share uint32
const (
	FILE_SHARE_NONE		Share = 0
	FILE_SHARE_READ		Share = 0x1
	FILE_SHARE_WRITE	Share = 0x2
	FILE_SHARE_DELETE	Share = 0x4
	FILE_SHARE_ALL		= FILE_SHARE_READ | FILE_SHARE_WRITE | FILE_SHARE_DELETE
)

// Create dispositions
type CreateDisposition uint32
const (
	FILE_SUPERSEDE		CreateDisposition = iota
	FILE_OPEN
	FILE_CREATE
	FILE_OPEN_IF
	FILE_OVERWRITE
	FILE_OVERWRITE_IF
)

// Create options
type Options uint32
const (
	FILE_DIRECTORY_FILE				Options = 0x0001
	FILE_WRITE_THROUGH				Options = 0x0002
	FILE_SYNCHRONOUS_IO_ALERT		Options = 0x0010
	FILE_SYNCHRONOUS_IO_NONALERT	Options = 0x0020
	FILE_NON_DIRECTORY_FILE			Options = 0x0040
	FILE_DELETE_ON_CLOSE			Options = 0x1000

	FILE_SYNCHRONOUS_IO				= FILE_SYNCHRONOUS_IO_ALERT | FILE_SYNCHRONOUS_IO_NONALERT
)

// Byte offset sentinels
const (
	FILE_WRITE_TO_END_OF_FILE		int64 = -1
	FILE_USE_FILE_POINTER_POSITION	int64 = -2
)

// Completion notification modes (SetFileCompletionNotificationModes)
type CompletionMode uint8
const (
	FILE_SKIP_COMPLETION_PORT_ON_SUCCESS	CompletionMode = 0x1
	FILE_SKIP_SET_EVENT_ON_HANDLE			CompletionMode = 0x2
)

// FileDispositionInformationEx flags
type DispositionFlags uint32
const (
	FILE_DISPOSITION_DO_NOT_DELETE				DispositionFlags = 0x00
	FILE_DISPOSITION_DELETE						DispositionFlags = 0x01
	FILE_DISPOSITION_POSIX_SEMANTICS			DispositionFlags = 0x02
	FILE_DISPOSITION_FORCE_IMAGE_SECTION_CHECK	DispositionFlags = 0x04
	FILE_DISPOSITION_ON_CLOSE					DispositionFlags = 0x08
	FILE_DISPOSITION_IGNORE_READONLY_ATTRIBUTE	DispositionFlags = 0x10
)

// Device / filesystem control codes
const (
	FSCTL_GET_OBJECT_ID	uint32 = 0x0009009C
	FSCTL_SET_SPARSE	uint32 = 0x000900C4
	FSCTL_PIPE_PEEK		uint32 = 0x0011400C
)

const OBJECT_ID_LEN = 0x10
