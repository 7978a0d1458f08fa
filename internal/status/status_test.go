package status_test

import (
	"errors"
	"fmt"
	"ntaio/internal/status"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func Test_Status_Severity(t *testing.T) {
	assert.True(t, status.Success.IsSuccess())
	assert.True(t, status.Pending.IsSuccess())
	assert.True(t, status.UserAPC.IsSuccess())
	assert.False(t, status.Pending.IsError())

	for _, s := range []status.Status{status.EndOfFile, status.AccessDenied,
		status.ObjectNameCollision, status.CannotDelete, status.SharingViolation} {
		assert.True(t, s.IsError(), s.String())
		assert.False(t, s.IsSuccess(), s.String())
	}
}

func Test_Status_Distinguishable(t *testing.T) {
	seen := map[status.Status]bool{}
	for _, s := range []status.Status{status.Pending, status.EndOfFile, status.AccessDenied,
		status.ObjectNameCollision, status.CannotDelete, status.SharingViolation} {
		assert.False(t, seen[s])
		seen[s] = true
	}
	assert.Equal(t, "STATUS_DELETE_PENDING", status.DeletePending.String())
	assert.Equal(t, "STATUS_0x12345678", status.Status(0x12345678).String())
}

func Test_Status_Code(t *testing.T) {
	assert.Equal(t, status.Success, status.Code(nil))

	err := status.Errorf(status.SharingViolation, "open", "/tmp/x", nil)
	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, status.SharingViolation, status.Code(wrapped))
	assert.True(t, errors.Is(wrapped, &status.Error{Status: status.SharingViolation}))
	assert.False(t, errors.Is(wrapped, &status.Error{Status: status.AccessDenied}))
	assert.Contains(t, err.Error(), "/tmp/x")

	assert.Equal(t, status.ObjectNameNotFound, status.Code(fmt.Errorf("stat: %w", unix.ENOENT)))
	assert.Equal(t, status.IoDeviceError, status.Code(errors.New("boom")))
}

func Test_Status_FromResult(t *testing.T) {
	assert.Equal(t, status.Success, status.FromResult(12))
	assert.Equal(t, status.Cancelled, status.FromResult(-int32(unix.ECANCELED)))
	assert.Equal(t, status.ObjectNameCollision, status.FromErrno(unix.EEXIST))
	assert.Equal(t, status.DirectoryNotEmpty, status.FromErrno(unix.ENOTEMPTY))
	assert.Equal(t, status.NotSameDevice, status.FromErrno(unix.EXDEV))
}
