package wire

import (
	"errors"
	"fmt"
	"syscall"
)

// Errno is the error number returned to a client for a failed command.
type Errno uint32

const (
	ENXIO      Errno = 6
	ENOENT     Errno = 2
	EFAULT     Errno = 14
	ENODEV     Errno = 19
	EINVAL     Errno = 22
	ENOTTY     Errno = 25
	ENOSYS     Errno = 38
	EOPNOTSUPP Errno = 95
)

// Error kinds. Each is the Errno a client observes for that condition.
var (
	ErrNotFound        error = ENOENT
	ErrUnsupported     error = EOPNOTSUPP
	ErrUnimplemented   error = ENOSYS
	ErrNoHardware      error = ENXIO
	ErrInvalidArgument error = EINVAL
	ErrAddressFault    error = EFAULT
	ErrUnknownCommand  error = ENOTTY
	ErrNoDevice        error = ENODEV
)

// Error returns the conventional description of the error number.
func (e Errno) Error() string {
	switch e {
	case ENOENT:
		return "no such file or directory"
	case ENXIO:
		return "no such device or address"
	case EFAULT:
		return "bad address"
	case ENODEV:
		return "no such device"
	case EINVAL:
		return "invalid argument"
	case ENOTTY:
		return "inappropriate ioctl for device"
	case ENOSYS:
		return "function not implemented"
	case EOPNOTSUPP:
		return "operation not supported"
	default:
		return fmt.Sprintf("errno %d", uint32(e))
	}
}

// String returns the symbolic errno name.
func (e Errno) String() string {
	switch e {
	case ENOENT:
		return "ENOENT"
	case ENXIO:
		return "ENXIO"
	case EFAULT:
		return "EFAULT"
	case ENODEV:
		return "ENODEV"
	case EINVAL:
		return "EINVAL"
	case ENOTTY:
		return "ENOTTY"
	case ENOSYS:
		return "ENOSYS"
	case EOPNOTSUPP:
		return "EOPNOTSUPP"
	default:
		return fmt.Sprintf("E%d", uint32(e))
	}
}

// ErrnoOf maps err to the errno a client should observe.
// nil maps to 0. Errors that carry neither an Errno nor a syscall.Errno map
// to EINVAL.
func ErrnoOf(err error) Errno {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return e
	}
	var se syscall.Errno
	if errors.As(err, &se) {
		return Errno(se)
	}
	return EINVAL
}
