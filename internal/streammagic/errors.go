package streammagic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Normalized transport errors. Callers branch on these with errors.Is; the
// underlying cause stays attached for the diagnostic trail.
var (
	// ErrUnreachable covers address resolution failures and hosts that
	// refuse or cannot route the connection.
	ErrUnreachable = errors.New("device unreachable")

	// ErrTimeout covers the session wall-clock budget being exceeded,
	// whether during dial, read, or write.
	ErrTimeout = errors.New("session timed out")

	// ErrTransport covers every other network failure, including a
	// connection dropped mid-request.
	ErrTransport = errors.New("transport failure")

	// ErrRejected means the device answered with a non-success result.
	ErrRejected = errors.New("rejected by device")
)

// normalizeNetError maps a raw dial/read/write error onto one of the sentinel
// errors above, preserving the cause.
func normalizeNetError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), isNetTimeout(err):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case isUnreachable(err):
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	default:
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
