package pool

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Pool operations. Callers should compare
// against these with errors.Is rather than matching error strings.
var (
	// ErrPoolShutdown is returned by Acquire once Shutdown has been called.
	ErrPoolShutdown = errors.New("pool: shut down")

	// ErrForeignHandle is returned by Release when given a LeaseHandle that
	// was not issued by this Pool.
	ErrForeignHandle = errors.New("pool: handle does not belong to this pool")

	// ErrHandleClosed is returned by any LeaseHandle or StatementHandle
	// operation performed after Close.
	ErrHandleClosed = errors.New("pool: handle is closed")
)

// ConnectorError wraps a failure returned by a Connector while opening a new
// session. It is returned from Acquire when growth or refill fails.
type ConnectorError struct {
	Err error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("pool: connector failed to open session: %v", e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// ArgumentError reports an invalid construction parameter. It mirrors the
// shape of a field-level validation error rather than a bare string so
// callers can inspect which field failed.
type ArgumentError struct {
	Field   string
	Value   any
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("pool: invalid %s (%v): %s", e.Field, e.Value, e.Message)
}
