package grid

import (
	"errors"
	"fmt"
)

// ErrorCode classifies grid errors.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	// CacheIDConflict is returned when a cache starts with an identifier
	// already held by another live cache.
	CacheIDConflict
	// TxIncompatible marks a rejected cache enlistment.
	TxIncompatible
	// LifecycleFailure wraps an error raised by a manager during a
	// start, stop, disconnect or reconnect transition.
	LifecycleFailure
	// Disconnected is reported by futures abandoned because the node lost
	// its cluster connection.
	Disconnected
	LockAcquisitionFailure
	// CacheClosed is returned when an operation targets a stopped cache.
	CacheClosed
	// InvalidTxState is returned when a transaction is asked to do something its
	// current state does not allow.
	InvalidTxState
)

// Error is the grid custom error.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	if e.UserData == nil {
		return fmt.Sprintf("error code: %d, details: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("error code: %d, user data: %v, details: %v", e.Code, e.UserData, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err, or any error it wraps, is a grid Error with
// the given code.
func IsCode(err error, code ErrorCode) bool {
	var ge Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// CacheIDConflictInfo is the UserData of a CacheIDConflict error.
type CacheIDConflictInfo struct {
	CacheName       string
	ConflictingName string
}

func (c CacheIDConflictInfo) String() string {
	return fmt.Sprintf("[cacheName=%s, conflictingCacheName=%s]", c.CacheName, c.ConflictingName)
}
