// Package common defines shared sentinel errors and helpers used across
// the identity core. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Account errors.
	ErrDuplicateUser     = errors.New("user already exists")
	ErrPasswordMismatch  = errors.New("password and confirm password do not match")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidCredential = errors.New("password is incorrect")
	ErrPasswordTooLong   = errors.New("password exceeds 72 bytes")

	// Session errors.
	ErrInvalidToken = errors.New("invalid token")

	// Asset store errors.
	ErrInvalidFileType      = errors.New("invalid file type")
	ErrUpstreamAssetFailure = errors.New("asset store failure")
)

// AssetError tags an asset store failure with its kind (ErrInvalidFileType or
// ErrUpstreamAssetFailure) while keeping the original cause reachable.
type AssetError struct {
	Kind error
	Op   string
	Err  error
}

// NewAssetError builds an AssetError for operation op.
func NewAssetError(kind error, op string, err error) *AssetError {
	return &AssetError{Kind: kind, Op: op, Err: err}
}

func (e *AssetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Is reports whether target is the kind of this error.
func (e *AssetError) Is(target error) bool {
	return target == e.Kind
}

func (e *AssetError) Unwrap() error {
	return e.Err
}
