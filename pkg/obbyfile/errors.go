package obbyfile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the archive has no entry with the requested name
	ErrNotFound = errors.New("obby: entry not found")
	// ErrDecode indicates a compressed entry could not be inflated
	ErrDecode = errors.New("obby: entry decode failed")
	// ErrSizeMismatch indicates an entry decoded to a length other than its
	// declared raw size. The decoded data is still returned.
	ErrSizeMismatch = errors.New("obby: decoded size does not match declared size")
	// ErrEncoding indicates the manifest is not valid UTF-8
	ErrEncoding = errors.New("obby: manifest is not valid UTF-8")
)

// DecodeError reports a failure to decode one entry. Other entries of the
// same archive are unaffected.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrDecode, e.Name, e.Err)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

// SizeMismatchError is returned together with the decoded data when an
// entry's content length disagrees with the table.
type SizeMismatchError struct {
	Name     string
	Declared int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%v: %s: declared %d bytes, decoded %d", ErrSizeMismatch, e.Name, e.Declared, e.Actual)
}

func (e *SizeMismatchError) Unwrap() error { return ErrSizeMismatch }

// IsWarning reports whether err only flags a data-integrity concern and the
// accompanying data is usable.
func IsWarning(err error) bool {
	return err != nil && errors.Is(err, ErrSizeMismatch)
}
