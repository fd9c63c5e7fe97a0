package reader

import (
	"errors"
	"fmt"
)

var (
	// ErrBadMagic indicates the buffer does not start with the obby signature
	ErrBadMagic = errors.New("obby: invalid plugin header")
	// ErrTruncated indicates the header or entry table runs past the end of the buffer
	ErrTruncated = errors.New("obby: unexpected end of header")
	// ErrOutOfBounds indicates an entry's data range lies outside the buffer
	ErrOutOfBounds = errors.New("obby: entry data out of bounds")
	// ErrTableCorrupt indicates the entry table failed a structural check
	ErrTableCorrupt = errors.New("obby: corrupt entry table")
)

const (
	magic = "OBBY"

	hashLen      = 48
	signatureLen = 384

	// a 32-bit length never needs more than five 7-bit groups
	maxVarintLen = 5

	// name length (1) + name (>= 1) + length (4) + compressed length (4)
	minEntryRecordLen = 10
)

// Method selects how an entry's stored bytes are decoded.
type Method uint8

// Compression methods.
const (
	Store   Method = iota // no compression
	Deflate               // raw DEFLATE (RFC 1951)
)

func (m Method) String() string {
	switch m {
	case Store:
		return "store"
	case Deflate:
		return "deflate"
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// Header describes the metadata block that precedes the entry table.
type Header struct {
	APIVersion string
	Hash       [hashLen]byte

	// Signature is nil for unsigned plugins.
	Signed    bool
	Signature []byte

	DataLength     int32
	PluginAssembly string
	PluginVersion  string
}

// EntryDescriptor describes one file within an obby archive.
type EntryDescriptor struct {
	// Name is unique within an Index. It is never empty and never starts
	// with a path separator.
	Name string

	// Offset is the absolute position of the entry's data in the archive buffer.
	Offset int64

	StoredSize int64 // bytes occupied in the archive
	RawSize    int64 // declared size after decoding
	Method     Method
}

// Compressed reports whether the entry must be inflated.
func (e EntryDescriptor) Compressed() bool { return e.Method == Deflate }

// End returns the offset one past the entry's stored bytes.
func (e EntryDescriptor) End() int64 { return e.Offset + e.StoredSize }

// FormatError reports a structural problem with an archive. Kind is one of
// ErrBadMagic, ErrTruncated, ErrOutOfBounds or ErrTableCorrupt. Errors of
// kind ErrTruncated also match ErrOutOfBounds.
type FormatError struct {
	Kind error

	// Entry is the table slot being decoded, or -1 for header errors.
	Entry  int
	Name   string
	Offset int64
	Detail string
}

func (e *FormatError) Error() string {
	msg := e.Kind.Error()
	if e.Entry >= 0 {
		msg = fmt.Sprintf("%s (entry %d", msg, e.Entry)
		if e.Name != "" {
			msg = fmt.Sprintf("%s %q", msg, e.Name)
		}
		msg += ")"
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return fmt.Sprintf("%s at offset %d", msg, e.Offset)
}

func (e *FormatError) Unwrap() error { return e.Kind }

// Is reports truncation as an out-of-bounds read.
func (e *FormatError) Is(target error) bool {
	return target == ErrOutOfBounds && e.Kind == ErrTruncated
}
