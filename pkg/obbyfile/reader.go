// Package obbyfile provides read access to the entries of an obby plugin
// archive held in memory.
//
// A Reader owns the archive bytes and the parsed entry table. Neither is
// modified after Open, so a single Reader may serve concurrent ExtractEntry
// calls without locking.
package obbyfile

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/alec-rabold/obbyspy/pkg/reader"
)

// MaxPresize caps how much output space is reserved up front from an
// entry's declared raw size.
const MaxPresize = 64 << 20

// Reader extracts entries from an obby archive.
type Reader struct {
	buf          []byte
	index        *reader.Index
	maxEntrySize int64
	log          log.FieldLogger
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxEntrySize fails extraction of any entry that decodes to more than n
// bytes. Zero disables the limit.
func WithMaxEntrySize(n int64) Option {
	return func(r *Reader) {
		r.maxEntrySize = n
	}
}

// WithLogger sets the logger used for integrity warnings.
func WithLogger(l log.FieldLogger) Option {
	return func(r *Reader) {
		r.log = l
	}
}

// Open parses buf and returns a Reader over it. The caller must not modify
// buf afterwards. Errors are *reader.FormatError values.
func Open(buf []byte, opts ...Option) (*Reader, error) {
	idx, err := reader.Parse(buf)
	if err != nil {
		return nil, err
	}
	return NewReader(idx, buf, opts...), nil
}

// NewReader wraps an index previously parsed from buf.
func NewReader(idx *reader.Index, buf []byte, opts ...Option) *Reader {
	r := &Reader{
		buf:   buf,
		index: idx,
		log:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if idx.Duplicates() > 0 {
		r.log.WithField("dropped", idx.Duplicates()).Debug("archive has duplicate entry names, keeping the first of each")
	}
	return r
}

// Index returns the parsed entry table.
func (r *Reader) Index() *reader.Index { return r.index }

// Header returns the archive metadata.
func (r *Reader) Header() reader.Header { return r.index.Header() }

// Size returns the length of the archive in bytes.
func (r *Reader) Size() int64 { return int64(len(r.buf)) }

// ListEntries returns the entry names in file order.
func (r *Reader) ListEntries() []string { return r.index.Names() }

// Entries returns all entry descriptors in file order.
func (r *Reader) Entries() []reader.EntryDescriptor { return r.index.Entries() }

// Stat returns the descriptor of the named entry.
func (r *Reader) Stat(name string) (reader.EntryDescriptor, error) {
	e, ok := r.index.Lookup(name)
	if !ok {
		return reader.EntryDescriptor{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e, nil
}

// ListEntries returns the entry names of r in file order.
func ListEntries(r *Reader) []string { return r.ListEntries() }

// ExtractEntry returns the decoded content of the named entry in r.
func ExtractEntry(r *Reader, name string) ([]byte, error) { return r.ExtractEntry(name) }

// ExtractPluginJSON returns the manifest of r as text.
func ExtractPluginJSON(r *Reader) (string, error) { return r.ExtractPluginJSON() }
