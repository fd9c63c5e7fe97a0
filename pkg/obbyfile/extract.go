package obbyfile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	log "github.com/sirupsen/logrus"

	"github.com/alec-rabold/obbyspy/pkg/reader"
)

// ExtractEntry returns the decoded content of the named entry.
//
// A missing entry yields ErrNotFound and a corrupt compressed stream a
// *DecodeError, as does a stream that ends before producing the declared
// raw size. When a stream decodes to more than the declared raw size the
// data is returned along with a *SizeMismatchError; see IsWarning.
func (r *Reader) ExtractEntry(name string) ([]byte, error) {
	e, err := r.Stat(name)
	if err != nil {
		return nil, err
	}
	stored := r.buf[e.Offset:e.End()]

	var data []byte
	switch e.Method {
	case reader.Store:
		data = make([]byte, len(stored))
		copy(data, stored)
	case reader.Deflate:
		data, err = r.inflate(e, stored)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &DecodeError{Name: name, Err: fmt.Errorf("unsupported method %v", e.Method)}
	}

	if r.maxEntrySize > 0 && int64(len(data)) > r.maxEntrySize {
		return nil, &DecodeError{Name: name, Err: fmt.Errorf("entry exceeds %d bytes", r.maxEntrySize)}
	}
	if int64(len(data)) != e.RawSize {
		mismatch := &SizeMismatchError{Name: name, Declared: e.RawSize, Actual: int64(len(data))}
		r.log.WithFields(log.Fields{
			"entry":    name,
			"declared": e.RawSize,
			"actual":   len(data),
		}).Warn("decoded entry size differs from archive table")
		return data, mismatch
	}
	return data, nil
}

func (r *Reader) inflate(e reader.EntryDescriptor, stored []byte) ([]byte, error) {
	hint := e.RawSize
	if hint > MaxPresize {
		hint = MaxPresize
	}
	if r.maxEntrySize > 0 && hint > r.maxEntrySize {
		hint = r.maxEntrySize
	}
	out := bytes.NewBuffer(make([]byte, 0, hint))

	fr := flate.NewReader(bytes.NewReader(stored))
	defer fr.Close()

	var src io.Reader = fr
	if r.maxEntrySize > 0 {
		// one extra byte lets the caller see the limit was crossed
		src = io.LimitReader(fr, r.maxEntrySize+1)
	}
	if _, err := io.Copy(out, src); err != nil {
		return nil, &DecodeError{Name: e.Name, Err: err}
	}
	if r.maxEntrySize > 0 && int64(out.Len()) > r.maxEntrySize {
		return nil, &DecodeError{Name: e.Name, Err: fmt.Errorf("entry exceeds %d bytes", r.maxEntrySize)}
	}
	// the decoder reports a cut-off stream as a clean EOF
	if int64(out.Len()) < e.RawSize {
		return nil, &DecodeError{Name: e.Name, Err: io.ErrUnexpectedEOF}
	}
	return out.Bytes(), nil
}
