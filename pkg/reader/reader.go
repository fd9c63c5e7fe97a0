package reader

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Index is the parsed entry table of an obby archive. It is immutable once
// returned by Parse and may be shared between goroutines.
type Index struct {
	header     Header
	entries    []EntryDescriptor
	byName     map[string]int
	dataStart  int64
	duplicates int
}

// Parse decodes the header and entry table of an obby archive held in buf.
// Only metadata is read; entry payloads are neither copied nor inflated.
// Every returned error is a *FormatError.
func Parse(buf []byte) (*Index, error) {
	if len(buf) < len(magic) || string(buf[:len(magic)]) != magic {
		return nil, &FormatError{Kind: ErrBadMagic, Entry: -1}
	}
	p := &parser{buf: buf, b: readBuf(buf[len(magic):]), entry: -1}

	h, err := p.readHeader()
	if err != nil {
		return nil, err
	}
	idx := &Index{header: h}
	if err := p.readEntryTable(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Header returns the archive metadata preceding the entry table. The
// signature is a copy and may be modified freely.
func (x *Index) Header() Header {
	h := x.header
	if h.Signature != nil {
		h.Signature = append([]byte(nil), h.Signature...)
	}
	return h
}

// Len returns the number of distinct entries.
func (x *Index) Len() int { return len(x.entries) }

// DataStart is the offset of the first byte after the entry table.
func (x *Index) DataStart() int64 { return x.dataStart }

// Duplicates returns how many table records were dropped because their name
// had already been seen.
func (x *Index) Duplicates() int { return x.duplicates }

// Entries returns the descriptors in file order.
func (x *Index) Entries() []EntryDescriptor {
	out := make([]EntryDescriptor, len(x.entries))
	copy(out, x.entries)
	return out
}

// Names returns the entry names in file order.
func (x *Index) Names() []string {
	names := make([]string, len(x.entries))
	for i, e := range x.entries {
		names[i] = e.Name
	}
	return names
}

// Lookup returns the descriptor for name.
func (x *Index) Lookup(name string) (EntryDescriptor, bool) {
	i, ok := x.byName[name]
	if !ok {
		return EntryDescriptor{}, false
	}
	return x.entries[i], true
}

type parser struct {
	buf   []byte
	b     readBuf
	entry int
	name  string
}

func (p *parser) offset() int64 { return int64(len(p.buf) - len(p.b)) }

func (p *parser) fail(kind error, format string, args ...interface{}) *FormatError {
	return &FormatError{
		Kind:   kind,
		Entry:  p.entry,
		Name:   p.name,
		Offset: p.offset(),
		Detail: fmt.Sprintf(format, args...),
	}
}

func (p *parser) need(n int, what string) error {
	if len(p.b) < n {
		return p.fail(ErrTruncated, "%s needs %d bytes, %d left", what, n, len(p.b))
	}
	return nil
}

func (p *parser) readHeader() (Header, error) {
	var h Header
	var err error
	if h.APIVersion, err = p.readString("api version"); err != nil {
		return h, err
	}
	if err := p.need(hashLen+1, "hash"); err != nil {
		return h, err
	}
	copy(h.Hash[:], p.b.sub(hashLen))

	h.Signed = p.b.uint8() != 0
	if h.Signed {
		if err := p.need(signatureLen, "signature"); err != nil {
			return h, err
		}
		h.Signature = p.b.sub(signatureLen)
	}

	if err := p.need(4, "data length"); err != nil {
		return h, err
	}
	h.DataLength = int32(p.b.uint32())
	if h.PluginAssembly, err = p.readString("plugin assembly"); err != nil {
		return h, err
	}
	if h.PluginVersion, err = p.readString("plugin version"); err != nil {
		return h, err
	}
	return h, nil
}

func (p *parser) readEntryTable(idx *Index) error {
	if err := p.need(4, "entry count"); err != nil {
		return err
	}
	count := int32(p.b.uint32())
	if count < 0 {
		return p.fail(ErrTableCorrupt, "negative entry count %d", count)
	}
	if int(count) > len(p.b)/minEntryRecordLen {
		return p.fail(ErrTableCorrupt, "entry count %d exceeds table space of %d bytes", count, len(p.b))
	}

	type record struct {
		name         string
		raw, stored  int64
		recordOffset int64
	}
	records := make([]record, 0, count)
	for i := 0; i < int(count); i++ {
		p.entry, p.name = i, ""
		at := p.offset()
		name, err := p.readString("entry name")
		if err != nil {
			return err
		}
		p.name = name
		if err := validName(name); err != nil {
			return p.fail(ErrTableCorrupt, "%v", err)
		}
		if err := p.need(8, "entry sizes"); err != nil {
			return err
		}
		raw := int32(p.b.uint32())
		stored := int32(p.b.uint32())
		if raw < 0 || stored < 0 {
			return p.fail(ErrTableCorrupt, "negative size (length %d, compressed length %d)", raw, stored)
		}
		records = append(records, record{name: name, raw: int64(raw), stored: int64(stored), recordOffset: at})
	}

	idx.dataStart = p.offset()
	idx.entries = make([]EntryDescriptor, 0, len(records))
	idx.byName = make(map[string]int, len(records))

	// payloads follow the table back to back, duplicates included
	offset := idx.dataStart
	size := int64(len(p.buf))
	for i, r := range records {
		e := EntryDescriptor{
			Name:       r.name,
			Offset:     offset,
			StoredSize: r.stored,
			RawSize:    r.raw,
			Method:     Store,
		}
		if r.stored != r.raw {
			e.Method = Deflate
		}
		if e.End() > size {
			return &FormatError{
				Kind:   ErrOutOfBounds,
				Entry:  i,
				Name:   r.name,
				Offset: r.recordOffset,
				Detail: fmt.Sprintf("data [%d, %d) exceeds archive size %d", e.Offset, e.End(), size),
			}
		}
		offset = e.End()

		if _, dup := idx.byName[r.name]; dup {
			idx.duplicates++
			continue
		}
		idx.byName[r.name] = len(idx.entries)
		idx.entries = append(idx.entries, e)
	}
	return nil
}

// readString decodes a 7-bit varint length prefix followed by UTF-8 bytes.
func (p *parser) readString(what string) (string, error) {
	var n uint64
	for i := 0; ; i++ {
		if i == maxVarintLen {
			return "", p.fail(ErrTableCorrupt, "%s length prefix longer than %d bytes", what, maxVarintLen)
		}
		if err := p.need(1, what); err != nil {
			return "", err
		}
		c := p.b.uint8()
		n |= uint64(c&0x7f) << (7 * uint(i))
		if c&0x80 == 0 {
			break
		}
	}
	if n > uint64(len(p.b)) {
		return "", p.fail(ErrTruncated, "%s needs %d bytes, %d left", what, n, len(p.b))
	}
	s := p.b.sub(int(n))
	if !utf8.Valid(s) {
		return "", p.fail(ErrTableCorrupt, "%s is not valid UTF-8", what)
	}
	return string(s), nil
}

// validName rejects names that would escape a directory or name a
// directory when used as a relative path.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("empty entry name")
	}
	if name[0] == '/' || name[0] == '\\' {
		return fmt.Errorf("entry name %q has a leading separator", name)
	}
	for _, elem := range strings.Split(strings.ReplaceAll(name, `\`, "/"), "/") {
		switch elem {
		case "":
			return fmt.Errorf("entry name %q has an empty path element", name)
		case ".":
			return fmt.Errorf("entry name %q contains a current directory reference", name)
		case "..":
			return fmt.Errorf("entry name %q contains a parent reference", name)
		}
	}
	return nil
}

type readBuf []byte

func (b *readBuf) uint8() uint8 {
	v := (*b)[0]
	*b = (*b)[1:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) sub(n int) readBuf {
	b2 := (*b)[:n:n]
	*b = (*b)[n:]
	return b2
}
