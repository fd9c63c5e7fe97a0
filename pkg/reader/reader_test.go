package reader_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alec-rabold/obbyspy/internal/testutil"
	"github.com/alec-rabold/obbyspy/pkg/reader"
)

func TestParse(t *testing.T) {
	t.Parallel()

	manifest := []byte(`{"id":"test-plugin","name":"Test Plugin","v":"1.0"}`)
	icon := testutil.Pattern(1024)
	buf := testutil.BuildArchive(t, []testutil.TestEntry{
		{Name: "plugin.json", Data: manifest},
		{Name: "icon.png", Data: icon, Compress: true},
		{Name: "lib/Plugin.dll", Data: []byte("MZ")},
	})

	idx, err := reader.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"plugin.json", "icon.png", "lib/Plugin.dll"}, idx.Names())
	assert.Equal(t, 3, idx.Len())
	assert.Zero(t, idx.Duplicates())

	h := idx.Header()
	assert.Equal(t, "1.4.0", h.APIVersion)
	assert.Equal(t, "ObsidianPlugin", h.PluginAssembly)
	assert.Equal(t, "1.0.0", h.PluginVersion)
	assert.False(t, h.Signed)
	assert.Nil(t, h.Signature)

	entries := idx.Entries()
	first := entries[0]
	assert.Equal(t, idx.DataStart(), first.Offset)
	assert.Equal(t, reader.Store, first.Method)
	assert.Equal(t, int64(len(manifest)), first.StoredSize)
	assert.Equal(t, int64(len(manifest)), first.RawSize)
	assert.Equal(t, manifest, buf[first.Offset:first.End()])

	second := entries[1]
	assert.True(t, second.Compressed())
	assert.Equal(t, first.End(), second.Offset)
	assert.Equal(t, int64(1024), second.RawSize)
	assert.Less(t, second.StoredSize, second.RawSize)

	third, ok := idx.Lookup("lib/Plugin.dll")
	require.True(t, ok)
	assert.Equal(t, second.End(), third.Offset)
	assert.Equal(t, int64(len(buf)), third.End())

	_, ok = idx.Lookup("missing")
	assert.False(t, ok)
}

func TestParseSignedHeader(t *testing.T) {
	t.Parallel()

	h := testutil.DefaultHeader()
	h.Signature = bytes.Repeat([]byte{0xab}, 384)
	h.Hash[0], h.Hash[47] = 1, 2
	h.DataLength = 77
	buf := testutil.BuildArchiveWithHeader(t, h, []testutil.TestEntry{
		{Name: "plugin.json", Data: []byte("{}")},
	})

	idx, err := reader.Parse(buf)
	require.NoError(t, err)
	got := idx.Header()
	assert.True(t, got.Signed)
	assert.Equal(t, h.Signature, got.Signature)
	assert.Equal(t, h.Hash, got.Hash)
	assert.Equal(t, int32(77), got.DataLength)
	assert.Equal(t, []string{"plugin.json"}, idx.Names())

	// the signature handed out must not write through to the archive
	got.Signature[0] = 0
	assert.Equal(t, h.Signature, idx.Header().Signature)
	// magic, api version string, hash, signed flag
	sigOffset := 4 + 1 + len("1.4.0") + 48 + 1
	assert.Equal(t, bytes.Repeat([]byte{0xab}, 384), buf[sigOffset:sigOffset+384])
}

func TestParseTruncatedIsOutOfBounds(t *testing.T) {
	t.Parallel()

	buf := testutil.BuildArchive(t, []testutil.TestEntry{{Name: "plugin.json", Data: []byte("{}")}})
	_, err := reader.Parse(buf[:20])
	require.Error(t, err)
	assert.ErrorIs(t, err, reader.ErrTruncated)
	assert.ErrorIs(t, err, reader.ErrOutOfBounds)
	assert.NotErrorIs(t, err, reader.ErrTableCorrupt)
	assert.NotErrorIs(t, err, reader.ErrBadMagic)

	_, err = reader.Parse([]byte("nope"))
	assert.NotErrorIs(t, err, reader.ErrOutOfBounds)
}

func TestParseEmptyTable(t *testing.T) {
	t.Parallel()

	buf := testutil.BuildArchive(t, nil)
	idx, err := reader.Parse(buf)
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.Names())
	assert.Equal(t, int64(len(buf)), idx.DataStart())
}

func TestParseLongName(t *testing.T) {
	t.Parallel()

	// 300 bytes needs a two-byte length prefix
	name := string(bytes.Repeat([]byte("n"), 300))
	buf := testutil.BuildArchive(t, []testutil.TestEntry{{Name: name, Data: []byte("x")}})
	idx, err := reader.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, []string{name}, idx.Names())
}

func TestParseDuplicateFirstWins(t *testing.T) {
	t.Parallel()

	buf := testutil.BuildArchive(t, []testutil.TestEntry{
		{Name: "a.txt", Data: []byte("first")},
		{Name: "b.txt", Data: []byte("bee")},
		{Name: "a.txt", Data: []byte("second!")},
	})

	idx, err := reader.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, idx.Names())
	assert.Equal(t, 1, idx.Duplicates())

	a, ok := idx.Lookup("a.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("first"), buf[a.Offset:a.End()])

	b, ok := idx.Lookup("b.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("bee"), buf[b.Offset:b.End()])
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	valid := testutil.BuildArchive(t, []testutil.TestEntry{
		{Name: "plugin.json", Data: []byte(`{"id":"x"}`)},
		{Name: "main.js", Data: testutil.Pattern(512), Compress: true},
	})
	tableStart := tableOffset(t)

	tests := []struct {
		name  string
		buf   func(testing.TB) []byte
		kind  error
		entry int
	}{
		{
			name:  "empty",
			buf:   func(t testing.TB) []byte { return nil },
			kind:  reader.ErrBadMagic,
			entry: -1,
		},
		{
			name:  "wrong magic",
			buf:   func(t testing.TB) []byte { return append([]byte("ZIPX"), valid[4:]...) },
			kind:  reader.ErrBadMagic,
			entry: -1,
		},
		{
			name:  "magic only",
			buf:   func(t testing.TB) []byte { return []byte("OBBY") },
			kind:  reader.ErrTruncated,
			entry: -1,
		},
		{
			name:  "truncated hash",
			buf:   func(t testing.TB) []byte { return valid[:20] },
			kind:  reader.ErrTruncated,
			entry: -1,
		},
		{
			name: "truncated signature",
			buf: func(t testing.TB) []byte {
				h := testutil.DefaultHeader()
				h.Signature = []byte{1}
				b := testutil.BuildArchiveWithHeader(t, h, nil)
				return b[:100]
			},
			kind:  reader.ErrTruncated,
			entry: -1,
		},
		{
			name:  "truncated table",
			buf:   func(t testing.TB) []byte { return valid[:tableStart+6] },
			kind:  reader.ErrTableCorrupt,
			entry: -1,
		},
		{
			name:  "truncated payload",
			buf:   func(t testing.TB) []byte { return valid[:len(valid)-1] },
			kind:  reader.ErrOutOfBounds,
			entry: 1,
		},
		{
			name: "negative count",
			buf: func(t testing.TB) []byte {
				b := append([]byte(nil), valid...)
				binary.LittleEndian.PutUint32(b[tableStart:], 0xffffffff)
				return b
			},
			kind:  reader.ErrTableCorrupt,
			entry: -1,
		},
		{
			name: "count larger than table",
			buf: func(t testing.TB) []byte {
				b := append([]byte(nil), valid...)
				binary.LittleEndian.PutUint32(b[tableStart:], 1<<20)
				return b
			},
			kind:  reader.ErrTableCorrupt,
			entry: -1,
		},
		{
			name: "negative size",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{
					{Name: "a", Data: []byte("abc"), RawSize: -5},
				})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "declared size past end",
			buf: func(t testing.TB) []byte {
				b := testutil.BuildArchive(t, []testutil.TestEntry{
					{Name: "a", Data: []byte("abc")},
					{Name: "b", Data: []byte("def")},
				})
				// compressed length of "b" sits right before the 6 data bytes
				binary.LittleEndian.PutUint32(b[len(b)-10:], 4096)
				return b
			},
			kind:  reader.ErrOutOfBounds,
			entry: 1,
		},
		{
			name: "empty name",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{{Name: "", Data: []byte("abc")}})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "absolute name",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{{Name: "/etc/passwd", Data: []byte("abc")}})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "backslash name",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{{Name: `\windows`, Data: []byte("abc")}})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "parent reference",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{
					{Name: "ok.txt", Data: []byte("abc")},
					{Name: `assets/../../x`, Data: []byte("abc")},
				})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 1,
		},
		{
			name: "invalid utf-8 name",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{{Name: "bad\xff", Data: []byte("abc")}})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "current directory name",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{{Name: `.`, Data: []byte("abc")}})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "directory name",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{{Name: `assets/`, Data: []byte("abc")}})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "empty path element",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{{Name: `assets//icon.png`, Data: []byte("abc")}})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "current directory element",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{{Name: `./main.js`, Data: []byte("abc")}})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "trailing backslash",
			buf: func(t testing.TB) []byte {
				return testutil.BuildArchive(t, []testutil.TestEntry{{Name: `assets\`, Data: []byte("abc")}})
			},
			kind:  reader.ErrTableCorrupt,
			entry: 0,
		},
		{
			name: "varint overflow",
			buf: func(t testing.TB) []byte {
				b := append([]byte("OBBY"), 0xff, 0xff, 0xff, 0xff, 0xff, 0x01)
				return append(b, make([]byte, 64)...)
			},
			kind:  reader.ErrTableCorrupt,
			entry: -1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			idx, err := reader.Parse(tt.buf(t))
			require.Error(t, err)
			assert.Nil(t, idx)
			assert.True(t, errors.Is(err, tt.kind), "got %v, want %v", err, tt.kind)

			var fe *reader.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.entry, fe.Entry)
		})
	}
}

func TestParseTruncatedNeverPanics(t *testing.T) {
	t.Parallel()

	h := testutil.DefaultHeader()
	h.Signature = []byte("sig")
	buf := testutil.BuildArchiveWithHeader(t, h, []testutil.TestEntry{
		{Name: "plugin.json", Data: []byte(`{"id":"x"}`)},
		{Name: "styles.css", Data: testutil.Pattern(300), Compress: true},
	})
	for n := 0; n < len(buf); n++ {
		assert.NotPanics(t, func() {
			_, err := reader.Parse(buf[:n])
			assert.Error(t, err, "prefix of %d bytes", n)
		})
	}
}

func TestFormatErrorMessage(t *testing.T) {
	t.Parallel()

	err := &reader.FormatError{Kind: reader.ErrOutOfBounds, Entry: 2, Name: "main.js", Offset: 91, Detail: "too far"}
	assert.Equal(t, `obby: entry data out of bounds (entry 2 "main.js"): too far at offset 91`, err.Error())

	err = &reader.FormatError{Kind: reader.ErrBadMagic, Entry: -1}
	assert.Equal(t, "obby: invalid plugin header at offset 0", err.Error())
}

func TestMethodString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "store", reader.Store.String())
	assert.Equal(t, "deflate", reader.Deflate.String())
	assert.Equal(t, "method(9)", reader.Method(9).String())
}

// tableOffset returns where the entry count sits in an archive built with
// the default unsigned header.
func tableOffset(t *testing.T) int {
	t.Helper()
	h := testutil.DefaultHeader()
	return len(testutil.BuildArchiveWithHeader(t, h, nil)) - 4
}
