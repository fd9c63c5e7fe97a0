// Package testutil builds obby archives for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/require"
)

// TestEntry describes one entry to write into a test archive.
type TestEntry struct {
	Name string
	Data []byte

	// Compress deflates Data. Entries whose deflated form happens to be the
	// same length as Data cannot be told apart from stored ones by readers,
	// so BuildArchive fails the test in that case.
	Compress bool

	// RawSize overrides the declared length when non-zero.
	RawSize int32
	// Payload overrides the stored bytes when non-nil (after compression).
	Payload []byte
}

// TestHeader holds the header fields written before the entry table.
type TestHeader struct {
	APIVersion     string
	Hash           [48]byte
	Signature      []byte // written when non-nil, padded to 384 bytes
	DataLength     int32
	PluginAssembly string
	PluginVersion  string
}

// DefaultHeader returns a plausible unsigned header.
func DefaultHeader() TestHeader {
	return TestHeader{
		APIVersion:     "1.4.0",
		PluginAssembly: "ObsidianPlugin",
		PluginVersion:  "1.0.0",
	}
}

// BuildArchive encodes a complete archive with the default header.
func BuildArchive(tb testing.TB, entries []TestEntry) []byte {
	tb.Helper()
	return BuildArchiveWithHeader(tb, DefaultHeader(), entries)
}

// BuildArchiveWithHeader encodes a complete archive.
func BuildArchiveWithHeader(tb testing.TB, h TestHeader, entries []TestEntry) []byte {
	tb.Helper()

	payloads := make([][]byte, len(entries))
	for i, e := range entries {
		p := e.Data
		if e.Compress {
			p = Deflate(tb, e.Data)
			require.NotEqual(tb, len(e.Data), len(p), "deflated %q has the same length as its input", e.Name)
		}
		if e.Payload != nil {
			p = e.Payload
		}
		payloads[i] = p
	}

	var buf bytes.Buffer
	buf.WriteString("OBBY")
	WriteString(&buf, h.APIVersion)
	buf.Write(h.Hash[:])
	if h.Signature != nil {
		buf.WriteByte(1)
		sig := make([]byte, 384)
		copy(sig, h.Signature)
		buf.Write(sig)
	} else {
		buf.WriteByte(0)
	}
	writeInt32(&buf, h.DataLength)
	WriteString(&buf, h.PluginAssembly)
	WriteString(&buf, h.PluginVersion)

	writeInt32(&buf, int32(len(entries)))
	for i, e := range entries {
		raw := int32(len(e.Data))
		if e.RawSize != 0 {
			raw = e.RawSize
		}
		WriteString(&buf, e.Name)
		writeInt32(&buf, raw)
		writeInt32(&buf, int32(len(payloads[i])))
	}
	for _, p := range payloads {
		buf.Write(p)
	}
	return buf.Bytes()
}

// Deflate compresses data as a raw DEFLATE stream.
func Deflate(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	require.NoError(tb, err)
	_, err = w.Write(data)
	require.NoError(tb, err)
	require.NoError(tb, w.Close())
	return buf.Bytes()
}

// WriteString writes s with a 7-bit varint length prefix.
func WriteString(buf *bytes.Buffer, s string) {
	n := uint32(len(s))
	for n >= 0x80 {
		buf.WriteByte(byte(n) | 0x80)
		n >>= 7
	}
	buf.WriteByte(byte(n))
	buf.WriteString(s)
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

// Pattern returns n bytes of repetitive, highly compressible content.
func Pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%7)
	}
	return b
}
