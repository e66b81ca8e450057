// Package stream implements the rwstream abstraction the serializer
// and the document loaders write through: a seekable byte sink/source
// over memory or a file.
package stream

import (
	"io"
	"os"

	"github.com/pkg/errors"

	verr "velm/internal/errors"
)

// RWStream is a seekable byte stream. Write may succeed partially on a
// fixed-size sink; it then reports the bytes written together with a
// StreamNoSpace error.
type RWStream interface {
	io.Reader
	io.Writer
	Seek(offset int64, whence int) (int64, error)
}

// MemStream is an in-memory RWStream. A fixed stream never grows past
// its initial capacity; a buffer stream grows on demand.
type MemStream struct {
	buf   []byte
	pos   int
	fixed bool
}

// NewMemFixed returns a MemStream over a window of size bytes. Writes
// past the end are truncated.
func NewMemFixed(size int) *MemStream {
	return &MemStream{buf: make([]byte, 0, size), fixed: true}
}

// NewMemBuffer returns a growable MemStream.
func NewMemBuffer() *MemStream {
	return &MemStream{}
}

func (m *MemStream) Write(p []byte) (int, error) {
	if m.fixed {
		room := cap(m.buf) - m.pos
		if room <= 0 {
			return 0, verr.SetLast(verr.StreamNoSpace)
		}
		n := len(p)
		if n > room {
			n = room
		}
		end := m.pos + n
		if end > len(m.buf) {
			m.buf = m.buf[:end]
		}
		copy(m.buf[m.pos:end], p[:n])
		m.pos = end
		if n < len(p) {
			return n, verr.SetLast(verr.StreamNoSpace)
		}
		return n, nil
	}

	end := m.pos + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *MemStream) Read(p []byte) (int, error) {
	if m.pos >= len(m.buf) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += n
	return n, nil
}

func (m *MemStream) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, verr.SetLast(verr.StreamFailed)
	}
	if next < 0 {
		return 0, verr.SetLast(verr.StreamFailed)
	}
	m.pos = int(next)
	return next, nil
}

// GetMemBuffer returns the bytes written so far and their length.
func (m *MemStream) GetMemBuffer() ([]byte, int) {
	return m.buf, len(m.buf)
}

// String returns the buffered bytes as a string.
func (m *MemStream) String() string { return string(m.buf) }

// FileStream is an RWStream over an operating-system file.
type FileStream struct {
	f *os.File
}

// OpenFile opens path for reading.
func OpenFile(path string) (*FileStream, error) {
	fi, err := os.Stat(path)
	if err != nil {
		verr.SetLast(verr.StreamFailed)
		return nil, errors.Wrapf(verr.StreamFailed, "open %s", path)
	}
	if fi.IsDir() {
		verr.SetLast(verr.StreamIsDir)
		return nil, errors.Wrapf(verr.StreamIsDir, "open %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		verr.SetLast(verr.StreamIO)
		return nil, errors.Wrapf(verr.StreamIO, "open %s", path)
	}
	return &FileStream{f: f}, nil
}

func (s *FileStream) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s *FileStream) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *FileStream) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

// Close releases the underlying file.
func (s *FileStream) Close() error { return s.f.Close() }
