package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"io/fs"
	"sync"
)

// memFS is an in-memory FileSystem. A file exists from Create onwards, so
// a failed encode leaves a partial file behind just like a real disk.
type memFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFS() *memFS {
	return &memFS{files: map[string][]byte{}}
}

func (m *memFS) put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
}

func (m *memFS) get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, ok
}

func (m *memFS) Size(name string) (int64, error) {
	data, ok := m.get(name)
	if !ok {
		return 0, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return int64(len(data)), nil
}

func (m *memFS) Open(_ context.Context, name string) (io.ReadCloser, error) {
	data, ok := m.get(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memFS) Create(name string) (io.WriteCloser, error) {
	m.put(name, nil)
	return &memFile{fs: m, name: name}, nil
}

func (m *memFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, name)
	return nil
}

func (m *memFS) Rename(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[oldname]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldname, Err: fs.ErrNotExist}
	}
	delete(m.files, oldname)
	m.files[newname] = data
	return nil
}

type memFile struct {
	fs   *memFS
	name string
	buf  bytes.Buffer
}

func (f *memFile) Write(p []byte) (int, error) {
	n, err := f.buf.Write(p)
	// keep the partial content visible like an unflushed file
	f.fs.put(f.name, bytes.Clone(f.buf.Bytes()))
	return n, err
}

func (f *memFile) Close() error {
	f.fs.put(f.name, bytes.Clone(f.buf.Bytes()))
	return nil
}

type encodeCall struct {
	Bounds  image.Rectangle
	Format  Format
	Quality int
}

// sizeCodec pretends to encode: the output length comes from sizeFn, so
// tests can drive the pipeline through every stage deterministically.
type sizeCodec struct {
	mu        sync.Mutex
	src       image.Image
	format    Format
	sizeFn    func(b image.Rectangle, f Format, quality int) int64
	decodeErr error
	failAfter int // fail the n-th encode (1-based); 0 never fails
	calls     []encodeCall
}

var errEncode = errors.New("encoder blew up")

func (c *sizeCodec) Decode(r io.Reader) (image.Image, Format, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, "", err
	}
	if c.decodeErr != nil {
		return nil, "", c.decodeErr
	}
	return c.src, c.format, nil
}

func (c *sizeCodec) Encode(w io.Writer, img image.Image, f Format, quality int) error {
	c.mu.Lock()
	c.calls = append(c.calls, encodeCall{Bounds: img.Bounds(), Format: f, Quality: quality})
	n := len(c.calls)
	c.mu.Unlock()

	if c.failAfter > 0 && n >= c.failAfter {
		w.Write([]byte("partial"))
		return errEncode
	}

	_, err := io.CopyN(w, zeroReader{}, c.sizeFn(img.Bounds(), f, quality))
	return err
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// perPixel models a lossy encoder whose output grows with pixel count and quality.
func perPixel(divisor int64) func(image.Rectangle, Format, int) int64 {
	return func(b image.Rectangle, _ Format, quality int) int64 {
		return int64(b.Dx()) * int64(b.Dy()) * int64(quality) / divisor
	}
}

func fixedSize(n int64) func(image.Rectangle, Format, int) int64 {
	return func(image.Rectangle, Format, int) int64 { return n }
}
