// Package flat appends finished routes to gzipped, newline-delimited JSON
// archives on disk.
package flat

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

const (
	ArchiveDir             = "archive"
	RoutesFileName         = "routes.ndjson.gz"
	AggregatorsFileName    = "aggregators.ndjson.gz"
	defaultCompression     = gzip.BestCompression
	defaultFilePermissions = 0660
	defaultDirPermissions  = 0770
)

type Flat struct {
	// path is the directory holding the archive files.
	path string
}

func NewFlatWithRoot(root string) *Flat {
	root = filepath.Clean(root)
	if !filepath.IsAbs(root) {
		root, _ = filepath.Abs(root)
	}
	return &Flat{path: root}
}

// Archive returns the archive directory under the root.
func (f *Flat) Archive() *Flat {
	return &Flat{path: filepath.Join(f.path, ArchiveDir)}
}

func (f *Flat) Path() string {
	return f.path
}

func (f *Flat) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *Flat) MkdirAll() error {
	return os.MkdirAll(f.path, defaultDirPermissions)
}

// AppendJSON writes each value as one JSON line to the named gzip file.
// Each call adds a gzip member; readers see one continuous stream.
func AppendJSON[T any](f *Flat, name string, values ...T) error {
	w, err := NewGZWriter(filepath.Join(f.path, name))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w.Writer())
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

// ReadJSON decodes every JSON line of the named gzip file.
func ReadJSON[T any](f *Flat, name string) ([]T, error) {
	r, err := NewGZReader(filepath.Join(f.path, name))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	dec := json.NewDecoder(bufio.NewReader(r.Reader()))
	out := []T{}
	for {
		var v T
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

type GZWriter struct {
	f      *os.File
	gzw    *gzip.Writer
	locked bool
}

func NewGZWriter(path string) (*GZWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), defaultDirPermissions); err != nil {
		return nil, err
	}
	fi, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, defaultFilePermissions)
	if err != nil {
		return nil, err
	}
	gzw, err := gzip.NewWriterLevel(fi, defaultCompression)
	if err != nil {
		return nil, err
	}
	return &GZWriter{f: fi, gzw: gzw}, nil
}

// Writer returns the gzip writer.
// While the writer is not closed, an exclusive lock is held on the file.
func (g *GZWriter) Writer() *gzip.Writer {
	if !g.locked {
		if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_EX); err != nil {
			panic(err)
		}
		g.locked = true
	}
	return g.gzw
}

func (g *GZWriter) Close() error {
	if err := g.gzw.Close(); err != nil {
		return err
	}
	if err := g.f.Sync(); err != nil {
		return err
	}
	if g.locked {
		if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_UN); err != nil {
			return err
		}
	}
	return g.f.Close()
}

func (g *GZWriter) Path() string {
	return g.f.Name()
}

type GZReader struct {
	f      *os.File
	gzr    *gzip.Reader
	closed bool
}

func NewGZReader(path string) (*GZReader, error) {
	fi, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	gzr, err := gzip.NewReader(fi)
	if err != nil {
		_ = fi.Close()
		return nil, err
	}
	return &GZReader{f: fi, gzr: gzr}, nil
}

// Reader returns the gzip reader.
// While the reader is not closed, a shared lock is held on the file.
func (g *GZReader) Reader() *gzip.Reader {
	if g.closed {
		panic("closed")
	}
	if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_SH); err != nil {
		panic(err)
	}
	return g.gzr
}

func (g *GZReader) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	if err := g.gzr.Close(); err != nil {
		return err
	}
	if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_UN); err != nil {
		return err
	}
	return g.f.Close()
}
