package testdata

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/RideReport/RideRecorderApp-sub003/catdb/flat"
	"github.com/RideReport/RideRecorderApp-sub003/stream"
)

// basepath is the root directory of this package.
var basepath string

func init() {
	_, currentFile, _, _ := runtime.Caller(0)
	basepath = filepath.Dir(currentFile)
}

// Path returns the absolute path the given relative file or directory path,
// relative to this testdata/ directory in the user's GOPATH.
// If rel is already absolute, it is returned unmodified.
// Taken from https://github.com/grpc/grpc-go/blob/master/testdata/testdata.go.
func Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(basepath, rel)
}

// Source_RideCommute is a replay log of a short ride: one passive fix, a minute
// of riding, an unknown event, a minute of dawdling, then an arrival visit.
//
//	zcat testing/testdata/ride_commute.ndjson.gz | wc -l
//	5
var Source_RideCommute = "./ride_commute.ndjson.gz"

// Open opens a fixture, decompressing .gz files.
func Open(path string) (io.ReadCloser, error) {
	path = Path(path)
	if !strings.HasSuffix(path, ".gz") {
		return os.Open(path)
	}
	gzr, err := flat.NewGZReader(path)
	if err != nil {
		return nil, err
	}
	return gzReadCloser{gzr}, nil
}

type gzReadCloser struct {
	*flat.GZReader
}

func (g gzReadCloser) Read(p []byte) (int, error) {
	return g.Reader().Read(p)
}

// ReadSourceNDJSON decodes every line of a fixture.
func ReadSourceNDJSON[T any](ctx context.Context, path string) ([]T, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	itemsCh, errCh := stream.NDJSON[T](ctx, r)
	items := stream.Collect(ctx, itemsCh)
	if err := <-errCh; err != nil {
		return nil, err
	}
	return items, nil
}
