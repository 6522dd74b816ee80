package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/RideReport/RideRecorderApp-sub003/catdb/flat"
	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("not found")

// Store persists routes, prediction aggregators and the recorder's own state.
//
// Opening a writable Store will block all other writers and readers of the
// same data directory with essentially a file lock/flock.
type Store struct {
	DB   *bbolt.DB
	Flat *flat.Flat

	// routes keeps the live route values handed out by the store,
	// so that repeated lookups of an open route share one pointer.
	routes *lru.Cache[conceptual.RouteID, *route.Route]

	Waiting sync.WaitGroup
	rOnly   bool
	logger  *slog.Logger
}

// Open opens (or creates) the store under the root directory.
func Open(root string, readOnly bool) (*Store, error) {
	f := flat.NewFlatWithRoot(root)
	if !readOnly {
		if err := f.MkdirAll(); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(filepath.Join(f.Path(), params.StoreDBName), 0600, &bbolt.Options{
		ReadOnly: readOnly,
	})
	if err != nil {
		return nil, err
	}
	if !readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, b := range [][]byte{
				params.StoreRoutesBucket,
				params.StoreAggregatorsBucket,
				params.StoreRecorderBucket,
			} {
				if _, err := tx.CreateBucketIfNotExists(b); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	cache, err := lru.New[conceptual.RouteID, *route.Route](params.StoreRouteCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		DB:     db,
		Flat:   f,
		routes: cache,
		rOnly:  readOnly,
		logger: slog.With("d", "store"),
	}, nil
}

func (s *Store) IsReadOnly() bool {
	return s.rOnly
}

func (s *Store) Close() error {
	s.Waiting.Wait()
	return s.DB.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func (s *Store) putKV(bucket, key, data []byte) error {
	if key == nil {
		return fmt.Errorf("putKV: nil key")
	}
	if data == nil {
		return fmt.Errorf("putKV: nil data")
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// getKV returns a copy of the value, or nil if the key is not set.
func (s *Store) getKV(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		// Gotcha! The value returned by Get is only valid in the scope of the transaction.
		got := b.Get(key)
		if got == nil {
			return nil
		}
		out = bytes.Clone(got)
		return nil
	})
	return out, err
}

func (s *Store) deleteKV(bucket, key []byte) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

// forEach calls fn with a copy of every key/value in the bucket, in key order.
func (s *Store) forEach(bucket []byte, fn func(k, v []byte) error) error {
	return s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(bytes.Clone(k), bytes.Clone(v))
		})
	})
}
