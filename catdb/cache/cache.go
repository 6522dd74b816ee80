package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
)

// FixDedupe drops location fixes that were already seen.
// Providers occasionally redeliver a batch after a restart or a
// mode change; identical fixes must not be appended twice.
type FixDedupe struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func NewFixDedupe(size int) *FixDedupe {
	if size <= 0 {
		size = params.CacheFixDedupeSize
	}
	return &FixDedupe{cache: lru.New(size)}
}

type fixKey struct {
	UnixNano           int64
	Latitude           float64
	Longitude          float64
	Speed              float64
	Course             float64
	HorizontalAccuracy float64
}

// Pass returns true if the fix is not a duplicate.
func (d *FixDedupe) Pass(f location.Fix) bool {
	hash, err := hashstructure.Hash(fixKey{
		UnixNano:           f.Timestamp.UnixNano(),
		Latitude:           f.Latitude,
		Longitude:          f.Longitude,
		Speed:              f.Speed,
		Course:             f.Course,
		HorizontalAccuracy: f.HorizontalAccuracy,
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return false
	}
	key := fmt.Sprintf("%d", hash)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cache.Get(key); ok {
		return false
	}
	d.cache.Add(key, true)
	return true
}

// Filter returns the fixes that pass, in order.
func (d *FixDedupe) Filter(fixes []location.Fix) []location.Fix {
	out := make([]location.Fix, 0, len(fixes))
	for _, f := range fixes {
		if d.Pass(f) {
			out = append(out, f)
		}
	}
	return out
}

func (d *FixDedupe) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Len()
}

// RecentEvents keeps the latest route events for a while,
// so that late subscribers (eg. status websocket clients) can catch up.
type RecentEvents[T any] struct {
	mu    sync.Mutex
	seq   uint64
	cache *ttlcache.Cache[uint64, T]
}

func NewRecentEvents[T any](ttl time.Duration) *RecentEvents[T] {
	if ttl <= 0 {
		ttl = params.CacheRecentEventsTTL
	}
	return &RecentEvents[T]{
		cache: ttlcache.New[uint64, T](ttlcache.WithTTL[uint64, T](ttl)),
	}
}

func (r *RecentEvents[T]) Add(v T) {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()
	r.cache.Set(seq, v, ttlcache.DefaultTTL)
}

// List returns the unexpired events, oldest first.
func (r *RecentEvents[T]) List() []T {
	r.mu.Lock()
	last := r.seq
	r.mu.Unlock()
	out := []T{}
	for i := uint64(1); i <= last; i++ {
		item := r.cache.Get(i, ttlcache.WithDisableTouchOnHit[uint64, T]())
		if item == nil || item.IsExpired() {
			continue
		}
		out = append(out, item.Value())
	}
	return out
}

func (r *RecentEvents[T]) Len() int {
	return r.cache.Len()
}
