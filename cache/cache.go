package cache

import (
	"encoding/binary"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wcl_check/metrics"
	"wcl_check/share"

	"github.com/getsentry/sentry-go"
	jsoniter "github.com/json-iterator/go"
)

type cacheKey struct {
	hi uint64
	lo uint64
}

// Storage is a directory of jsoniter-encoded values keyed by a 128-bit
// hash. A zero TTL means entries never expire. Entries being written are
// invisible to readers until the write completes.
type Storage struct {
	dir string
	ttl time.Duration

	savingLock sync.RWMutex
	saving     map[cacheKey]struct{}
}

func NewStorage(dir string, ttl time.Duration) *Storage {
	os.MkdirAll(dir, 0700)

	return &Storage{
		dir:    dir,
		ttl:    ttl,
		saving: make(map[cacheKey]struct{}, 32),
	}
}

func keyOf(h hash.Hash) cacheKey {
	sum := h.Sum(nil)
	if len(sum) < 16 {
		padded := make([]byte, 16)
		copy(padded[16-len(sum):], sum)
		sum = padded
	}
	return cacheKey{
		hi: binary.BigEndian.Uint64(sum[:8]),
		lo: binary.BigEndian.Uint64(sum[8:16]),
	}
}

func (s *Storage) path(k cacheKey) string {
	return filepath.Join(s.dir, fmt.Sprintf("%016x-%016x.json", k.hi, k.lo))
}

func (s *Storage) lock(k cacheKey) bool {
	s.savingLock.Lock()
	defer s.savingLock.Unlock()

	_, ok := s.saving[k]
	if !ok {
		s.saving[k] = struct{}{}
	}
	return !ok
}

func (s *Storage) unlock(k cacheKey) {
	s.savingLock.Lock()
	defer s.savingLock.Unlock()

	delete(s.saving, k)
}

func (s *Storage) checkSkip(k cacheKey) bool {
	s.savingLock.RLock()
	defer s.savingLock.RUnlock()

	_, ok := s.saving[k]
	return ok
}

// Load decodes the cached value for h into r. Returns false on miss,
// expiry, or a concurrent write of the same key.
func (s *Storage) Load(h hash.Hash, r interface{}) bool {
	k := keyOf(h)

	if s.checkSkip(k) {
		metrics.CacheMisses.Inc()
		return false
	}

	fsPath := s.path(k)

	if s.ttl > 0 {
		fi, err := os.Stat(fsPath)
		if err != nil {
			metrics.CacheMisses.Inc()
			return false
		}
		if time.Since(fi.ModTime()) > s.ttl {
			os.Remove(fsPath)
			metrics.CacheMisses.Inc()
			return false
		}
	}

	fs, err := os.Open(fsPath)
	if err != nil {
		metrics.CacheMisses.Inc()
		return false
	}
	defer fs.Close()

	err = jsoniter.NewDecoder(fs).Decode(r)
	if err != nil {
		sentry.CaptureException(err)
		metrics.CacheMisses.Inc()
		return false
	}

	metrics.CacheHits.Inc()
	return true
}

// Save encodes r under h. The value lands in a temp file first so a
// concurrent Load never sees a half-written entry.
func (s *Storage) Save(h hash.Hash, r interface{}) bool {
	k := keyOf(h)

	if !s.lock(k) {
		return false
	}
	defer s.unlock(k)

	suffix := make([]byte, 8)
	share.FillRandomString(suffix)

	fsPath := s.path(k)
	tmpPath := fsPath + "." + share.B2s(suffix)

	fs, err := os.Create(tmpPath)
	if err != nil {
		sentry.CaptureException(err)
		return false
	}

	err = jsoniter.NewEncoder(fs).Encode(r)
	fs.Close()
	if err != nil {
		sentry.CaptureException(err)
		os.Remove(tmpPath)
		return false
	}

	err = os.Rename(tmpPath, fsPath)
	if err != nil {
		sentry.CaptureException(err)
		os.Remove(tmpPath)
		return false
	}

	return true
}
