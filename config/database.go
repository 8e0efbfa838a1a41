package config

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	bolt "go.etcd.io/bbolt"
)

const collectionsBucket = "collections"

var (
	store *Store
)

// Store keeps every logical collection as one JSON array value under a stable
// key. Collections are loaded into memory once at open time and rewritten in
// full on every mutation; there is no incremental persistence and no schema
// versioning, so readers must tolerate absent fields in old records.
type Store struct {
	db    *bolt.DB
	mu    sync.RWMutex
	cache map[string][]byte
}

func GetStore() *Store {
	return store
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// ConnectStore opens (or creates) the store file named by STORE_PATH and sets
// the global store. Call this from main() before serving.
func ConnectStore() error {
	path := os.Getenv("STORE_PATH")
	if path == "" {
		path = "plant.db"
	}
	s, err := OpenStore(path)
	if err != nil {
		return err
	}
	store = s
	return nil
}

// ConnectStoreWithRetry keeps trying to open the store. A locked store file
// means another process still holds it (last-writer-wins is only accepted at
// whole-collection granularity, never two live writers).
func ConnectStoreWithRetry() {
	var attempt int
	for {
		attempt++
		err := ConnectStore()
		if err == nil {
			log.Printf("store opened (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to open store (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	s := &Store{db: db, cache: map[string][]byte{}}
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, berr := tx.CreateBucketIfNotExists([]byte(collectionsBucket))
		if berr != nil {
			return berr
		}
		return bucket.ForEach(func(k, v []byte) error {
			raw := make([]byte, len(v))
			copy(raw, v)
			s.cache[string(k)] = raw
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load collections: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Read returns the raw JSON value of one collection, or nil if never written.
func (s *Store) Read(key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.cache[key]
	if !ok {
		return nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

// Update runs fn under the writer lock. fn reads collections through get and
// stages rewrites through put; staged values are persisted in one bolt
// transaction and only then published to the in-memory cache, so a failed
// mutation leaves nothing behind and readers never observe a partial batch.
func (s *Store) Update(fn func(get func(string) []byte, put func(string, []byte)) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := map[string][]byte{}
	get := func(key string) []byte {
		if raw, ok := staged[key]; ok {
			return raw
		}
		return s.cache[key]
	}
	put := func(key string, raw []byte) {
		staged[key] = raw
	}

	if err := fn(get, put); err != nil {
		return err
	}
	if len(staged) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collectionsBucket))
		for key, raw := range staged {
			if err := bucket.Put([]byte(key), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist collections: %w", err)
	}

	for key, raw := range staged {
		s.cache[key] = raw
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
