package session

import (
	"encoding/binary"
	"errors"
	"time"

	"go.etcd.io/bbolt"
)

// ErrDBNotOpen reports that BoltStore was used before Open, or after
// Close. Grounded on teacher hooks/storage/bolt/bolt.go's
// storage.ErrDBFileNotOpen.
var ErrDBNotOpen = errors.New("session: boltdb file not open")

const defaultBucket = "sessions"

// BoltOptions configures a BoltStore, grounded on teacher
// hooks/storage/bolt/bolt.go's Options{Options, Bucket, Path}.
type BoltOptions struct {
	Options *bbolt.Options
	Bucket  string `yaml:"bucket" json:"bucket"`
	Path    string `yaml:"path" json:"path"`
}

// BoltStore is a Store backed by a bbolt file, grounded on teacher
// hooks/storage/bolt/bolt.go's Hook (setKv/getKv/delKv over a single
// bucket), narrowed from the teacher's five record kinds
// (clients/subscriptions/retained/inflight/sysinfo) to one: per-client
// session-expiry-interval.
type BoltStore struct {
	opts        BoltOptions
	db          *bbolt.DB
	sharedCache map[string]struct{}
}

// NewBoltStore opens (creating if necessary) a bbolt database at
// opts.Path and ensures its bucket exists.
func NewBoltStore(opts BoltOptions) (*BoltStore, error) {
	if opts.Options == nil {
		opts.Options = &bbolt.Options{Timeout: 250 * time.Millisecond}
	}
	if opts.Path == "" {
		opts.Path = ".sessions.bolt"
	}
	if opts.Bucket == "" {
		opts.Bucket = defaultBucket
	}

	db, err := bbolt.Open(opts.Path, 0600, opts.Options)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(opts.Bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{opts: opts, db: db, sharedCache: make(map[string]struct{})}, nil
}

// Close closes the underlying bbolt file.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Exists reports whether clientID has a recorded session.
func (s *BoltStore) Exists(clientID string) bool {
	if s.db == nil {
		return false
	}
	found := false
	_ = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(s.opts.Bucket))
		found = bucket.Get([]byte(clientID)) != nil
		return nil
	})
	return found
}

// StartPersistence writes the session's effective expiry and resolves
// the returned Future with sessionExists once the write transaction
// commits.
func (s *BoltStore) StartPersistence(clientID string, sessionExists bool, effectiveExpiry uint32) *Future {
	f := newFuture()

	if s.db == nil {
		f.resolve(false)
		return f
	}

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, effectiveExpiry)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(s.opts.Bucket))
		return bucket.Put([]byte(clientID), buf)
	})

	f.resolve(sessionExists && err == nil)
	return f
}

// InvalidateSharedCache drops the shared-subscription cache entry for
// clientID, if any.
func (s *BoltStore) InvalidateSharedCache(clientID string) {
	delete(s.sharedCache, clientID)
}
